package embedding

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/models"
	"github.com/graphtext/graph2seq/internal/nn"
)

// Initializer produces the initial node feature matrix for a graph: one
// embedding lookup per node, optionally passed through a bidirectional
// recurrent contextualizer over the node sequence.
type Initializer struct {
	provider   Provider
	contextual Provider // optional secondary pretrained provider
	cfg        config.InitArgs

	fwd []nn.Cell // one per contextualizer layer
	bwd []nn.Cell
}

// InitOption configures an Initializer.
type InitOption func(*Initializer)

// WithContextualProvider adds a secondary pretrained provider whose vectors
// are summed into the primary lookup.
func WithContextualProvider(p Provider) InitOption {
	return func(in *Initializer) { in.contextual = p }
}

// NewInitializer builds an Initializer for the given provider and settings.
func NewInitializer(provider Provider, cfg config.InitArgs, seed int64, opts ...InitOption) (*Initializer, error) {
	if provider.Dim() != cfg.InputSize {
		return nil, models.ConfigErrorf("embedding provider width %d does not match input_size %d",
			provider.Dim(), cfg.InputSize)
	}

	in := &Initializer{provider: provider, cfg: cfg}
	for _, o := range opts {
		o(in)
	}

	if in.contextual != nil && in.contextual.Dim() != cfg.InputSize {
		return nil, models.ConfigErrorf("contextual provider width %d does not match input_size %d",
			in.contextual.Dim(), cfg.InputSize)
	}

	if cfg.EmbStrategy != "w2v" {
		rnnType := "lstm"
		if cfg.EmbStrategy == "w2v_bigru" {
			rnnType = "gru"
		}

		rng := rand.New(rand.NewSource(seed))
		hidden := cfg.InputSize / 2
		for range cfg.NumRNNLayers {
			// Each direction reads the full-width input and emits half of it,
			// so stacked layers keep a uniform width.
			in.fwd = append(in.fwd, nn.NewCell(rnnType, cfg.InputSize, hidden, rng))
			in.bwd = append(in.bwd, nn.NewCell(rnnType, cfg.InputSize, hidden, rng))
		}
	}

	return in, nil
}

// Features returns the node feature matrix in node insertion order. Extended
// copy-mechanism ids above vocabSize are embedded as the unknown token.
func (in *Initializer) Features(g *models.Graph, vocabSize int) (*mat.Dense, error) {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil, models.InvalidInputf("graph has no nodes")
	}

	rows := make([][]float64, len(nodes))
	for i, node := range nodes {
		if len(node.TokenIDs) == 0 {
			return nil, models.InvalidInputf("node %d (%q) has no token ids", node.ID, node.Token)
		}

		row, err := in.lookup(node.TokenIDs, vocabSize)
		if err != nil {
			return nil, err
		}

		rows[i] = row
	}

	if len(in.fwd) > 0 && in.cfg.SingleTokenItem {
		rows = in.contextualize(rows)
	}

	feats := mat.NewDense(len(rows), in.cfg.InputSize, nil)
	for i, row := range rows {
		feats.SetRow(i, row)
	}

	return feats, nil
}

// lookup averages the provider vectors of a node's token ids, mixing in the
// secondary provider when configured.
func (in *Initializer) lookup(tokenIDs []int, vocabSize int) ([]float64, error) {
	ids := FilterOOV(tokenIDs, vocabSize)

	vecs, err := in.provider.Vectors(ids)
	if err != nil {
		return nil, err
	}

	row := average(vecs, in.cfg.InputSize)

	if in.contextual != nil {
		ctxVecs, err := in.contextual.Vectors(ids)
		if err != nil {
			return nil, err
		}

		ctxRow := average(ctxVecs, in.cfg.InputSize)
		for j := range row {
			row[j] += ctxRow[j]
		}
	}

	return row, nil
}

// contextualize runs the bidirectional recurrent stack over the node
// sequence, concatenating the forward and backward hidden states.
func (in *Initializer) contextualize(rows [][]float64) [][]float64 {
	n := len(rows)
	hidden := in.cfg.InputSize / 2

	current := rows
	for layer := range in.fwd {
		fwdStates := runDirection(in.fwd[layer], current, false, hidden)
		bwdStates := runDirection(in.bwd[layer], current, true, hidden)

		next := make([][]float64, n)
		for i := range next {
			row := make([]float64, 0, in.cfg.InputSize)
			row = append(row, fwdStates[i]...)
			row = append(row, bwdStates[i]...)
			next[i] = row
		}

		current = next
	}

	return current
}

func runDirection(cell nn.Cell, rows [][]float64, reverse bool, hidden int) [][]float64 {
	n := len(rows)
	h := make([]float64, hidden)
	c := make([]float64, hidden)

	out := make([][]float64, n)
	for step := range n {
		i := step
		if reverse {
			i = n - 1 - step
		}

		h, c = cell.Step(rows[i], h, c)
		out[i] = h
	}

	return out
}

func average(vecs [][]float64, dim int) []float64 {
	row := make([]float64, dim)
	for _, v := range vecs {
		for j := range row {
			row[j] += v[j]
		}
	}

	if len(vecs) > 1 {
		inv := 1 / float64(len(vecs))
		for j := range row {
			row[j] *= inv
		}
	}

	return row
}
