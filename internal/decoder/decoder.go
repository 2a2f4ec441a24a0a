package decoder

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/embedding"
	"github.com/graphtext/graph2seq/internal/metrics"
	"github.com/graphtext/graph2seq/internal/models"
	"github.com/graphtext/graph2seq/internal/nn"
)

// Decoder generates output token sequences from encoded graphs. Parameters
// are fixed at construction; decoding state lives in per-call Sessions, so a
// Decoder is safe for concurrent use.
type Decoder struct {
	cfg   config.DecoderArgs
	vocab *models.Vocabulary
	emb   embedding.Provider

	cell      nn.Cell
	attn      *attention
	linearAtt *nn.Linear // [hidden; fused context] -> hidden
	linearOut *nn.Linear // hidden -> vocab, nil when the embedding is the output layer
	embOut    *nn.Linear // hidden -> embedding width, tgt_emb_as_output_layer only
	copyGate  *nn.Linear // [input emb; context; hidden] -> 1

	embRows [][]float64 // cached target embedding matrix, output-layer mode
}

// New creates a decoder over the given target vocabulary. The embedding
// provider supplies target-side input embeddings and must match the
// configured input size.
func New(cfg config.DecoderArgs, vocab *models.Vocabulary, emb embedding.Provider, seed int64) (*Decoder, error) {
	if emb.Dim() != cfg.InputSize {
		return nil, models.ConfigErrorf("target embedding width %d does not match decoder input size %d", emb.Dim(), cfg.InputSize)
	}

	rng := rand.New(rand.NewSource(seed))

	numGroups := 1
	switch cfg.AttentionType {
	case "sep_diff_node_type":
		numGroups = cfg.NodeTypeNum
	case "sep_diff_encoder_type":
		// Token nodes carry the word-level encoding; structural nodes were
		// introduced during construction. Each side gets its own head.
		numGroups = 2
	}

	ctxSize := cfg.HiddenSize
	if cfg.FuseStrategy == "concatenate" {
		ctxSize = cfg.HiddenSize * numGroups
	}

	d := &Decoder{
		cfg:       cfg,
		vocab:     vocab,
		emb:       emb,
		cell:      nn.NewCell(cfg.RNNType, cfg.InputSize+cfg.HiddenSize, cfg.HiddenSize, rng),
		attn:      newAttention(numGroups, cfg.HiddenSize, cfg.HiddenSize, rng),
		linearAtt: nn.NewLinear(cfg.HiddenSize+ctxSize, cfg.HiddenSize, rng),
	}

	if cfg.TgtEmbAsOutputLayer {
		d.embOut = nn.NewLinear(cfg.HiddenSize, cfg.InputSize, rng)

		ids := make([]int, vocab.Size())
		for i := range ids {
			ids[i] = i
		}

		rows, err := emb.Vectors(ids)
		if err != nil {
			return nil, err
		}
		d.embRows = rows
	} else {
		d.linearOut = nn.NewLinear(cfg.HiddenSize, vocab.Size(), rng)
	}

	if cfg.UseCopy {
		d.copyGate = nn.NewLinear(cfg.InputSize+cfg.HiddenSize+cfg.HiddenSize, 1, rng)
	}

	return d, nil
}

// sessionState is the decoding lifecycle. Sessions move Init -> Stepping ->
// Done and never back.
type sessionState int

const (
	stateInit sessionState = iota
	stateStepping
	stateDone
)

// decodeState is the mutable per-sequence state. Beam search forks it.
type decodeState struct {
	hidden   []float64
	cell     []float64
	coverage []float64
	prev     int // previous output token id
}

func (s *decodeState) clone() *decodeState {
	c := &decodeState{prev: s.prev}
	c.hidden = append([]float64(nil), s.hidden...)
	c.cell = append([]float64(nil), s.cell...)
	if s.coverage != nil {
		c.coverage = append([]float64(nil), s.coverage...)
	}

	return c
}

// Session decodes one graph. It is single-use: once Done, further Step calls
// fail. Not safe for concurrent use.
type Session struct {
	d       *Decoder
	g       *models.Graph
	feats   *mat.Dense
	ext     *models.ExtendedVocab
	groupOf []int
	st      *decodeState
	state   sessionState
	steps   int
	output  []int
}

// Start opens a decoding session. feats is the encoder output, one row per
// node. ext enables copying source extensions; it may be nil when the copy
// mechanism is off.
func (d *Decoder) Start(g *models.Graph, feats *mat.Dense, ext *models.ExtendedVocab) (*Session, error) {
	rows, cols := feats.Dims()
	if rows != g.NodeCount() || rows == 0 {
		return nil, models.InvalidInputf("feature matrix has %d rows for %d nodes", rows, g.NodeCount())
	}
	if cols != d.cfg.HiddenSize {
		return nil, models.InvalidInputf("encoded width %d does not match decoder hidden size %d", cols, d.cfg.HiddenSize)
	}

	if d.cfg.UseCopy && !g.HasTokenMapping() {
		return nil, models.ConfigErrorf("copy mechanism requires every node to carry a vocabulary mapping")
	}

	groupOf, err := d.assignGroups(g)
	if err != nil {
		return nil, err
	}

	st := &decodeState{
		hidden: d.pool(feats),
		cell:   make([]float64, d.cfg.HiddenSize),
		prev:   models.SOSID,
	}
	if d.cfg.UseCoverage {
		st.coverage = make([]float64, rows)
	}

	return &Session{d: d, g: g, feats: feats, ext: ext, groupOf: groupOf, st: st}, nil
}

// assignGroups maps each node to an attention parameter group.
func (d *Decoder) assignGroups(g *models.Graph) ([]int, error) {
	nodes := g.Nodes()
	groupOf := make([]int, len(nodes))

	switch d.cfg.AttentionType {
	case "sep_diff_node_type":
		for i, n := range nodes {
			if n.Type < 0 || n.Type >= d.cfg.NodeTypeNum {
				return nil, models.InvalidInputf("node %d has type %d outside the configured %d attention types",
					n.ID, n.Type, d.cfg.NodeTypeNum)
			}

			groupOf[i] = n.Type
		}
	case "sep_diff_encoder_type":
		for i, n := range nodes {
			if n.Type != models.NodeTypeToken {
				groupOf[i] = 1
			}
		}
	}

	return groupOf, nil
}

// pool collapses the node features into the initial hidden state.
func (d *Decoder) pool(feats *mat.Dense) []float64 {
	rows, cols := feats.Dims()

	out := make([]float64, cols)
	for k := 0; k < cols; k++ {
		switch d.cfg.PoolingStrategy {
		case "min":
			v := math.Inf(1)
			for i := 0; i < rows; i++ {
				v = math.Min(v, feats.At(i, k))
			}
			out[k] = v
		case "mean":
			var sum float64
			for i := 0; i < rows; i++ {
				sum += feats.At(i, k)
			}
			out[k] = sum / float64(rows)
		default: // max
			v := math.Inf(-1)
			for i := 0; i < rows; i++ {
				v = math.Max(v, feats.At(i, k))
			}
			out[k] = v
		}
	}

	return out
}

// advance runs one decoder step from the given state: embed the previous
// token, step the cell, attend, and produce the output distribution. The
// distribution covers the base vocabulary, extended by the session's
// out-of-vocabulary entries when copying.
func (d *Decoder) advance(st *decodeState, g *models.Graph, feats *mat.Dense, groupOf []int, ext *models.ExtendedVocab) ([]float64, error) {
	inputID := st.prev
	if inputID >= d.vocab.Size() {
		// Copied extension tokens have no input embedding.
		inputID = models.UnkID
	}

	embRows, err := d.emb.Vectors([]int{inputID})
	if err != nil {
		return nil, err
	}
	inputEmb := embRows[0]

	res := d.attn.compute(st.hidden, feats, groupOf, st.coverage)

	cellIn := make([]float64, 0, len(inputEmb)+d.cfg.HiddenSize)
	cellIn = append(cellIn, inputEmb...)
	cellIn = append(cellIn, d.contextForCell(res.contexts)...)

	st.hidden, st.cell = d.cell.Step(cellIn, st.hidden, st.cell)

	// Recompute attention against the updated hidden state for the output.
	res = d.attn.compute(st.hidden, feats, groupOf, st.coverage)
	ctx := d.fuse(res.contexts)

	hc := make([]float64, 0, len(st.hidden)+len(ctx))
	hc = append(hc, st.hidden...)
	hc = append(hc, ctx...)

	proj := mapTanh(d.linearAtt.Forward(hc))
	probs := nn.Softmax(d.logits(proj))

	if d.cfg.UseCopy {
		probs = d.mixCopy(probs, res.alphas, inputEmb, ctx, st, g, ext)
	}

	if st.coverage != nil {
		for i, a := range res.alphas {
			st.coverage[i] += a
		}
	}

	return probs, nil
}

// fuse combines per-group attention contexts per the fuse strategy.
func (d *Decoder) fuse(contexts [][]float64) []float64 {
	if len(contexts) == 1 {
		return contexts[0]
	}

	if d.cfg.FuseStrategy == "concatenate" {
		var out []float64
		for _, c := range contexts {
			out = append(out, c...)
		}

		return out
	}

	out := make([]float64, len(contexts[0]))
	for _, c := range contexts {
		for k := range out {
			out[k] += c[k]
		}
	}
	for k := range out {
		out[k] /= float64(len(contexts))
	}

	return out
}

// contextForCell always averages so the recurrent input width stays fixed
// regardless of the fuse strategy.
func (d *Decoder) contextForCell(contexts [][]float64) []float64 {
	if len(contexts) == 1 {
		return contexts[0]
	}

	out := make([]float64, len(contexts[0]))
	for _, c := range contexts {
		for k := range out {
			out[k] += c[k]
		}
	}
	for k := range out {
		out[k] /= float64(len(contexts))
	}

	return out
}

func (d *Decoder) logits(proj []float64) []float64 {
	if d.linearOut != nil {
		return d.linearOut.Forward(proj)
	}

	// Score against the target embedding matrix.
	q := d.embOut.Forward(proj)

	out := make([]float64, len(d.embRows))
	for i, row := range d.embRows {
		out[i] = nn.Dot(q, row)
	}

	return out
}

// mixCopy blends the generation distribution with attention-weighted copying
// from the source graph. The result ranges over the extended vocabulary.
func (d *Decoder) mixCopy(gen, alphas, inputEmb, ctx []float64, st *decodeState, g *models.Graph, ext *models.ExtendedVocab) []float64 {
	size := d.vocab.Size()
	if ext != nil {
		size = ext.Size()
	}

	gateIn := make([]float64, 0, len(inputEmb)+d.cfg.HiddenSize+d.cfg.HiddenSize)
	gateIn = append(gateIn, inputEmb...)
	gateIn = append(gateIn, d.contextOfWidth(ctx)...)
	gateIn = append(gateIn, st.hidden...)

	pgen := nn.Sigmoid(d.copyGate.Forward(gateIn)[0])

	out := make([]float64, size)
	for i, p := range gen {
		out[i] = pgen * p
	}

	for i, n := range g.Nodes() {
		if len(n.TokenIDs) == 0 {
			continue
		}

		share := (1 - pgen) * alphas[i] / float64(len(n.TokenIDs))
		for _, id := range n.TokenIDs {
			if id < size {
				out[id] += share
			}
		}
	}

	return out
}

// contextOfWidth trims a concatenated context back to one hidden width for
// the copy gate input.
func (d *Decoder) contextOfWidth(ctx []float64) []float64 {
	if len(ctx) <= d.cfg.HiddenSize {
		return ctx
	}

	return ctx[:d.cfg.HiddenSize]
}

// Step produces the next output token. done turns true when the decoder
// emits the end-of-sequence token or exhausts the step limit; the EOS token
// itself is not part of the output.
func (s *Session) Step() (token int, done bool, err error) {
	if s.state == stateDone {
		return 0, true, models.InvalidInputf("decoding session is finished")
	}

	s.state = stateStepping

	probs, err := s.d.advance(s.st, s.g, s.feats, s.groupOf, s.ext)
	if err != nil {
		s.state = stateDone
		return 0, true, err
	}

	s.steps++
	token = nn.Argmax(probs)
	s.st.prev = token

	// EOS terminates without joining the output.
	if token == models.EOSID {
		s.finish()
		return token, true, nil
	}

	s.output = append(s.output, token)

	if s.steps >= s.d.cfg.MaxDecoderStep {
		s.finish()
		return token, true, nil
	}

	return token, false, nil
}

func (s *Session) finish() {
	s.state = stateDone
	metrics.DecodeSteps.Observe(float64(s.steps))
}

// Output returns the tokens emitted so far, excluding EOS.
func (s *Session) Output() []int {
	out := make([]int, len(s.output))
	copy(out, s.output)

	return out
}

// Decode greedily decodes a full sequence.
func (d *Decoder) Decode(g *models.Graph, feats *mat.Dense, ext *models.ExtendedVocab) ([]int, error) {
	if d.cfg.BeamSize > 1 {
		return d.decodeBeam(g, feats, ext)
	}

	session, err := d.Start(g, feats, ext)
	if err != nil {
		return nil, err
	}

	for {
		_, done, err := session.Step()
		if err != nil {
			return nil, err
		}
		if done {
			return session.Output(), nil
		}
	}
}

// Tokens resolves decoded ids to strings through the extended vocabulary
// when present.
func (d *Decoder) Tokens(ids []int, ext *models.ExtendedVocab) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		var (
			tok string
			err error
		)
		if ext != nil {
			tok, err = ext.Token(id)
		} else {
			tok, err = d.vocab.Token(id)
		}
		if err != nil {
			return nil, err
		}

		out[i] = tok
	}

	return out, nil
}
