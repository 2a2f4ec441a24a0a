package gnn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/models"
)

// Encoder is a stack of graph convolutions. Layer widths run input ->
// hidden ... hidden -> output; with a single layer the stack maps input ->
// output directly.
type Encoder struct {
	cfg    config.EncoderArgs
	layers []*layer
}

// NewEncoder builds the stack. The seed fixes parameter initialization.
func NewEncoder(cfg config.EncoderArgs, seed int64) (*Encoder, error) {
	if cfg.NumLayers < 1 {
		return nil, models.ConfigErrorf("encoder needs at least one layer, got %d", cfg.NumLayers)
	}

	// Without the linear transform each layer keeps its input width, so the
	// dimension chain must already be uniform.
	if !cfg.Weight && (cfg.InputSize != cfg.HiddenSize || cfg.HiddenSize != cfg.OutputSize) {
		return nil, models.ConfigErrorf("weight=false requires input_size, hidden_size and output_size to match, got %d/%d/%d",
			cfg.InputSize, cfg.HiddenSize, cfg.OutputSize)
	}

	rng := rand.New(rand.NewSource(seed))

	bidirectional := cfg.DirectionOption != "undirected"
	lc := layerConfig{
		activation:    cfg.Activation,
		weight:        cfg.Weight,
		bias:          cfg.Bias,
		bidirectional: bidirectional,
		fuse:          cfg.DirectionOption == "bi_fuse",
	}

	e := &Encoder{cfg: cfg}
	for i := 0; i < cfg.NumLayers; i++ {
		in := cfg.HiddenSize
		if i == 0 {
			in = cfg.InputSize
		}

		out := cfg.HiddenSize
		if i == cfg.NumLayers-1 {
			out = cfg.OutputSize
		}

		e.layers = append(e.layers, newLayer(in, out, lc, rng))
	}

	return e, nil
}

// OutputSize returns the width of the encoded node representations.
func (e *Encoder) OutputSize() int { return e.cfg.OutputSize }

// Encode contextualizes the feature matrix over the graph. feats has one row
// per node in g.Nodes() order; the result keeps that order with OutputSize
// columns.
func (e *Encoder) Encode(g *models.Graph, feats *mat.Dense) (*mat.Dense, error) {
	rows, cols := feats.Dims()
	if rows != g.NodeCount() {
		return nil, models.InvalidInputf("feature matrix has %d rows for %d nodes", rows, g.NodeCount())
	}
	if cols != e.cfg.InputSize {
		return nil, models.InvalidInputf("feature matrix has %d columns, encoder expects %d", cols, e.cfg.InputSize)
	}

	if !e.cfg.AllowZeroInDegree {
		if err := e.checkDegrees(g); err != nil {
			return nil, err
		}
	}

	switch e.cfg.DirectionOption {
	case "bi_sep":
		return e.encodeBiSep(g, feats), nil
	case "bi_fuse":
		return e.encodeBiFuse(g, feats), nil
	default:
		return e.encodeUndirected(g, feats), nil
	}
}

// checkDegrees rejects graphs where some node would receive no messages,
// which silently zeroes its representation under degree normalization.
func (e *Encoder) checkDegrees(g *models.Graph) error {
	for _, n := range g.Nodes() {
		var isolated bool
		switch e.cfg.DirectionOption {
		case "undirected":
			isolated = g.InDegree(n.ID)+g.OutDegree(n.ID) == 0
		default:
			isolated = g.InDegree(n.ID) == 0 || g.OutDegree(n.ID) == 0
		}

		if isolated {
			return models.StructuralErrorf("node %d has no incoming messages; set allow_zero_in_degree or add self loops", n.ID)
		}
	}

	return nil
}

func (e *Encoder) encodeUndirected(g *models.Graph, h *mat.Dense) *mat.Dense {
	for _, l := range e.layers {
		agg := aggregate(g, h, dirBoth, e.cfg.GCNNorm, e.cfg.UseEdgeWeight)

		next := mat.NewDense(g.NodeCount(), l.out, nil)
		for i := 0; i < g.NodeCount(); i++ {
			row := l.transform(agg.RawRowView(i), dirIn)
			next.SetRow(i, l.finish(row))
		}

		h = next
	}

	return h
}

// encodeBiSep runs independent forward and backward stacks and averages the
// two direction outputs after the final layer.
func (e *Encoder) encodeBiSep(g *models.Graph, feats *mat.Dense) *mat.Dense {
	hf, hb := feats, feats

	for _, l := range e.layers {
		aggF := aggregate(g, hf, dirIn, e.cfg.GCNNorm, e.cfg.UseEdgeWeight)
		aggB := aggregate(g, hb, dirOut, e.cfg.GCNNorm, e.cfg.UseEdgeWeight)

		nextF := mat.NewDense(g.NodeCount(), l.out, nil)
		nextB := mat.NewDense(g.NodeCount(), l.out, nil)
		for i := 0; i < g.NodeCount(); i++ {
			nextF.SetRow(i, l.finish(l.transform(aggF.RawRowView(i), dirIn)))
			nextB.SetRow(i, l.finish(l.transform(aggB.RawRowView(i), dirOut)))
		}

		hf, hb = nextF, nextB
	}

	out := mat.NewDense(g.NodeCount(), e.cfg.OutputSize, nil)
	for i := 0; i < g.NodeCount(); i++ {
		f, b := hf.RawRowView(i), hb.RawRowView(i)
		row := make([]float64, e.cfg.OutputSize)
		for k := range row {
			row[k] = 0.5 * (f[k] + b[k])
		}
		out.SetRow(i, row)
	}

	return out
}

// encodeBiFuse fuses the two directions at every layer through the learned
// gate, so information flows across directions between layers.
func (e *Encoder) encodeBiFuse(g *models.Graph, h *mat.Dense) *mat.Dense {
	for _, l := range e.layers {
		aggF := aggregate(g, h, dirIn, e.cfg.GCNNorm, e.cfg.UseEdgeWeight)
		aggB := aggregate(g, h, dirOut, e.cfg.GCNNorm, e.cfg.UseEdgeWeight)

		next := mat.NewDense(g.NodeCount(), l.out, nil)
		for i := 0; i < g.NodeCount(); i++ {
			f := l.transform(aggF.RawRowView(i), dirIn)
			b := l.transform(aggB.RawRowView(i), dirOut)
			next.SetRow(i, l.finish(l.fuseGate(f, b)))
		}

		h = next
	}

	return h
}
