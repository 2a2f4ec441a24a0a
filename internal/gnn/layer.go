// Package gnn implements the stacked graph-convolution encoder that
// contextualizes node features over the constructed graph topology.
package gnn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/graphtext/graph2seq/internal/models"
	"github.com/graphtext/graph2seq/internal/nn"
)

// direction selects which edge orientation a propagation pass follows.
type direction int

const (
	dirIn direction = iota // aggregate along edge direction, source to target
	dirOut                 // aggregate against edge direction
	dirBoth
)

// layer is one graph convolution. Depending on the direction option it holds
// one transform (undirected) or a pair plus an optional fusion gate.
type layer struct {
	fwd  *nn.Linear // nil when the weight transform is disabled
	bwd  *nn.Linear
	gate *nn.Linear // bi_fuse only
	bias *mat.VecDense
	act  func(float64) float64
	in   int
	out  int
}

func newLayer(in, out int, cfg layerConfig, rng *rand.Rand) *layer {
	l := &layer{act: nn.Activation(cfg.activation), in: in, out: out}

	if cfg.weight {
		l.fwd = nn.NewLinear(in, out, rng)
		if cfg.bidirectional {
			l.bwd = nn.NewLinear(in, out, rng)
		}
	}

	if cfg.fuse {
		l.gate = nn.NewLinear(2*out, out, rng)
	}

	if cfg.bias {
		l.bias = mat.NewVecDense(out, nil)
	}

	return l
}

type layerConfig struct {
	activation    string
	weight        bool
	bias          bool
	bidirectional bool
	fuse          bool
}

// transform applies the direction's weight matrix to one aggregated row.
func (l *layer) transform(row []float64, dir direction) []float64 {
	lin := l.fwd
	if dir == dirOut && l.bwd != nil {
		lin = l.bwd
	}

	if lin == nil {
		out := make([]float64, len(row))
		copy(out, row)

		return out
	}

	return lin.Forward(row)
}

// finish adds the bias and applies the activation in place.
func (l *layer) finish(row []float64) []float64 {
	if l.bias != nil {
		for k := range row {
			row[k] += l.bias.AtVec(k)
		}
	}

	for k := range row {
		row[k] = l.act(row[k])
	}

	return row
}

// fuseGate blends the two direction outputs with a learned sigmoid gate.
// This is not a summation: the gate weighs each channel of the forward pass
// against the backward pass.
func (l *layer) fuseGate(fwd, bwd []float64) []float64 {
	gateIn := make([]float64, 0, len(fwd)+len(bwd))
	gateIn = append(gateIn, fwd...)
	gateIn = append(gateIn, bwd...)

	z := l.gate.Forward(gateIn)

	out := make([]float64, len(fwd))
	for k := range out {
		g := nn.Sigmoid(z[k])
		out[k] = g*fwd[k] + (1-g)*bwd[k]
	}

	return out
}

// aggregate performs one propagation pass over the graph: each node collects
// its neighbors' rows of X under the chosen orientation and degree
// normalization. Rows of nodes without neighbors stay zero.
func aggregate(g *models.Graph, x *mat.Dense, dir direction, norm string, useEdgeWeight bool) *mat.Dense {
	nodes := g.Nodes()
	_, cols := x.Dims()

	pos := make(map[int]int, len(nodes))
	for i, n := range nodes {
		pos[n.ID] = i
	}

	out := mat.NewDense(len(nodes), cols, nil)

	deliver := func(srcPos, dstPos int, w float64) {
		coeff := w
		switch norm {
		case "both":
			coeff *= invSqrtDegree(g, nodes[srcPos].ID, opposite(dir)) * invSqrtDegree(g, nodes[dstPos].ID, dir)
		case "right":
			coeff *= invDegree(g, nodes[dstPos].ID, dir)
		}

		src := x.RawRowView(srcPos)
		for k := 0; k < cols; k++ {
			out.Set(dstPos, k, out.At(dstPos, k)+coeff*src[k])
		}
	}

	for _, e := range g.Edges() {
		w := 1.0
		if useEdgeWeight {
			w = e.Weight
		}

		if dir == dirIn || dir == dirBoth {
			deliver(pos[e.Source], pos[e.Target], w)
		}
		if dir == dirOut || dir == dirBoth {
			deliver(pos[e.Target], pos[e.Source], w)
		}
	}

	return out
}

// opposite returns the orientation messages depart along.
func opposite(dir direction) direction {
	switch dir {
	case dirIn:
		return dirOut
	case dirOut:
		return dirIn
	default:
		return dirBoth
	}
}

// degree returns the neighbor count feeding a node under the orientation.
func degree(g *models.Graph, id int, dir direction) int {
	switch dir {
	case dirIn:
		return g.InDegree(id)
	case dirOut:
		return g.OutDegree(id)
	default:
		return g.InDegree(id) + g.OutDegree(id)
	}
}

func invDegree(g *models.Graph, id int, dir direction) float64 {
	d := degree(g, id, dir)
	if d == 0 {
		return 0
	}

	return 1 / float64(d)
}

func invSqrtDegree(g *models.Graph, id int, dir direction) float64 {
	d := invDegree(g, id, dir)
	if d == 0 {
		return 0
	}

	return math.Sqrt(d)
}
