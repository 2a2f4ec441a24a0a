// Package nn provides the small numeric primitives shared by the feature
// initializer, the graph encoder, and the decoder: linear transforms,
// recurrent cells, and activation helpers over gonum dense types.
package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Linear is an affine transform y = Wx + b.
type Linear struct {
	W *mat.Dense
	B *mat.VecDense
}

// NewLinear creates a Linear with Xavier-uniform initialized weights.
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	scale := math.Sqrt(6.0 / float64(in+out))
	w := mat.NewDense(out, in, nil)
	for i := range out {
		for j := range in {
			w.Set(i, j, (rng.Float64()*2-1)*scale)
		}
	}

	return &Linear{W: w, B: mat.NewVecDense(out, nil)}
}

// OutSize returns the output width.
func (l *Linear) OutSize() int {
	r, _ := l.W.Dims()
	return r
}

// InSize returns the input width.
func (l *Linear) InSize() int {
	_, c := l.W.Dims()
	return c
}

// Forward applies the transform to one vector.
func (l *Linear) Forward(x []float64) []float64 {
	out := mat.NewVecDense(l.OutSize(), nil)
	out.MulVec(l.W, mat.NewVecDense(len(x), x))
	out.AddVec(out, l.B)

	return out.RawVector().Data
}

// Cell is one recurrent step. GRU cells ignore and pass through the cell
// state so LSTM and GRU share a call site.
type Cell interface {
	Step(x, h, c []float64) (hNext, cNext []float64)
	HiddenSize() int
}

// LSTMCell is a standard LSTM cell over the concatenated [x; h] input.
type LSTMCell struct {
	hidden                            int
	inGate, forgetGate, outGate, cand *Linear
}

// NewLSTMCell creates an LSTM cell.
func NewLSTMCell(in, hidden int, rng *rand.Rand) *LSTMCell {
	return &LSTMCell{
		hidden:     hidden,
		inGate:     NewLinear(in+hidden, hidden, rng),
		forgetGate: NewLinear(in+hidden, hidden, rng),
		outGate:    NewLinear(in+hidden, hidden, rng),
		cand:       NewLinear(in+hidden, hidden, rng),
	}
}

// HiddenSize returns the hidden width.
func (c *LSTMCell) HiddenSize() int { return c.hidden }

// Step advances the cell by one input.
func (c *LSTMCell) Step(x, h, cell []float64) ([]float64, []float64) {
	xh := concat(x, h)

	i := mapVec(c.inGate.Forward(xh), Sigmoid)
	f := mapVec(c.forgetGate.Forward(xh), Sigmoid)
	o := mapVec(c.outGate.Forward(xh), Sigmoid)
	g := mapVec(c.cand.Forward(xh), math.Tanh)

	cNext := make([]float64, c.hidden)
	hNext := make([]float64, c.hidden)
	for k := range cNext {
		cNext[k] = f[k]*cell[k] + i[k]*g[k]
		hNext[k] = o[k] * math.Tanh(cNext[k])
	}

	return hNext, cNext
}

// GRUCell is a standard GRU cell.
type GRUCell struct {
	hidden                      int
	resetGate, updateGate, cand *Linear
}

// NewGRUCell creates a GRU cell.
func NewGRUCell(in, hidden int, rng *rand.Rand) *GRUCell {
	return &GRUCell{
		hidden:     hidden,
		resetGate:  NewLinear(in+hidden, hidden, rng),
		updateGate: NewLinear(in+hidden, hidden, rng),
		cand:       NewLinear(in+hidden, hidden, rng),
	}
}

// HiddenSize returns the hidden width.
func (c *GRUCell) HiddenSize() int { return c.hidden }

// Step advances the cell. The cell-state argument is passed through untouched.
func (c *GRUCell) Step(x, h, cell []float64) ([]float64, []float64) {
	xh := concat(x, h)

	r := mapVec(c.resetGate.Forward(xh), Sigmoid)
	z := mapVec(c.updateGate.Forward(xh), Sigmoid)

	rh := make([]float64, len(h))
	for k := range h {
		rh[k] = r[k] * h[k]
	}

	g := mapVec(c.cand.Forward(concat(x, rh)), math.Tanh)

	hNext := make([]float64, c.hidden)
	for k := range hNext {
		hNext[k] = (1-z[k])*h[k] + z[k]*g[k]
	}

	return hNext, cell
}

// NewCell builds a cell of the given rnn type ("lstm" or "gru").
func NewCell(rnnType string, in, hidden int, rng *rand.Rand) Cell {
	if rnnType == "gru" {
		return NewGRUCell(in, hidden, rng)
	}

	return NewLSTMCell(in, hidden, rng)
}

// Sigmoid is the logistic function.
func Sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// Activation returns the elementwise nonlinearity for the given name.
// Unknown names fall back to identity; config validation rejects them first.
func Activation(name string) func(float64) float64 {
	switch name {
	case "relu":
		return func(x float64) float64 { return math.Max(0, x) }
	case "tanh":
		return math.Tanh
	case "elu":
		return func(x float64) float64 {
			if x >= 0 {
				return x
			}

			return math.Exp(x) - 1
		}
	default:
		return func(x float64) float64 { return x }
	}
}

// Softmax normalizes scores into a probability distribution, guarding
// against overflow by shifting by the max score.
func Softmax(scores []float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}

	for i := range out {
		out[i] /= sum
	}

	return out
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}

	return sum
}

// Argmax returns the index of the largest element.
func Argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}

	return best
}

func concat(a, b []float64) []float64 {
	out := make([]float64, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)

	return out
}

func mapVec(xs []float64, f func(float64) float64) []float64 {
	for i := range xs {
		xs[i] = f(xs[i])
	}

	return xs
}
