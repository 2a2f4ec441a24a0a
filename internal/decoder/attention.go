// Package decoder implements the attention-based sequence decoder that turns
// encoded node representations into an output token sequence.
package decoder

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/graphtext/graph2seq/internal/nn"
)

// attnGroup holds the additive-attention parameters for one node group.
type attnGroup struct {
	score *nn.Linear // over [hidden; node]
	v     []float64
	cov   float64 // coverage feedback weight
}

// attention scores nodes against the decoder hidden state. The uniform type
// uses one parameter group for every node; the separated types score each
// node group with its own parameters and softmax within the group.
type attention struct {
	groups []attnGroup
}

func newAttention(numGroups, hiddenSize, nodeSize int, rng *rand.Rand) *attention {
	a := &attention{}
	for g := 0; g < numGroups; g++ {
		v := make([]float64, hiddenSize)
		for i := range v {
			v[i] = rng.NormFloat64() * 0.1
		}

		a.groups = append(a.groups, attnGroup{
			score: nn.NewLinear(hiddenSize+nodeSize, hiddenSize, rng),
			v:     v,
			cov:   rng.NormFloat64() * 0.1,
		})
	}

	return a
}

// attnResult is the outcome of one attention pass.
type attnResult struct {
	// alphas is a distribution over all nodes, normalized across groups so it
	// sums to one. Used by the copy mechanism and the coverage accumulator.
	alphas []float64
	// contexts holds one attended vector per group.
	contexts [][]float64
}

// compute runs attention for one decoder step. groupOf assigns each node row
// to a parameter group; coverage may be nil.
func (a *attention) compute(hidden []float64, feats *mat.Dense, groupOf []int, coverage []float64) attnResult {
	numNodes, nodeSize := feats.Dims()

	scores := make([]float64, numNodes)
	for i := 0; i < numNodes; i++ {
		grp := a.groups[groupOf[i]]

		in := make([]float64, 0, len(hidden)+nodeSize)
		in = append(in, hidden...)
		in = append(in, feats.RawRowView(i)...)

		s := nn.Dot(grp.v, mapTanh(grp.score.Forward(in)))
		if coverage != nil {
			s += grp.cov * coverage[i]
		}

		scores[i] = s
	}

	// Softmax within each group, then weigh groups by their share of nodes so
	// the overall alphas stay a distribution.
	alphas := make([]float64, numNodes)
	contexts := make([][]float64, len(a.groups))

	for g := range a.groups {
		var members []int
		for i, grp := range groupOf {
			if grp == g {
				members = append(members, i)
			}
		}

		contexts[g] = make([]float64, nodeSize)
		if len(members) == 0 {
			continue
		}

		local := make([]float64, len(members))
		for j, i := range members {
			local[j] = scores[i]
		}
		local = nn.Softmax(local)

		share := float64(len(members)) / float64(numNodes)
		for j, i := range members {
			alphas[i] = local[j] * share

			row := feats.RawRowView(i)
			for k := range contexts[g] {
				contexts[g][k] += local[j] * row[k]
			}
		}
	}

	return attnResult{alphas: alphas, contexts: contexts}
}

func mapTanh(xs []float64) []float64 {
	for i := range xs {
		xs[i] = math.Tanh(xs[i])
	}

	return xs
}
