// Package embedding turns token ids into node feature vectors. Providers are
// external collaborators from the pipeline's point of view: token ids in,
// fixed-width vectors out, independently freezable during training.
package embedding

import (
	"math/rand"

	"github.com/graphtext/graph2seq/internal/models"
)

// Provider supplies fixed-width vectors for vocabulary ids.
type Provider interface {
	// Dim returns the vector width.
	Dim() int

	// Frozen reports whether the provider's parameters are excluded from
	// training updates. Irrelevant at inference but part of the contract.
	Frozen() bool

	// Vectors returns one vector per id. Ids outside the provider's range
	// fail with an invalid-input error.
	Vectors(ids []int) ([][]float64, error)
}

// Table is a trainable word-vector lookup table.
type Table struct {
	weights [][]float64
	dim     int
	frozen  bool
}

// NewRandomTable creates a table of the given shape with uniform random
// entries. The seed makes initialization reproducible.
func NewRandomTable(vocabSize, dim int, seed int64, frozen bool) *Table {
	rng := rand.New(rand.NewSource(seed))

	weights := make([][]float64, vocabSize)
	for i := range weights {
		row := make([]float64, dim)
		for j := range row {
			row[j] = (rng.Float64()*2 - 1) * 0.1
		}
		weights[i] = row
	}

	// The padding row stays zero so padded positions contribute nothing.
	if vocabSize > models.PadID {
		weights[models.PadID] = make([]float64, dim)
	}

	return &Table{weights: weights, dim: dim, frozen: frozen}
}

// NewTable wraps pretrained vectors. All rows must share one width.
func NewTable(weights [][]float64, frozen bool) (*Table, error) {
	if len(weights) == 0 {
		return nil, models.ConfigErrorf("embedding table is empty")
	}

	dim := len(weights[0])
	for i, row := range weights {
		if len(row) != dim {
			return nil, models.ConfigErrorf("embedding row %d has width %d, want %d", i, len(row), dim)
		}
	}

	return &Table{weights: weights, dim: dim, frozen: frozen}, nil
}

// Dim returns the vector width.
func (t *Table) Dim() int { return t.dim }

// Frozen reports whether the table is frozen.
func (t *Table) Frozen() bool { return t.frozen }

// Size returns the number of rows.
func (t *Table) Size() int { return len(t.weights) }

// Vectors returns one vector per id.
func (t *Table) Vectors(ids []int) ([][]float64, error) {
	out := make([][]float64, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(t.weights) {
			return nil, models.InvalidInputf("token id %d out of vocabulary range [0, %d)", id, len(t.weights))
		}
		out[i] = t.weights[id]
	}

	return out, nil
}

// FilterOOV maps ids at or above the base vocabulary size to the unknown
// token. Extended copy-mechanism ids are only meaningful to the copy head,
// never to embedding lookups.
func FilterOOV(ids []int, vocabSize int) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		if id >= vocabSize {
			out[i] = models.UnkID
		} else {
			out[i] = id
		}
	}

	return out
}
