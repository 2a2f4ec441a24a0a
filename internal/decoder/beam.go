package decoder

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/graphtext/graph2seq/internal/models"
)

// hypothesis is one partial sequence on the beam.
type hypothesis struct {
	st      *decodeState
	tokens  []int
	logProb float64
	done    bool
}

func (h *hypothesis) score() float64 {
	// Length normalization keeps short sequences from dominating.
	n := len(h.tokens)
	if n == 0 {
		n = 1
	}

	return h.logProb / float64(n)
}

// decodeBeam runs beam search of the configured width and returns the
// best-scoring finished sequence.
func (d *Decoder) decodeBeam(g *models.Graph, feats *mat.Dense, ext *models.ExtendedVocab) ([]int, error) {
	session, err := d.Start(g, feats, ext)
	if err != nil {
		return nil, err
	}

	width := d.cfg.BeamSize
	beam := []*hypothesis{{st: session.st}}

	for step := 0; step < d.cfg.MaxDecoderStep; step++ {
		var next []*hypothesis

		allDone := true
		for _, h := range beam {
			if h.done {
				next = append(next, h)
				continue
			}
			allDone = false

			probs, err := d.advance(h.st, g, feats, session.groupOf, ext)
			if err != nil {
				return nil, err
			}

			for _, c := range topCandidates(probs, width) {
				child := &hypothesis{
					st:      h.st.clone(),
					tokens:  append(append([]int(nil), h.tokens...), c.id),
					logProb: h.logProb + math.Log(c.p),
				}
				child.st.prev = c.id

				if c.id == models.EOSID {
					child.tokens = child.tokens[:len(child.tokens)-1]
					child.done = true
				}

				next = append(next, child)
			}
		}

		if allDone {
			break
		}

		// Stable so equal scores keep insertion order and decoding stays
		// deterministic.
		sort.SliceStable(next, func(i, j int) bool { return next[i].score() > next[j].score() })
		if len(next) > width {
			next = next[:width]
		}

		beam = next
	}

	best := beam[0]
	for _, h := range beam[1:] {
		if h.score() > best.score() {
			best = h
		}
	}

	return best.tokens, nil
}

type candidate struct {
	id int
	p  float64
}

func topCandidates(probs []float64, k int) []candidate {
	cands := make([]candidate, 0, len(probs))
	for id, p := range probs {
		if p > 0 {
			cands = append(cands, candidate{id: id, p: p})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].p > cands[j].p })

	if len(cands) > k {
		cands = cands[:k]
	}

	return cands
}
