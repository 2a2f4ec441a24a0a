package construction

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/embedding"
	"github.com/graphtext/graph2seq/internal/models"
)

// NodeEmbBuilder builds a learned-similarity graph: pairwise weighted cosine
// over initial node embeddings, sparsified into an edge set. Pure computation,
// no network I/O.
type NodeEmbBuilder struct {
	provider embedding.Provider
	vocab    *models.Vocabulary
	cfg      config.NodeEmbArgs
	heads    [][]float64 // per-head feature weighting, learned during training
}

// NewNodeEmbBuilder creates a similarity builder. The seed fixes the initial
// head weights.
func NewNodeEmbBuilder(provider embedding.Provider, vocab *models.Vocabulary, cfg config.NodeEmbArgs, seed int64) *NodeEmbBuilder {
	rng := rand.New(rand.NewSource(seed))

	heads := make([][]float64, cfg.NumHeads)
	for h := range heads {
		w := make([]float64, provider.Dim())
		for j := range w {
			// Near-uniform weighting to start; training shapes it from here.
			w[j] = 1 + (rng.Float64()*2-1)*0.01
		}
		heads[h] = w
	}

	return &NodeEmbBuilder{provider: provider, vocab: vocab, cfg: cfg, heads: heads}
}

// Name implements Builder.
func (b *NodeEmbBuilder) Name() string { return "node_emb" }

// Build implements Builder.
func (b *NodeEmbBuilder) Build(ctx context.Context, ex models.Example, ext *models.ExtendedVocab) (*models.Graph, error) {
	if err := ex.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := models.NewGraph()
	if err := addTokenNodes(g, ex.Tokens, b.vocab, ext); err != nil {
		return nil, err
	}

	scores, err := b.similarity(g)
	if err != nil {
		return nil, err
	}

	for _, e := range b.sparsify(scores) {
		if err := g.AddEdge(models.Edge{Source: e.src, Target: e.dst, Weight: e.weight}); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// similarity returns the dense pairwise score matrix, averaged across heads.
func (b *NodeEmbBuilder) similarity(g *models.Graph) ([][]float64, error) {
	nodes := g.Nodes()
	n := len(nodes)

	vecs := make([][]float64, n)
	for i, node := range nodes {
		if len(node.TokenIDs) == 0 {
			return nil, models.InvalidInputf("node %d has no vocabulary mapping", node.ID)
		}

		ids := embedding.FilterOOV(node.TokenIDs, b.vocab.Size())

		vv, err := b.provider.Vectors(ids)
		if err != nil {
			return nil, err
		}

		avg := make([]float64, b.provider.Dim())
		for _, v := range vv {
			for j := range v {
				avg[j] += v[j]
			}
		}
		for j := range avg {
			avg[j] /= float64(len(vv))
		}

		vecs[i] = avg
	}

	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, n)
	}

	for _, w := range b.heads {
		weighted := make([][]float64, n)
		norms := make([]float64, n)
		for i, v := range vecs {
			wv := make([]float64, len(v))
			var norm float64
			for j := range v {
				wv[j] = w[j] * v[j]
				norm += wv[j] * wv[j]
			}
			weighted[i] = wv
			norms[i] = math.Sqrt(norm)
		}

		for i := range weighted {
			for j := range weighted {
				if i == j || norms[i] == 0 || norms[j] == 0 {
					continue
				}

				var dot float64
				for k := range weighted[i] {
					dot += weighted[i][k] * weighted[j][k]
				}

				scores[i][j] += dot / (norms[i] * norms[j])
			}
		}
	}

	inv := 1 / float64(len(b.heads))
	for i := range scores {
		for j := range scores[i] {
			scores[i][j] *= inv
		}
	}

	return scores, nil
}

// sparsify reduces the dense score matrix to an edge set using the configured
// policy: top-k neighbors per node, an epsilon threshold, or positive scores,
// optionally capped by the sparsity ratio and floored by the connectivity
// control.
func (b *NodeEmbBuilder) sparsify(scores [][]float64) []parseEdge {
	n := len(scores)

	var edges []parseEdge

	switch {
	case b.cfg.TopKNeigh != nil:
		k := *b.cfg.TopKNeigh
		for i := range scores {
			neighbors := topIndices(scores[i], i, k)
			for _, j := range neighbors {
				edges = append(edges, parseEdge{src: i, dst: j, weight: scores[i][j]})
			}
		}
	case b.cfg.EpsilonNeigh != nil:
		eps := *b.cfg.EpsilonNeigh
		for i := range scores {
			for j := range scores[i] {
				if i != j && scores[i][j] >= eps {
					edges = append(edges, parseEdge{src: i, dst: j, weight: scores[i][j]})
				}
			}
		}
	default:
		for i := range scores {
			for j := range scores[i] {
				if i != j && scores[i][j] > 0 {
					edges = append(edges, parseEdge{src: i, dst: j, weight: scores[i][j]})
				}
			}
		}
	}

	if b.cfg.SparsityRatio != nil {
		cap := int(*b.cfg.SparsityRatio * float64(n*(n-1)))
		if len(edges) > cap {
			sort.Slice(edges, func(a, bb int) bool { return edges[a].weight > edges[bb].weight })
			edges = edges[:cap]
		}
	}

	// The connectivity floor runs last and may exceed the sparsity cap:
	// stranding a node breaks message passing, so connectivity wins.
	if b.cfg.ConnectivityRatio > 0 && n > 1 {
		edges = ensureOutgoing(edges, scores, b.cfg.ConnectivityRatio)
	}

	return edges
}

// topIndices returns up to k column indices with the highest positive scores,
// excluding the diagonal.
func topIndices(row []float64, self, k int) []int {
	type cand struct {
		j int
		s float64
	}

	cands := make([]cand, 0, len(row)-1)
	for j, s := range row {
		if j != self && s > 0 {
			cands = append(cands, cand{j: j, s: s})
		}
	}

	sort.Slice(cands, func(a, b int) bool { return cands[a].s > cands[b].s })

	if len(cands) > k {
		cands = cands[:k]
	}

	out := make([]int, len(cands))
	for i, c := range cands {
		out[i] = c.j
	}

	return out
}

// ensureOutgoing floors every node's out-degree at ceil(r*(n-1)) by adding
// its strongest missing neighbors, so sparsification cannot strand nodes.
func ensureOutgoing(edges []parseEdge, scores [][]float64, r float64) []parseEdge {
	n := len(scores)
	floor := int(math.Ceil(r * float64(n-1)))

	outDeg := make([]int, n)
	present := make(map[[2]int]bool, len(edges))
	for _, e := range edges {
		outDeg[e.src]++
		present[[2]int{e.src, e.dst}] = true
	}

	for i := range scores {
		if outDeg[i] >= floor {
			continue
		}

		for _, j := range rankedNeighbors(scores[i], i) {
			if present[[2]int{i, j}] {
				continue
			}

			edges = append(edges, parseEdge{src: i, dst: j, weight: scores[i][j]})
			present[[2]int{i, j}] = true

			outDeg[i]++
			if outDeg[i] >= floor {
				break
			}
		}
	}

	return edges
}

// rankedNeighbors returns all column indices except self, strongest first.
func rankedNeighbors(row []float64, self int) []int {
	out := make([]int, 0, len(row)-1)
	for j := range row {
		if j != self {
			out = append(out, j)
		}
	}

	sort.Slice(out, func(a, b int) bool { return row[out[a]] > row[out[b]] })

	return out
}
