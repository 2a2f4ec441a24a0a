package construction

import (
	"context"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/embedding"
	"github.com/graphtext/graph2seq/internal/models"
)

// NodeEmbRefinedBuilder refines an initial topology with learned similarity
// edges. The initial graph comes from a static builder when one is supplied,
// or from a sequential token chain otherwise. Learned edges carry
// (1-alpha)*score; initial edges are scaled by alpha; an edge present in both
// sums the two contributions.
type NodeEmbRefinedBuilder struct {
	learned *NodeEmbBuilder
	initial Builder
	vocab   *models.Vocabulary
	alpha   float64
}

// NewNodeEmbRefinedBuilder creates a refined-similarity builder. initial may
// be nil.
func NewNodeEmbRefinedBuilder(provider embedding.Provider, vocab *models.Vocabulary, cfg config.NodeEmbArgs, seed int64, initial Builder) *NodeEmbRefinedBuilder {
	return &NodeEmbRefinedBuilder{
		learned: NewNodeEmbBuilder(provider, vocab, cfg, seed),
		initial: initial,
		vocab:   vocab,
		alpha:   cfg.Alpha,
	}
}

// Name implements Builder.
func (b *NodeEmbRefinedBuilder) Name() string { return "node_emb_refined" }

// Build implements Builder.
func (b *NodeEmbRefinedBuilder) Build(ctx context.Context, ex models.Example, ext *models.ExtendedVocab) (*models.Graph, error) {
	learned, err := b.learned.Build(ctx, ex, ext)
	if err != nil {
		return nil, err
	}

	initial, err := b.initialTopology(ctx, ex)
	if err != nil {
		return nil, err
	}

	return b.blend(learned, initial, len(ex.Tokens))
}

// initialTopology builds the prior structure to refine. Only token-token
// edges survive into the blend; nodes introduced by the inner builder (say,
// reified relations) are structural detail of the prior, not of the refined
// graph.
func (b *NodeEmbRefinedBuilder) initialTopology(ctx context.Context, ex models.Example) (*models.Graph, error) {
	if b.initial != nil {
		return b.initial.Build(ctx, ex, nil)
	}

	g := models.NewGraph()
	if err := addTokenNodes(g, ex.Tokens, b.vocab, nil); err != nil {
		return nil, err
	}

	if err := addSequentialLinks(g, len(ex.Tokens)); err != nil {
		return nil, err
	}

	return g, nil
}

func (b *NodeEmbRefinedBuilder) blend(learned, initial *models.Graph, numTokens int) (*models.Graph, error) {
	type pair struct{ src, dst int }

	weights := make(map[pair]float64)
	for _, e := range learned.Edges() {
		weights[pair{e.Source, e.Target}] += (1 - b.alpha) * e.Weight
	}

	for _, e := range initial.Edges() {
		if e.Source >= numTokens || e.Target >= numTokens {
			continue
		}

		weights[pair{e.Source, e.Target}] += b.alpha * e.Weight
	}

	g := models.NewGraph()
	for _, n := range learned.Nodes() {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}

	// Deterministic edge order: learned first, then initial-only.
	seen := make(map[pair]bool)
	emit := func(src, dst int) error {
		p := pair{src, dst}
		if seen[p] {
			return nil
		}
		seen[p] = true

		return g.AddEdge(models.Edge{Source: src, Target: dst, Weight: weights[p]})
	}

	for _, e := range learned.Edges() {
		if err := emit(e.Source, e.Target); err != nil {
			return nil, err
		}
	}

	for _, e := range initial.Edges() {
		if e.Source >= numTokens || e.Target >= numTokens {
			continue
		}

		if err := emit(e.Source, e.Target); err != nil {
			return nil, err
		}
	}

	return g, nil
}
