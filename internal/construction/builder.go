// Package construction turns tokenized examples into graphs. Strategies are
// interchangeable behind the Builder interface: the static family delegates
// to the external linguistic-analysis service, the learned family computes a
// similarity graph from node embeddings.
package construction

import (
	"context"

	"github.com/graphtext/graph2seq/internal/models"
)

// Builder converts one example into a graph. Implementations are safe for
// concurrent use across examples.
type Builder interface {
	// Name returns the strategy name used in logs and metrics.
	Name() string

	// Build constructs a fresh graph for the example. When ext is non-nil,
	// tokens absent from the base vocabulary are registered as copy-mechanism
	// extension entries instead of collapsing to <unk>.
	Build(ctx context.Context, ex models.Example, ext *models.ExtendedVocab) (*models.Graph, error)
}

// MergeFunc stitches per-sentence subgraphs into one graph for the
// user_define merge strategy. spans holds [start, end) token ranges.
type MergeFunc func(g *models.Graph, spans [][2]int) error

// parseEdge is a parse-derived edge before the edge-strategy policy is
// applied.
type parseEdge struct {
	src    int
	dst    int
	label  string
	weight float64
}

func lookupTokenIDs(vocab *models.Vocabulary, ext *models.ExtendedVocab, token string) []int {
	if ext != nil {
		return []int{ext.Extend(token)}
	}

	return []int{vocab.Lookup(token)}
}

// addTokenNodes inserts one node per token, ids matching token positions.
func addTokenNodes(g *models.Graph, tokens []string, vocab *models.Vocabulary, ext *models.ExtendedVocab) error {
	for i, tok := range tokens {
		node := models.Node{ID: i, Token: tok, TokenIDs: lookupTokenIDs(vocab, ext, tok)}
		if err := g.AddNode(node); err != nil {
			return err
		}
	}

	return nil
}

// materialize applies the edge-strategy policy to parse-derived edges.
// homogeneous collapses all labels into one edge type, heterogeneous keeps
// them, and as_node reifies each labeled edge as an intermediate node so the
// label participates in message passing.
func materialize(g *models.Graph, edges []parseEdge, strategy string, nextID *int, vocab *models.Vocabulary, ext *models.ExtendedVocab) error {
	for _, e := range edges {
		switch strategy {
		case "as_node":
			rel := models.Node{
				ID:       *nextID,
				Token:    e.label,
				TokenIDs: lookupTokenIDs(vocab, ext, e.label),
				Type:     models.NodeTypeRelation,
			}
			if err := g.AddNode(rel); err != nil {
				return err
			}
			*nextID++

			if err := g.AddEdge(models.Edge{Source: e.src, Target: rel.ID, Weight: e.weight}); err != nil {
				return err
			}

			if err := g.AddEdge(models.Edge{Source: rel.ID, Target: e.dst, Weight: e.weight}); err != nil {
				return err
			}
		case "heterogeneous":
			if err := g.AddEdge(models.Edge{Source: e.src, Target: e.dst, Label: e.label, Weight: e.weight}); err != nil {
				return err
			}
		default: // homogeneous
			if err := g.AddEdge(models.Edge{Source: e.src, Target: e.dst, Weight: e.weight}); err != nil {
				return err
			}
		}
	}

	return nil
}

// addSequentialLinks adds chain edges between adjacent tokens, independent of
// any parse-derived structure.
func addSequentialLinks(g *models.Graph, numTokens int) error {
	for i := 0; i+1 < numTokens; i++ {
		if g.HasEdge(i, i+1) {
			continue
		}

		if err := g.AddEdge(models.Edge{Source: i, Target: i + 1, Weight: 1}); err != nil {
			return err
		}
	}

	return nil
}

// sentenceSpans returns the [start, end) token range of each sentence.
func sentenceSpans(ex models.Example) [][2]int {
	sentences := ex.Sentences()
	spans := make([][2]int, len(sentences))

	start := 0
	for i, sent := range sentences {
		spans[i] = [2]int{start, start + len(sent)}
		start += len(sent)
	}

	return spans
}

// mergeTailHead links the last token of each sentence to the first token of
// the next with exactly one edge.
func mergeTailHead(g *models.Graph, spans [][2]int) error {
	for i := 0; i+1 < len(spans); i++ {
		tail := spans[i][1] - 1
		head := spans[i+1][0]

		if err := g.AddEdge(models.Edge{Source: tail, Target: head, Weight: 1}); err != nil {
			return err
		}
	}

	return nil
}
