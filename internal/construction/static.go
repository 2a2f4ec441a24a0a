package construction

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/models"
	"github.com/graphtext/graph2seq/internal/nlp"
)

// Parser is the linguistic-analysis service contract consumed by the static
// strategies. Satisfied by *nlp.Client.
type Parser interface {
	DependencyParse(ctx context.Context, sentences [][]string) (*nlp.ParseResult, error)
	ConstituencyParse(ctx context.Context, sentences [][]string) (*nlp.ParseResult, error)
}

// StaticOption configures a static builder.
type StaticOption func(*staticBase)

// WithMergeFunc supplies the caller-defined merge for merge_strategy
// user_define.
func WithMergeFunc(f MergeFunc) StaticOption {
	return func(b *staticBase) { b.merge = f }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) StaticOption {
	return func(b *staticBase) { b.log = log }
}

// staticBase carries what both parse-based builders share.
type staticBase struct {
	parser Parser
	vocab  *models.Vocabulary
	cfg    config.StaticArgs
	merge  MergeFunc
	log    *logrus.Logger
}

func newStaticBase(parser Parser, vocab *models.Vocabulary, cfg config.StaticArgs, opts []StaticOption) staticBase {
	b := staticBase{parser: parser, vocab: vocab, cfg: cfg, log: logrus.New()}
	for _, o := range opts {
		o(&b)
	}

	return b
}

// prepare validates the example and sets up the token skeleton.
func (b *staticBase) prepare(ex models.Example, ext *models.ExtendedVocab) (*models.Graph, error) {
	if err := ex.Validate(); err != nil {
		return nil, err
	}

	if b.cfg.MergeStrategy == "user_define" && b.merge == nil {
		return nil, models.ConfigErrorf("merge_strategy user_define requires a merge function")
	}

	g := models.NewGraph()
	if err := addTokenNodes(g, ex.Tokens, b.vocab, ext); err != nil {
		return nil, err
	}

	return g, nil
}

// finish applies merging and sequential links after strategy edges are in.
func (b *staticBase) finish(g *models.Graph, ex models.Example) error {
	spans := sentenceSpans(ex)
	if len(spans) > 1 {
		switch b.cfg.MergeStrategy {
		case "user_define":
			if err := b.merge(g, spans); err != nil {
				return err
			}
		default: // tailhead
			if err := mergeTailHead(g, spans); err != nil {
				return err
			}
		}
	}

	if b.cfg.SequentialLink {
		return addSequentialLinks(g, len(ex.Tokens))
	}

	return nil
}

// DependencyBuilder builds graphs from dependency parses.
type DependencyBuilder struct {
	staticBase
}

// NewDependencyBuilder creates a dependency-parse builder.
func NewDependencyBuilder(parser Parser, vocab *models.Vocabulary, cfg config.StaticArgs, opts ...StaticOption) *DependencyBuilder {
	return &DependencyBuilder{staticBase: newStaticBase(parser, vocab, cfg, opts)}
}

// Name implements Builder.
func (b *DependencyBuilder) Name() string { return "dependency" }

// Build implements Builder. Parse arcs become directed head->dependent edges
// under the configured edge strategy.
func (b *DependencyBuilder) Build(ctx context.Context, ex models.Example, ext *models.ExtendedVocab) (*models.Graph, error) {
	g, err := b.prepare(ex, ext)
	if err != nil {
		return nil, err
	}

	result, err := b.parser.DependencyParse(ctx, ex.Sentences())
	if err != nil {
		return nil, err
	}

	var edges []parseEdge

	offset := 0
	for si, sent := range result.Sentences {
		sentLen := len(ex.Sentences()[si])
		for _, dep := range sent.Dependencies {
			if dep.Head < 0 {
				continue // root arc carries no edge
			}

			if dep.Head >= sentLen || dep.Dependent < 0 || dep.Dependent >= sentLen {
				return nil, models.UnavailableErrorf("parser returned arc %d->%d outside sentence of %d tokens",
					dep.Head, dep.Dependent, sentLen)
			}

			edges = append(edges, parseEdge{
				src:    offset + dep.Head,
				dst:    offset + dep.Dependent,
				label:  dep.Relation,
				weight: 1,
			})
		}

		offset += sentLen
	}

	nextID := len(ex.Tokens)
	if err := materialize(g, edges, b.cfg.EdgeStrategy, &nextID, b.vocab, ext); err != nil {
		return nil, err
	}

	if err := b.finish(g, ex); err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{
		"nodes": g.NodeCount(),
		"edges": g.EdgeCount(),
	}).Debug("dependency graph built")

	return g, nil
}

// ConstituencyBuilder builds graphs from constituency parses. Nonterminal
// constituents become first-class nodes linked downward to their children, so
// the as_node edge strategy is inherently satisfied and the setting has no
// further effect here.
type ConstituencyBuilder struct {
	staticBase
}

// NewConstituencyBuilder creates a constituency-parse builder.
func NewConstituencyBuilder(parser Parser, vocab *models.Vocabulary, cfg config.StaticArgs, opts ...StaticOption) *ConstituencyBuilder {
	return &ConstituencyBuilder{staticBase: newStaticBase(parser, vocab, cfg, opts)}
}

// Name implements Builder.
func (b *ConstituencyBuilder) Name() string { return "constituency" }

// Build implements Builder.
func (b *ConstituencyBuilder) Build(ctx context.Context, ex models.Example, ext *models.ExtendedVocab) (*models.Graph, error) {
	g, err := b.prepare(ex, ext)
	if err != nil {
		return nil, err
	}

	result, err := b.parser.ConstituencyParse(ctx, ex.Sentences())
	if err != nil {
		return nil, err
	}

	nextID := len(ex.Tokens)

	offset := 0
	for si, sent := range result.Sentences {
		sentLen := len(ex.Sentences()[si])
		if err := b.addConstituents(g, sent.Constituents, offset, sentLen, &nextID, ext); err != nil {
			return nil, err
		}

		offset += sentLen
	}

	if err := b.finish(g, ex); err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{
		"nodes": g.NodeCount(),
		"edges": g.EdgeCount(),
	}).Debug("constituency graph built")

	return g, nil
}

// addConstituents inserts nonterminal nodes for one sentence and wires the
// hierarchy: each constituent links down to its directly contained
// constituents and to the tokens not covered by a smaller one.
func (b *ConstituencyBuilder) addConstituents(g *models.Graph, spans []nlp.Constituent, offset, sentLen int, nextID *int, ext *models.ExtendedVocab) error {
	ids := make([]int, len(spans))

	for i, c := range spans {
		if c.Start < 0 || c.End > sentLen || c.Start >= c.End {
			return models.UnavailableErrorf("parser returned span [%d, %d) outside sentence of %d tokens",
				c.Start, c.End, sentLen)
		}

		node := models.Node{
			ID:       *nextID,
			Token:    c.Label,
			TokenIDs: lookupTokenIDs(b.vocab, ext, c.Label),
			Type:     models.NodeTypeConstituent,
		}
		if err := g.AddNode(node); err != nil {
			return err
		}

		ids[i] = *nextID
		*nextID++
	}

	for i := range spans {
		parent, ok := smallestEnclosing(spans, i)
		if !ok {
			continue
		}

		if err := g.AddEdge(models.Edge{Source: ids[parent], Target: ids[i], Weight: 1}); err != nil {
			return err
		}
	}

	for tok := 0; tok < sentLen; tok++ {
		owner, ok := smallestCovering(spans, tok)
		if !ok {
			continue
		}

		if err := g.AddEdge(models.Edge{Source: ids[owner], Target: offset + tok, Weight: 1}); err != nil {
			return err
		}
	}

	return nil
}

// smallestEnclosing returns the index of the smallest constituent strictly
// containing spans[i].
func smallestEnclosing(spans []nlp.Constituent, i int) (int, bool) {
	best, bestLen := -1, -1
	for j, c := range spans {
		if j == i {
			continue
		}

		inner := spans[i]
		if c.Start <= inner.Start && c.End >= inner.End && c.End-c.Start > inner.End-inner.Start {
			if best == -1 || c.End-c.Start < bestLen {
				best, bestLen = j, c.End-c.Start
			}
		}
	}

	return best, best != -1
}

// smallestCovering returns the index of the smallest constituent whose span
// contains the token.
func smallestCovering(spans []nlp.Constituent, tok int) (int, bool) {
	best, bestLen := -1, -1
	for j, c := range spans {
		if c.Start <= tok && tok < c.End {
			if best == -1 || c.End-c.Start < bestLen {
				best, bestLen = j, c.End-c.Start
			}
		}
	}

	return best, best != -1
}
