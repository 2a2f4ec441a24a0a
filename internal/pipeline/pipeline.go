// Package pipeline assembles the four stages into one runnable
// graph-to-sequence translator: construction, feature initialization, graph
// encoding, and sequence decoding.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/construction"
	"github.com/graphtext/graph2seq/internal/decoder"
	"github.com/graphtext/graph2seq/internal/embedding"
	"github.com/graphtext/graph2seq/internal/gnn"
	"github.com/graphtext/graph2seq/internal/metrics"
	"github.com/graphtext/graph2seq/internal/models"
)

// Deps carries the external collaborators a pipeline needs. SourceEmb and
// TargetEmb supply pretrained embeddings; Parser is required only by the
// parse-based construction strategies.
type Deps struct {
	SourceVocab *models.Vocabulary
	TargetVocab *models.Vocabulary
	SourceEmb   embedding.Provider
	TargetEmb   embedding.Provider
	Parser      construction.Parser
	MergeFunc   construction.MergeFunc
	Logger      *logrus.Logger
	Seed        int64
}

// Pipeline runs examples end to end. Safe for concurrent use.
type Pipeline struct {
	cfg     config.Config
	builder construction.Builder
	init    *embedding.Initializer
	enc     *gnn.Encoder
	dec     *decoder.Decoder
	vocab   *models.Vocabulary
	log     *logrus.Logger
}

// Result is the outcome of translating one example. Err is set when the
// example failed; the other fields are then zero.
type Result struct {
	ID       uuid.UUID
	Index    int
	TokenIDs []int
	Tokens   []string
	Err      error
}

// New validates the configuration and wires the four stages.
func New(cfg config.Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if deps.SourceVocab == nil || deps.SourceEmb == nil {
		return nil, models.ConfigErrorf("pipeline requires a source vocabulary and embedding provider")
	}

	if cfg.Construction.Common.ShareVocab || deps.TargetVocab == nil {
		deps.TargetVocab = deps.SourceVocab
	}
	if deps.TargetEmb == nil {
		deps.TargetEmb = deps.SourceEmb
	}

	// Copied source ids are only meaningful to the decoder when both sides
	// read the same vocabulary.
	if cfg.Decoder.UseCopy && !cfg.Construction.Common.ShareVocab {
		return nil, models.ConfigErrorf("use_copy requires share_vocab")
	}

	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}

	builder, err := builderFor(cfg.GraphConstructionName, deps, cfg)
	if err != nil {
		return nil, err
	}

	init, err := embedding.NewInitializer(deps.SourceEmb, cfg.Initialization, deps.Seed)
	if err != nil {
		return nil, err
	}

	enc, err := gnn.NewEncoder(cfg.Encoder, deps.Seed)
	if err != nil {
		return nil, err
	}

	dec, err := decoder.New(cfg.Decoder, deps.TargetVocab, deps.TargetEmb, deps.Seed)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:     cfg,
		builder: builder,
		init:    init,
		enc:     enc,
		dec:     dec,
		vocab:   deps.SourceVocab,
		log:     deps.Logger,
	}, nil
}

// Run translates one example.
func (p *Pipeline) Run(ctx context.Context, ex models.Example) (Result, error) {
	result := p.runOne(ctx, 0, ex)
	if result.Err != nil {
		return Result{}, result.Err
	}

	return result, nil
}

// RunBatch translates a batch over a bounded worker pool. Per-example
// failures land in the corresponding result; the returned error reflects
// only context cancellation.
func (p *Pipeline) RunBatch(ctx context.Context, examples []models.Example) ([]Result, error) {
	results := make([]Result, len(examples))

	var grp errgroup.Group
	grp.SetLimit(p.workers())

	for i, ex := range examples {
		i, ex := i, ex

		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			results[i] = p.runOne(ctx, i, ex)

			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (p *Pipeline) workers() int {
	if n := p.cfg.Construction.Common.ThreadNumber; n > 0 {
		return n
	}

	return 1
}

func (p *Pipeline) runOne(ctx context.Context, index int, ex models.Example) Result {
	metrics.BatchInFlight.Inc()
	defer metrics.BatchInFlight.Dec()

	result := Result{ID: uuid.New(), Index: index}
	start := time.Now()

	var ext *models.ExtendedVocab
	if p.cfg.Decoder.UseCopy {
		ext = models.NewExtendedVocab(p.vocab)
	}

	g, err := p.builder.Build(ctx, ex, ext)
	if err != nil {
		return p.fail(result, "build", err)
	}

	metrics.BuildDuration.WithLabelValues(p.builder.Name()).Observe(time.Since(start).Seconds())

	feats, err := p.init.Features(g, p.vocab.Size())
	if err != nil {
		return p.fail(result, "initialize", err)
	}

	encoded, err := p.enc.Encode(g, feats)
	if err != nil {
		return p.fail(result, "encode", err)
	}

	ids, err := p.dec.Decode(g, encoded, ext)
	if err != nil {
		return p.fail(result, "decode", err)
	}

	tokens, err := p.dec.Tokens(ids, ext)
	if err != nil {
		return p.fail(result, "decode", err)
	}

	result.TokenIDs = ids
	result.Tokens = tokens

	return result
}

func (p *Pipeline) fail(result Result, stage string, err error) Result {
	metrics.ErrorsTotal.WithLabelValues(models.ErrorCategory(err)).Inc()
	if stage == "build" {
		metrics.BuildFailures.WithLabelValues(models.ErrorCategory(err)).Inc()
	}
	p.log.WithFields(logrus.Fields{
		"run_id": result.ID,
		"index":  result.Index,
		"stage":  stage,
	}).WithError(err).Warn("pipeline run failed")

	result.Err = err

	return result
}
