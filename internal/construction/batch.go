package construction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/graphtext/graph2seq/internal/metrics"
	"github.com/graphtext/graph2seq/internal/models"
)

// BuildResult is the outcome of building one example. Exactly one of Graph
// and Err is set.
type BuildResult struct {
	ID    uuid.UUID
	Index int
	Graph *models.Graph
	Vocab *models.ExtendedVocab
	Err   error
}

// BatchBuilder fans a batch of examples over a bounded worker pool. A failed
// example records its error in the corresponding result and never aborts the
// rest of the batch.
type BatchBuilder struct {
	builder     Builder
	vocab       *models.Vocabulary
	workers     int
	extendVocab bool
	log         *logrus.Logger
}

// BatchOption configures a BatchBuilder.
type BatchOption func(*BatchBuilder)

// WithBatchLogger sets the logger.
func WithBatchLogger(log *logrus.Logger) BatchOption {
	return func(b *BatchBuilder) { b.log = log }
}

// WithExtendedVocab enables per-example vocabulary extension for the copy
// mechanism.
func WithExtendedVocab() BatchOption {
	return func(b *BatchBuilder) { b.extendVocab = true }
}

// NewBatchBuilder creates a pool of the given width. workers below 1 is
// clamped to 1.
func NewBatchBuilder(builder Builder, vocab *models.Vocabulary, workers int, opts ...BatchOption) *BatchBuilder {
	if workers < 1 {
		workers = 1
	}

	b := &BatchBuilder{builder: builder, vocab: vocab, workers: workers, log: logrus.New()}
	for _, o := range opts {
		o(b)
	}

	return b
}

// BuildAll builds every example concurrently and returns one result per
// example, in input order. The returned error reflects only context
// cancellation; per-example failures live in the results.
func (b *BatchBuilder) BuildAll(ctx context.Context, examples []models.Example) ([]BuildResult, error) {
	results := make([]BuildResult, len(examples))

	var grp errgroup.Group
	grp.SetLimit(b.workers)

	for i, ex := range examples {
		i, ex := i, ex

		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			results[i] = b.buildOne(ctx, i, ex)

			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (b *BatchBuilder) buildOne(ctx context.Context, index int, ex models.Example) BuildResult {
	metrics.BatchInFlight.Inc()
	defer metrics.BatchInFlight.Dec()

	result := BuildResult{ID: uuid.New(), Index: index}

	var ext *models.ExtendedVocab
	if b.extendVocab {
		ext = models.NewExtendedVocab(b.vocab)
	}

	start := time.Now()

	g, err := b.builder.Build(ctx, ex, ext)
	if err != nil {
		metrics.BuildFailures.WithLabelValues(models.ErrorCategory(err)).Inc()
		b.log.WithFields(logrus.Fields{
			"build_id": result.ID,
			"index":    index,
			"strategy": b.builder.Name(),
		}).WithError(err).Warn("graph build failed")

		result.Err = err

		return result
	}

	metrics.BuildDuration.WithLabelValues(b.builder.Name()).Observe(time.Since(start).Seconds())

	result.Graph = g
	result.Vocab = ext

	return result
}

