package api

import (
	"context"

	"github.com/graphtext/graph2seq/internal/models"
	"github.com/graphtext/graph2seq/internal/pipeline"
	"github.com/graphtext/graph2seq/internal/vocabstore"
)

// Translator defines the pipeline operations used by TranslateHandler.
type Translator interface {
	Run(ctx context.Context, ex models.Example) (pipeline.Result, error)
	RunBatch(ctx context.Context, examples []models.Example) ([]pipeline.Result, error)
}

// VocabularyStore defines the persistence operations used by VocabHandler.
type VocabularyStore interface {
	Save(ctx context.Context, name string, vocab *models.Vocabulary, shared bool) error
	Load(ctx context.Context, name string) (*models.Vocabulary, error)
	List(ctx context.Context) ([]vocabstore.Info, error)
	Delete(ctx context.Context, name string) error
}
