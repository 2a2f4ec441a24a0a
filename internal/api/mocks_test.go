package api_test

import (
	"context"

	"github.com/graphtext/graph2seq/internal/models"
	"github.com/graphtext/graph2seq/internal/pipeline"
	"github.com/graphtext/graph2seq/internal/vocabstore"
)

// mockTranslator implements api.Translator for testing.
type mockTranslator struct {
	runFn      func(ctx context.Context, ex models.Example) (pipeline.Result, error)
	runBatchFn func(ctx context.Context, examples []models.Example) ([]pipeline.Result, error)
}

func (m *mockTranslator) Run(ctx context.Context, ex models.Example) (pipeline.Result, error) {
	return m.runFn(ctx, ex)
}

func (m *mockTranslator) RunBatch(ctx context.Context, examples []models.Example) ([]pipeline.Result, error) {
	return m.runBatchFn(ctx, examples)
}

// mockVocabStore implements api.VocabularyStore for testing.
type mockVocabStore struct {
	saveFn   func(ctx context.Context, name string, vocab *models.Vocabulary, shared bool) error
	loadFn   func(ctx context.Context, name string) (*models.Vocabulary, error)
	listFn   func(ctx context.Context) ([]vocabstore.Info, error)
	deleteFn func(ctx context.Context, name string) error
}

func (m *mockVocabStore) Save(ctx context.Context, name string, vocab *models.Vocabulary, shared bool) error {
	return m.saveFn(ctx, name, vocab, shared)
}

func (m *mockVocabStore) Load(ctx context.Context, name string) (*models.Vocabulary, error) {
	return m.loadFn(ctx, name)
}

func (m *mockVocabStore) List(ctx context.Context) ([]vocabstore.Info, error) {
	return m.listFn(ctx)
}

func (m *mockVocabStore) Delete(ctx context.Context, name string) error {
	return m.deleteFn(ctx, name)
}
