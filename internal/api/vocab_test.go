package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/graphtext/graph2seq/internal/api"
	"github.com/graphtext/graph2seq/internal/models"
	"github.com/graphtext/graph2seq/internal/vocabstore"
)

func TestVocabPut_Valid(t *testing.T) {
	t.Parallel()

	var savedName string
	var savedShared bool

	store := &mockVocabStore{
		saveFn: func(_ context.Context, name string, vocab *models.Vocabulary, shared bool) error {
			savedName = name
			savedShared = shared

			if !vocab.Contains("the") {
				t.Error("saved vocabulary missing token")
			}

			return nil
		},
	}

	r := newTestRouter()
	h := api.NewVocabHandler(store, testLogger())
	r.PUT("/vocabularies/:name", h.Put)

	w := doRequest(r, http.MethodPut, "/vocabularies/main", `{"tokens":["the","cat"],"shared":true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if savedName != "main" || !savedShared {
		t.Errorf("saved %q shared=%v", savedName, savedShared)
	}
}

func TestVocabGet_NotFound(t *testing.T) {
	t.Parallel()

	store := &mockVocabStore{
		loadFn: func(_ context.Context, name string) (*models.Vocabulary, error) {
			return nil, vocabstore.ErrNotFound
		},
	}

	r := newTestRouter()
	h := api.NewVocabHandler(store, testLogger())
	r.GET("/vocabularies/:name", h.Get)

	w := doRequest(r, http.MethodGet, "/vocabularies/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestVocabList(t *testing.T) {
	t.Parallel()

	store := &mockVocabStore{
		listFn: func(context.Context) ([]vocabstore.Info, error) {
			return []vocabstore.Info{{Name: "main", Size: 6, Shared: true}}, nil
		},
	}

	r := newTestRouter()
	h := api.NewVocabHandler(store, testLogger())
	r.GET("/vocabularies", h.List)

	w := doRequest(r, http.MethodGet, "/vocabularies", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Vocabularies []vocabstore.Info `json:"vocabularies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(resp.Vocabularies) != 1 || resp.Vocabularies[0].Name != "main" {
		t.Errorf("vocabularies = %+v", resp.Vocabularies)
	}
}

func TestVocabDelete_NotFound(t *testing.T) {
	t.Parallel()

	store := &mockVocabStore{
		deleteFn: func(_ context.Context, name string) error {
			return vocabstore.ErrNotFound
		},
	}

	r := newTestRouter()
	h := api.NewVocabHandler(store, testLogger())
	r.DELETE("/vocabularies/:name", h.Delete)

	w := doRequest(r, http.MethodDelete, "/vocabularies/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
