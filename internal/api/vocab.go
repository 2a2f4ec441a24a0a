package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/graphtext/graph2seq/internal/models"
	"github.com/graphtext/graph2seq/internal/vocabstore"
)

// VocabHandler serves vocabulary management endpoints.
type VocabHandler struct {
	store VocabularyStore
	log   *logrus.Logger
}

// NewVocabHandler creates a VocabHandler.
func NewVocabHandler(store VocabularyStore, log *logrus.Logger) *VocabHandler {
	return &VocabHandler{store: store, log: log}
}

// saveVocabRequest is the JSON payload for storing a vocabulary.
type saveVocabRequest struct {
	Tokens []string `json:"tokens" binding:"required"`
	Shared bool     `json:"shared"`
}

// List handles GET /vocabularies.
func (h *VocabHandler) List(c *gin.Context) {
	infos, err := h.store.List(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("listing vocabularies")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"vocabularies": infos})
}

// Get handles GET /vocabularies/:name.
func (h *VocabHandler) Get(c *gin.Context) {
	name := c.Param("name")

	vocab, err := h.store.Load(c.Request.Context(), name)
	if errors.Is(err, vocabstore.ErrNotFound) {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "vocabulary not found")

		return
	}
	if err != nil {
		h.log.WithError(err).Error("loading vocabulary")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal error")

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":   name,
		"size":   vocab.Size(),
		"tokens": vocab.Tokens(),
	})
}

// Put handles PUT /vocabularies/:name.
func (h *VocabHandler) Put(c *gin.Context) {
	name := c.Param("name")

	var req saveVocabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())

		return
	}

	vocab := models.NewVocabulary(req.Tokens)

	if err := h.store.Save(c.Request.Context(), name, vocab, req.Shared); err != nil {
		if models.IsInvalidInput(err) {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

			return
		}

		h.log.WithError(err).Error("saving vocabulary")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "size": vocab.Size()})
}

// Delete handles DELETE /vocabularies/:name.
func (h *VocabHandler) Delete(c *gin.Context) {
	name := c.Param("name")

	if err := h.store.Delete(c.Request.Context(), name); err != nil {
		if errors.Is(err, vocabstore.ErrNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "vocabulary not found")

			return
		}

		h.log.WithError(err).Error("deleting vocabulary")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal error")

		return
	}

	c.Status(http.StatusNoContent)
}
