// Package api provides the HTTP surface of the graph-to-sequence service.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/graphtext/graph2seq/internal/models"
	"github.com/graphtext/graph2seq/internal/ws"
)

// maxBatchSize caps the number of examples accepted in one batch request.
const maxBatchSize = 256

// TranslateHandler serves translation endpoints.
type TranslateHandler struct {
	translator  Translator
	log         *logrus.Logger
	corsOrigins []string
}

// NewTranslateHandler creates a TranslateHandler.
func NewTranslateHandler(translator Translator, log *logrus.Logger, corsOrigins []string) *TranslateHandler {
	return &TranslateHandler{translator: translator, log: log, corsOrigins: corsOrigins}
}

// translateRequest is the JSON payload for a single translation.
type translateRequest struct {
	Tokens       []string `json:"tokens" binding:"required"`
	SentenceLens []int    `json:"sentence_lens"`
}

func (r *translateRequest) example() models.Example {
	lens := r.SentenceLens
	if len(lens) == 0 && len(r.Tokens) > 0 {
		lens = []int{len(r.Tokens)}
	}

	return models.Example{Tokens: r.Tokens, SentenceLens: lens}
}

// translateResponse is the JSON payload returned for one translation.
type translateResponse struct {
	ID       string   `json:"id"`
	Tokens   []string `json:"tokens"`
	TokenIDs []int    `json:"token_ids"`
}

// batchRequest is the JSON payload for a batch translation.
type batchRequest struct {
	Examples []translateRequest `json:"examples" binding:"required"`
}

// batchItem is one entry of a batch response. Failed examples carry an error
// instead of tokens.
type batchItem struct {
	ID       string   `json:"id"`
	Index    int      `json:"index"`
	Tokens   []string `json:"tokens,omitempty"`
	TokenIDs []int    `json:"token_ids,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Translate handles POST /translate.
func (h *TranslateHandler) Translate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())

		return
	}

	result, err := h.translator.Run(c.Request.Context(), req.example())
	if err != nil {
		respondPipelineError(c, err)

		return
	}

	c.JSON(http.StatusOK, translateResponse{
		ID:       result.ID.String(),
		Tokens:   result.Tokens,
		TokenIDs: result.TokenIDs,
	})
}

// TranslateBatch handles POST /translate/batch. Per-example failures are
// reported inline; the request succeeds as long as the batch ran.
func (h *TranslateHandler) TranslateBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())

		return
	}

	if len(req.Examples) == 0 {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "batch must contain at least one example")

		return
	}

	if len(req.Examples) > maxBatchSize {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "batch exceeds maximum size")

		return
	}

	examples := make([]models.Example, len(req.Examples))
	for i, r := range req.Examples {
		examples[i] = r.example()
	}

	results, err := h.translator.RunBatch(c.Request.Context(), examples)
	if err != nil {
		respondPipelineError(c, err)

		return
	}

	items := make([]batchItem, len(results))
	for i, r := range results {
		items[i] = batchItem{ID: r.ID.String(), Index: r.Index}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
			continue
		}

		items[i].Tokens = r.Tokens
		items[i].TokenIDs = r.TokenIDs
	}

	c.JSON(http.StatusOK, gin.H{"results": items})
}

// Stream handles GET /translate/stream: the client upgrades to WebSocket,
// sends one translateRequest, and receives token events as decoding runs.
func (h *TranslateHandler) Stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.corsOrigins,
	})
	if err != nil {
		h.log.WithError(err).Error("websocket accept failed")

		return
	}

	stream := ws.NewStream(conn, h.log)
	defer stream.Close()

	ctx := c.Request.Context()

	var req translateRequest
	if err := readJSON(ctx, conn, &req); err != nil {
		_ = stream.SendError(ctx, ErrCodeInvalidRequest, err.Error())

		return
	}

	result, err := h.translator.Run(ctx, req.example())
	if err != nil {
		_ = stream.SendError(ctx, pipelineErrorCode(err), err.Error())

		return
	}

	for i, tok := range result.Tokens {
		if err := stream.SendToken(ctx, i, tok); err != nil {
			h.log.WithError(err).Debug("stream write failed")

			return
		}
	}

	_ = stream.SendDone(ctx, result.Tokens)
}

func pipelineErrorCode(err error) string {
	switch {
	case models.IsUnavailable(err):
		return ErrCodeUpstream
	case models.IsInvalidInput(err), models.IsConfiguration(err), models.IsStructural(err):
		return ErrCodeInvalidRequest
	default:
		return ErrCodeInternalError
	}
}

func readJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	_, payload, err := conn.Read(ctx)
	if err != nil {
		return err
	}

	return json.Unmarshal(payload, v)
}
