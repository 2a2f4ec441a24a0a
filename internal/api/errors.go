package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/graphtext/graph2seq/internal/httputil"
	"github.com/graphtext/graph2seq/internal/metrics"
	"github.com/graphtext/graph2seq/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUpstream       = "upstream_unavailable"
	ErrCodeInternalError  = "internal_error"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// respondPipelineError maps the pipeline error taxonomy onto HTTP statuses.
func respondPipelineError(c *gin.Context, err error) {
	switch {
	case models.IsInvalidInput(err), models.IsConfiguration(err), models.IsStructural(err):
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
	case models.IsUnavailable(err):
		respondError(c, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
