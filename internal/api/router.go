package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/graphtext/graph2seq/internal/dbpool"
	"github.com/graphtext/graph2seq/internal/middleware"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Pool        *dbpool.Pool
	Translator  Translator
	Vocabs      VocabularyStore
	CORSOrigins []string
	Version     string
	ParserURL   string
}

// maxBodySize limits request bodies; batch payloads stay well under this.
const maxBodySize = 10 << 20 // 10 MB

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (outside the API group, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, log, deps.Version, deps.ParserURL)
	translate := NewTranslateHandler(deps.Translator, log, deps.CORSOrigins)

	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// Translation.
	api.POST("/translate", translate.Translate)
	api.POST("/translate/batch", translate.TranslateBatch)
	api.GET("/translate/stream", translate.Stream)

	// Vocabulary management, present only when persistence is configured.
	if deps.Vocabs != nil {
		vocab := NewVocabHandler(deps.Vocabs, log)
		api.GET("/vocabularies", vocab.List)
		api.GET("/vocabularies/:name", vocab.Get)
		api.PUT("/vocabularies/:name", vocab.Put)
		api.DELETE("/vocabularies/:name", vocab.Delete)
	}
}

// NewRouter creates and configures the Gin engine with all middleware and
// routes.
func NewRouter(deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(r.Group("/api/v1"), deps)

	return r
}
