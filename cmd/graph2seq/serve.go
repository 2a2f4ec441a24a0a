package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/graphtext/graph2seq/internal/api"
	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/db"
	"github.com/graphtext/graph2seq/internal/db/migrations"
	"github.com/graphtext/graph2seq/internal/dbpool"
	"github.com/graphtext/graph2seq/internal/embedding"
	"github.com/graphtext/graph2seq/internal/models"
	"github.com/graphtext/graph2seq/internal/nlp"
	"github.com/graphtext/graph2seq/internal/pipeline"
	"github.com/graphtext/graph2seq/internal/vocabstore"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the translation HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(configPath)
			if err != nil {
				return err
			}

			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file (env: GRAPH2SEQ_*)")

	return cmd
}

func runServe(cfg serverConfig) error {
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	translator, err := buildTranslator(ctx, cfg, log, store)
	if err != nil {
		return err
	}

	var vocabs api.VocabularyStore
	if store != nil {
		vocabs = store
	}

	pcfg := cfg.pipeline()
	router := api.NewRouter(&api.RouterDeps{
		Log:         log,
		Pool:        pool,
		Translator:  translator,
		Vocabs:      vocabs,
		CORSOrigins: cfg.CORSOrigins,
		Version:     config.Version,
		ParserURL:   parserURL(pcfg.Construction.Common.Host, pcfg.Construction.Common.Port),
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     cfg.Listen,
			"version":  config.Version,
			"strategy": pcfg.GraphConstructionName,
		}).Info("server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func newLogger(cfg serverConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log
}

// openStore connects to the database and applies migrations. Without a
// database URL the service runs with in-memory vocabularies only.
func openStore(ctx context.Context, cfg serverConfig, log *logrus.Logger) (*dbpool.Pool, *vocabstore.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("no database configured, vocabulary persistence disabled")

		return nil, nil, nil
	}

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		pool.Close()

		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	return pool, vocabstore.New(pool, log), nil
}

// buildTranslator resolves the vocabularies and assembles the pipeline.
func buildTranslator(ctx context.Context, cfg serverConfig, log *logrus.Logger, store *vocabstore.Store) (*pipeline.Pipeline, error) {
	pcfg := cfg.pipeline()

	source, err := resolveVocab(ctx, cfg.Vocabulary.Name, cfg.Vocabulary.Tokens, store)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		SourceVocab: source,
		SourceEmb:   embedding.NewRandomTable(source.Size(), pcfg.Initialization.InputSize, cfg.Seed, false),
		Logger:      log,
		Seed:        cfg.Seed,
	}

	if len(cfg.Vocabulary.TargetTokens) > 0 {
		target := models.NewVocabulary(cfg.Vocabulary.TargetTokens)
		deps.TargetVocab = target
		deps.TargetEmb = embedding.NewRandomTable(target.Size(), pcfg.Decoder.InputSize, cfg.Seed+1, false)
	}

	common := pcfg.Construction.Common
	deps.Parser = nlp.NewClient(common.Host, common.Port,
		time.Duration(common.TimeoutMS)*time.Millisecond, nlp.WithLogger(log))

	return pipeline.New(pcfg, deps)
}

// resolveVocab loads a named vocabulary from the store, or builds one from
// inline tokens.
func resolveVocab(ctx context.Context, name string, tokens []string, store *vocabstore.Store) (*models.Vocabulary, error) {
	if name != "" {
		if store == nil {
			return nil, fmt.Errorf("vocabulary %q requires a database_url", name)
		}

		vocab, err := store.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("loading vocabulary %q: %w", name, err)
		}

		return vocab, nil
	}

	if len(tokens) == 0 {
		return nil, fmt.Errorf("no vocabulary configured: set vocabulary.name or vocabulary.tokens")
	}

	return models.NewVocabulary(tokens), nil
}

func parserURL(host string, port int) string {
	if host == "" {
		return ""
	}

	return fmt.Sprintf("http://%s:%d", host, port)
}
