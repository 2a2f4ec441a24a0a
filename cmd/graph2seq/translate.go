package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphtext/graph2seq/internal/models"
)

func newTranslateCmd() *cobra.Command {
	var (
		configPath string
		strategy   string
	)

	cmd := &cobra.Command{
		Use:   "translate [tokens...]",
		Short: "Translate one example locally, without the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(configPath)
			if err != nil {
				return err
			}
			if strategy != "" {
				cfg.Pipeline.Construction = strategy
			}

			return runTranslate(cfg, args)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Construction strategy override (dependency|constituency|node_emb|node_emb_refined)")

	return cmd
}

func runTranslate(cfg serverConfig, tokens []string) error {
	log := newLogger(cfg)
	ctx := context.Background()

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

	result, err := translator.Run(ctx, models.Example{
		Tokens:       tokens,
		SentenceLens: []int{len(tokens)},
	})
	if err != nil {
		fatal("translation failed", err)
	}

	out := map[string]any{
		"id":        result.ID.String(),
		"tokens":    result.Tokens,
		"token_ids": result.TokenIDs,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	return nil
}
