package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerConfig_Defaults(t *testing.T) {
	cfg, err := loadServerConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Listen != ":8080" {
		t.Errorf("listen = %q", cfg.Listen)
	}

	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("log settings = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}

	p := cfg.pipeline()
	if p.GraphConstructionName != "dependency" {
		t.Errorf("default construction = %q", p.GraphConstructionName)
	}
}

func TestLoadServerConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
listen: ":9090"
log_level: debug
vocabulary:
  tokens: ["<pad>", "<s>", "</s>", "<unk>", "the", "cat"]
pipeline:
  construction: node_emb
  node_emb:
    num_heads: 2
    top_k_neigh: 3
  encoder:
    direction: bi_sep
  decoding:
    use_copy: true
    beam_size: 4
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("listen = %q", cfg.Listen)
	}

	p := cfg.pipeline()

	if p.GraphConstructionName != "node_emb" {
		t.Errorf("construction = %q", p.GraphConstructionName)
	}

	if p.Construction.NodeEmb.NumHeads != 2 {
		t.Errorf("num heads = %d", p.Construction.NodeEmb.NumHeads)
	}

	if p.Construction.NodeEmb.TopKNeigh == nil || *p.Construction.NodeEmb.TopKNeigh != 3 {
		t.Error("top_k_neigh override lost")
	}

	if p.Encoder.DirectionOption != "bi_sep" {
		t.Errorf("direction = %q", p.Encoder.DirectionOption)
	}

	if !p.Decoder.UseCopy || p.Decoder.BeamSize != 4 {
		t.Errorf("decoder overrides lost: copy=%v beam=%d", p.Decoder.UseCopy, p.Decoder.BeamSize)
	}

	// Fields the file does not mention keep their defaults.
	if p.Encoder.NumLayers != 2 {
		t.Errorf("encoder layers = %d, want default 2", p.Encoder.NumLayers)
	}
}

func TestLoadServerConfig_EnvOverride(t *testing.T) {
	t.Setenv("GRAPH2SEQ_LISTEN", ":7070")
	t.Setenv("GRAPH2SEQ_PARSER_HOST", "parser.internal")

	cfg, err := loadServerConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Listen != ":7070" {
		t.Errorf("listen = %q", cfg.Listen)
	}

	p := cfg.pipeline()
	if p.Construction.Common.Host != "parser.internal" {
		t.Errorf("parser host = %q", p.Construction.Common.Host)
	}
}

func TestLoadServerConfig_MissingFile(t *testing.T) {
	if _, err := loadServerConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
