package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/graphtext/graph2seq/internal/config"
)

// serverConfig is the YAML configuration file consumed by the serve and
// translate commands. Pipeline fields left unset keep their defaults; boolean
// overrides use pointers so false can be expressed explicitly.
type serverConfig struct {
	Listen      string   `yaml:"listen"`
	DatabaseURL string   `yaml:"database_url"`
	CORSOrigins []string `yaml:"cors_origins"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
	Seed        int64    `yaml:"seed"`

	Vocabulary vocabularyConfig `yaml:"vocabulary"`
	Pipeline   pipelineConfig   `yaml:"pipeline"`
}

// vocabularyConfig selects the vocabulary source: a named vocabulary in the
// database, or inline token lists.
type vocabularyConfig struct {
	Name         string   `yaml:"name"`
	Tokens       []string `yaml:"tokens"`
	TargetTokens []string `yaml:"target_tokens"`
}

type pipelineConfig struct {
	Construction string `yaml:"construction"`
	Embedding    string `yaml:"embedding"`
	Decoder      string `yaml:"decoder"`

	ShareVocab   *bool `yaml:"share_vocab"`
	ThreadNumber int   `yaml:"thread_number"`

	Parser parserConfig `yaml:"parser"`

	Static  staticConfig  `yaml:"static"`
	NodeEmb nodeEmbConfig `yaml:"node_emb"`

	Initialization initConfig    `yaml:"initialization"`
	Encoder        encoderConfig `yaml:"encoder"`
	Decoding       decoderConfig `yaml:"decoding"`
}

type parserConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type staticConfig struct {
	MergeStrategy  string `yaml:"merge_strategy"`
	EdgeStrategy   string `yaml:"edge_strategy"`
	SequentialLink *bool  `yaml:"sequential_link"`
}

type nodeEmbConfig struct {
	SimMetric         string   `yaml:"sim_metric"`
	NumHeads          int      `yaml:"num_heads"`
	TopKNeigh         *int     `yaml:"top_k_neigh"`
	EpsilonNeigh      *float64 `yaml:"epsilon_neigh"`
	SparsityRatio     *float64 `yaml:"sparsity_ratio"`
	SmoothnessRatio   *float64 `yaml:"smoothness_ratio"`
	ConnectivityRatio *float64 `yaml:"connectivity_ratio"`
	Alpha             *float64 `yaml:"alpha"`
}

type initConfig struct {
	InputSize       int    `yaml:"input_size"`
	HiddenSize      int    `yaml:"hidden_size"`
	EmbStrategy     string `yaml:"emb_strategy"`
	SingleTokenItem *bool  `yaml:"single_token_item"`
	NumRNNLayers    int    `yaml:"num_rnn_layers"`
	FixWordEmb      *bool  `yaml:"fix_word_emb"`
}

type encoderConfig struct {
	NumLayers         int    `yaml:"num_layers"`
	InputSize         int    `yaml:"input_size"`
	HiddenSize        int    `yaml:"hidden_size"`
	OutputSize        int    `yaml:"output_size"`
	Direction         string `yaml:"direction"`
	GCNNorm           string `yaml:"gcn_norm"`
	UseEdgeWeight     *bool  `yaml:"use_edge_weight"`
	Activation        string `yaml:"activation"`
	AllowZeroInDegree *bool  `yaml:"allow_zero_in_degree"`
}

type decoderConfig struct {
	RNNType             string `yaml:"rnn_type"`
	InputSize           int    `yaml:"input_size"`
	HiddenSize          int    `yaml:"hidden_size"`
	MaxDecoderStep      int    `yaml:"max_decoder_step"`
	UseCopy             *bool  `yaml:"use_copy"`
	UseCoverage         *bool  `yaml:"use_coverage"`
	PoolingStrategy     string `yaml:"pooling_strategy"`
	FuseStrategy        string `yaml:"fuse_strategy"`
	AttentionType       string `yaml:"attention_type"`
	NodeTypeNum         int    `yaml:"node_type_num"`
	TgtEmbAsOutputLayer *bool  `yaml:"tgt_emb_as_output_layer"`
	BeamSize            int    `yaml:"beam_size"`
}

// loadServerConfig reads the YAML file at path and applies environment
// overrides. An empty path yields the defaults.
func loadServerConfig(path string) (serverConfig, error) {
	cfg := serverConfig{
		Listen:      ":8080",
		CORSOrigins: []string{"*"},
		LogLevel:    "info",
		LogFormat:   "json",
		Seed:        42,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Environment takes precedence over the file.
	if v := os.Getenv("GRAPH2SEQ_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("GRAPH2SEQ_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GRAPH2SEQ_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("GRAPH2SEQ_PARSER_HOST"); v != "" {
		cfg.Pipeline.Parser.Host = v
	}

	return cfg, nil
}

// pipeline materializes the pipeline configuration: defaults overlaid with
// the file's explicit settings.
func (c serverConfig) pipeline() config.Config {
	p := config.Default()
	f := c.Pipeline

	setString(&p.GraphConstructionName, f.Construction)
	setString(&p.GraphEmbeddingName, f.Embedding)
	setString(&p.DecoderName, f.Decoder)

	setBool(&p.Construction.Common.ShareVocab, f.ShareVocab)
	setInt(&p.Construction.Common.ThreadNumber, f.ThreadNumber)
	setString(&p.Construction.Common.Host, f.Parser.Host)
	setInt(&p.Construction.Common.Port, f.Parser.Port)
	setInt(&p.Construction.Common.TimeoutMS, f.Parser.TimeoutMS)

	setString(&p.Construction.Static.MergeStrategy, f.Static.MergeStrategy)
	setString(&p.Construction.Static.EdgeStrategy, f.Static.EdgeStrategy)
	setBool(&p.Construction.Static.SequentialLink, f.Static.SequentialLink)

	setString(&p.Construction.NodeEmb.SimMetric, f.NodeEmb.SimMetric)
	setInt(&p.Construction.NodeEmb.NumHeads, f.NodeEmb.NumHeads)
	p.Construction.NodeEmb.TopKNeigh = f.NodeEmb.TopKNeigh
	p.Construction.NodeEmb.EpsilonNeigh = f.NodeEmb.EpsilonNeigh
	p.Construction.NodeEmb.SparsityRatio = f.NodeEmb.SparsityRatio
	setFloat(&p.Construction.NodeEmb.SmoothnessRatio, f.NodeEmb.SmoothnessRatio)
	setFloat(&p.Construction.NodeEmb.ConnectivityRatio, f.NodeEmb.ConnectivityRatio)
	setFloat(&p.Construction.NodeEmb.Alpha, f.NodeEmb.Alpha)

	setInt(&p.Initialization.InputSize, f.Initialization.InputSize)
	setInt(&p.Initialization.HiddenSize, f.Initialization.HiddenSize)
	setString(&p.Initialization.EmbStrategy, f.Initialization.EmbStrategy)
	setBool(&p.Initialization.SingleTokenItem, f.Initialization.SingleTokenItem)
	setInt(&p.Initialization.NumRNNLayers, f.Initialization.NumRNNLayers)
	setBool(&p.Initialization.FixWordEmb, f.Initialization.FixWordEmb)

	setInt(&p.Encoder.NumLayers, f.Encoder.NumLayers)
	setInt(&p.Encoder.InputSize, f.Encoder.InputSize)
	setInt(&p.Encoder.HiddenSize, f.Encoder.HiddenSize)
	setInt(&p.Encoder.OutputSize, f.Encoder.OutputSize)
	setString(&p.Encoder.DirectionOption, f.Encoder.Direction)
	setString(&p.Encoder.GCNNorm, f.Encoder.GCNNorm)
	setBool(&p.Encoder.UseEdgeWeight, f.Encoder.UseEdgeWeight)
	setString(&p.Encoder.Activation, f.Encoder.Activation)
	setBool(&p.Encoder.AllowZeroInDegree, f.Encoder.AllowZeroInDegree)

	setString(&p.Decoder.RNNType, f.Decoding.RNNType)
	setInt(&p.Decoder.InputSize, f.Decoding.InputSize)
	setInt(&p.Decoder.HiddenSize, f.Decoding.HiddenSize)
	setInt(&p.Decoder.MaxDecoderStep, f.Decoding.MaxDecoderStep)
	setBool(&p.Decoder.UseCopy, f.Decoding.UseCopy)
	setBool(&p.Decoder.UseCoverage, f.Decoding.UseCoverage)
	setString(&p.Decoder.PoolingStrategy, f.Decoding.PoolingStrategy)
	setString(&p.Decoder.FuseStrategy, f.Decoding.FuseStrategy)
	setString(&p.Decoder.AttentionType, f.Decoding.AttentionType)
	setInt(&p.Decoder.NodeTypeNum, f.Decoding.NodeTypeNum)
	setBool(&p.Decoder.TgtEmbAsOutputLayer, f.Decoding.TgtEmbAsOutputLayer)
	setInt(&p.Decoder.BeamSize, f.Decoding.BeamSize)

	return p
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
