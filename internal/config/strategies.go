package config

import (
	"github.com/graphtext/graph2seq/internal/models"
)

// ConstructionKind selects the graph construction strategy.
type ConstructionKind int

// Recognized construction strategies.
const (
	ConstructionDependency ConstructionKind = iota
	ConstructionConstituency
	ConstructionNodeEmb
	ConstructionNodeEmbRefined
)

var constructionNames = map[string]ConstructionKind{
	"dependency":       ConstructionDependency,
	"constituency":     ConstructionConstituency,
	"node_emb":         ConstructionNodeEmb,
	"node_emb_refined": ConstructionNodeEmbRefined,
}

// ParseConstructionKind resolves a strategy name to its kind.
func ParseConstructionKind(name string) (ConstructionKind, error) {
	k, ok := constructionNames[name]
	if !ok {
		return 0, models.ConfigErrorf("unknown graph_construction_name %q", name)
	}

	return k, nil
}

// String returns the configuration name of the kind.
func (k ConstructionKind) String() string {
	for name, kk := range constructionNames {
		if kk == k {
			return name
		}
	}

	return "unknown"
}

// IsStatic reports whether the strategy delegates to the linguistic service.
func (k ConstructionKind) IsStatic() bool {
	return k == ConstructionDependency || k == ConstructionConstituency
}

// EncoderKind selects the graph neural encoder.
type EncoderKind int

// Recognized encoders.
const (
	EncoderGCN EncoderKind = iota
)

// ParseEncoderKind resolves a graph_embedding_name to its kind.
func ParseEncoderKind(name string) (EncoderKind, error) {
	if name != "gcn" {
		return 0, models.ConfigErrorf("unknown graph_embedding_name %q", name)
	}

	return EncoderGCN, nil
}

// DecoderKind selects the sequence decoder.
type DecoderKind int

// Recognized decoders.
const (
	DecoderStdRNN DecoderKind = iota
)

// ParseDecoderKind resolves a decoder_name to its kind.
func ParseDecoderKind(name string) (DecoderKind, error) {
	if name != "stdrnn" {
		return 0, models.ConfigErrorf("unknown decoder_name %q", name)
	}

	return DecoderStdRNN, nil
}

// Closed option sets for leaf values. Each is validated against the full
// recognized set before any graph is built.
var (
	mergeStrategies  = stringSet("tailhead", "user_define")
	edgeStrategies   = stringSet("homogeneous", "heterogeneous", "as_node")
	directionOptions = stringSet("undirected", "bi_sep", "bi_fuse")
	gcnNorms         = stringSet("both", "right", "none")
	activations      = stringSet("relu", "tanh", "elu", "identity")
	rnnTypes         = stringSet("lstm", "gru")
	attentionTypes   = stringSet("uniform", "sep_diff_encoder_type", "sep_diff_node_type")
	fuseStrategies   = stringSet("average", "concatenate")
	poolingOptions   = stringSet("max", "min", "mean")
	simMetrics       = stringSet("weighted_cosine")
	embStrategies    = stringSet("w2v", "w2v_bilstm", "w2v_bigru")
)

func stringSet(items ...string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[it] = true
	}

	return s
}
