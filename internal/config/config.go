// Package config defines the pipeline configuration surface: three strategy
// selectors plus one parameter block per component, each split into a shared
// part consumed by every strategy and a strategy-specific part. Validation is
// fail-fast and happens before any graph is built.
package config

// Config is the full pipeline configuration.
type Config struct {
	GraphConstructionName string
	GraphEmbeddingName    string
	DecoderName           string

	Construction   ConstructionArgs
	Initialization InitArgs
	Encoder        EncoderArgs
	Decoder        DecoderArgs
}

// ConstructionArgs parameterizes graph construction. Common is consumed by
// every strategy; Static and NodeEmb by their respective strategy families.
type ConstructionArgs struct {
	Common  ConstructionCommon
	Static  StaticArgs
	NodeEmb NodeEmbArgs
}

// ConstructionCommon is the strategy-independent construction subset.
type ConstructionCommon struct {
	ShareVocab   bool
	ThreadNumber int
	Host         string
	Port         int
	TimeoutMS    int
}

// StaticArgs parameterizes the parse-based strategies.
type StaticArgs struct {
	MergeStrategy  string
	EdgeStrategy   string
	SequentialLink bool
}

// NodeEmbArgs parameterizes the learned-similarity strategies. The three
// sparsification controls are optional; nil disables the control.
type NodeEmbArgs struct {
	SimMetric         string
	NumHeads          int
	TopKNeigh         *int
	EpsilonNeigh      *float64
	SparsityRatio     *float64
	SmoothnessRatio   float64
	ConnectivityRatio float64
	Alpha             float64 // node_emb_refined mixing weight for the initial topology
}

// InitArgs parameterizes node feature initialization.
type InitArgs struct {
	InputSize       int
	HiddenSize      int
	EmbStrategy     string
	SingleTokenItem bool
	NumRNNLayers    int
	FixWordEmb      bool
	FixBertEmb      bool
	WordDropout     float64
	RNNDropout      float64
}

// EncoderArgs parameterizes the stacked graph-convolution encoder.
type EncoderArgs struct {
	NumLayers         int
	InputSize         int
	HiddenSize        int
	OutputSize        int
	DirectionOption   string
	FeatDrop          float64
	GCNNorm           string
	UseEdgeWeight     bool
	Weight            bool
	Bias              bool
	Activation        string
	AllowZeroInDegree bool
}

// DecoderArgs parameterizes the attention decoder.
type DecoderArgs struct {
	RNNType             string
	InputSize           int // target embedding width
	HiddenSize          int
	MaxDecoderStep      int
	UseCopy             bool
	UseCoverage         bool
	PoolingStrategy     string
	FuseStrategy        string
	AttentionType       string
	NodeTypeNum         int
	TgtEmbAsOutputLayer bool
	BeamSize            int
	Dropout             float64
}

// Default returns a configuration with every leaf set to its canonical value.
// Callers override fields and then Validate.
func Default() Config {
	return Config{
		GraphConstructionName: "dependency",
		GraphEmbeddingName:    "gcn",
		DecoderName:           "stdrnn",
		Construction: ConstructionArgs{
			Common: ConstructionCommon{
				ThreadNumber: 4,
				Host:         "127.0.0.1",
				Port:         9000,
				TimeoutMS:    15000,
			},
			Static: StaticArgs{
				MergeStrategy: "tailhead",
				EdgeStrategy:  "homogeneous",
			},
			NodeEmb: NodeEmbArgs{
				SimMetric:         "weighted_cosine",
				NumHeads:          1,
				SmoothnessRatio:   0.1,
				ConnectivityRatio: 0.05,
				Alpha:             0.8,
			},
		},
		Initialization: InitArgs{
			InputSize:       300,
			HiddenSize:      300,
			EmbStrategy:     "w2v_bilstm",
			SingleTokenItem: true,
			NumRNNLayers:    1,
			WordDropout:     0.4,
			RNNDropout:      0.1,
		},
		Encoder: EncoderArgs{
			NumLayers:         2,
			InputSize:         300,
			HiddenSize:        300,
			OutputSize:        300,
			DirectionOption:   "bi_fuse",
			FeatDrop:          0.2,
			GCNNorm:           "both",
			UseEdgeWeight:     false,
			Weight:            true,
			Bias:              true,
			Activation:        "relu",
			AllowZeroInDegree: true,
		},
		Decoder: DecoderArgs{
			RNNType:         "lstm",
			InputSize:       300,
			HiddenSize:      300,
			MaxDecoderStep:  50,
			PoolingStrategy: "max",
			FuseStrategy:    "concatenate",
			AttentionType:   "uniform",
			BeamSize:        1,
			Dropout:         0.3,
		},
	}
}
