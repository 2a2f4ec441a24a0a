package config

import (
	"github.com/graphtext/graph2seq/internal/models"
)

// Validate checks the complete configuration. Any unrecognized name or
// out-of-range leaf aborts pipeline construction with a configuration error.
func (c *Config) Validate() error {
	if err := c.validateNames(); err != nil {
		return err
	}

	if err := c.validateConstruction(); err != nil {
		return err
	}

	if err := c.validateInitialization(); err != nil {
		return err
	}

	if err := c.validateEncoder(); err != nil {
		return err
	}

	if err := c.validateDecoder(); err != nil {
		return err
	}

	return c.validateDimensions()
}

func (c *Config) validateNames() error {
	if _, err := ParseConstructionKind(c.GraphConstructionName); err != nil {
		return err
	}

	if _, err := ParseEncoderKind(c.GraphEmbeddingName); err != nil {
		return err
	}

	_, err := ParseDecoderKind(c.DecoderName)

	return err
}

func (c *Config) validateConstruction() error {
	kind, err := ParseConstructionKind(c.GraphConstructionName)
	if err != nil {
		return err
	}

	common := c.Construction.Common
	if common.ThreadNumber < 1 {
		return models.ConfigErrorf("thread_number must be >= 1, got %d", common.ThreadNumber)
	}

	if kind.IsStatic() {
		if common.Host == "" {
			return models.ConfigErrorf("host is required for %s construction", kind)
		}

		if common.Port < 1 || common.Port > 65535 {
			return models.ConfigErrorf("port must be between 1 and 65535, got %d", common.Port)
		}

		if common.TimeoutMS < 1 {
			return models.ConfigErrorf("timeout must be >= 1ms, got %d", common.TimeoutMS)
		}

		st := c.Construction.Static
		if !mergeStrategies[st.MergeStrategy] {
			return models.ConfigErrorf("unknown merge_strategy %q", st.MergeStrategy)
		}

		if !edgeStrategies[st.EdgeStrategy] {
			return models.ConfigErrorf("unknown edge_strategy %q", st.EdgeStrategy)
		}

		return nil
	}

	ne := c.Construction.NodeEmb
	if !simMetrics[ne.SimMetric] {
		return models.ConfigErrorf("unknown sim_metric_type %q", ne.SimMetric)
	}

	if ne.NumHeads < 1 {
		return models.ConfigErrorf("num_heads must be >= 1, got %d", ne.NumHeads)
	}

	if ne.TopKNeigh != nil && *ne.TopKNeigh < 1 {
		return models.ConfigErrorf("top_k_neigh must be >= 1, got %d", *ne.TopKNeigh)
	}

	if ne.EpsilonNeigh != nil && (*ne.EpsilonNeigh < 0 || *ne.EpsilonNeigh > 1) {
		return models.ConfigErrorf("epsilon_neigh must be in [0, 1], got %g", *ne.EpsilonNeigh)
	}

	if ne.TopKNeigh != nil && ne.EpsilonNeigh != nil {
		return models.ConfigErrorf("top_k_neigh and epsilon_neigh are mutually exclusive")
	}

	if ne.SparsityRatio != nil && (*ne.SparsityRatio < 0 || *ne.SparsityRatio > 1) {
		return models.ConfigErrorf("sparsity_ratio must be in [0, 1], got %g", *ne.SparsityRatio)
	}

	if ne.SmoothnessRatio < 0 || ne.SmoothnessRatio > 1 {
		return models.ConfigErrorf("smoothness_ratio must be in [0, 1], got %g", ne.SmoothnessRatio)
	}

	if ne.ConnectivityRatio < 0 || ne.ConnectivityRatio > 1 {
		return models.ConfigErrorf("connectivity_ratio must be in [0, 1], got %g", ne.ConnectivityRatio)
	}

	if kind == ConstructionNodeEmbRefined && (ne.Alpha < 0 || ne.Alpha > 1) {
		return models.ConfigErrorf("alpha_fusion must be in [0, 1], got %g", ne.Alpha)
	}

	return nil
}

func (c *Config) validateInitialization() error {
	in := c.Initialization
	if in.InputSize < 1 {
		return models.ConfigErrorf("initialization input_size must be >= 1, got %d", in.InputSize)
	}

	if in.HiddenSize < 1 {
		return models.ConfigErrorf("initialization hidden_size must be >= 1, got %d", in.HiddenSize)
	}

	if !embStrategies[in.EmbStrategy] {
		return models.ConfigErrorf("unknown embedding_style %q", in.EmbStrategy)
	}

	if in.EmbStrategy != "w2v" {
		if in.NumRNNLayers < 1 {
			return models.ConfigErrorf("num_rnn_layers must be >= 1, got %d", in.NumRNNLayers)
		}

		if in.InputSize%2 != 0 {
			return models.ConfigErrorf("input_size must be even for bidirectional contextualizers, got %d", in.InputSize)
		}
	}

	if err := checkDropout("word_dropout", in.WordDropout); err != nil {
		return err
	}

	return checkDropout("rnn_dropout", in.RNNDropout)
}

func (c *Config) validateEncoder() error {
	e := c.Encoder
	if e.NumLayers < 1 {
		return models.ConfigErrorf("gnn num_layers must be >= 1, got %d", e.NumLayers)
	}

	for name, size := range map[string]int{
		"input_size":  e.InputSize,
		"hidden_size": e.HiddenSize,
		"output_size": e.OutputSize,
	} {
		if size < 1 {
			return models.ConfigErrorf("gnn %s must be >= 1, got %d", name, size)
		}
	}

	if !directionOptions[e.DirectionOption] {
		return models.ConfigErrorf("unknown direction_option %q", e.DirectionOption)
	}

	if !gcnNorms[e.GCNNorm] {
		return models.ConfigErrorf("unknown gcn_norm %q", e.GCNNorm)
	}

	if !activations[e.Activation] {
		return models.ConfigErrorf("unknown activation %q", e.Activation)
	}

	// Without the linear transform each layer passes its input width through,
	// so a non-uniform dimension chain cannot be realized.
	if !e.Weight && (e.InputSize != e.HiddenSize || e.HiddenSize != e.OutputSize) {
		return models.ConfigErrorf("gnn weight=false requires input_size, hidden_size and output_size to match, got %d/%d/%d",
			e.InputSize, e.HiddenSize, e.OutputSize)
	}

	return checkDropout("feat_drop", e.FeatDrop)
}

func (c *Config) validateDecoder() error {
	d := c.Decoder
	if !rnnTypes[d.RNNType] {
		return models.ConfigErrorf("unknown rnn_type %q", d.RNNType)
	}

	if d.InputSize < 1 {
		return models.ConfigErrorf("decoder input_size must be >= 1, got %d", d.InputSize)
	}

	if d.HiddenSize < 1 {
		return models.ConfigErrorf("decoder hidden_size must be >= 1, got %d", d.HiddenSize)
	}

	if d.MaxDecoderStep < 1 {
		return models.ConfigErrorf("max_decoder_step must be >= 1, got %d", d.MaxDecoderStep)
	}

	if !poolingOptions[d.PoolingStrategy] {
		return models.ConfigErrorf("unknown graph_pooling_strategy %q", d.PoolingStrategy)
	}

	if !fuseStrategies[d.FuseStrategy] {
		return models.ConfigErrorf("unknown fuse_strategy %q", d.FuseStrategy)
	}

	if !attentionTypes[d.AttentionType] {
		return models.ConfigErrorf("unknown attention_type %q", d.AttentionType)
	}

	if d.NodeTypeNum < 0 {
		return models.ConfigErrorf("node_type_num must be >= 0, got %d", d.NodeTypeNum)
	}

	if d.AttentionType == "sep_diff_node_type" && d.NodeTypeNum < 1 {
		return models.ConfigErrorf("attention_type sep_diff_node_type requires node_type_num >= 1")
	}

	if d.BeamSize < 1 {
		return models.ConfigErrorf("beam_size must be >= 1, got %d", d.BeamSize)
	}

	return checkDropout("decoder dropout", d.Dropout)
}

// validateDimensions checks that the component widths chain up: initializer
// output feeds the encoder input, and the encoder output is the memory the
// decoder attends over and pools its initial state from.
func (c *Config) validateDimensions() error {
	if c.Initialization.InputSize != c.Encoder.InputSize {
		return models.ConfigErrorf("initialization input_size %d does not match gnn input_size %d",
			c.Initialization.InputSize, c.Encoder.InputSize)
	}

	if c.Encoder.OutputSize != c.Decoder.HiddenSize {
		return models.ConfigErrorf("gnn output_size %d does not match decoder hidden_size %d",
			c.Encoder.OutputSize, c.Decoder.HiddenSize)
	}

	return nil
}

func checkDropout(name string, v float64) error {
	if v < 0 || v >= 1 {
		return models.ConfigErrorf("%s must be in [0, 1), got %g", name, v)
	}

	return nil
}
