package decoder

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/embedding"
	"github.com/graphtext/graph2seq/internal/models"
)

func decoderCfg() config.DecoderArgs {
	return config.DecoderArgs{
		RNNType:         "lstm",
		InputSize:       8,
		HiddenSize:      8,
		MaxDecoderStep:  12,
		PoolingStrategy: "max",
		FuseStrategy:    "concatenate",
		AttentionType:   "uniform",
		BeamSize:        1,
	}
}

func testVocab() *models.Vocabulary {
	return models.NewVocabulary([]string{"the", "cat", "sat"})
}

func newDecoder(t *testing.T, cfg config.DecoderArgs, vocab *models.Vocabulary) *Decoder {
	t.Helper()

	d, err := New(cfg, vocab, embedding.NewRandomTable(vocab.Size(), cfg.InputSize, 3, false), 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return d
}

// mappedGraph builds a small graph whose nodes all carry vocabulary ids.
func mappedGraph(t *testing.T, ids ...int) *models.Graph {
	t.Helper()

	g := models.NewGraph()
	for i, id := range ids {
		if err := g.AddNode(models.Node{ID: i, Token: "t", TokenIDs: []int{id}}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	for i := 0; i+1 < len(ids); i++ {
		if err := g.AddEdge(models.Edge{Source: i, Target: i + 1, Weight: 1}); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}

	return g
}

func encFeatures(rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = math.Sin(float64(i))
	}

	return mat.NewDense(rows, cols, data)
}

func TestDecodeTerminates(t *testing.T) {
	cfg := decoderCfg()
	d := newDecoder(t, cfg, testVocab())

	g := mappedGraph(t, 4, 5, 6)

	out, err := d.Decode(g, encFeatures(3, cfg.HiddenSize), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(out) > cfg.MaxDecoderStep {
		t.Errorf("decoded %d tokens, limit is %d", len(out), cfg.MaxDecoderStep)
	}

	for _, id := range out {
		if id == models.EOSID {
			t.Error("EOS leaked into the output")
		}
	}
}

func TestSessionNotRestartable(t *testing.T) {
	cfg := decoderCfg()
	d := newDecoder(t, cfg, testVocab())

	g := mappedGraph(t, 4, 5)

	session, err := d.Start(g, encFeatures(2, cfg.HiddenSize), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for {
		_, done, err := session.Step()
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if done {
			break
		}
	}

	if _, _, err := session.Step(); !models.IsInvalidInput(err) {
		t.Errorf("Step after done: got %v, want invalid input", err)
	}
}

func TestDistributionSumsToOne(t *testing.T) {
	cfg := decoderCfg()
	vocab := testVocab()
	d := newDecoder(t, cfg, vocab)

	g := mappedGraph(t, 4, 5, 6)

	session, err := d.Start(g, encFeatures(3, cfg.HiddenSize), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	probs, err := d.advance(session.st, session.g, session.feats, session.groupOf, nil)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	if len(probs) != vocab.Size() {
		t.Fatalf("distribution over %d entries, want base vocabulary %d", len(probs), vocab.Size())
	}

	var sum float64
	for _, p := range probs {
		sum += p
	}

	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("distribution sums to %g, want 1", sum)
	}
}

func TestCopyExtendsDistribution(t *testing.T) {
	cfg := decoderCfg()
	cfg.UseCopy = true

	vocab := testVocab()
	d := newDecoder(t, cfg, vocab)

	ext := models.NewExtendedVocab(vocab)
	oovID := ext.Extend("zyzzyva")

	g := mappedGraph(t, 4, oovID)

	session, err := d.Start(g, encFeatures(2, cfg.HiddenSize), ext)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	probs, err := d.advance(session.st, session.g, session.feats, session.groupOf, ext)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	if len(probs) != ext.Size() {
		t.Fatalf("distribution over %d entries, want extended vocabulary %d", len(probs), ext.Size())
	}

	if probs[oovID] <= 0 {
		t.Error("copied extension token received no probability mass")
	}

	var sum float64
	for _, p := range probs {
		sum += p
	}

	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("copy distribution sums to %g, want 1", sum)
	}
}

func TestCopyRequiresTokenMapping(t *testing.T) {
	cfg := decoderCfg()
	cfg.UseCopy = true

	d := newDecoder(t, cfg, testVocab())

	g := models.NewGraph()
	if err := g.AddNode(models.Node{ID: 0, Token: "x"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	_, err := d.Start(g, encFeatures(1, cfg.HiddenSize), models.NewExtendedVocab(testVocab()))
	if !models.IsConfiguration(err) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestStartRejectsShapeMismatch(t *testing.T) {
	cfg := decoderCfg()
	d := newDecoder(t, cfg, testVocab())

	g := mappedGraph(t, 4, 5)

	if _, err := d.Start(g, encFeatures(3, cfg.HiddenSize), nil); !models.IsInvalidInput(err) {
		t.Errorf("row mismatch: got %v, want invalid input", err)
	}

	if _, err := d.Start(g, encFeatures(2, cfg.HiddenSize+1), nil); !models.IsInvalidInput(err) {
		t.Errorf("width mismatch: got %v, want invalid input", err)
	}
}

func TestPoolingStrategies(t *testing.T) {
	feats := mat.NewDense(2, 2, []float64{1, -2, 3, 4})

	cases := []struct {
		strategy string
		want     []float64
	}{
		{"max", []float64{3, 4}},
		{"min", []float64{1, -2}},
		{"mean", []float64{2, 1}},
	}

	for _, tc := range cases {
		t.Run(tc.strategy, func(t *testing.T) {
			cfg := decoderCfg()
			cfg.PoolingStrategy = tc.strategy

			d := newDecoder(t, cfg, testVocab())

			got := d.pool(feats)
			for k := range tc.want {
				if got[k] != tc.want[k] {
					t.Errorf("pool[%d] = %g, want %g", k, got[k], tc.want[k])
				}
			}
		})
	}
}

func TestSepNodeTypeAttention(t *testing.T) {
	cfg := decoderCfg()
	cfg.AttentionType = "sep_diff_node_type"
	cfg.NodeTypeNum = 2

	d := newDecoder(t, cfg, testVocab())

	g := models.NewGraph()
	if err := g.AddNode(models.Node{ID: 0, Token: "a", TokenIDs: []int{4}, Type: models.NodeTypeToken}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.AddNode(models.Node{ID: 1, Token: "rel", TokenIDs: []int{5}, Type: models.NodeTypeRelation}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	out, err := d.Decode(g, encFeatures(2, cfg.HiddenSize), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(out) > cfg.MaxDecoderStep {
		t.Errorf("decoded %d tokens, limit is %d", len(out), cfg.MaxDecoderStep)
	}

	// Out-of-range node types are rejected.
	if err := g.AddNode(models.Node{ID: 2, Token: "c", TokenIDs: []int{4}, Type: 5}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	if _, err := d.Start(g, encFeatures(3, cfg.HiddenSize), nil); !models.IsInvalidInput(err) {
		t.Errorf("got %v, want invalid input", err)
	}
}

func TestSepEncoderTypeAttention(t *testing.T) {
	cfg := decoderCfg()
	cfg.AttentionType = "sep_diff_encoder_type"

	d := newDecoder(t, cfg, testVocab())

	// Two graphs identical except for the second node's provenance: token
	// versus structural. Only the attention grouping differs.
	build := func(secondType int) *models.Graph {
		g := models.NewGraph()
		if err := g.AddNode(models.Node{ID: 0, Token: "a", TokenIDs: []int{4}, Type: models.NodeTypeToken}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
		if err := g.AddNode(models.Node{ID: 1, Token: "b", TokenIDs: []int{5}, Type: secondType}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
		if err := g.AddEdge(models.Edge{Source: 0, Target: 1, Weight: 1}); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}

		return g
	}

	step := func(g *models.Graph) []float64 {
		session, err := d.Start(g, encFeatures(2, cfg.HiddenSize), nil)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}

		probs, err := d.advance(session.st, session.g, session.feats, session.groupOf, nil)
		if err != nil {
			t.Fatalf("advance: %v", err)
		}

		return probs
	}

	tokenOnly := step(build(models.NodeTypeToken))
	mixed := step(build(models.NodeTypeRelation))

	same := true
	for i := range tokenOnly {
		if math.Abs(tokenOnly[i]-mixed[i]) > 1e-12 {
			same = false
			break
		}
	}
	if same {
		t.Error("structural node scored with the token attention head")
	}

	var sum float64
	for _, p := range mixed {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("mixed-group distribution sums to %g, want 1", sum)
	}
}

func TestBeamSearchTerminates(t *testing.T) {
	cfg := decoderCfg()
	cfg.BeamSize = 3

	d := newDecoder(t, cfg, testVocab())

	g := mappedGraph(t, 4, 5, 6)

	out, err := d.Decode(g, encFeatures(3, cfg.HiddenSize), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(out) > cfg.MaxDecoderStep {
		t.Errorf("beam decoded %d tokens, limit is %d", len(out), cfg.MaxDecoderStep)
	}
}

func TestBeamSearchDeterministic(t *testing.T) {
	cfg := decoderCfg()
	cfg.BeamSize = 3

	d := newDecoder(t, cfg, testVocab())

	g := mappedGraph(t, 4, 5, 6)
	feats := encFeatures(3, cfg.HiddenSize)

	first, err := d.Decode(g, feats, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	// Tied hypothesis scores must not reorder between runs.
	for run := 0; run < 3; run++ {
		out, err := d.Decode(g, feats, nil)
		if err != nil {
			t.Fatalf("Decode (run %d): %v", run, err)
		}

		if len(out) != len(first) {
			t.Fatalf("run %d decoded %d tokens, first run %d", run, len(out), len(first))
		}
		for i := range out {
			if out[i] != first[i] {
				t.Fatalf("run %d diverged at position %d: %d vs %d", run, i, out[i], first[i])
			}
		}
	}
}

func TestTgtEmbAsOutputLayer(t *testing.T) {
	cfg := decoderCfg()
	cfg.TgtEmbAsOutputLayer = true

	d := newDecoder(t, cfg, testVocab())

	g := mappedGraph(t, 4, 5)

	if _, err := d.Decode(g, encFeatures(2, cfg.HiddenSize), nil); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

func TestCoverageAccumulates(t *testing.T) {
	cfg := decoderCfg()
	cfg.UseCoverage = true

	d := newDecoder(t, cfg, testVocab())

	g := mappedGraph(t, 4, 5)

	session, err := d.Start(g, encFeatures(2, cfg.HiddenSize), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, _, err := session.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	var total float64
	for _, c := range session.st.coverage {
		total += c
	}

	if math.Abs(total-1) > 1e-9 {
		t.Errorf("coverage after one step sums to %g, want 1", total)
	}
}

func TestTokensResolvesExtensions(t *testing.T) {
	cfg := decoderCfg()
	vocab := testVocab()
	d := newDecoder(t, cfg, vocab)

	ext := models.NewExtendedVocab(vocab)
	oovID := ext.Extend("zyzzyva")

	toks, err := d.Tokens([]int{vocab.Lookup("the"), oovID}, ext)
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}

	if toks[0] != "the" || toks[1] != "zyzzyva" {
		t.Errorf("Tokens = %v", toks)
	}
}
