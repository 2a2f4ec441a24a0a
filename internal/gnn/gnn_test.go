package gnn

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/models"
)

func encoderCfg() config.EncoderArgs {
	return config.EncoderArgs{
		NumLayers:         2,
		InputSize:         4,
		HiddenSize:        6,
		OutputSize:        5,
		DirectionOption:   "undirected",
		GCNNorm:           "both",
		Weight:            true,
		Bias:              true,
		Activation:        "relu",
		AllowZeroInDegree: true,
	}
}

// triangle builds a 3-cycle so every node has both in and out edges.
func triangle(t *testing.T) *models.Graph {
	t.Helper()

	g := models.NewGraph()
	for i := 0; i < 3; i++ {
		if err := g.AddNode(models.Node{ID: i, Token: "t", TokenIDs: []int{4}}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		if err := g.AddEdge(models.Edge{Source: i, Target: (i + 1) % 3, Weight: 1}); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}

	return g
}

func features(rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(i%7) + 1
	}

	return mat.NewDense(rows, cols, data)
}

func TestEncodeOutputShape(t *testing.T) {
	for _, direction := range []string{"undirected", "bi_sep", "bi_fuse"} {
		for _, layers := range []int{1, 2, 3} {
			cfg := encoderCfg()
			cfg.DirectionOption = direction
			cfg.NumLayers = layers

			enc, err := NewEncoder(cfg, 1)
			if err != nil {
				t.Fatalf("NewEncoder(%s, %d): %v", direction, layers, err)
			}

			g := triangle(t)

			out, err := enc.Encode(g, features(3, cfg.InputSize))
			if err != nil {
				t.Fatalf("Encode(%s, %d): %v", direction, layers, err)
			}

			r, c := out.Dims()
			if r != 3 || c != cfg.OutputSize {
				t.Errorf("%s with %d layers: output %dx%d, want 3x%d", direction, layers, r, c, cfg.OutputSize)
			}
		}
	}
}

func TestEncodeRejectsZeroLayers(t *testing.T) {
	cfg := encoderCfg()
	cfg.NumLayers = 0

	if _, err := NewEncoder(cfg, 1); !models.IsConfiguration(err) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestEncodeRejectsNoWeightWithUnevenWidths(t *testing.T) {
	cfg := encoderCfg()
	cfg.Weight = false

	if _, err := NewEncoder(cfg, 1); !models.IsConfiguration(err) {
		t.Errorf("got %v, want configuration error", err)
	}

	// A uniform chain is fine without the transform.
	cfg.InputSize, cfg.HiddenSize, cfg.OutputSize = 4, 4, 4

	enc, err := NewEncoder(cfg, 1)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	out, err := enc.Encode(triangle(t), features(3, 4))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, c := out.Dims(); c != 4 {
		t.Errorf("output width %d, want 4", c)
	}
}

func TestEncodeRejectsShapeMismatch(t *testing.T) {
	enc, err := NewEncoder(encoderCfg(), 1)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	g := triangle(t)

	if _, err := enc.Encode(g, features(2, 4)); !models.IsInvalidInput(err) {
		t.Errorf("row mismatch: got %v, want invalid input", err)
	}

	if _, err := enc.Encode(g, features(3, 9)); !models.IsInvalidInput(err) {
		t.Errorf("column mismatch: got %v, want invalid input", err)
	}
}

func TestEncodeZeroInDegree(t *testing.T) {
	cfg := encoderCfg()
	cfg.AllowZeroInDegree = false

	enc, err := NewEncoder(cfg, 1)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	// Node 1 has no edges at all.
	g := models.NewGraph()
	for i := 0; i < 2; i++ {
		if err := g.AddNode(models.Node{ID: i, Token: "t", TokenIDs: []int{4}}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	if err := g.AddEdge(models.Edge{Source: 0, Target: 0, Weight: 1}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	if _, err := enc.Encode(g, features(2, cfg.InputSize)); !models.IsStructural(err) {
		t.Errorf("got %v, want structural error", err)
	}

	cfg.AllowZeroInDegree = true
	lenient, err := NewEncoder(cfg, 1)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	if _, err := lenient.Encode(g, features(2, cfg.InputSize)); err != nil {
		t.Errorf("allow_zero_in_degree did not tolerate isolated node: %v", err)
	}
}

// Gated fusion must differ from plain summation of the two direction passes.
func TestBiFuseIsNotSummation(t *testing.T) {
	cfg := encoderCfg()
	cfg.DirectionOption = "bi_fuse"
	cfg.NumLayers = 1
	cfg.InputSize = 4
	cfg.HiddenSize = 4
	cfg.OutputSize = 4
	cfg.Weight = false
	cfg.Bias = false
	cfg.Activation = "identity"
	cfg.GCNNorm = "none"

	enc, err := NewEncoder(cfg, 1)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	g := triangle(t)
	x := features(3, 4)

	out, err := enc.Encode(g, x)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	aggF := aggregate(g, x, dirIn, "none", false)
	aggB := aggregate(g, x, dirOut, "none", false)

	differs := false
	for i := 0; i < 3; i++ {
		for k := 0; k < 4; k++ {
			if out.At(i, k) != aggF.At(i, k)+aggB.At(i, k) {
				differs = true
			}
		}
	}

	if !differs {
		t.Error("bi_fuse output equals direction summation")
	}
}

func TestEdgeWeightChangesAggregation(t *testing.T) {
	g := triangle(t)

	gw := models.NewGraph()
	for i := 0; i < 3; i++ {
		if err := gw.AddNode(models.Node{ID: i, Token: "t", TokenIDs: []int{4}}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := gw.AddEdge(models.Edge{Source: i, Target: (i + 1) % 3, Weight: 0.5}); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}

	x := features(3, 4)

	plain := aggregate(g, x, dirIn, "none", true)
	halved := aggregate(gw, x, dirIn, "none", true)

	for i := 0; i < 3; i++ {
		for k := 0; k < 4; k++ {
			if got, want := halved.At(i, k), 0.5*plain.At(i, k); got != want {
				t.Fatalf("weighted aggregate at (%d,%d) = %g, want %g", i, k, got, want)
			}
		}
	}
}

func TestNormRightAverages(t *testing.T) {
	// Two sources feeding one target: right norm divides by in-degree.
	g := models.NewGraph()
	for i := 0; i < 3; i++ {
		if err := g.AddNode(models.Node{ID: i, Token: "t", TokenIDs: []int{4}}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	for _, src := range []int{0, 1} {
		if err := g.AddEdge(models.Edge{Source: src, Target: 2, Weight: 1}); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}

	x := mat.NewDense(3, 1, []float64{2, 4, 0})

	agg := aggregate(g, x, dirIn, "right", false)
	if got := agg.At(2, 0); got != 3 {
		t.Errorf("right-normalized aggregate = %g, want mean 3", got)
	}
}
