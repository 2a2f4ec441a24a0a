package embedding

import (
	"testing"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/models"
)

func initCfg(strategy string) config.InitArgs {
	return config.InitArgs{
		InputSize:       8,
		HiddenSize:      8,
		EmbStrategy:     strategy,
		SingleTokenItem: true,
		NumRNNLayers:    1,
	}
}

func tokenGraph(t *testing.T, ids ...int) *models.Graph {
	t.Helper()

	g := models.NewGraph()
	for i, id := range ids {
		if err := g.AddNode(models.Node{ID: i, Token: "t", TokenIDs: []int{id}}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}

	return g
}

func TestTableVectors(t *testing.T) {
	table := NewRandomTable(10, 8, 1, false)

	vecs, err := table.Vectors([]int{4, 5})
	if err != nil {
		t.Fatalf("Vectors: %v", err)
	}

	if len(vecs) != 2 || len(vecs[0]) != 8 {
		t.Fatalf("got %dx%d, want 2x8", len(vecs), len(vecs[0]))
	}

	if _, err := table.Vectors([]int{10}); !models.IsInvalidInput(err) {
		t.Errorf("out-of-range id: got %v, want invalid input", err)
	}

	// Padding embeds to zero.
	pad, err := table.Vectors([]int{models.PadID})
	if err != nil {
		t.Fatalf("Vectors(pad): %v", err)
	}
	for _, v := range pad[0] {
		if v != 0 {
			t.Fatal("padding row is not zero")
		}
	}
}

func TestNewTableRejectsRaggedRows(t *testing.T) {
	_, err := NewTable([][]float64{{1, 2}, {1}}, false)
	if !models.IsConfiguration(err) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestInitializerDimensionMismatch(t *testing.T) {
	table := NewRandomTable(10, 4, 1, false)

	_, err := NewInitializer(table, initCfg("w2v"), 1)
	if !models.IsConfiguration(err) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestFeaturesShape(t *testing.T) {
	for _, strategy := range []string{"w2v", "w2v_bilstm", "w2v_bigru"} {
		t.Run(strategy, func(t *testing.T) {
			table := NewRandomTable(10, 8, 1, false)

			init, err := NewInitializer(table, initCfg(strategy), 1)
			if err != nil {
				t.Fatalf("NewInitializer: %v", err)
			}

			feats, err := init.Features(tokenGraph(t, 4, 5, 6), 10)
			if err != nil {
				t.Fatalf("Features: %v", err)
			}

			r, c := feats.Dims()
			if r != 3 || c != 8 {
				t.Errorf("features are %dx%d, want 3x8", r, c)
			}
		})
	}
}

func TestFeaturesClampsExtendedIDs(t *testing.T) {
	table := NewRandomTable(10, 8, 1, false)

	init, err := NewInitializer(table, initCfg("w2v"), 1)
	if err != nil {
		t.Fatalf("NewInitializer: %v", err)
	}

	// Token id 12 is a copy-mechanism extension beyond the base size of 10;
	// it must embed as <unk> rather than fail.
	if _, err := init.Features(tokenGraph(t, 12), 10); err != nil {
		t.Errorf("extended id not clamped: %v", err)
	}
}

func TestFeaturesRejectsUnmappedNode(t *testing.T) {
	table := NewRandomTable(10, 8, 1, false)

	init, err := NewInitializer(table, initCfg("w2v"), 1)
	if err != nil {
		t.Fatalf("NewInitializer: %v", err)
	}

	g := models.NewGraph()
	if err := g.AddNode(models.Node{ID: 0, Token: "x"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	if _, err := init.Features(g, 10); !models.IsInvalidInput(err) {
		t.Errorf("got %v, want invalid input", err)
	}
}

func TestSubTokenAveraging(t *testing.T) {
	table, err := NewTable([][]float64{
		{0, 0}, {0, 0}, {0, 0}, {0, 0}, // reserved rows
		{2, 4},
		{4, 8},
	}, false)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	cfg := config.InitArgs{InputSize: 2, HiddenSize: 2, EmbStrategy: "w2v"}
	init, err := NewInitializer(table, cfg, 1)
	if err != nil {
		t.Fatalf("NewInitializer: %v", err)
	}

	g := models.NewGraph()
	if err := g.AddNode(models.Node{ID: 0, Token: "xy", TokenIDs: []int{4, 5}}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	feats, err := init.Features(g, table.Size())
	if err != nil {
		t.Fatalf("Features: %v", err)
	}

	if got := feats.At(0, 0); got != 3 {
		t.Errorf("averaged feature = %g, want 3", got)
	}
	if got := feats.At(0, 1); got != 6 {
		t.Errorf("averaged feature = %g, want 6", got)
	}
}

func TestContextualProviderMixedIn(t *testing.T) {
	base := NewRandomTable(10, 8, 1, true)
	ctxProv := NewRandomTable(10, 8, 2, true)

	init, err := NewInitializer(base, initCfg("w2v"), 1, WithContextualProvider(ctxProv))
	if err != nil {
		t.Fatalf("NewInitializer: %v", err)
	}

	if !base.Frozen() || !ctxProv.Frozen() {
		t.Fatal("frozen flags not carried")
	}

	plain, err := NewInitializer(base, initCfg("w2v"), 1)
	if err != nil {
		t.Fatalf("NewInitializer: %v", err)
	}

	g := tokenGraph(t, 4)
	withCtx, err := init.Features(g, 10)
	if err != nil {
		t.Fatalf("Features: %v", err)
	}

	without, err := plain.Features(g, 10)
	if err != nil {
		t.Fatalf("Features: %v", err)
	}

	if withCtx.At(0, 0) == without.At(0, 0) {
		t.Error("contextual provider had no effect on features")
	}
}
