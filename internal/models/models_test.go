package models

import (
	"testing"
)

func TestGraphInvariants(t *testing.T) {
	g := NewGraph()

	if err := g.AddNode(Node{ID: 0, Token: "the"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	if err := g.AddNode(Node{ID: 1, Token: "cat"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	if err := g.AddNode(Node{ID: 0, Token: "dup"}); !IsInvalidInput(err) {
		t.Errorf("duplicate node id: got %v, want invalid input", err)
	}

	if err := g.AddEdge(Edge{Source: 0, Target: 1, Label: "det", Weight: 1}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	if err := g.AddEdge(Edge{Source: 0, Target: 99}); !IsInvalidInput(err) {
		t.Errorf("dangling edge target: got %v, want invalid input", err)
	}

	if err := g.AddEdge(Edge{Source: 99, Target: 1}); !IsInvalidInput(err) {
		t.Errorf("dangling edge source: got %v, want invalid input", err)
	}

	if got := g.NodeCount(); got != 2 {
		t.Errorf("NodeCount = %d, want 2", got)
	}

	if got := g.EdgeCount(); got != 1 {
		t.Errorf("EdgeCount = %d, want 1", got)
	}

	if !g.HasEdge(0, 1) {
		t.Error("HasEdge(0,1) = false, want true")
	}

	if g.HasEdge(1, 0) {
		t.Error("HasEdge(1,0) = true, want false (edges are directed)")
	}

	if got := g.OutDegree(0); got != 1 {
		t.Errorf("OutDegree(0) = %d, want 1", got)
	}

	if got := g.InDegree(1); got != 1 {
		t.Errorf("InDegree(1) = %d, want 1", got)
	}
}

func TestGraphCyclesPermitted(t *testing.T) {
	g := NewGraph()
	for i := range 2 {
		if err := g.AddNode(Node{ID: i}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}

	if err := g.AddEdge(Edge{Source: 0, Target: 1}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	if err := g.AddEdge(Edge{Source: 1, Target: 0}); err != nil {
		t.Errorf("cycle rejected: %v", err)
	}
}

func TestGraphHasTokenMapping(t *testing.T) {
	g := NewGraph()
	if g.HasTokenMapping() {
		t.Error("empty graph reports token mapping")
	}

	g.AddNode(Node{ID: 0, Token: "a", TokenIDs: []int{4}}) //nolint:errcheck
	if !g.HasTokenMapping() {
		t.Error("mapped node not detected")
	}

	g.AddNode(Node{ID: 1, Token: "b"}) //nolint:errcheck
	if g.HasTokenMapping() {
		t.Error("unmapped node not detected")
	}
}

func TestVocabularyLookup(t *testing.T) {
	v := NewVocabulary([]string{"cat", "sat", "cat", ""})

	if got := v.Size(); got != 6 {
		t.Fatalf("Size = %d, want 6 (4 reserved + 2 unique)", got)
	}

	if got := v.Lookup("cat"); got != 4 {
		t.Errorf("Lookup(cat) = %d, want 4", got)
	}

	if got := v.Lookup("dog"); got != UnkID {
		t.Errorf("Lookup(dog) = %d, want UnkID", got)
	}

	tok, err := v.Token(5)
	if err != nil || tok != "sat" {
		t.Errorf("Token(5) = %q, %v; want sat", tok, err)
	}

	if _, err := v.Token(100); !IsInvalidInput(err) {
		t.Errorf("out-of-range token id: got %v, want invalid input", err)
	}
}

func TestExtendedVocab(t *testing.T) {
	base := NewVocabulary([]string{"cat"})
	ext := NewExtendedVocab(base)

	if got := ext.Extend("cat"); got != base.Lookup("cat") {
		t.Errorf("known token extended to %d, want base id %d", got, base.Lookup("cat"))
	}

	first := ext.Extend("zyzzyva")
	if first != base.Size() {
		t.Errorf("first OOV id = %d, want %d", first, base.Size())
	}

	if again := ext.Extend("zyzzyva"); again != first {
		t.Errorf("repeated OOV got new id %d, want %d", again, first)
	}

	if got := ext.Size(); got != base.Size()+1 {
		t.Errorf("Size = %d, want %d", got, base.Size()+1)
	}

	tok, err := ext.Token(first)
	if err != nil || tok != "zyzzyva" {
		t.Errorf("Token(%d) = %q, %v", first, tok, err)
	}
}

func TestExampleValidate(t *testing.T) {
	tests := []struct {
		name    string
		ex      Example
		wantErr bool
	}{
		{name: "ok single sentence", ex: Example{Tokens: []string{"the", "cat"}}},
		{name: "ok multi sentence", ex: Example{Tokens: []string{"a", "b", "c"}, SentenceLens: []int{2, 1}}},
		{name: "empty", ex: Example{}, wantErr: true},
		{name: "empty token", ex: Example{Tokens: []string{"a", ""}}, wantErr: true},
		{name: "bad lens", ex: Example{Tokens: []string{"a", "b"}, SentenceLens: []int{3}}, wantErr: true},
		{name: "zero len sentence", ex: Example{Tokens: []string{"a"}, SentenceLens: []int{0, 1}}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ex.Validate()
			if tc.wantErr && !IsInvalidInput(err) {
				t.Errorf("got %v, want invalid input", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	if !IsConfiguration(ConfigErrorf("x")) {
		t.Error("ConfigErrorf not matched by IsConfiguration")
	}
	if !IsUnavailable(UnavailableErrorf("x")) {
		t.Error("UnavailableErrorf not matched by IsUnavailable")
	}
	if !IsStructural(StructuralErrorf("x")) {
		t.Error("StructuralErrorf not matched by IsStructural")
	}
	if IsConfiguration(InvalidInputf("x")) {
		t.Error("taxonomy categories overlap")
	}
}
