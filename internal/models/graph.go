// Package models defines data types shared across the graph-to-sequence pipeline.
package models

// Node type tags. Token nodes are the default; the others are introduced by
// construction strategies that add non-token vertices.
const (
	NodeTypeToken = iota
	NodeTypeRelation
	NodeTypeConstituent
)

// Node is a vertex in a text graph.
type Node struct {
	ID       int
	Token    string
	TokenIDs []int // vocabulary ids; more than one when sub-word units are attached
	Type     int   // node type tag, 0 is the default type
}

// Edge is a directed, labeled connection between two nodes.
type Edge struct {
	Source int
	Target int
	Label  string
	Weight float64
}

// Graph is built fresh per input example and consumed read-only by the
// initializer and encoder. Node ids are unique; edge endpoints must reference
// existing nodes. Cycles are permitted.
type Graph struct {
	nodes []Node
	index map[int]int // node id -> position in nodes
	edges []Edge
	out   map[int][]int // node id -> edge positions with that source
	in    map[int][]int // node id -> edge positions with that target
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		index: make(map[int]int),
		out:   make(map[int][]int),
		in:    make(map[int][]int),
	}
}

// AddNode inserts a node. Duplicate ids are rejected.
func (g *Graph) AddNode(n Node) error {
	if _, ok := g.index[n.ID]; ok {
		return InvalidInputf("duplicate node id %d", n.ID)
	}

	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)

	return nil
}

// AddEdge inserts a directed edge. Both endpoints must already exist.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.index[e.Source]; !ok {
		return InvalidInputf("edge source %d references unknown node", e.Source)
	}

	if _, ok := g.index[e.Target]; !ok {
		return InvalidInputf("edge target %d references unknown node", e.Target)
	}

	pos := len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.Source] = append(g.out[e.Source], pos)
	g.in[e.Target] = append(g.in[e.Target], pos)

	return nil
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns the nodes in insertion order. The slice is shared; callers
// must treat it as read-only.
func (g *Graph) Nodes() []Node { return g.nodes }

// Edges returns the edges in insertion order. Read-only for callers.
func (g *Graph) Edges() []Edge { return g.edges }

// Node returns the node with the given id.
func (g *Graph) Node(id int) (Node, bool) {
	pos, ok := g.index[id]
	if !ok {
		return Node{}, false
	}

	return g.nodes[pos], true
}

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id int) bool {
	_, ok := g.index[id]
	return ok
}

// OutEdges returns the edges leaving the given node.
func (g *Graph) OutEdges(id int) []Edge {
	return g.edgesAt(g.out[id])
}

// InEdges returns the edges entering the given node.
func (g *Graph) InEdges(id int) []Edge {
	return g.edgesAt(g.in[id])
}

// OutDegree returns the number of edges leaving the given node.
func (g *Graph) OutDegree(id int) int { return len(g.out[id]) }

// InDegree returns the number of edges entering the given node.
func (g *Graph) InDegree(id int) int { return len(g.in[id]) }

// HasEdge reports whether a directed edge source->target exists.
func (g *Graph) HasEdge(source, target int) bool {
	for _, pos := range g.out[source] {
		if g.edges[pos].Target == target {
			return true
		}
	}

	return false
}

// HasTokenMapping reports whether every node carries at least one vocabulary
// id. The copy mechanism requires this to project attention mass back onto
// the output vocabulary.
func (g *Graph) HasTokenMapping() bool {
	for _, n := range g.nodes {
		if len(n.TokenIDs) == 0 {
			return false
		}
	}

	return len(g.nodes) > 0
}

func (g *Graph) edgesAt(positions []int) []Edge {
	if len(positions) == 0 {
		return nil
	}

	result := make([]Edge, len(positions))
	for i, pos := range positions {
		result[i] = g.edges[pos]
	}

	return result
}
