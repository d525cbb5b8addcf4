package graph

import (
	"fmt"
	"sort"
)

// Graph is a goal structure keyed by node ID.
type Graph struct {
	Nodes map[string]*Node
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
	}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n *Node) {
	if n == nil {
		return
	}
	g.Nodes[n.ID] = n
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// Top locates the unique top goal.
func (g *Graph) Top() (*Node, error) {
	var tops []string
	for id, n := range g.Nodes {
		if n.Kind == KindTopGoal {
			tops = append(tops, id)
		}
	}
	switch len(tops) {
	case 0:
		return nil, &GraphError{Kind: ErrMissingTop, Msg: "no TopGoal node"}
	case 1:
		return g.Nodes[tops[0]], nil
	default:
		sort.Strings(tops)
		return nil, &GraphError{
			NodeID: tops[1],
			Kind:   ErrMultipleTop,
			Msg:    fmt.Sprintf("%d TopGoal nodes: %v", len(tops), tops),
		}
	}
}

// Children returns the nodes supporting id, in document order.
// Unknown references are skipped; Validate reports them.
func (g *Graph) Children(id string) []*Node {
	n, ok := g.Nodes[id]
	if !ok {
		return nil
	}
	var out []*Node
	for _, child := range n.SupportedBy {
		if c, ok := g.Nodes[child]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Leaves returns every leaf node sorted by ID, reachable or not.
func (g *Graph) Leaves() []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Kind == KindLeaf {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Validate checks the structural invariants of a goal structure: one top goal
// with exactly one child, closed references, and score rates aligned with
// their supporting nodes. Cycles are detected during exploration.
func (g *Graph) Validate() error {
	top, err := g.Top()
	if err != nil {
		return err
	}
	if len(top.SupportedBy) != 1 {
		return &GraphError{
			NodeID: top.ID,
			Kind:   ErrTopArity,
			Msg:    fmt.Sprintf("TopGoal must have exactly one child, has %d", len(top.SupportedBy)),
		}
	}

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := g.checkNode(g.Nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) checkNode(n *Node) error {
	if n.Kind == KindLeaf && len(n.SupportedBy) > 0 {
		return &GraphError{
			NodeID: n.ID,
			Kind:   ErrLeafHasChildren,
			Msg:    fmt.Sprintf("undeveloped node supported by %v", n.SupportedBy),
		}
	}
	if n.HasScoreRate && len(n.ScoreRate) != len(n.SupportedBy) {
		return &GraphError{
			NodeID: n.ID,
			Kind:   ErrScoreRateMismatch,
			Msg:    fmt.Sprintf("%d score rates for %d supporting nodes", len(n.ScoreRate), len(n.SupportedBy)),
		}
	}
	for _, child := range n.SupportedBy {
		if _, ok := g.Nodes[child]; !ok {
			return &GraphError{
				NodeID: n.ID,
				Kind:   ErrDanglingReference,
				Msg:    fmt.Sprintf("supportedBy references unknown node %q", child),
			}
		}
	}
	return nil
}
