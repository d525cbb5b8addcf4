package explore

import (
	"fmt"
	"log/slog"

	"gsneval/internal/graph"
	"gsneval/internal/logging"
)

// LeafRequirement is one leaf reached along one path, with the weight that
// path propagated to it.
type LeafRequirement struct {
	ID         string  `json:"id"`
	LeafText   string  `json:"leaf"`
	ScoreRate  float64 `json:"score_rate"`
	SecondGoal string  `json:"second_goal"`
}

// Config controls how weights are propagated.
type Config struct {
	Reset  ResetRule
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Reset: PatternReset(),
	}
}

// Explore walks g depth-first from its top goal and returns one requirement
// per leaf path, in visitation order. A leaf reachable through N branches of
// a choice node appears N times. The graph is not modified.
func Explore(g *graph.Graph, cfg Config) ([]LeafRequirement, error) {
	if g == nil {
		return nil, &graph.GraphError{Kind: graph.ErrMissingTop, Msg: "nil graph"}
	}
	if cfg.Reset == nil {
		cfg.Reset = PatternReset()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New("explore")
	}

	top, err := g.Top()
	if err != nil {
		return nil, err
	}
	if len(top.SupportedBy) != 1 {
		return nil, &graph.GraphError{
			NodeID: top.ID,
			Kind:   graph.ErrTopArity,
			Msg:    fmt.Sprintf("TopGoal must have exactly one child, has %d", len(top.SupportedBy)),
		}
	}

	w := &walker{
		g:      g,
		cfg:    cfg,
		onPath: map[string]bool{top.ID: true},
	}
	if err := w.visit(top.ID, top.SupportedBy[0], 1, 1.0, ""); err != nil {
		return nil, err
	}

	cfg.Logger.Debug("exploration complete", "top", top.ID, "leaves", len(w.out))
	return w.out, nil
}

type walker struct {
	g   *graph.Graph
	cfg Config
	out []LeafRequirement
	// onPath holds the IDs on the current root-to-node path only, so shared
	// subtrees are revisited while true cycles are rejected.
	onPath map[string]bool
}

func (w *walker) visit(parent, id string, depth int, weight float64, secondGoal string) error {
	n, ok := w.g.Node(id)
	if !ok {
		return &graph.GraphError{
			NodeID: parent,
			Kind:   graph.ErrDanglingReference,
			Msg:    fmt.Sprintf("supportedBy references unknown node %q", id),
		}
	}
	if w.onPath[id] {
		return &graph.GraphError{
			NodeID: id,
			Kind:   graph.ErrCycle,
			Msg:    fmt.Sprintf("reached again from %q", parent),
		}
	}
	w.onPath[id] = true
	defer delete(w.onPath, id)

	w.cfg.Logger.Debug("visit", "node", id, "kind", n.Kind.String(), "depth", depth, "score_rate", weight)

	switch n.Kind {
	case graph.KindLeaf:
		if n.GoalType == graph.GoalTypeSecond {
			secondGoal = n.Definition
		}
		w.out = append(w.out, LeafRequirement{
			ID:         id,
			LeafText:   n.Question,
			ScoreRate:  weight,
			SecondGoal: secondGoal,
		})
		return nil
	case graph.KindTopGoal:
		return &graph.GraphError{
			NodeID: id,
			Kind:   graph.ErrCycle,
			Msg:    fmt.Sprintf("top goal referenced from %q", parent),
		}
	case graph.KindSecondGoal:
		secondGoal = n.Definition
	}

	return w.distribute(n, depth, weight, secondGoal)
}

func (w *walker) distribute(n *graph.Node, depth int, weight float64, secondGoal string) error {
	if n.IsChoice() {
		for _, child := range n.SupportedBy {
			if err := w.visit(n.ID, child, depth+1, weight, secondGoal); err != nil {
				return err
			}
		}
		return nil
	}

	if len(n.ScoreRate) != len(n.SupportedBy) {
		return &graph.GraphError{
			NodeID: n.ID,
			Kind:   graph.ErrScoreRateMismatch,
			Msg:    fmt.Sprintf("%d score rates for %d supporting nodes", len(n.ScoreRate), len(n.SupportedBy)),
		}
	}

	base := weight
	if w.cfg.Reset.Resets(n, depth) {
		base = 1.0
	}
	for i, child := range n.SupportedBy {
		if err := w.visit(n.ID, child, depth+1, n.ScoreRate[i]*base, secondGoal); err != nil {
			return err
		}
	}
	return nil
}

// TotalScoreRate sums the score rates of reqs. Choice duplication can push
// the total above 1.0.
func TotalScoreRate(reqs []LeafRequirement) float64 {
	var total float64
	for _, r := range reqs {
		total += r.ScoreRate
	}
	return total
}
