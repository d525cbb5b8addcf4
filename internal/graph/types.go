package graph

// Kind is the closed set of goal-structure node variants.
type Kind int

const (
	KindInterior Kind = iota
	KindTopGoal
	KindSecondGoal
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindTopGoal:
		return "top_goal"
	case KindSecondGoal:
		return "second_goal"
	case KindLeaf:
		return "leaf"
	default:
		return "interior"
	}
}

// Goal types as they appear in the goalType field of a document.
const (
	GoalTypeTop    = "TopGoal"
	GoalTypeSecond = "SecondGoal"
)

// Node is a parsed goal-structure node. Its Kind is fixed at parse time.
type Node struct {
	ID          string
	Kind        Kind
	GoalType    string
	SupportedBy []string
	// ScoreRate distributes weight across SupportedBy. It is only meaningful
	// when HasScoreRate is set; a node without one is a choice node.
	ScoreRate    []float64
	HasScoreRate bool
	Definition   string
	Question     string
}

// IsChoice reports whether the node passes weight through unchanged.
func (n *Node) IsChoice() bool {
	return !n.HasScoreRate
}

// rawNode mirrors one entry of the external document format.
type rawNode struct {
	GoalType    string     `yaml:"goalType"`
	SupportedBy stringList `yaml:"supportedBy"`
	ScoreRate   *[]float64 `yaml:"scoreRate"`
	Undeveloped bool       `yaml:"undeveloped"`
	Question    string     `yaml:"question"`
	Definition  string     `yaml:"definition"`
}

func (r rawNode) toNode(id string) *Node {
	n := &Node{
		ID:          id,
		GoalType:    r.GoalType,
		SupportedBy: []string(r.SupportedBy),
		Definition:  r.Definition,
		Question:    r.Question,
	}
	if r.ScoreRate != nil {
		n.ScoreRate = *r.ScoreRate
		n.HasScoreRate = true
	}

	switch {
	case r.GoalType == GoalTypeTop:
		n.Kind = KindTopGoal
	case r.Undeveloped:
		n.Kind = KindLeaf
	case r.GoalType == GoalTypeSecond:
		n.Kind = KindSecondGoal
	default:
		n.Kind = KindInterior
	}
	return n
}
