package explore

import (
	"fmt"
	"regexp"

	"gsneval/internal/graph"
)

// ResetRule decides whether a weighted node distributes its score rates
// against the base weight 1.0 instead of the weight it inherited.
type ResetRule interface {
	Resets(n *graph.Node, depth int) bool
}

// Reset rule names accepted by ParseResetRule.
const (
	RulePattern = "pattern"
	RuleDepth   = "depth"
	RuleNone    = "none"
)

type patternReset struct {
	re *regexp.Regexp
}

// strategyFirst matches the first strategy node directly below a top goal,
// named S<n>-1 in the reference documents.
var strategyFirst = regexp.MustCompile(`^S\d+-1$`)

// PatternReset resets compounding at nodes whose ID has the form S<n>-1.
func PatternReset() ResetRule {
	return patternReset{re: strategyFirst}
}

func (r patternReset) Resets(n *graph.Node, _ int) bool {
	return r.re.MatchString(n.ID)
}

type depthReset struct {
	depth int
}

// DepthReset resets compounding at nodes the given number of edges below the top goal.
func DepthReset(depth int) ResetRule {
	return depthReset{depth: depth}
}

func (r depthReset) Resets(_ *graph.Node, depth int) bool {
	return depth == r.depth
}

type noReset struct{}

// NoReset always compounds.
func NoReset() ResetRule {
	return noReset{}
}

func (noReset) Resets(*graph.Node, int) bool { return false }

// ParseResetRule maps a config value to a rule. depth is only used by "depth".
func ParseResetRule(name string, depth int) (ResetRule, error) {
	switch name {
	case "", RulePattern:
		return PatternReset(), nil
	case RuleDepth:
		if depth < 1 {
			return nil, fmt.Errorf("reset depth must be >= 1, got %d", depth)
		}
		return DepthReset(depth), nil
	case RuleNone:
		return NoReset(), nil
	default:
		return nil, fmt.Errorf("unknown reset rule %q", name)
	}
}
