package scoring

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gsneval/internal/perspective"
	"gsneval/internal/storage"

	"github.com/go-playground/validator/v10"
)

// Answer is a qualitative self-assessment for one question.
type Answer string

const (
	Implemented          Answer = "implemented"
	PartiallyImplemented Answer = "partially_implemented"
	NotImplemented       Answer = "not_implemented"
	NotApplicable        Answer = "not_applicable"
)

// Value maps an answer to its score. Not-applicable answers are excluded and
// report ok=false; blank and unrecognized answers count as 0.
func (a Answer) Value() (v float64, ok bool) {
	switch a {
	case Implemented:
		return 1, true
	case PartiallyImplemented:
		return 0.5, true
	case NotApplicable:
		return 0, false
	default:
		return 0, true
	}
}

// Label is the display form of an answer; unrecognized answers have none.
func (a Answer) Label() string {
	switch a {
	case Implemented:
		return "Implemented"
	case PartiallyImplemented:
		return "Partially implemented"
	case NotImplemented:
		return "Not implemented"
	case NotApplicable:
		return "Not applicable"
	default:
		return ""
	}
}

// QualitativeAnswer is one answered question. LeafID is set for questions
// generated from a goal-structure leaf and may carry the registry prefix.
type QualitativeAnswer struct {
	LeafID      string         `json:"leaf_id,omitempty"`
	Perspective string         `json:"perspective" validate:"required,perspective"`
	Text        string         `json:"text,omitempty"`
	Answer      Answer         `json:"answer"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Leaf returns the bare leaf ID of the answer.
func (a QualitativeAnswer) Leaf() string {
	return storage.LeafIDFromName(a.LeafID)
}

// WeightMapping assigns a percentage of a perspective's final score to one
// modality. The first mapping of a perspective is the quantitative share,
// the second the qualitative share.
type WeightMapping struct {
	PerspectiveID int     `json:"perspective_id" validate:"min=1,max=10"`
	Percentage    float64 `json:"percentage" validate:"gte=0,lte=100"`
}

// Run holds the raw results of one evaluation run.
type Run struct {
	ID string `json:"id,omitempty"`
	// Quantitative maps perspective names to serialized sample batches.
	Quantitative    map[string]json.RawMessage `json:"quantitative,omitempty"`
	Qualitative     []QualitativeAnswer        `json:"qualitative,omitempty" validate:"dive"`
	GSNPerspectives []int                      `json:"gsn_perspectives,omitempty" validate:"dive,min=1,max=10"`
	Weights         []WeightMapping            `json:"weights,omitempty" validate:"dive"`
}

var runValidate *validator.Validate

func init() {
	runValidate = validator.New()
	_ = runValidate.RegisterValidation("perspective", validatePerspective)
}

func validatePerspective(fl validator.FieldLevel) bool {
	_, ok := perspective.ByName(fl.Field().String())
	return ok
}

// Validate checks field constraints and that no perspective is assigned more
// than 100 percent.
func (r *Run) Validate() error {
	if err := runValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	total := make(map[int]float64)
	for _, w := range r.Weights {
		total[w.PerspectiveID] += w.Percentage
		if total[w.PerspectiveID] > 100 {
			return fmt.Errorf("invalid run: weights of perspective %d exceed 100%%", w.PerspectiveID)
		}
	}
	for name := range r.Quantitative {
		if _, ok := perspective.ByName(name); !ok {
			return fmt.Errorf("invalid run: unknown perspective %q in quantitative results", name)
		}
	}
	return nil
}

// UsesGSN reports whether perspective id is scored from its goal structure.
func (r *Run) UsesGSN(id int) bool {
	return slices.Contains(r.GSNPerspectives, id)
}

// DecodeRun reads a run from JSON.
func DecodeRun(rd io.Reader) (*Run, error) {
	var run Run
	if err := json.NewDecoder(rd).Decode(&run); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return &run, nil
}
