package scoring

import (
	"errors"
	"fmt"
)

// Non-fatal scoring conditions. They are logged and collected as report
// warnings; the affected contribution scores 0 or, for normalization, 1.0.
var (
	ErrRegistryLookup          = errors.New("registry lookup failed")
	ErrNormalizationDegenerate = errors.New("normalization denominator is zero")
	ErrMissingModality         = errors.New("missing modality data")
)

// RegistryLookupError reports a leaf that could not be resolved in the registry.
type RegistryLookupError struct {
	LeafID string
	Err    error
}

func (e *RegistryLookupError) Error() string {
	return fmt.Sprintf("%s: leaf %q: %v", ErrRegistryLookup, e.LeafID, e.Err)
}

func (e *RegistryLookupError) Unwrap() []error {
	return []error{ErrRegistryLookup, e.Err}
}

// warnings collects non-fatal conditions of one aggregation.
type warnings struct {
	errs []error
}

func (w *warnings) add(perspectiveName string, err error) {
	if w == nil {
		return
	}
	w.errs = append(w.errs, fmt.Errorf("perspective %s: %w", perspectiveName, err))
}

func (w *warnings) strings() []string {
	if w == nil || len(w.errs) == 0 {
		return nil
	}
	out := make([]string, len(w.errs))
	for i, err := range w.errs {
		out[i] = err.Error()
	}
	return out
}
