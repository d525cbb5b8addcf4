package graph

import (
	"errors"
	"fmt"
)

// ErrGraph is the sentinel wrapped by every GraphError.
var ErrGraph = errors.New("graph error")

// ErrorKind classifies a malformed goal structure.
type ErrorKind string

const (
	ErrMalformed         ErrorKind = "malformed"
	ErrMissingTop        ErrorKind = "missing_top"
	ErrMultipleTop       ErrorKind = "multiple_top"
	ErrTopArity          ErrorKind = "top_arity"
	ErrDanglingReference ErrorKind = "dangling_reference"
	ErrScoreRateMismatch ErrorKind = "score_rate_mismatch"
	ErrLeafHasChildren   ErrorKind = "leaf_has_children"
	ErrCycle             ErrorKind = "cycle"
)

// GraphError reports a malformed, cyclic or dangling goal structure.
// NodeID names the offending node when one can be identified.
type GraphError struct {
	NodeID string
	Kind   ErrorKind
	Msg    string
	Err    error
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	s := fmt.Sprintf("%s: %s", ErrGraph.Error(), e.Kind)
	if e.NodeID != "" {
		s += fmt.Sprintf(" at node %q", e.NodeID)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *GraphError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGraph, e.Err}
	}
	return []error{ErrGraph}
}

// AsGraphError extracts a *GraphError from err's chain.
func AsGraphError(err error) (*GraphError, bool) {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
