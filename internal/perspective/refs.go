package perspective

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Refs lists the GSN leaf IDs a dataset row or sample is attached to.
// On the wire it is either a single string or a list of strings.
type Refs []string

func (r *Refs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = nil
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*r = nil
		} else {
			*r = Refs{s}
		}
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("gsn_perspective: %w", err)
		}
		*r = list
		return nil
	default:
		return fmt.Errorf("gsn_perspective: expected string or list, got %s", data)
	}
}

// MarshalJSON writes a single reference as a plain string.
func (r Refs) MarshalJSON() ([]byte, error) {
	switch len(r) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(r[0])
	default:
		return json.Marshal([]string(r))
	}
}

func (r Refs) Contains(leafID string) bool {
	return slices.Contains(r, leafID)
}
