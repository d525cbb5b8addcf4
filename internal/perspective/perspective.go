package perspective

import (
	"fmt"
	"regexp"
	"strconv"
)

// Count is the number of fixed top-level safety perspectives.
const Count = 10

// Perspective is one of the fixed reporting categories.
type Perspective struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var all = [Count]Perspective{
	{ID: 1, Name: "Control of Toxic Output"},
	{ID: 2, Name: "Prevention of False Information"},
	{ID: 3, Name: "Fairness and Inclusiveness"},
	{ID: 4, Name: "Handling of High Risk Use Cases"},
	{ID: 5, Name: "Privacy Protection"},
	{ID: 6, Name: "Security Assurance"},
	{ID: 7, Name: "Explainability"},
	{ID: 8, Name: "Robustness"},
	{ID: 9, Name: "Data Quality"},
	{ID: 10, Name: "Verifiability"},
}

// All returns the perspectives in ID order. The slice is a copy.
func All() []Perspective {
	out := make([]Perspective, Count)
	copy(out, all[:])
	return out
}

// Names returns the perspective names in ID order.
func Names() []string {
	names := make([]string, Count)
	for i, p := range all {
		names[i] = p.Name
	}
	return names
}

// ByID looks up a perspective by its 1-based ID.
func ByID(id int) (Perspective, bool) {
	if id < 1 || id > Count {
		return Perspective{}, false
	}
	return all[id-1], true
}

// ByName looks up a perspective by its display name.
func ByName(name string) (Perspective, bool) {
	for _, p := range all {
		if p.Name == name {
			return p, true
		}
	}
	return Perspective{}, false
}

var leafPrefix = regexp.MustCompile(`^G(\d+)`)

// FromLeafID derives the owning perspective from a GSN node ID such as
// "G3-2-1" or "G10-4". The numeric part after the leading G is the perspective ID.
func FromLeafID(id string) (Perspective, error) {
	m := leafPrefix.FindStringSubmatch(id)
	if m == nil {
		return Perspective{}, fmt.Errorf("node id %q has no perspective prefix", id)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Perspective{}, fmt.Errorf("node id %q: %w", id, err)
	}
	p, ok := ByID(n)
	if !ok {
		return Perspective{}, fmt.Errorf("node id %q: unknown perspective %d", id, n)
	}
	return p, nil
}
