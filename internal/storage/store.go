package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when no leaf is registered under the requested key.
var ErrNotFound = errors.New("leaf not registered")

// NamePrefix marks registry entries that belong to a goal structure.
const NamePrefix = "GSN_"

// DatasetKind says how a leaf is evaluated.
type DatasetKind string

const (
	Quantitative DatasetKind = "quantitative"
	Qualitative  DatasetKind = "qualitative"
)

// Record is a registered GSN leaf and the dataset attached to it.
type Record struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Kind          DatasetKind `json:"kind"`
	PerspectiveID int         `json:"perspective_id"`
	ScoreRate     float64     `json:"score_rate"`
	SecondGoal    string      `json:"second_goal"`
	LeafText      string      `json:"leaf_text"`
	// Payload is the JSON-encoded dataset: sample rows for quantitative
	// leaves, the question list for qualitative ones.
	Payload []byte `json:"payload,omitempty"`
}

// NameFor returns the registry name of a leaf ID.
func NameFor(leafID string) string {
	return NamePrefix + leafID
}

// LeafIDFromName strips the registry prefix. Names without it are returned unchanged.
func LeafIDFromName(name string) string {
	return strings.TrimPrefix(name, NamePrefix)
}

// LeafRegistry persists GSN leaves with their score rates and datasets.
type LeafRegistry interface {
	// Register upserts a record keyed by its name.
	Register(ctx context.Context, rec Record) error

	// Lookup returns the record of a leaf ID, or ErrNotFound.
	Lookup(ctx context.Context, leafID string) (Record, error)

	// LookupByPerspective returns the records of one perspective ordered by ID.
	// An empty result is not an error.
	LookupByPerspective(ctx context.Context, perspectiveID int) ([]Record, error)

	// GetByName returns the record registered under name, if any.
	GetByName(ctx context.Context, name string) (Record, bool, error)

	// ReplacePerspective atomically swaps all records of a perspective for recs.
	ReplacePerspective(ctx context.Context, perspectiveID int, recs []Record) error

	Close() error
}

// normalize fills the derived name of rec.
func normalize(rec Record) Record {
	if rec.Name == "" {
		rec.Name = NameFor(rec.ID)
	}
	if rec.ID == "" {
		rec.ID = LeafIDFromName(rec.Name)
	}
	return rec
}
