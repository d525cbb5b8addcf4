package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"gsneval/internal/explore"
	"gsneval/internal/graph"
	"gsneval/internal/logging"
	"gsneval/internal/perspective"
	"gsneval/internal/storage"
)

// DatasetRow is one evaluation sample offered for registration.
// Rows whose gsn_perspective names a leaf make that leaf quantitative.
type DatasetRow struct {
	ID             string           `json:"ID"`
	GSNPerspective perspective.Refs `json:"gsn_perspective"`
	Text           string           `json:"text"`
	Output         string           `json:"output,omitempty"`
	Scorer         string           `json:"scorer,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// Counts tallies the leaves registered for one perspective.
type Counts struct {
	Quantitative int `json:"quantitative"`
	Qualitative  int `json:"qualitative"`
}

// Summary maps perspective IDs to registered leaf counts.
type Summary map[int]Counts

type Config struct {
	Explore explore.Config
}

func DefaultConfig() Config {
	return Config{Explore: explore.DefaultConfig()}
}

// Indexer registers the leaves of goal structures into a LeafRegistry.
type Indexer struct {
	reg    storage.LeafRegistry
	cfg    Config
	logger *slog.Logger
}

// NewIndexer creates a new indexer.
func NewIndexer(reg storage.LeafRegistry, cfg Config) *Indexer {
	return &Indexer{
		reg:    reg,
		cfg:    cfg,
		logger: logging.New("index"),
	}
}

// IndexGraph explores g and registers every leaf it reaches. Leaves already
// registered for the same perspective are kept unless the exploration
// supersedes them, and their dataset rows stay available for matching.
func (i *Indexer) IndexGraph(ctx context.Context, g *graph.Graph, rows []DatasetRow) (Summary, error) {
	reqs, err := explore.Explore(g, i.cfg.Explore)
	if err != nil {
		return nil, fmt.Errorf("explore failed: %w", err)
	}

	byPerspective := make(map[int][]explore.LeafRequirement)
	for _, req := range reqs {
		p, err := perspective.FromLeafID(req.ID)
		if err != nil {
			i.logger.Warn("skipping leaf without perspective", "leaf", req.ID, "error", err)
			continue
		}
		byPerspective[p.ID] = append(byPerspective[p.ID], req)
	}

	pids := make([]int, 0, len(byPerspective))
	for pid := range byPerspective {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	summary := make(Summary, len(pids))
	for _, pid := range pids {
		counts, err := i.indexPerspective(ctx, pid, byPerspective[pid], rows)
		if err != nil {
			return summary, err
		}
		summary[pid] = counts
		i.logger.Info("registered perspective",
			"perspective", pid,
			"quantitative", counts.Quantitative,
			"qualitative", counts.Qualitative)
	}
	return summary, nil
}

type leafEntry struct {
	text       string
	rate       float64
	secondGoal string
}

func (i *Indexer) indexPerspective(ctx context.Context, pid int, reqs []explore.LeafRequirement, rows []DatasetRow) (Counts, error) {
	existing, err := i.reg.LookupByPerspective(ctx, pid)
	if err != nil {
		return Counts{}, fmt.Errorf("load perspective %d: %w", pid, err)
	}

	leaves := make(map[string]leafEntry)
	pool := newRowPool()
	for _, rec := range existing {
		leaves[rec.ID] = leafEntry{text: rec.LeafText, rate: rec.ScoreRate, secondGoal: rec.SecondGoal}
		if rec.Kind != storage.Quantitative {
			continue
		}
		prev, err := DecodeRows(rec.Payload)
		if err != nil {
			i.logger.Warn("dropping undecodable payload", "leaf", rec.ID, "error", err)
			continue
		}
		pool.add(prev...)
	}
	// Later paths to the same leaf override earlier ones.
	for _, req := range reqs {
		leaves[req.ID] = leafEntry{text: req.LeafText, rate: req.ScoreRate, secondGoal: req.SecondGoal}
	}
	pool.add(rows...)

	ids := make([]string, 0, len(leaves))
	for id := range leaves {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var counts Counts
	recs := make([]storage.Record, 0, len(ids))
	for _, id := range ids {
		leaf := leaves[id]
		rec := storage.Record{
			ID:            id,
			Name:          storage.NameFor(id),
			PerspectiveID: pid,
			ScoreRate:     leaf.rate,
			SecondGoal:    leaf.secondGoal,
			LeafText:      leaf.text,
		}

		var payload any
		if matched := pool.matching(id); len(matched) > 0 {
			rec.Kind = storage.Quantitative
			payload = matched
			counts.Quantitative++
		} else {
			rec.Kind = storage.Qualitative
			payload = []string{leaf.text}
			counts.Qualitative++
		}
		if rec.Payload, err = json.Marshal(payload); err != nil {
			return Counts{}, fmt.Errorf("encode payload of %s: %w", id, err)
		}
		recs = append(recs, rec)
	}

	if err := i.reg.ReplacePerspective(ctx, pid, recs); err != nil {
		return Counts{}, fmt.Errorf("replace perspective %d: %w", pid, err)
	}
	return counts, nil
}

// GSNData returns the registered leaves of one perspective.
func (i *Indexer) GSNData(ctx context.Context, perspectiveID int) ([]storage.Record, error) {
	if _, ok := perspective.ByID(perspectiveID); !ok {
		return nil, fmt.Errorf("unknown perspective %d", perspectiveID)
	}
	return i.reg.LookupByPerspective(ctx, perspectiveID)
}

// DecodeRows parses a quantitative payload.
func DecodeRows(payload []byte) ([]DatasetRow, error) {
	var rows []DatasetRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadRows reads a JSON array of dataset rows.
func LoadRows(r io.Reader) ([]DatasetRow, error) {
	var rows []DatasetRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return rows, nil
}

// rowPool deduplicates rows by ID; the last row added for an ID wins but
// keeps the position of the first. Rows without an ID are never merged.
type rowPool struct {
	rows []DatasetRow
	pos  map[string]int
}

func newRowPool() *rowPool {
	return &rowPool{pos: make(map[string]int)}
}

func (p *rowPool) add(rows ...DatasetRow) {
	for _, row := range rows {
		if row.ID == "" {
			p.rows = append(p.rows, row)
			continue
		}
		if at, ok := p.pos[row.ID]; ok {
			p.rows[at] = row
			continue
		}
		p.pos[row.ID] = len(p.rows)
		p.rows = append(p.rows, row)
	}
}

func (p *rowPool) matching(leafID string) []DatasetRow {
	var out []DatasetRow
	for _, row := range p.rows {
		if row.GSNPerspective.Contains(leafID) {
			out = append(out, row)
		}
	}
	return out
}
