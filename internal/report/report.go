package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"gsneval/internal/explore"
	"gsneval/internal/storage"
)

// PerspectiveScoreRecord is the scoring outcome of one perspective.
type PerspectiveScoreRecord struct {
	PerspectiveID       int     `json:"perspective_id"`
	Perspective         string  `json:"perspective"`
	QuantitativeScore   float64 `json:"quantitative_score"`
	QualitativeScore    float64 `json:"qualitative_score"`
	QuantitativeWeight  float64 `json:"quantitative_weight,omitempty"`
	QualitativeWeight   float64 `json:"qualitative_weight,omitempty"`
	NormalizationFactor float64 `json:"normalization_factor,omitempty"`
	FinalScore          float64 `json:"final_score"`
	GSN                 bool    `json:"gsn"`
}

// Report is the outcome of aggregating one evaluation run.
type Report struct {
	RunID    string                   `json:"run_id"`
	Records  []PerspectiveScoreRecord `json:"records"`
	Warnings []string                 `json:"warnings,omitempty"`
}

// Scores maps perspective names to final scores.
func (r *Report) Scores() map[string]float64 {
	out := make(map[string]float64, len(r.Records))
	for _, rec := range r.Records {
		out[rec.Perspective] = rec.FinalScore
	}
	return out
}

// Record returns the record of a perspective name.
func (r *Report) Record(name string) (PerspectiveScoreRecord, bool) {
	for _, rec := range r.Records {
		if rec.Perspective == name {
			return rec, true
		}
	}
	return PerspectiveScoreRecord{}, false
}

func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// Table renders one row per perspective.
func (r *Report) Table(m Mode) string {
	t := NewTable(m)
	t.Header("#", "Perspective", "Mode", "Quantitative", "Qualitative", "Factor", "Score")
	for _, rec := range r.Records {
		mode := "weighted"
		factor := "-"
		if rec.GSN {
			mode = "gsn"
			factor = fmt.Sprintf("%.3f", rec.NormalizationFactor)
		}
		t.Row(rec.PerspectiveID, rec.Perspective, mode,
			score(rec.QuantitativeScore), score(rec.QualitativeScore), factor, score(rec.FinalScore))
	}
	t.AlignRight(1, 4, 5, 6, 7)
	return t.String()
}

// LeafTable lists explorer output with the total score rate as footer.
func LeafTable(m Mode, reqs []explore.LeafRequirement) string {
	t := NewTable(m)
	t.Header("ID", "Score rate", "Second goal", "Leaf")
	for _, req := range reqs {
		t.Row(req.ID, rate(req.ScoreRate), req.SecondGoal, req.LeafText)
	}
	t.Footer("Total", rate(explore.TotalScoreRate(reqs)), "", "")
	t.AlignRight(2)
	t.MaxWidth(3, 40)
	t.MaxWidth(4, 60)
	return t.String()
}

// RecordTable lists registered leaves.
func RecordTable(m Mode, recs []storage.Record) string {
	t := NewTable(m)
	t.Header("Name", "Kind", "Score rate", "Second goal", "Leaf")
	var total float64
	for _, rec := range recs {
		t.Row(rec.Name, string(rec.Kind), rate(rec.ScoreRate), rec.SecondGoal, rec.LeafText)
		total += rec.ScoreRate
	}
	t.Footer(fmt.Sprintf("%d leaves", len(recs)), "", rate(total), "", "")
	t.AlignRight(3)
	t.MaxWidth(4, 40)
	t.MaxWidth(5, 60)
	return t.String()
}

func score(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func rate(v float64) string {
	// Trim float noise such as 0.30000000000000004.
	return fmt.Sprintf("%g", math.Round(v*1e9)/1e9)
}
