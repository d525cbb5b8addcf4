package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gsneval/internal/perspective"
)

// SampleBatch is the serialized result log of one perspective's
// quantitative evaluation.
type SampleBatch struct {
	Results    BatchResults `json:"results"`
	Samples    []Sample     `json:"samples"`
	Reductions []Reduction  `json:"reductions"`
}

type BatchResults struct {
	Scores []struct {
		Metrics map[string]struct {
			Value float64 `json:"value"`
		} `json:"metrics"`
	} `json:"scores"`
}

// Sample is one evaluated prompt.
type Sample struct {
	ID             SampleID                   `json:"id"`
	Input          json.RawMessage            `json:"input,omitempty"`
	GSNPerspective perspective.Refs           `json:"gsn_perspective,omitempty"`
	Output         SampleOutput               `json:"output"`
	Scores         map[string]json.RawMessage `json:"scores,omitempty"`
	Metadata       map[string]any             `json:"metadata,omitempty"`
}

type SampleOutput struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Reduction carries the per-sample values of one scorer.
type Reduction struct {
	Samples []struct {
		SampleID SampleID `json:"sample_id"`
		Value    float64  `json:"value"`
	} `json:"samples"`
}

// SampleID accepts both numeric and string identifiers.
type SampleID string

func (s *SampleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SampleID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("sample id: %w", err)
	}
	*s = SampleID(n.String())
	return nil
}

// DecodeBatch parses a sample batch. The batch may also arrive as a JSON
// string holding the serialized log.
func DecodeBatch(raw []byte) (*SampleBatch, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("empty sample batch")
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode sample batch: %w", err)
		}
		raw = []byte(inner)
	}
	var b SampleBatch
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode sample batch: %w", err)
	}
	return &b, nil
}

// Accuracy is the batch-level accuracy reported by the first scorer, or 0.
func (b *SampleBatch) Accuracy() float64 {
	if len(b.Results.Scores) == 0 {
		return 0
	}
	return b.Results.Scores[0].Metrics["accuracy"].Value
}

// sampleValues indexes reduced sample values by sample ID. Later reductions
// overwrite earlier ones.
func (b *SampleBatch) sampleValues() map[SampleID]float64 {
	out := make(map[SampleID]float64)
	for _, red := range b.Reductions {
		for _, s := range red.Samples {
			if s.SampleID == "" {
				continue
			}
			out[s.SampleID] = s.Value
		}
	}
	return out
}

// LeafAccuracy is the mean sample value of the samples tied to one leaf.
type LeafAccuracy struct {
	LeafID   string
	Accuracy float64
	Samples  int
}

// LeafAccuracies groups samples by the leaves they reference. Samples
// without a reduced value count as 0. The result is sorted by leaf ID.
func (b *SampleBatch) LeafAccuracies() []LeafAccuracy {
	values := b.sampleValues()
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range b.Samples {
		v := values[s.ID]
		for _, leaf := range s.GSNPerspective {
			if leaf == "" {
				continue
			}
			sums[leaf] += v
			counts[leaf]++
		}
	}

	out := make([]LeafAccuracy, 0, len(counts))
	for leaf, n := range counts {
		out = append(out, LeafAccuracy{LeafID: leaf, Accuracy: sums[leaf] / float64(n), Samples: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeafID < out[j].LeafID })
	return out
}

// ReferencedLeaves returns the distinct leaf IDs referenced by samples, sorted.
func (b *SampleBatch) ReferencedLeaves() []string {
	accs := b.LeafAccuracies()
	ids := make([]string, len(accs))
	for i, a := range accs {
		ids[i] = a.LeafID
	}
	return ids
}

// InputText renders the sample input as plain text.
func (s Sample) InputText() string {
	return rawText(s.Input)
}

// AnswerText is the content of the first output choice.
func (s Sample) AnswerText() string {
	if len(s.Output.Choices) == 0 {
		return ""
	}
	return rawText(s.Output.Choices[0].Message.Content)
}

// Passed reports the binary judgment shown in detail views: a sample fails
// when the grader marked it incorrect or the model produced no choices.
func (s Sample) Passed() bool {
	if len(s.Output.Choices) == 0 {
		return false
	}
	raw, ok := s.Scores["model_graded_qa"]
	if !ok {
		return true
	}
	var score struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &score); err != nil {
		return true
	}
	return strings.TrimSpace(string(score.Value)) != strconv.Quote("I")
}

// rawText returns a JSON string as is, joins the text parts of a content
// list, and falls back to the raw JSON otherwise.
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Text    string          `json:"text"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var texts []string
		for _, p := range parts {
			switch {
			case p.Text != "":
				texts = append(texts, p.Text)
			case len(p.Content) > 0:
				if t := rawText(p.Content); t != "" {
					texts = append(texts, t)
				}
			}
		}
		return strings.Join(texts, "\n")
	}
	return string(raw)
}
