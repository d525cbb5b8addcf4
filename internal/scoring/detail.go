package scoring

import (
	"context"
	"errors"

	"gsneval/internal/perspective"
	"gsneval/internal/storage"
)

const (
	TypeQuantitative = "quantitative"
	TypeQualitative  = "qualitative"
)

// DetailItem is one evaluated sample or answered question of a run.
type DetailItem struct {
	Perspective string         `json:"perspective"`
	Type        string         `json:"type"`
	LeafID      string         `json:"leaf_id,omitempty"`
	SecondGoal  string         `json:"second_goal,omitempty"`
	LeafText    string         `json:"leaf_text,omitempty"`
	ScoreRate   float64        `json:"score_rate,omitempty"`
	Question    string         `json:"question"`
	Answer      string         `json:"answer"`
	Score       *float64       `json:"score"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Detail lists the samples and answers of run grouped by perspective name.
// A sample tied to several leaves appears once per leaf. Undecodable batches
// are skipped.
func (a *Aggregator) Detail(ctx context.Context, run *Run) (map[string][]DetailItem, error) {
	if run == nil {
		return nil, errors.New("nil run")
	}
	out := make(map[string][]DetailItem)

	for _, name := range perspective.Names() {
		raw, ok := run.Quantitative[name]
		if !ok {
			continue
		}
		batch, err := DecodeBatch(raw)
		if err != nil {
			a.logger.Error("failed to parse quantitative results", "perspective", name, "error", err)
			continue
		}
		for _, s := range batch.Samples {
			items, err := a.sampleDetails(ctx, name, s)
			if err != nil {
				return nil, err
			}
			out[name] = append(out[name], items...)
		}
	}

	for _, ans := range run.Qualitative {
		item := DetailItem{
			Perspective: ans.Perspective,
			Type:        TypeQualitative,
			LeafID:      ans.Leaf(),
			ScoreRate:   1.0,
			Question:    ans.Text,
			Answer:      ans.Answer.Label(),
			Metadata:    ans.Metadata,
		}
		if ans.Answer.Label() != "" {
			if v, applicable := ans.Answer.Value(); applicable {
				item.Score = &v
			}
		}
		if item.LeafID != "" {
			if err := a.annotate(ctx, &item); err != nil {
				return nil, err
			}
		}
		out[ans.Perspective] = append(out[ans.Perspective], item)
	}
	return out, nil
}

func (a *Aggregator) sampleDetails(ctx context.Context, name string, s Sample) ([]DetailItem, error) {
	score := 0.0
	if s.Passed() {
		score = 1.0
	}
	if len(s.Output.Choices) == 0 {
		a.logger.Error("sample has no choices", "perspective", name, "sample", string(s.ID))
	}
	base := DetailItem{
		Perspective: name,
		Type:        TypeQuantitative,
		Question:    s.InputText(),
		Answer:      s.AnswerText(),
		Metadata:    s.Metadata,
	}

	var leaves []string
	for _, leaf := range s.GSNPerspective {
		if leaf != "" {
			leaves = append(leaves, leaf)
		}
	}
	if len(leaves) == 0 {
		base.Score = &score
		return []DetailItem{base}, nil
	}

	items := make([]DetailItem, 0, len(leaves))
	for _, leaf := range leaves {
		item := base
		sc := score
		item.Score = &sc
		item.LeafID = leaf
		item.ScoreRate = 1.0
		if err := a.annotate(ctx, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// annotate copies the registered leaf attributes onto item. Unregistered
// leaves keep a score rate of 1.0.
func (a *Aggregator) annotate(ctx context.Context, item *DetailItem) error {
	rec, ok, err := a.reg.GetByName(ctx, storage.NameFor(item.LeafID))
	if err != nil {
		return &RegistryLookupError{LeafID: item.LeafID, Err: err}
	}
	if !ok {
		return nil
	}
	item.SecondGoal = rec.SecondGoal
	item.LeafText = rec.LeafText
	item.ScoreRate = rec.ScoreRate
	return nil
}
