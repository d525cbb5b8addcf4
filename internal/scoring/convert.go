package scoring

import (
	"encoding/json"

	"gsneval/internal/logging"
	"gsneval/internal/perspective"
)

// ConvertQualitativeResultsToScores averages the applicable answers of every
// perspective on a 0-100 scale. Perspectives without applicable answers
// score 0. Every perspective is present in the result.
func ConvertQualitativeResultsToScores(answers []QualitativeAnswer) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, a := range answers {
		v, ok := a.Answer.Value()
		if !ok {
			continue
		}
		sums[a.Perspective] += v
		counts[a.Perspective]++
	}

	scores := make(map[string]float64, perspective.Count)
	for _, name := range perspective.Names() {
		if n := counts[name]; n > 0 {
			scores[name] = sums[name] / float64(n) * 100
		} else {
			scores[name] = 0
		}
	}
	return scores
}

// ConvertQuantitativeResultsToScores scales the batch accuracy of every
// perspective to 0-100. Missing or undecodable batches score 0.
func ConvertQuantitativeResultsToScores(batches map[string]json.RawMessage) map[string]float64 {
	logger := logging.New("scoring")
	scores := make(map[string]float64, perspective.Count)
	for _, name := range perspective.Names() {
		raw, ok := batches[name]
		if !ok {
			scores[name] = 0
			continue
		}
		b, err := DecodeBatch(raw)
		if err != nil {
			logger.Error("failed to parse quantitative results", "perspective", name, "error", err)
			scores[name] = 0
			continue
		}
		scores[name] = b.Accuracy() * 100
	}
	return scores
}
