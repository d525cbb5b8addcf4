package scoring

import (
	"context"
	"encoding/json"
	"testing"

	"gsneval/internal/storage"

	"github.com/stretchr/testify/require"
)

const (
	toxic  = "Control of Toxic Output"
	verify = "Verifiability"
)

type sample struct {
	id     any
	refs   any
	value  float64
	graded string
	noOut  bool
}

// batchJSON builds a serialized sample batch with the given accuracy.
func batchJSON(t *testing.T, accuracy float64, samples ...sample) json.RawMessage {
	t.Helper()
	var ss, reduced []map[string]any
	for _, s := range samples {
		m := map[string]any{"id": s.id, "input": "prompt " + toString(s.id)}
		if s.refs != nil {
			m["gsn_perspective"] = s.refs
		}
		if s.noOut {
			m["output"] = map[string]any{"choices": []any{}}
		} else {
			m["output"] = map[string]any{"choices": []any{
				map[string]any{"message": map[string]any{"content": "answer " + toString(s.id)}},
			}}
		}
		if s.graded != "" {
			m["scores"] = map[string]any{"model_graded_qa": map[string]any{"value": s.graded}}
		}
		ss = append(ss, m)
		reduced = append(reduced, map[string]any{"sample_id": s.id, "value": s.value})
	}
	doc := map[string]any{
		"results": map[string]any{"scores": []any{
			map[string]any{"metrics": map[string]any{"accuracy": map[string]any{"value": accuracy}}},
		}},
		"samples":    ss,
		"reductions": []any{map[string]any{"samples": reduced}},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func toString(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func registry(t *testing.T, recs ...storage.Record) *storage.MemoryRegistry {
	t.Helper()
	reg := storage.NewMemoryRegistry()
	for _, rec := range recs {
		require.NoError(t, reg.Register(context.Background(), rec))
	}
	return reg
}

func qualLeaf(id string, pid int, rate float64) storage.Record {
	return storage.Record{ID: id, Kind: storage.Qualitative, PerspectiveID: pid, ScoreRate: rate, LeafText: "question " + id, SecondGoal: "SG " + id}
}

func quantLeaf(id string, pid int, rate float64) storage.Record {
	return storage.Record{ID: id, Kind: storage.Quantitative, PerspectiveID: pid, ScoreRate: rate, LeafText: "dataset " + id, SecondGoal: "SG " + id}
}

func answer(leaf, p string, a Answer) QualitativeAnswer {
	return QualitativeAnswer{LeafID: leaf, Perspective: p, Answer: a, Text: "text " + leaf}
}
