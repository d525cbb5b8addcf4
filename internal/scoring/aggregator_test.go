package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"gsneval/internal/explore"
	"gsneval/internal/graph"
	"gsneval/internal/index"
	"gsneval/internal/perspective"
	"gsneval/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_GSNQualScore(t *testing.T) {
	reg := registry(t,
		qualLeaf("G1-1", 1, 0.6),
		qualLeaf("G1-2", 1, 0.4),
		quantLeaf("G1-3", 1, 0.5),
	)
	agg := NewAggregator(reg)

	answers := []QualitativeAnswer{
		answer("GSN_G1-1", toxic, Implemented),
		answer("G1-2", toxic, PartiallyImplemented),
		answer("G1-3", toxic, Implemented),    // registered as quantitative
		answer("G1-1", toxic, NotImplemented), // duplicate, first answer wins
		answer("G1-9", toxic, Implemented),    // not registered
		answer("G10-1", verify, Implemented),
	}
	score, err := agg.GSNQualScore(context.Background(), toxic, answers)
	require.NoError(t, err)
	assert.InDelta(t, 80, score, 1e-9)
}

func TestAggregator_GSNQualScore_NotApplicableContributesNothing(t *testing.T) {
	agg := NewAggregator(registry(t, qualLeaf("G1-1", 1, 0.6), qualLeaf("G1-2", 1, 0.4)))

	score, err := agg.GSNQualScore(context.Background(), toxic, []QualitativeAnswer{
		answer("G1-1", toxic, Implemented),
		answer("G1-2", toxic, NotApplicable),
	})
	require.NoError(t, err)
	assert.InDelta(t, 60, score, 1e-9)
}

func TestAggregator_GSNQuantScore(t *testing.T) {
	reg := registry(t,
		quantLeaf("G1-3", 1, 0.5),
		qualLeaf("G1-1", 1, 0.5),
	)
	agg := NewAggregator(reg)

	b, err := DecodeBatch(batchJSON(t, 0.6,
		sample{id: 1, refs: "G1-3", value: 1},
		sample{id: 2, refs: "G1-3", value: 0},
		sample{id: 3, refs: []string{"G1-3", "G1-9"}, value: 1},
		sample{id: 4, refs: "G1-1", value: 1},
	))
	require.NoError(t, err)

	score, err := agg.GSNQuantScore(context.Background(), toxic, b)
	require.NoError(t, err)
	assert.InDelta(t, 100.0/3, score, 1e-9)

	score, err = agg.GSNQuantScore(context.Background(), toxic, nil)
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestAggregator_NormalizationFactor(t *testing.T) {
	reg := registry(t,
		qualLeaf("G1-1", 1, 0.3),
		qualLeaf("G1-2", 1, 0.2),
		quantLeaf("G1-3", 1, 0.5),
	)
	agg := NewAggregator(reg)
	ctx := context.Background()
	b, err := DecodeBatch(batchJSON(t, 1, sample{id: 1, refs: "G1-3", value: 1}))
	require.NoError(t, err)

	t.Run("all applicable", func(t *testing.T) {
		f, err := agg.NormalizationFactor(ctx, toxic, []QualitativeAnswer{
			answer("G1-1", toxic, Implemented),
			answer("G1-2", toxic, NotImplemented),
		}, b)
		require.NoError(t, err)
		assert.Equal(t, 1.0, f)
	})

	t.Run("excluded leaf raises factor", func(t *testing.T) {
		f, err := agg.NormalizationFactor(ctx, toxic, []QualitativeAnswer{
			answer("G1-1", toxic, Implemented),
			answer("G1-2", toxic, NotApplicable),
		}, b)
		require.NoError(t, err)
		assert.InDelta(t, 1.0/0.8, f, 1e-9)
	})

	t.Run("zero denominator", func(t *testing.T) {
		f, err := agg.NormalizationFactor(ctx, toxic, []QualitativeAnswer{
			answer("G1-1", toxic, NotApplicable),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, f)
	})

	t.Run("nothing answered", func(t *testing.T) {
		f, err := agg.NormalizationFactor(ctx, toxic, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, f)
	})
}

// indexSingleLeaf registers the leaf of TopGoal -> S1-1 [1.0] -> G1-1 "Q1".
func indexSingleLeaf(t *testing.T) storage.LeafRegistry {
	t.Helper()
	g := graph.NewGraph()
	g.AddNode(&graph.Node{ID: "G1", Kind: graph.KindTopGoal, GoalType: graph.GoalTypeTop, SupportedBy: []string{"S1-1"}})
	g.AddNode(&graph.Node{ID: "S1-1", SupportedBy: []string{"G1-1"}, ScoreRate: []float64{1.0}, HasScoreRate: true})
	g.AddNode(&graph.Node{ID: "G1-1", Kind: graph.KindLeaf, Question: "Q1"})

	reqs, err := explore.Explore(g, explore.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, []explore.LeafRequirement{{ID: "G1-1", LeafText: "Q1", ScoreRate: 1.0}}, reqs)

	reg := storage.NewMemoryRegistry()
	_, err = index.NewIndexer(reg, index.DefaultConfig()).IndexGraph(context.Background(), g, nil)
	require.NoError(t, err)
	return reg
}

func TestAggregate_SingleLeafImplemented(t *testing.T) {
	agg := NewAggregator(indexSingleLeaf(t))
	rep, err := agg.Aggregate(context.Background(), &Run{
		ID:              "run-1",
		GSNPerspectives: []int{1},
		Qualitative:     []QualitativeAnswer{answer("GSN_G1-1", toxic, Implemented)},
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", rep.RunID)
	rec, ok := rep.Record(toxic)
	require.True(t, ok)
	assert.True(t, rec.GSN)
	assert.InDelta(t, 100, rec.FinalScore, 1e-9)
	assert.Equal(t, 1.0, rec.NormalizationFactor)
}

func TestAggregate_SingleLeafNotApplicable(t *testing.T) {
	agg := NewAggregator(indexSingleLeaf(t))
	rep, err := agg.Aggregate(context.Background(), &Run{
		GSNPerspectives: []int{1},
		Qualitative:     []QualitativeAnswer{answer("G1-1", toxic, NotApplicable)},
	})
	require.NoError(t, err)

	assert.Zero(t, rep.Scores()[toxic])
	assert.True(t, containsWarning(rep.Warnings, ErrNormalizationDegenerate.Error()))
}

func TestAggregate_GSNBlendsModalities(t *testing.T) {
	reg := registry(t,
		qualLeaf("G10-1", 10, 0.4),
		qualLeaf("G10-2", 10, 0.2),
		quantLeaf("G10-3", 10, 0.4),
	)
	run := &Run{
		GSNPerspectives: []int{10},
		Qualitative: []QualitativeAnswer{
			answer("G10-1", verify, PartiallyImplemented),
			answer("G10-2", verify, NotApplicable),
		},
		Quantitative: map[string]json.RawMessage{
			verify: batchJSON(t, 0.75,
				sample{id: 1, refs: "G10-3", value: 1},
				sample{id: 2, refs: "G10-3", value: 0},
			),
		},
	}
	rep, err := NewAggregator(reg).Aggregate(context.Background(), run)
	require.NoError(t, err)

	rec, ok := rep.Record(verify)
	require.True(t, ok)
	assert.InDelta(t, 20, rec.QualitativeScore, 1e-9)
	assert.InDelta(t, 20, rec.QuantitativeScore, 1e-9)
	assert.InDelta(t, 1.0/0.8, rec.NormalizationFactor, 1e-9)
	assert.InDelta(t, 50, rec.FinalScore, 1e-9)
}

func TestAggregate_WeightRules(t *testing.T) {
	qual75 := []QualitativeAnswer{
		{Perspective: toxic, Answer: Implemented},
		{Perspective: toxic, Answer: PartiallyImplemented},
	}
	tests := []struct {
		name    string
		weights []WeightMapping
		quant   float64
		hasQuan bool
		qual    []QualitativeAnswer
		want    float64
	}{
		{name: "no mapping", qual: qual75, want: 0},
		{name: "two mappings", weights: []WeightMapping{{1, 60}, {1, 40}}, quant: 0.5, hasQuan: true, qual: qual75, want: 60},
		{name: "single mapping without quantitative", weights: []WeightMapping{{1, 70}}, qual: qual75, want: 75},
		{name: "single mapping without qualitative", weights: []WeightMapping{{1, 70}}, quant: 0.8, hasQuan: true, want: 80},
		{name: "single mapping with both", weights: []WeightMapping{{1, 30}}, quant: 0.5, hasQuan: true,
			qual: []QualitativeAnswer{{Perspective: toxic, Answer: Implemented}}, want: 85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &Run{Weights: tt.weights, Qualitative: tt.qual}
			if tt.hasQuan {
				run.Quantitative = map[string]json.RawMessage{toxic: batchJSON(t, tt.quant)}
			}
			rep, err := NewAggregator(storage.NewMemoryRegistry()).Aggregate(context.Background(), run)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, rep.Scores()[toxic], 1e-9)
		})
	}
}

func TestAggregate_AlwaysReportsAllPerspectives(t *testing.T) {
	rep, err := NewAggregator(storage.NewMemoryRegistry(), WithIDGenerator(func() string { return "generated" })).
		Aggregate(context.Background(), &Run{})
	require.NoError(t, err)

	assert.Equal(t, "generated", rep.RunID)
	require.Len(t, rep.Records, perspective.Count)
	for i, rec := range rep.Records {
		assert.Equal(t, i+1, rec.PerspectiveID)
		assert.Zero(t, rec.FinalScore)
	}
	assert.Len(t, rep.Scores(), perspective.Count)
}

func TestAggregate_DefaultRunIDIsUUID(t *testing.T) {
	rep, err := NewAggregator(storage.NewMemoryRegistry()).Aggregate(context.Background(), &Run{})
	require.NoError(t, err)
	assert.Len(t, rep.RunID, 36)
}

func TestAggregate_ClampsDuplicatedWeight(t *testing.T) {
	// Choice duplication can register more than the full weight.
	reg := registry(t, qualLeaf("G2-1", 2, 0.8), qualLeaf("G2-2", 2, 0.8))
	name, _ := perspective.ByID(2)
	rep, err := NewAggregator(reg).Aggregate(context.Background(), &Run{
		GSNPerspectives: []int{2},
		Qualitative: []QualitativeAnswer{
			answer("G2-1", name.Name, Implemented),
			answer("G2-2", name.Name, Implemented),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, rep.Scores()[name.Name])
}

func TestAggregate_Warnings(t *testing.T) {
	reg := registry(t, qualLeaf("G1-1", 1, 1.0))
	rep, err := NewAggregator(reg).Aggregate(context.Background(), &Run{
		GSNPerspectives: []int{1},
		Qualitative: []QualitativeAnswer{
			answer("G1-1", toxic, Implemented),
			answer("G1-7", toxic, Implemented),
		},
		Weights: []WeightMapping{{PerspectiveID: 10, Percentage: 50}},
	})
	require.NoError(t, err)

	assert.InDelta(t, 100, rep.Scores()[toxic], 1e-9)
	assert.True(t, containsWarning(rep.Warnings, `leaf "G1-7"`))
	assert.True(t, containsWarning(rep.Warnings, "perspective Control of Toxic Output: missing modality data: quantitative"))
	assert.True(t, containsWarning(rep.Warnings, "perspective Verifiability: missing modality data: qualitative"))
}

func TestAggregate_InvalidRun(t *testing.T) {
	agg := NewAggregator(storage.NewMemoryRegistry())
	ctx := context.Background()

	tests := map[string]*Run{
		"weights over 100":     {Weights: []WeightMapping{{1, 70}, {1, 40}}},
		"perspective id range": {Weights: []WeightMapping{{11, 10}}},
		"negative percentage":  {Weights: []WeightMapping{{1, -5}}},
		"gsn perspective":      {GSNPerspectives: []int{0}},
		"unknown answer perspective": {
			Qualitative: []QualitativeAnswer{{Perspective: "Toxicity", Answer: Implemented}},
		},
		"unknown batch perspective": {
			Quantitative: map[string]json.RawMessage{"Toxicity": json.RawMessage(`{}`)},
		},
	}
	for name, run := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := agg.Aggregate(ctx, run)
			assert.Error(t, err)
		})
	}

	_, err := agg.Aggregate(ctx, nil)
	assert.Error(t, err)
}

type failingRegistry struct {
	storage.LeafRegistry
}

func (failingRegistry) Lookup(context.Context, string) (storage.Record, error) {
	return storage.Record{}, errors.New("database is locked")
}

func TestAggregate_RegistryFailureIsFatal(t *testing.T) {
	agg := NewAggregator(failingRegistry{})
	_, err := agg.Aggregate(context.Background(), &Run{
		GSNPerspectives: []int{1},
		Qualitative:     []QualitativeAnswer{answer("G1-1", toxic, Implemented)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegistryLookup)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestAggregate_Concurrent(t *testing.T) {
	agg := NewAggregator(indexSingleLeaf(t))
	run := &Run{
		GSNPerspectives: []int{1},
		Qualitative:     []QualitativeAnswer{answer("G1-1", toxic, PartiallyImplemented)},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep, err := agg.Aggregate(context.Background(), run)
			assert.NoError(t, err)
			assert.InDelta(t, 50, rep.Scores()[toxic], 1e-9)
		}()
	}
	wg.Wait()
}

func TestDecodeRun(t *testing.T) {
	in := `{
		"id": "abc",
		"gsn_perspectives": [10],
		"qualitative": [{"leaf_id": "GSN_G10-1", "perspective": "Verifiability", "answer": "implemented"}],
		"quantitative": {"Verifiability": "{\"results\": {}}"},
		"weights": [{"perspective_id": 1, "percentage": 40}]
	}`
	run, err := DecodeRun(strings.NewReader(in))
	require.NoError(t, err)
	require.NoError(t, run.Validate())

	assert.Equal(t, "abc", run.ID)
	assert.True(t, run.UsesGSN(10))
	assert.False(t, run.UsesGSN(1))
	assert.Equal(t, "G10-1", run.Qualitative[0].Leaf())
	_, err = DecodeBatch(run.Quantitative[verify])
	assert.NoError(t, err)
}

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
