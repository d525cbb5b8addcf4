package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"gsneval/internal/logging"
	"gsneval/internal/perspective"
	"gsneval/internal/report"
	"gsneval/internal/storage"

	"github.com/google/uuid"
)

// Aggregator turns the raw results of a run into one score per perspective.
// It holds no per-run state and may be shared between goroutines.
type Aggregator struct {
	reg    storage.LeafRegistry
	logger  *slog.Logger
	newID   func() string
	metrics *Metrics
}

type Option func(*Aggregator)

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithIDGenerator overrides how run IDs are assigned to runs without one.
func WithIDGenerator(fn func() string) Option {
	return func(a *Aggregator) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// WithMetrics records run outcomes and final scores in m.
func WithMetrics(m *Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

func NewAggregator(reg storage.LeafRegistry, opts ...Option) *Aggregator {
	a := &Aggregator{
		reg:    reg,
		logger: logging.New("scoring"),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GSNQualScore sums answer value times score rate over the qualitative leaves
// of a perspective, scaled to 100. Not-applicable answers contribute nothing.
func (a *Aggregator) GSNQualScore(ctx context.Context, perspectiveName string, answers []QualitativeAnswer) (float64, error) {
	return a.gsnQual(ctx, a.resolver(perspectiveName, nil), answers)
}

// GSNQuantScore sums leaf accuracy times score rate over the quantitative
// leaves referenced by batch, scaled to 100.
func (a *Aggregator) GSNQuantScore(ctx context.Context, perspectiveName string, batch *SampleBatch) (float64, error) {
	return a.gsnQuant(ctx, a.resolver(perspectiveName, nil), batch)
}

// NormalizationFactor is the ratio of all answered leaves' score rates to the
// score rates of the applicable ones. A zero denominator yields 1.0.
func (a *Aggregator) NormalizationFactor(ctx context.Context, perspectiveName string, answers []QualitativeAnswer, batch *SampleBatch) (float64, error) {
	return a.normalization(ctx, a.resolver(perspectiveName, nil), answers, batch)
}

// Aggregate scores every perspective of run. Perspectives listed in
// run.GSNPerspectives are scored from their registered leaves, the others
// by blending the modality scores with the run's weight mappings. The report
// always holds all perspectives in ID order.
func (a *Aggregator) Aggregate(ctx context.Context, run *Run) (rep *report.Report, err error) {
	start := time.Now()
	defer func() { a.metrics.observeRun(start, err) }()

	if run == nil {
		return nil, errors.New("nil run")
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}

	id := run.ID
	if id == "" {
		id = a.newID()
	}
	logger := a.logger.With("run", id)
	w := &warnings{}

	qualScores := ConvertQualitativeResultsToScores(run.Qualitative)
	quantScores := ConvertQuantitativeResultsToScores(run.Quantitative)

	weights := make(map[int][]float64)
	for _, m := range run.Weights {
		weights[m.PerspectiveID] = append(weights[m.PerspectiveID], m.Percentage)
	}

	records := make([]report.PerspectiveScoreRecord, 0, perspective.Count)
	for _, p := range perspective.All() {
		rec := report.PerspectiveScoreRecord{PerspectiveID: p.ID, Perspective: p.Name}

		if run.UsesGSN(p.ID) {
			if err := a.scoreGSN(ctx, run, p, &rec, w); err != nil {
				return nil, err
			}
		} else if ws, ok := weights[p.ID]; ok {
			quant, qual := quantScores[p.Name], qualScores[p.Name]
			rec.QuantitativeScore = quant
			rec.QualitativeScore = qual
			rec.QuantitativeWeight, rec.QualitativeWeight = splitWeights(ws, quant, qual)
			rec.FinalScore = quant*rec.QuantitativeWeight + qual*rec.QualitativeWeight
			a.checkModalities(run, p, w, logger)
		}

		rec.FinalScore = clamp(rec.FinalScore)
		logger.Debug("perspective scored",
			"perspective", p.Name,
			"gsn", rec.GSN,
			"quantitative", rec.QuantitativeScore,
			"qualitative", rec.QualitativeScore,
			"final", rec.FinalScore)
		records = append(records, rec)
	}

	for _, rec := range records {
		a.metrics.observeScore(rec.Perspective, rec.FinalScore)
	}
	a.metrics.observeWarnings(w.errs)
	logger.Info("aggregation complete", "warnings", len(w.errs))
	return &report.Report{RunID: id, Records: records, Warnings: w.strings()}, nil
}

func (a *Aggregator) scoreGSN(ctx context.Context, run *Run, p perspective.Perspective, rec *report.PerspectiveScoreRecord, w *warnings) error {
	rec.GSN = true
	res := a.resolver(p.Name, w)

	var batch *SampleBatch
	if raw, ok := run.Quantitative[p.Name]; ok {
		b, err := DecodeBatch(raw)
		if err != nil {
			a.logger.Error("failed to parse quantitative results", "perspective", p.Name, "error", err)
			w.add(p.Name, fmt.Errorf("%w: quantitative: %v", ErrMissingModality, err))
		} else {
			batch = b
		}
	} else {
		a.logger.Warn("no quantitative results", "perspective", p.Name)
		w.add(p.Name, fmt.Errorf("%w: quantitative", ErrMissingModality))
	}
	if len(gsnAnswers(p.Name, run.Qualitative)) == 0 {
		a.logger.Warn("no qualitative results", "perspective", p.Name)
		w.add(p.Name, fmt.Errorf("%w: qualitative", ErrMissingModality))
	}

	qual, err := a.gsnQual(ctx, res, run.Qualitative)
	if err != nil {
		return err
	}
	quant, err := a.gsnQuant(ctx, res, batch)
	if err != nil {
		return err
	}
	factor, err := a.normalization(ctx, res, run.Qualitative, batch)
	if err != nil {
		return err
	}

	rec.QualitativeScore = qual
	rec.QuantitativeScore = quant
	rec.NormalizationFactor = factor
	rec.FinalScore = (qual + quant) * factor
	return nil
}

func (a *Aggregator) checkModalities(run *Run, p perspective.Perspective, w *warnings, logger *slog.Logger) {
	if _, ok := run.Quantitative[p.Name]; !ok {
		logger.Warn("no quantitative results", "perspective", p.Name)
		w.add(p.Name, fmt.Errorf("%w: quantitative", ErrMissingModality))
	}
	for _, ans := range run.Qualitative {
		if ans.Perspective == p.Name {
			return
		}
	}
	logger.Warn("no qualitative results", "perspective", p.Name)
	w.add(p.Name, fmt.Errorf("%w: qualitative", ErrMissingModality))
}

// splitWeights derives the quantitative and qualitative shares from the
// percentages mapped to a perspective. With a single mapping an empty channel
// gets no weight; if both channels scored, the mapping is the quantitative
// share and the rest goes to the qualitative channel.
func splitWeights(ws []float64, quant, qual float64) (quantWeight, qualWeight float64) {
	switch len(ws) {
	case 0:
		return 0, 0
	case 1:
		switch {
		case quant == 0:
			return 0, 1
		case qual == 0:
			return 1, 0
		default:
			share := ws[0] / 100
			return share, 1 - share
		}
	default:
		return ws[0] / 100, ws[1] / 100
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func (a *Aggregator) gsnQual(ctx context.Context, res *resolver, answers []QualitativeAnswer) (float64, error) {
	var sum float64
	for _, ans := range gsnAnswers(res.name, answers) {
		rec, ok, err := res.lookup(ctx, ans.leaf)
		if err != nil {
			return 0, err
		}
		if !ok || rec.Kind != storage.Qualitative {
			continue
		}
		v, applicable := ans.answer.Value()
		if !applicable {
			continue
		}
		sum += v * rec.ScoreRate
	}
	return sum * 100, nil
}

func (a *Aggregator) gsnQuant(ctx context.Context, res *resolver, batch *SampleBatch) (float64, error) {
	if batch == nil {
		return 0, nil
	}
	var sum float64
	for _, la := range batch.LeafAccuracies() {
		rec, ok, err := res.lookup(ctx, la.LeafID)
		if err != nil {
			return 0, err
		}
		if !ok || rec.Kind != storage.Quantitative {
			continue
		}
		sum += la.Accuracy * rec.ScoreRate * 100
	}
	return sum, nil
}

func (a *Aggregator) normalization(ctx context.Context, res *resolver, answers []QualitativeAnswer, batch *SampleBatch) (float64, error) {
	var total, applicable float64
	for _, ans := range gsnAnswers(res.name, answers) {
		rec, ok, err := res.lookup(ctx, ans.leaf)
		if err != nil {
			return 0, err
		}
		if !ok || rec.Kind != storage.Qualitative {
			continue
		}
		total += rec.ScoreRate
		if _, ok := ans.answer.Value(); ok {
			applicable += rec.ScoreRate
		}
	}
	if batch != nil {
		for _, leaf := range batch.ReferencedLeaves() {
			rec, ok, err := res.lookup(ctx, leaf)
			if err != nil {
				return 0, err
			}
			if !ok || rec.Kind != storage.Quantitative {
				continue
			}
			total += rec.ScoreRate
			applicable += rec.ScoreRate
		}
	}

	if applicable == 0 {
		a.logger.Warn("normalization denominator is zero", "perspective", res.name)
		res.w.add(res.name, ErrNormalizationDegenerate)
		return 1.0, nil
	}
	factor := total / applicable
	a.logger.Debug("normalization factor", "perspective", res.name, "total", total, "applicable", applicable, "factor", factor)
	return factor, nil
}

type leafAnswer struct {
	leaf   string
	answer Answer
}

// gsnAnswers returns the first answer given for each leaf of a perspective,
// ordered by leaf ID. Answers without a leaf are not part of any goal structure.
func gsnAnswers(perspectiveName string, answers []QualitativeAnswer) []leafAnswer {
	seen := make(map[string]bool)
	var out []leafAnswer
	for _, ans := range answers {
		leaf := ans.Leaf()
		if ans.Perspective != perspectiveName || leaf == "" || seen[leaf] {
			continue
		}
		seen[leaf] = true
		out = append(out, leafAnswer{leaf: leaf, answer: ans.Answer})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].leaf < out[j].leaf })
	return out
}

// resolver memoizes registry lookups for one perspective of one run so that
// a missing leaf is reported once.
type resolver struct {
	reg    storage.LeafRegistry
	logger *slog.Logger
	name   string
	w      *warnings
	cache  map[string]*storage.Record
}

func (a *Aggregator) resolver(perspectiveName string, w *warnings) *resolver {
	return &resolver{
		reg:    a.reg,
		logger: a.logger,
		name:   perspectiveName,
		w:      w,
		cache:  make(map[string]*storage.Record),
	}
}

func (r *resolver) lookup(ctx context.Context, leafID string) (storage.Record, bool, error) {
	if rec, hit := r.cache[leafID]; hit {
		if rec == nil {
			return storage.Record{}, false, nil
		}
		return *rec, true, nil
	}

	rec, err := r.reg.Lookup(ctx, leafID)
	if errors.Is(err, storage.ErrNotFound) {
		lerr := &RegistryLookupError{LeafID: leafID, Err: err}
		r.logger.Warn("leaf not registered", "perspective", r.name, "leaf", leafID)
		r.w.add(r.name, lerr)
		r.cache[leafID] = nil
		return storage.Record{}, false, nil
	}
	if err != nil {
		return storage.Record{}, false, &RegistryLookupError{LeafID: leafID, Err: err}
	}
	r.cache[leafID] = &rec
	return rec, true, nil
}
