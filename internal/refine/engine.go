package refine

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/yuki5321/AIsindan/internal/domain"
	"github.com/yuki5321/AIsindan/internal/observability"
	"github.com/yuki5321/AIsindan/internal/symptom"
	"github.com/yuki5321/AIsindan/internal/symptomindex"
)

// DefaultBoostFactor is the confidence added per matched symptom.
const DefaultBoostFactor = 0.25

// SkipReasonIndexUnavailable marks a result computed without the index.
const SkipReasonIndexUnavailable = "index_unavailable"

// SnapshotSource supplies the current disease-symptom snapshot.
type SnapshotSource interface {
	Current(ctx context.Context) (*symptomindex.Snapshot, error)
}

// Request is an ordered list of initial candidates plus raw symptom strings.
type Request struct {
	Candidates []domain.Candidate
	Symptoms   []string
}

// Result is the refined ranking. BoostSkipped is set when the index could
// not be used and the ranking is the renormalized input. Unresolved names
// the candidates the index had no entry for, by ID or English name; they
// were ranked without any boost.
type Result struct {
	Results      []domain.Candidate `json:"results"`
	BoostSkipped bool               `json:"boost_skipped"`
	SkipReason   string             `json:"skip_reason,omitempty"`
	Unresolved   []string           `json:"unresolved,omitempty"`
}

// Engine re-scores candidates with symptom evidence. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	index       SnapshotSource
	normalizer  *symptom.Normalizer
	boostFactor float64
}

// NewEngine builds an engine. A negative boost factor is replaced by
// DefaultBoostFactor.
func NewEngine(index SnapshotSource, normalizer *symptom.Normalizer, boostFactor float64) *Engine {
	if normalizer == nil {
		normalizer = symptom.NewNormalizer(nil)
	}
	if boostFactor < 0 || math.IsNaN(boostFactor) {
		boostFactor = DefaultBoostFactor
	}
	return &Engine{index: index, normalizer: normalizer, boostFactor: boostFactor}
}

// BoostFactor returns the configured boost per matched symptom.
func (e *Engine) BoostFactor() float64 {
	return e.boostFactor
}

// Refine validates the request, fetches the current index snapshot and
// applies the boost. An unavailable index degrades to a renormalized
// pass-through with BoostSkipped set; it is never returned as an error.
func (e *Engine) Refine(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		refineRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	snap, err := e.snapshot(ctx)
	if err != nil {
		logger := observability.LoggerFromContext(ctx)
		var unavailable *symptomindex.UnavailableError
		if errors.As(err, &unavailable) {
			logger.Warn().Err(err).Msg("disease-symptom index unavailable, refining without boost")
		} else {
			logger.Error().Err(err).Msg("unexpected index error, refining without boost")
		}
		refineBoostSkippedTotal.WithLabelValues(SkipReasonIndexUnavailable).Inc()
		refineRequestsTotal.WithLabelValues("unboosted").Inc()

		res := e.apply(symptomindex.Empty(), req)
		res.BoostSkipped = true
		res.SkipReason = SkipReasonIndexUnavailable
		res.Unresolved = nil
		return res, nil
	}

	refineRequestsTotal.WithLabelValues("boosted").Inc()
	res := e.apply(snap, req)
	if len(res.Unresolved) > 0 {
		refineUnresolvedTotal.Add(float64(len(res.Unresolved)))
		observability.LoggerFromContext(ctx).Warn().
			Strs("unresolved", res.Unresolved).
			Msg("candidates not in disease-symptom index, ranked without boost")
	}
	return res, nil
}

// Apply runs the refinement against a given snapshot. It is a pure function
// of its arguments.
func (e *Engine) Apply(snap *symptomindex.Snapshot, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if snap == nil {
		snap = symptomindex.Empty()
	}
	return e.apply(snap, req), nil
}

func (e *Engine) snapshot(ctx context.Context) (*symptomindex.Snapshot, error) {
	if e.index == nil {
		return nil, &symptomindex.UnavailableError{}
	}
	return e.index.Current(ctx)
}

func validate(req Request) error {
	if len(req.Candidates) == 0 {
		return &EmptyRequestError{Field: "candidate"}
	}
	if len(req.Symptoms) == 0 {
		return &EmptyRequestError{Field: "symptom"}
	}
	return nil
}

func (e *Engine) apply(snap *symptomindex.Snapshot, req Request) *Result {
	selected := e.normalizer.Expand(symptom.NormalizeAll(req.Symptoms))

	scored := make([]domain.Candidate, len(req.Candidates))
	var unresolved []string
	total := 0.0
	for i, c := range req.Candidates {
		id, ok := snap.Resolve(c.Disease)
		if !ok {
			unresolved = append(unresolved, candidateLabel(c.Disease))
		}
		matched := snap.Lookup(id).Intersect(selected)

		boosted := c.Confidence + float64(matched.Len())*e.boostFactor
		clamped := clamp(boosted)
		total += clamped

		scored[i] = domain.Candidate{
			Disease:    c.Disease,
			Confidence: clamped,
		}
		if matched.Len() > 0 {
			scored[i].MatchedSymptoms = matched.Sorted()
		}
	}

	// All-zero scores stay zero rather than dividing by zero.
	if total == 0 {
		total = 1
	}
	for i := range scored {
		scored[i].Confidence /= total
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})

	return &Result{Results: scored, Unresolved: unresolved}
}

func candidateLabel(c domain.Condition) string {
	if c.NameEN != "" {
		return c.NameEN
	}
	if c.ID != "" {
		return c.ID
	}
	return c.Name
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
