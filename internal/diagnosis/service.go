// Package diagnosis ties the classifier, the disease-symptom index and the
// refinement engine together behind the operations the API exposes.
package diagnosis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yuki5321/AIsindan/internal/apperrors"
	"github.com/yuki5321/AIsindan/internal/cache"
	"github.com/yuki5321/AIsindan/internal/classifier"
	"github.com/yuki5321/AIsindan/internal/domain"
	"github.com/yuki5321/AIsindan/internal/observability"
	"github.com/yuki5321/AIsindan/internal/refine"
	"github.com/yuki5321/AIsindan/internal/symptom"
	"github.com/yuki5321/AIsindan/internal/symptomindex"
)

// Index is the part of *symptomindex.Index the service uses.
type Index interface {
	Current(ctx context.Context) (*symptomindex.Snapshot, error)
	Reload(ctx context.Context) error
	Loaded() bool
}

// SymptomLister is implemented by stores that can list the symptom catalogue.
type SymptomLister interface {
	ListSymptoms(ctx context.Context) ([]domain.Symptom, error)
}

// Config holds the tunables of the service.
type Config struct {
	TopK          int
	ImageSize     int
	MaxImageBytes int
	BoostFactor   float64
	CacheTTL      time.Duration
}

// Deps are the collaborators of the service. Cache and Symptoms may be nil.
type Deps struct {
	Predictor  classifier.Predictor
	Index      Index
	Normalizer *symptom.Normalizer
	Cache      cache.Provider
	Symptoms   SymptomLister
}

// Service implements classification, refinement and symptom lookups.
type Service struct {
	predictor  classifier.Predictor
	adapter    *classifier.Adapter
	index      Index
	normalizer *symptom.Normalizer
	engine     *refine.Engine
	cache      cache.Provider
	symptoms   SymptomLister
	cfg        Config
}

// New builds a service.
func New(deps Deps, cfg Config) *Service {
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = symptom.NewNormalizer(nil)
	}
	return &Service{
		predictor:  deps.Predictor,
		adapter:    classifier.NewAdapter(len(domain.ClassLabels), cfg.TopK),
		index:      deps.Index,
		normalizer: normalizer,
		engine:     refine.NewEngine(deps.Index, normalizer, cfg.BoostFactor),
		cache:      deps.Cache,
		symptoms:   deps.Symptoms,
		cfg:        cfg,
	}
}

// Engine returns the refinement engine.
func (s *Service) Engine() *refine.Engine {
	return s.engine
}

// ModelID identifies the classifier backend.
func (s *Service) ModelID() string {
	if s.predictor == nil {
		return ""
	}
	return s.predictor.ModelID()
}

// Close releases the classifier.
func (s *Service) Close() error {
	if s.predictor == nil {
		return nil
	}
	return s.predictor.Close()
}

// Classify decodes an image payload, runs the classifier and returns the top
// candidates with their stored condition records.
func (s *Service) Classify(ctx context.Context, imageField string) ([]domain.Candidate, error) {
	ctx, span := observability.StartSpan(ctx, "diagnosis.Classify")
	defer span.End()

	data, err := classifier.DecodeImagePayload(imageField, s.cfg.MaxImageBytes)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("image.bytes", len(data)))

	preds, err := s.predict(ctx, data)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	return s.resolve(ctx, preds), nil
}

func (s *Service) predict(ctx context.Context, data []byte) ([]classifier.Prediction, error) {
	if s.predictor == nil {
		return nil, &classifier.UnavailableError{Err: errors.New("no classifier configured")}
	}
	logger := observability.LoggerFromContext(ctx)

	sum := sha256.Sum256(data)
	key := fmt.Sprintf("classify:%s:%s", s.predictor.ModelID(), hex.EncodeToString(sum[:]))

	if s.cache != nil {
		cached, err := cache.GetJSON[[]classifier.Prediction](ctx, s.cache, key)
		switch {
		case err == nil:
			classifyCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		case errors.Is(err, cache.ErrMiss):
			classifyCacheTotal.WithLabelValues("miss").Inc()
		default:
			classifyCacheTotal.WithLabelValues("error").Inc()
			logger.Warn().Err(err).Msg("classification cache read failed")
		}
	}

	input, err := classifier.Preprocess(data, s.cfg.ImageSize)
	if err != nil {
		return nil, err
	}

	probs, err := s.predictor.Predict(ctx, input)
	if err != nil {
		return nil, err
	}

	preds, err := s.adapter.TopK(probs)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, preds, s.cfg.CacheTTL); err != nil {
			logger.Warn().Err(err).Msg("classification cache write failed")
		}
	}
	return preds, nil
}

func (s *Service) resolve(ctx context.Context, preds []classifier.Prediction) []domain.Candidate {
	snap := symptomindex.Empty()
	if s.index != nil {
		current, err := s.index.Current(ctx)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("condition records unavailable, using class labels")
		} else {
			snap = current
		}
	}

	out := make([]domain.Candidate, 0, len(preds))
	for _, p := range preds {
		label := fmt.Sprintf("class %d", p.Class)
		if p.Class >= 0 && p.Class < len(domain.ClassLabels) {
			label = domain.ClassLabels[p.Class]
		}

		cond, ok := snap.ConditionByName(label)
		if !ok {
			fallbackConditionsTotal.Inc()
			cond = domain.FallbackCondition(label)
		}
		out = append(out, domain.Candidate{Disease: cond, Confidence: p.Probability})
	}
	return out
}

// Refine re-ranks candidates with the caller's symptoms.
func (s *Service) Refine(ctx context.Context, req refine.Request) (*refine.Result, error) {
	ctx, span := observability.StartSpan(ctx, "diagnosis.Refine")
	defer span.End()
	span.SetAttributes(
		attribute.Int("refine.candidates", len(req.Candidates)),
		attribute.Int("refine.symptoms", len(req.Symptoms)),
	)

	res, err := s.engine.Refine(ctx, req)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("refine.boost_skipped", res.BoostSkipped))
	return res, nil
}

// SymptomMatch is a condition ranked by symptoms alone.
type SymptomMatch struct {
	Disease         domain.Condition `json:"disease"`
	Score           float64          `json:"score"`
	Confidence      int              `json:"confidence"`
	MatchedSymptoms []string         `json:"matched_symptoms"`
}

// RankBySymptoms scores every condition by the summed relevance of its
// matching symptoms. Confidence is the score as a percentage of the best
// score, capped at 100. Conditions without a match are left out.
func (s *Service) RankBySymptoms(ctx context.Context, raw []string) ([]SymptomMatch, error) {
	ctx, span := observability.StartSpan(ctx, "diagnosis.RankBySymptoms")
	defer span.End()

	selected := symptom.NormalizeAll(raw)
	if selected.Len() == 0 {
		return nil, &refine.EmptyRequestError{Field: "symptom"}
	}
	expanded := s.normalizer.Expand(selected)

	snap, err := s.snapshot(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	matches := []SymptomMatch{}
	maxScore := 0.0
	for _, c := range snap.Conditions() {
		matched := snap.Lookup(c.ID).Intersect(expanded)
		if matched.Len() == 0 {
			continue
		}
		names := matched.Sorted()
		score := 0.0
		for _, name := range names {
			score += snap.Relevance(c.ID, name)
		}
		maxScore = math.Max(maxScore, score)
		matches = append(matches, SymptomMatch{Disease: c, Score: score, MatchedSymptoms: names})
	}

	denominator := math.Max(maxScore, 1)
	for i := range matches {
		pct := math.Round(matches[i].Score / denominator * 100)
		matches[i].Confidence = int(math.Min(pct, 100))
	}

	// Conditions come ordered by name, so equal scores stay alphabetical.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	span.SetAttributes(attribute.Int("symptoms.matches", len(matches)))
	return matches, nil
}

// Conditions lists every known condition.
func (s *Service) Conditions(ctx context.Context) ([]domain.Condition, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Conditions(), nil
}

// Condition returns one condition by ID.
func (s *Service) Condition(ctx context.Context, id string) (domain.Condition, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return domain.Condition{}, err
	}
	c, ok := snap.Condition(id)
	if !ok {
		return domain.Condition{}, apperrors.NewNotFoundError(fmt.Sprintf("condition with id %s not found", id))
	}
	return c, nil
}

// Symptoms lists the symptom catalogue. Stores without a catalogue yield an
// empty list.
func (s *Service) Symptoms(ctx context.Context) ([]domain.Symptom, error) {
	if s.symptoms == nil {
		return []domain.Symptom{}, nil
	}
	out, err := s.symptoms.ListSymptoms(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailableError("symptom catalogue unavailable", err)
	}
	if out == nil {
		out = []domain.Symptom{}
	}
	return out, nil
}

// IndexStatus describes the loaded index generation.
type IndexStatus struct {
	Loaded       bool      `json:"loaded"`
	Conditions   int       `json:"conditions"`
	Associations int       `json:"associations"`
	LoadedAt     *time.Time `json:"loaded_at,omitempty"`
}

// ReloadIndex rebuilds the disease-symptom index from the store.
func (s *Service) ReloadIndex(ctx context.Context) (IndexStatus, error) {
	if s.index == nil {
		return IndexStatus{}, &symptomindex.UnavailableError{Err: errors.New("no index configured")}
	}
	if err := s.index.Reload(ctx); err != nil {
		return IndexStatus{}, err
	}
	return s.IndexStatus(ctx), nil
}

// IndexStatus reports the current index without triggering a load.
func (s *Service) IndexStatus(ctx context.Context) IndexStatus {
	if s.index == nil || !s.index.Loaded() {
		return IndexStatus{}
	}
	snap, err := s.index.Current(ctx)
	if err != nil {
		return IndexStatus{}
	}
	conditions, associations := snap.Size()
	loadedAt := snap.LoadedAt()
	return IndexStatus{
		Loaded:       true,
		Conditions:   conditions,
		Associations: associations,
		LoadedAt:     &loadedAt,
	}
}

func (s *Service) snapshot(ctx context.Context) (*symptomindex.Snapshot, error) {
	if s.index == nil {
		return nil, apperrors.NewUnavailableError("disease-symptom index unavailable", errors.New("no index configured"))
	}
	snap, err := s.index.Current(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailableError("disease-symptom index unavailable", err)
	}
	return snap, nil
}
