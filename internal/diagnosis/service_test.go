package diagnosis

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuki5321/AIsindan/internal/apperrors"
	"github.com/yuki5321/AIsindan/internal/cache"
	"github.com/yuki5321/AIsindan/internal/classifier"
	"github.com/yuki5321/AIsindan/internal/domain"
	"github.com/yuki5321/AIsindan/internal/refine"
	"github.com/yuki5321/AIsindan/internal/store/seed"
	"github.com/yuki5321/AIsindan/internal/symptom"
	"github.com/yuki5321/AIsindan/internal/symptomindex"
)

// melanoma first, then basal cell carcinoma, then the rest.
var probs = []float32{0.02, 0.2, 0.05, 0.03, 0.6, 0.07, 0.03}

type failingIndex struct{}

func (failingIndex) Current(context.Context) (*symptomindex.Snapshot, error) {
	return nil, &symptomindex.UnavailableError{Err: errors.New("db down")}
}
func (failingIndex) Reload(context.Context) error {
	return &symptomindex.UnavailableError{Err: errors.New("db down")}
}
func (failingIndex) Loaded() bool { return false }

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("redis: connection refused")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("redis: connection refused")
}
func (brokenCache) Delete(context.Context, string) error         { return nil }
func (brokenCache) Exists(context.Context, string) (bool, error) { return false, nil }

type failingLister struct{}

func (failingLister) ListSymptoms(context.Context) ([]domain.Symptom, error) {
	return nil, errors.New("timeout")
}

func pngField(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

type fixture struct {
	svc       *Service
	predictor *classifier.StaticPredictor
	cache     *cache.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store, err := seed.Default()
	require.NoError(t, err)
	syn, err := symptom.DefaultSynonyms()
	require.NoError(t, err)

	predictor := classifier.NewStaticPredictor(probs)
	mem := cache.NewMemory()
	svc := New(Deps{
		Predictor:  predictor,
		Index:      symptomindex.New(store, symptomindex.DefaultOptions()),
		Normalizer: symptom.NewNormalizer(syn),
		Cache:      mem,
		Symptoms:   store,
	}, Config{TopK: 3, ImageSize: 28, BoostFactor: 0.25, CacheTTL: time.Minute})
	return fixture{svc: svc, predictor: predictor, cache: mem}
}

func TestClassifyResolvesStoredConditions(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Classify(context.Background(), pngField(t))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "melanoma", got[0].Disease.NameEN)
	assert.Equal(t, "5", got[0].Disease.ID)
	assert.InDelta(t, 0.6, got[0].Confidence, 1e-6)
	assert.Equal(t, "basal cell carcinoma", got[1].Disease.NameEN)
	assert.Len(t, f.predictor.LastInput(), 28*28*3)
}

func TestClassifyUsesCache(t *testing.T) {
	f := newFixture(t)
	field := pngField(t)

	first, err := f.svc.Classify(context.Background(), field)
	require.NoError(t, err)
	second, err := f.svc.Classify(context.Background(), field)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.predictor.CallCount())
}

func TestClassifyIgnoresCacheFailures(t *testing.T) {
	predictor := classifier.NewStaticPredictor(probs)
	svc := New(Deps{Predictor: predictor, Cache: brokenCache{}}, Config{})

	got, err := svc.Classify(context.Background(), pngField(t))
	require.NoError(t, err)
	assert.Len(t, got, classifier.DefaultTopK)
}

func TestClassifyFallsBackWithoutIndex(t *testing.T) {
	predictor := classifier.NewStaticPredictor(probs)
	svc := New(Deps{Predictor: predictor, Index: failingIndex{}}, Config{TopK: 1})

	got, err := svc.Classify(context.Background(), pngField(t))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.FallbackCondition("melanoma"), got[0].Disease)
}

func TestClassifyErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Classify(context.Background(), "data:image/gif;base64,R0lGODlh")
	var unsupported *classifier.UnsupportedMediaError
	assert.ErrorAs(t, err, &unsupported)

	_, err = f.svc.Classify(context.Background(), "not base64!")
	var invalid *classifier.InvalidImageError
	assert.ErrorAs(t, err, &invalid)

	f.predictor.FailWith(&classifier.UnavailableError{Err: errors.New("model down")})
	_, err = f.svc.Classify(context.Background(), pngField(t))
	var unavailable *classifier.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestClassifyRejectsWrongVectorLength(t *testing.T) {
	svc := New(Deps{Predictor: classifier.NewStaticPredictor([]float32{0.5, 0.5})}, Config{})
	_, err := svc.Classify(context.Background(), pngField(t))
	var invalid *classifier.InvalidVectorError
	assert.ErrorAs(t, err, &invalid)
}

func TestClassifyWithoutPredictor(t *testing.T) {
	svc := New(Deps{}, Config{})
	_, err := svc.Classify(context.Background(), pngField(t))
	var unavailable *classifier.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestRefineBoostsMatchingCondition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	initial, err := f.svc.Classify(ctx, pngField(t))
	require.NoError(t, err)

	res, err := f.svc.Refine(ctx, refine.Request{
		Candidates: initial,
		Symptoms:   []string{"Pearly bump", "Ulceration"},
	})
	require.NoError(t, err)
	assert.False(t, res.BoostSkipped)
	assert.Equal(t, "basal cell carcinoma", res.Results[0].Disease.NameEN)
	assert.Equal(t, []string{"pearly_bump", "ulceration"}, res.Results[0].MatchedSymptoms)
	assert.InDelta(t, 1.0, domain.SumConfidence(res.Results), 1e-9)
}

func TestRefineDegradesWhenIndexFails(t *testing.T) {
	svc := New(Deps{Index: failingIndex{}}, Config{BoostFactor: 0.25})
	res, err := svc.Refine(context.Background(), refine.Request{
		Candidates: []domain.Candidate{{Disease: domain.Condition{ID: "5", NameEN: "melanoma"}, Confidence: 0.4}},
		Symptoms:   []string{"itching"},
	})
	require.NoError(t, err)
	assert.True(t, res.BoostSkipped)
	assert.InDelta(t, 1.0, res.Results[0].Confidence, 1e-9)
}

func TestRankBySymptoms(t *testing.T) {
	f := newFixture(t)

	matches, err := f.svc.RankBySymptoms(context.Background(), []string{"Bleeding", "Itching", "Irregular border"})
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	// melanoma: irregular_margins 3 + bleeding 1 + itching 1.
	assert.Equal(t, "melanoma", matches[0].Disease.NameEN)
	assert.Equal(t, 5.0, matches[0].Score)
	assert.Equal(t, 100, matches[0].Confidence)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
		assert.LessOrEqual(t, matches[i].Confidence, 100)
	}

	byName := map[string]SymptomMatch{}
	for _, m := range matches {
		byName[m.Disease.NameEN] = m
	}
	// dermatofibroma: itching 1 out of a best score of 5.
	assert.Equal(t, 20, byName["dermatofibroma"].Confidence)
	_, ok := byName["melanocytic nevi"]
	assert.False(t, ok, "conditions without a match are omitted")
}

func TestRankBySymptomsTiesAreAlphabetical(t *testing.T) {
	f := newFixture(t)

	matches, err := f.svc.RankBySymptoms(context.Background(), []string{"bleeding"})
	require.NoError(t, err)

	var names []string
	for _, m := range matches {
		names = append(names, m.Disease.NameEN)
	}
	assert.Equal(t, []string{
		"basal cell carcinoma",
		"vascular lesions",
		domain.ClassLabels[0],
		"melanoma",
	}, names)
}

func TestRankBySymptomsEmpty(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RankBySymptoms(context.Background(), []string{" ", "!!"})
	var empty *refine.EmptyRequestError
	assert.ErrorAs(t, err, &empty)
}

func TestRankBySymptomsIndexUnavailable(t *testing.T) {
	svc := New(Deps{Index: failingIndex{}}, Config{})
	_, err := svc.RankBySymptoms(context.Background(), []string{"itching"})
	assert.Equal(t, apperrors.ErrorTypeUnavailable, apperrors.TypeOf(err))
}

func TestConditionLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Condition(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, "dermatofibroma", c.NameEN)

	_, err = f.svc.Condition(ctx, "999")
	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.TypeOf(err))

	all, err := f.svc.Conditions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(domain.ClassLabels))
}

func TestSymptoms(t *testing.T) {
	f := newFixture(t)
	list, err := f.svc.Symptoms(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	empty, err := New(Deps{}, Config{}).Symptoms(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = New(Deps{Symptoms: failingLister{}}, Config{}).Symptoms(context.Background())
	assert.Equal(t, apperrors.ErrorTypeUnavailable, apperrors.TypeOf(err))
}

func TestReloadIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.False(t, f.svc.IndexStatus(ctx).Loaded)

	status, err := f.svc.ReloadIndex(ctx)
	require.NoError(t, err)
	assert.True(t, status.Loaded)
	assert.Equal(t, len(domain.ClassLabels), status.Conditions)
	assert.Positive(t, status.Associations)

	_, err = New(Deps{Index: failingIndex{}}, Config{}).ReloadIndex(ctx)
	var unavailable *symptomindex.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}
