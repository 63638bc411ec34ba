package classifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuki5321/AIsindan/internal/retry"
)

type scriptedPredictor struct {
	mu    sync.Mutex
	steps []error
	calls int
	probs []float32
	delay time.Duration
}

func (s *scriptedPredictor) Predict(ctx context.Context, input []float32) ([]float32, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if i < len(s.steps) && s.steps[i] != nil {
		return nil, s.steps[i]
	}
	return s.probs, nil
}

func (s *scriptedPredictor) ModelID() string { return "scripted" }
func (s *scriptedPredictor) Close() error    { return nil }

func (s *scriptedPredictor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestWithRetry_TransientThenSuccess(t *testing.T) {
	inner := &scriptedPredictor{
		steps: []error{&UnavailableError{Err: errors.New("down")}},
		probs: []float32{1},
	}
	p := WithRetry(inner, fastRetry())

	probs, err := p.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, probs)
	assert.Equal(t, 2, inner.callCount())
}

func TestWithRetry_ExhaustionIsUnavailable(t *testing.T) {
	down := &UnavailableError{Err: errors.New("down")}
	inner := &scriptedPredictor{steps: []error{down, down, down}}
	p := WithRetry(inner, fastRetry())

	_, err := p.Predict(context.Background(), nil)
	var unavailable *UnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 3, inner.callCount())
}

func TestWithRetry_TimeoutIsRetriedThenUnavailable(t *testing.T) {
	inner := &scriptedPredictor{delay: 50 * time.Millisecond}
	cfg := fastRetry()
	cfg.MaxAttempts = 2
	cfg.AttemptTimeout = 2 * time.Millisecond
	p := WithRetry(inner, cfg)

	_, err := p.Predict(context.Background(), nil)
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, inner.callCount())
}

func TestWithRetry_PermanentErrorNotRetried(t *testing.T) {
	inner := &scriptedPredictor{steps: []error{&InvalidVectorError{Reason: "bad"}}}
	p := WithRetry(inner, fastRetry())

	_, err := p.Predict(context.Background(), nil)
	var invalid *InvalidVectorError
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, inner.callCount())
}

func TestNewPredictor_Static(t *testing.T) {
	p, err := NewPredictor(PredictorConfig{Backend: BackendStatic, NumClasses: 4})
	require.NoError(t, err)
	probs, err := p.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, probs)
}

func TestNewPredictor_Unknown(t *testing.T) {
	_, err := NewPredictor(PredictorConfig{Backend: "tensorflow"})
	assert.Error(t, err)
}

func TestNewPredictor_ONNXRequiresModel(t *testing.T) {
	_, err := NewPredictor(PredictorConfig{Backend: BackendONNX, NumClasses: 7})
	assert.Error(t, err)
}

func TestStaticPredictor_FailWith(t *testing.T) {
	p := NewStaticPredictor([]float32{0.5, 0.5})
	p.FailWith(errors.New("nope"))
	_, err := p.Predict(context.Background(), []float32{1})
	assert.Error(t, err)
	assert.Equal(t, 1, p.CallCount())
	assert.Equal(t, []float32{1}, p.LastInput())
}
