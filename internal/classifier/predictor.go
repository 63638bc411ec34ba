package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yuki5321/AIsindan/internal/observability"
	"github.com/yuki5321/AIsindan/internal/retry"
)

// Predictor runs the image model. Input is a preprocessed image tensor;
// output is the probability vector over the known classes.
type Predictor interface {
	Predict(ctx context.Context, input []float32) ([]float32, error)
	ModelID() string
	Close() error
}

// StaticPredictor always returns the same vector. Useful for tests and for
// running the service without a model.
type StaticPredictor struct {
	mu     sync.Mutex
	probs  []float32
	err    error
	calls  int
	latest []float32
}

// NewStaticPredictor returns a predictor that answers with probs.
func NewStaticPredictor(probs []float32) *StaticPredictor {
	return &StaticPredictor{probs: append([]float32(nil), probs...)}
}

// FailWith makes subsequent predictions return err.
func (s *StaticPredictor) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *StaticPredictor) Predict(ctx context.Context, input []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.latest = input
	if s.err != nil {
		return nil, s.err
	}
	return append([]float32(nil), s.probs...), nil
}

// CallCount returns how many predictions were requested.
func (s *StaticPredictor) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastInput returns the input tensor of the most recent call.
func (s *StaticPredictor) LastInput() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *StaticPredictor) ModelID() string { return "static" }

func (s *StaticPredictor) Close() error { return nil }

// RetryPredictor retries transient predictor failures with backoff.
type RetryPredictor struct {
	inner  Predictor
	config retry.Config
}

// WithRetry wraps p so that *UnavailableError and timeouts are retried
// according to cfg. Other errors are returned as-is on the first attempt.
func WithRetry(p Predictor, cfg retry.Config) Predictor {
	cfg.Retryable = isTransient
	return &RetryPredictor{inner: p, config: cfg}
}

func (r *RetryPredictor) Predict(ctx context.Context, input []float32) ([]float32, error) {
	var probs []float32
	logger := observability.LoggerFromContext(ctx)

	err := retry.DoWithLog(ctx, r.config, func(ctx context.Context) error {
		start := time.Now()
		out, err := r.inner.Predict(ctx, input)
		recordInference(r.inner.ModelID(), time.Since(start), err)
		if err != nil {
			return err
		}
		probs = out
		return nil
	}, func(attempt int, err error, next time.Duration) {
		classifierRetriesTotal.WithLabelValues(r.inner.ModelID()).Inc()
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("classifier call failed, retrying")
	})
	if err != nil {
		if isTransient(err) {
			var unavailable *UnavailableError
			if !errors.As(err, &unavailable) {
				err = &UnavailableError{Err: err}
			}
		}
		return nil, err
	}
	return probs, nil
}

func (r *RetryPredictor) ModelID() string { return r.inner.ModelID() }

func (r *RetryPredictor) Close() error { return r.inner.Close() }

func isTransient(err error) bool {
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Backend names accepted by NewPredictor.
const (
	BackendONNX   = "onnx"
	BackendHTTP   = "http"
	BackendStatic = "static"
)

// PredictorConfig selects and configures a predictor backend.
type PredictorConfig struct {
	Backend    string
	NumClasses int
	ImageSize  int

	ModelPath      string
	ORTLibraryPath string
	InputName      string
	OutputName     string

	URL     string
	Timeout time.Duration
}

// NewPredictor builds the configured backend. The static backend returns a
// uniform distribution.
func NewPredictor(cfg PredictorConfig) (Predictor, error) {
	switch cfg.Backend {
	case BackendONNX:
		return NewONNXPredictor(ONNXConfig{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.ORTLibraryPath,
			InputName:   cfg.InputName,
			OutputName:  cfg.OutputName,
			NumClasses:  cfg.NumClasses,
			ImageSize:   cfg.ImageSize,
		})
	case BackendHTTP:
		return NewHTTPPredictor(HTTPConfig{
			URL:       cfg.URL,
			ImageSize: cfg.ImageSize,
			Timeout:   cfg.Timeout,
		})
	case BackendStatic:
		uniform := make([]float32, cfg.NumClasses)
		for i := range uniform {
			uniform[i] = 1 / float32(cfg.NumClasses)
		}
		return NewStaticPredictor(uniform), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}
