package main

import (
	"context"
	"fmt"
	"time"

	"github.com/yuki5321/AIsindan/internal/api"
	"github.com/yuki5321/AIsindan/internal/cache"
	"github.com/yuki5321/AIsindan/internal/classifier"
	"github.com/yuki5321/AIsindan/internal/config"
	"github.com/yuki5321/AIsindan/internal/diagnosis"
	"github.com/yuki5321/AIsindan/internal/domain"
	"github.com/yuki5321/AIsindan/internal/observability"
	"github.com/yuki5321/AIsindan/internal/retry"
	"github.com/yuki5321/AIsindan/internal/store/postgres"
	"github.com/yuki5321/AIsindan/internal/store/seed"
	"github.com/yuki5321/AIsindan/internal/symptom"
	"github.com/yuki5321/AIsindan/internal/symptomindex"
)

// catalogue is what the index and the symptom listing read from.
type catalogue interface {
	symptomindex.Store
	diagnosis.SymptomLister
}

type app struct {
	cfg     *config.Config
	svc     *diagnosis.Service
	db      api.HealthChecker
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	logger := observability.LoggerFromContext(ctx)

	synonyms, err := loadSynonyms(cfg.SynonymsPath)
	if err != nil {
		return nil, err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	storeRetry := retry.DefaultConfig()
	storeRetry.AttemptTimeout = cfg.StoreTimeout
	index := symptomindex.New(store, symptomindex.Options{Timeout: cfg.StoreTimeout, Retry: storeRetry})

	predictor, err := classifier.NewPredictor(classifier.PredictorConfig{
		Backend:        cfg.ClassifierBackend,
		NumClasses:     len(domain.ClassLabels),
		ImageSize:      cfg.ImageSize,
		ModelPath:      cfg.ModelPath,
		ORTLibraryPath: cfg.ORTLibraryPath,
		InputName:      cfg.ModelInputName,
		OutputName:     cfg.ModelOutputName,
		URL:            cfg.ClassifierURL,
		Timeout:        cfg.ClassifierTimeout,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("classifier: %w", err)
	}
	if cfg.ClassifierBackend == classifier.BackendStatic {
		logger.Warn().Str("app_env", cfg.Env).Msg("static classifier backend: predictions are a fixed placeholder distribution, not model output")
	}
	predictorRetry := retry.DefaultConfig()
	predictorRetry.MaxAttempts = cfg.ClassifierRetries + 1
	predictorRetry.AttemptTimeout = cfg.ClassifierTimeout

	var resultCache cache.Provider
	if cfg.RedisEnabled {
		client, err := cache.NewClient(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, classification cache disabled")
		} else {
			resultCache = cache.NewRedisAdapter(client, "dermadx:")
			a.closers = append(a.closers, func() { _ = client.Close() })
		}
	}

	a.svc = diagnosis.New(diagnosis.Deps{
		Predictor:  classifier.WithRetry(predictor, predictorRetry),
		Index:      index,
		Normalizer: symptom.NewNormalizer(synonyms),
		Cache:      resultCache,
		Symptoms:   store,
	}, diagnosis.Config{
		TopK:          cfg.TopK,
		ImageSize:     cfg.ImageSize,
		MaxImageBytes: cfg.MaxImageBytes,
		BoostFactor:   cfg.BoostFactor,
		CacheTTL:      cfg.CacheTTL,
	})
	a.closers = append(a.closers, func() { _ = a.svc.Close() })

	logger.Info().
		Str("classifier", a.svc.ModelID()).
		Bool("db", cfg.EnableDB).
		Bool("cache", resultCache != nil).
		Int("synonyms", len(synonyms)).
		Msg("diagnosis service ready")
	return a, nil
}

func (a *app) openStore(ctx context.Context) (catalogue, error) {
	if a.cfg.EnableDB {
		connectRetry := retry.DefaultConfig()
		connectRetry.MaxAttempts = 5
		connectRetry.MaxDelay = 5 * time.Second
		pool, err := postgres.Connect(ctx, a.cfg.DatabaseURL, connectRetry)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		store := postgres.New(pool)
		a.db = store
		a.closers = append(a.closers, store.Close)
		return store, nil
	}

	if a.cfg.SeedPath != "" {
		return seed.Load(a.cfg.SeedPath)
	}
	return seed.Default()
}

func loadSynonyms(path string) (symptom.Synonyms, error) {
	if path == "" {
		return symptom.DefaultSynonyms()
	}
	return symptom.LoadSynonyms(path)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
