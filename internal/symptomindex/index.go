package symptomindex

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/yuki5321/AIsindan/internal/domain"
	"github.com/yuki5321/AIsindan/internal/observability"
	"github.com/yuki5321/AIsindan/internal/retry"
)

// Store is the read side of the disease/symptom store.
type Store interface {
	ListConditions(ctx context.Context) ([]domain.Condition, error)
	ListAssociations(ctx context.Context) ([]Association, error)
}

// DefaultFailureCooldown is how long a failed lazy load is remembered before
// Current tries the store again.
const DefaultFailureCooldown = 30 * time.Second

// Options tunes how the index talks to its store. A zero FailureCooldown
// means DefaultFailureCooldown; a negative one retries on every call.
type Options struct {
	Timeout         time.Duration
	Retry           retry.Config
	FailureCooldown time.Duration
}

// DefaultOptions uses a 5s per-call timeout and two retries.
func DefaultOptions() Options {
	cfg := retry.DefaultConfig()
	cfg.AttemptTimeout = 5 * time.Second
	return Options{Timeout: 5 * time.Second, Retry: cfg, FailureCooldown: DefaultFailureCooldown}
}

type loadFailure struct {
	at  time.Time
	err error
}

// Index owns the current Snapshot. Readers always see a complete snapshot;
// Reload builds a new one and swaps it in atomically.
type Index struct {
	store    Store
	opts     Options
	validate *validator.Validate
	current  atomic.Pointer[Snapshot]
	failure  atomic.Pointer[loadFailure]
	group    singleflight.Group
	now      func() time.Time
}

// New creates an index over store. Nothing is loaded until Current or Reload
// is called.
func New(store Store, opts Options) *Index {
	if opts.Timeout > 0 && opts.Retry.AttemptTimeout == 0 {
		opts.Retry.AttemptTimeout = opts.Timeout
	}
	if opts.FailureCooldown == 0 {
		opts.FailureCooldown = DefaultFailureCooldown
	}
	return &Index{
		store:    store,
		opts:     opts,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Current returns the current snapshot, loading it on first use. Concurrent
// first callers share a single load, which runs detached from any one
// caller's cancellation. A failed load returns *UnavailableError; for the
// cooldown that follows, Current fails fast with the same error instead of
// going back to the store.
func (idx *Index) Current(ctx context.Context) (*Snapshot, error) {
	if snap := idx.current.Load(); snap != nil {
		return snap, nil
	}
	if err := idx.coolingDown(); err != nil {
		return nil, err
	}

	ch := idx.group.DoChan("load", func() (any, error) {
		if snap := idx.current.Load(); snap != nil {
			return snap, nil
		}
		snap, err := Load(context.WithoutCancel(ctx), idx.store, idx.opts, idx.validate, idx.now)
		recordLoad("lazy", snap, err)
		if err != nil {
			idx.failure.Store(&loadFailure{at: idx.now(), err: err})
			return nil, err
		}
		idx.current.Store(snap)
		idx.failure.Store(nil)
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, &UnavailableError{Err: ctx.Err()}
	}
}

func (idx *Index) coolingDown() error {
	f := idx.failure.Load()
	if f == nil || idx.opts.FailureCooldown < 0 {
		return nil
	}
	if idx.now().Sub(f.at) >= idx.opts.FailureCooldown {
		return nil
	}
	return f.err
}

// Reload fetches a fresh snapshot and swaps it in. On failure the previous
// snapshot stays in place.
func (idx *Index) Reload(ctx context.Context) error {
	snap, err := Load(ctx, idx.store, idx.opts, idx.validate, idx.now)
	recordLoad("reload", snap, err)
	if err != nil {
		return err
	}
	idx.current.Store(snap)
	idx.failure.Store(nil)

	conditions, associations := snap.Size()
	observability.LoggerFromContext(ctx).Info().
		Int("conditions", conditions).
		Int("associations", associations).
		Msg("disease-symptom index reloaded")
	return nil
}

// Loaded reports whether a snapshot is in place.
func (idx *Index) Loaded() bool {
	return idx.current.Load() != nil
}

// Load reads every condition and association from store and builds a
// snapshot. Conditions failing validation are skipped and logged. Any store
// failure is reported as *UnavailableError.
func Load(ctx context.Context, store Store, opts Options, validate *validator.Validate, now func() time.Time) (*Snapshot, error) {
	if store == nil {
		return nil, &UnavailableError{Err: fmt.Errorf("no store configured")}
	}
	if validate == nil {
		validate = validator.New()
	}
	if now == nil {
		now = time.Now
	}
	logger := observability.LoggerFromContext(ctx)

	var conditions []domain.Condition
	err := retry.DoWithLog(ctx, opts.Retry, func(ctx context.Context) error {
		var err error
		conditions, err = store.ListConditions(ctx)
		return err
	}, func(attempt int, err error, next time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("listing conditions failed")
	})
	if err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("list conditions: %w", err)}
	}

	var associations []Association
	err = retry.DoWithLog(ctx, opts.Retry, func(ctx context.Context) error {
		var err error
		associations, err = store.ListAssociations(ctx)
		return err
	}, func(attempt int, err error, next time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("listing associations failed")
	})
	if err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("list associations: %w", err)}
	}

	valid := make([]domain.Condition, 0, len(conditions))
	for _, c := range conditions {
		if err := validate.Struct(c); err != nil {
			logger.Warn().Err(err).Str("condition_id", c.ID).Msg("skipping invalid condition")
			continue
		}
		valid = append(valid, c)
	}

	return NewSnapshot(valid, associations, now()), nil
}
