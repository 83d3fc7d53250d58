// Package lockout throttles credential guessing. Failures within a sliding
// window are counted per caller; reaching the limit hard-locks the caller for
// a fixed duration. PIN logins carry no claimed identity and draw from a
// 10,000-value space, so this gate is a required control for them, not
// optional hardening.
package lockout

import (
	"context"
	"log/slog"
	"time"

	"corebank/internal/platform/config"
	dErrors "corebank/pkg/domain-errors"
)

// Record tracks one caller's recent failures. Stored with a TTL so abandoned
// records age out on their own.
type Record struct {
	FailureCount int        `json:"failure_count"`
	FirstFailure time.Time  `json:"first_failure"`
	LastFailure  time.Time  `json:"last_failure"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
}

// Store is a keyed record repository. Get returns (nil, nil) for an unknown
// key; Put replaces the record and refreshes its TTL.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, key string, record *Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Result is the outcome of a pre-authentication check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// ErrLocked is returned through handlers as 403 with a retry hint.
var ErrLocked = dErrors.New(dErrors.CodeForbidden, "too many failed attempts, try again later")

type Service struct {
	store  Store
	cfg    config.LockoutConfig
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, cfg config.LockoutConfig, opts ...Option) *Service {
	svc := &Service{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Check reports whether the caller may attempt authentication right now.
func (s *Service) Check(ctx context.Context, key string) (Result, error) {
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "lockout lookup failed")
	}
	if record == nil {
		return Result{Allowed: true, Remaining: s.cfg.AttemptsPerWindow}, nil
	}

	now := s.now()
	if record.LockedUntil != nil && now.Before(*record.LockedUntil) {
		return Result{Allowed: false, RetryAfter: record.LockedUntil.Sub(now)}, nil
	}
	if now.Sub(record.LastFailure) > s.cfg.WindowDuration {
		// Window expired; the record is stale.
		return Result{Allowed: true, Remaining: s.cfg.AttemptsPerWindow}, nil
	}
	remaining := s.cfg.AttemptsPerWindow - record.FailureCount
	if remaining <= 0 {
		resetAt := record.LastFailure.Add(s.cfg.WindowDuration)
		return Result{Allowed: false, RetryAfter: resetAt.Sub(now)}, nil
	}
	return Result{Allowed: true, Remaining: remaining}, nil
}

// RecordFailure counts a failed attempt and reports whether this failure
// tripped a hard lock.
func (s *Service) RecordFailure(ctx context.Context, key string) (bool, error) {
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "lockout lookup failed")
	}

	now := s.now()
	if record == nil || now.Sub(record.LastFailure) > s.cfg.WindowDuration {
		record = &Record{FirstFailure: now}
	}
	record.FailureCount++
	record.LastFailure = now

	locked := false
	if record.FailureCount >= s.cfg.AttemptsPerWindow && record.LockedUntil == nil {
		until := now.Add(s.cfg.LockDuration)
		record.LockedUntil = &until
		locked = true
		s.logger.Warn("caller locked out", "key", key, "failures", record.FailureCount,
			"locked_until", until)
	}

	ttl := s.cfg.WindowDuration
	if s.cfg.LockDuration > ttl {
		ttl = s.cfg.LockDuration
	}
	if err := s.store.Put(ctx, key, record, ttl); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "lockout update failed")
	}
	return locked, nil
}

// Clear wipes the caller's failure history after a successful authentication.
func (s *Service) Clear(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "lockout clear failed")
	}
	return nil
}
