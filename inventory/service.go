/*
service.go - Service wiring and the atomic mutation pipeline

PIPELINE:
  Every mutation follows the same shape:
    1. access.Require(ctx, op)
    2. store.WithTx: load immutable snapshots, apply the change, Rederive
       every card whose ledger was touched
    3. on commit, drop the cached summary

  Nothing outside step 2 ever observes a ledger row without its card's
  recomputed status.

CLOCK:
  Transaction timestamps come from Service.Now so tests can pin time.
*/
package inventory

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/sim-inventory/access"
)

// SummaryCache caches CardSummary results. Implementations must tolerate
// Invalidate being called after every committed mutation.
//
// Get reports the cache generation alongside a miss. Set stores a summary
// only for that generation, so a summary computed before an Invalidate is
// never served after it.
type SummaryCache interface {
	Get(ctx context.Context) (sum *Summary, gen int64, ok bool, err error)
	Set(ctx context.Context, gen int64, s Summary) error
	Invalidate(ctx context.Context) error
}

// Service is the entry point for every inventory operation.
type Service struct {
	store TxStore
	now   func() time.Time
	log   logrus.FieldLogger
	cache SummaryCache
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

// WithSummaryCache enables summary caching.
func WithSummaryCache(c SummaryCache) Option {
	return func(s *Service) { s.cache = c }
}

// NewService creates a service over store.
func NewService(store TxStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("module", "inventory")
	return s
}

// Now returns the current service time in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Logger returns the service logger.
func (s *Service) Logger() logrus.FieldLogger {
	return s.log
}

// Store returns the underlying store for read paths in sibling packages.
func (s *Service) Store() TxStore {
	return s.store
}

// Atomic runs fn in one store transaction after checking op's permission.
// Non-business failures are logged; the summary cache is dropped on commit.
func (s *Service) Atomic(ctx context.Context, op access.Operation, fn func(Tx) error) error {
	if err := access.Require(ctx, op); err != nil {
		return err
	}
	if err := s.store.WithTx(ctx, fn); err != nil {
		if !IsBusiness(err) {
			s.log.WithFields(logrus.Fields{"op": op}).WithError(err).Error("store transaction failed")
		}
		return err
	}
	s.invalidateSummary(ctx)
	return nil
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("summary cache invalidation failed")
	}
}
