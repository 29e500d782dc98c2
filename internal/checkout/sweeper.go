package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type StaleOrderStore interface {
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Order, error)
	ExpirePending(ctx context.Context, reference string) (bool, error)
}

// Sweeper expires PENDING orders that never heard back from the gateway,
// e.g. because the transaction request failed after the order was saved.
type Sweeper struct {
	store     StaleOrderStore
	maxAge    time.Duration
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewSweeper(store StaleOrderStore, maxAge, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		maxAge:    maxAge,
		interval:  interval,
		batchSize: 100,
		logger:    logger,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx, time.Now()); err != nil {
				s.logger.Error("failed to sweep pending orders", "error", err, "expired", n)
			} else if n > 0 {
				s.logger.Info("expired stale pending orders", "count", n)
			}
		}
	}
}

// Sweep expires one batch of stale orders and returns how many it changed.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.store.ListStalePending(ctx, now.Add(-s.maxAge), s.batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, order := range stale {
		ok, err := s.store.ExpirePending(ctx, order.Reference)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}
