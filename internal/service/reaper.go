package service

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Pruner deletes expired refresh rows.  SessionService implements it.
type Pruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// TokenReaper runs Pruner on a fixed interval until its context ends.
type TokenReaper struct {
	pruner   Pruner
	interval time.Duration
	logger   *slog.Logger
}

// NewTokenReaper returns a reaper.  A nil logger discards output.
func NewTokenReaper(p Pruner, interval time.Duration, logger *slog.Logger) *TokenReaper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TokenReaper{pruner: p, interval: interval, logger: logger.With("component", "token_reaper")}
}

// Run prunes once immediately, then every interval.  It returns nil when
// ctx is cancelled.
func (r *TokenReaper) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return errors.New("token reaper interval must be positive")
	}
	r.logger.InfoContext(ctx, "starting token reaper", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "token reaper stopping")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *TokenReaper) sweep(ctx context.Context) {
	n, err := r.pruner.PruneExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "prune expired refresh tokens", "error", err)
		}
		return
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "pruned expired refresh tokens", "count", n)
	}
}
