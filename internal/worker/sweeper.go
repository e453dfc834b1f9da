// Package worker runs the background maintenance of the web client.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"moneybook/internal/log"
)

// Sweeper removes expired state and reports how many entries it dropped.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepFunc adapts a function to Sweeper.
type SweepFunc func(ctx context.Context) (int, error)

func (f SweepFunc) Sweep(ctx context.Context) (int, error) { return f(ctx) }

// SessionSweeper deletes expired sessions on a fixed interval so that the
// store does not grow with abandoned logins.
type SessionSweeper struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *log.Logger
	removed  atomic.Int64
}

func NewSessionSweeper(s Sweeper, interval time.Duration, logger *log.Logger) *SessionSweeper {
	if logger == nil {
		logger = log.Discard()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeper{
		sweeper:  s,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Removed returns the number of sessions deleted since start.
func (w *SessionSweeper) Removed() int64 {
	return w.removed.Load()
}

// Run sweeps once at startup and then on every tick until ctx is done.
func (w *SessionSweeper) Run(ctx context.Context) {
	w.logger.InfoContext(ctx, "Session sweeper started", "interval", w.interval.String())
	w.sweepOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Session sweeper stopped", "removed_total", w.removed.Load())
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *SessionSweeper) sweepOnce(ctx context.Context) {
	start := time.Now()
	n, err := w.sweeper.Sweep(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.ErrorContext(ctx, "Session sweep failed", log.FieldError, err)
		return
	}
	w.removed.Add(int64(n))
	if n > 0 {
		w.logger.InfoContext(ctx, "Expired sessions removed",
			"count", n,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}
