package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var prunedSessions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sarir_sessions_pruned_total",
	Help: "Expired session rows removed by the background pruner.",
})

// Pruner periodically deletes expired session rows. Revoked-but-unexpired
// rows are kept until expiry so they stay visible in session listings.
type Pruner struct {
	store    Store
	interval time.Duration
	log      *slog.Logger
}

// NewPruner builds a Pruner running every interval.
func NewPruner(store Store, interval time.Duration, log *slog.Logger) *Pruner {
	if interval <= 0 {
		interval = DefaultConfig().PruneInterval
	}
	return &Pruner{store: store, interval: interval, log: log}
}

// Run blocks until ctx is cancelled, pruning once per interval. A failed
// sweep is logged and retried on the next tick; it never stops the loop.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.sweep(ctx, now)
		}
	}
}

func (p *Pruner) sweep(ctx context.Context, now time.Time) {
	n, err := p.store.PruneExpired(ctx, now.UTC())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.log.Error("session prune failed", "error", err)
		return
	}
	if n > 0 {
		prunedSessions.Add(float64(n))
		p.log.Info("pruned expired sessions", "count", n)
	}
}
