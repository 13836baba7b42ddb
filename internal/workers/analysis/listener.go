package analysis

import (
	"context"
	"strings"
	"sync"
	"time"

	"finsight/internal/adapters/config"
	domain "finsight/internal/domain/analysis"
	"finsight/internal/domain/task"
	"finsight/internal/workers"
	"finsight/pkg/errors"
)

// JobSubmitter is the part of the analysis facade the listener drives
type JobSubmitter interface {
	SubmitAnalysisJob(ctx context.Context, symbol string, req domain.Request) (string, error)
	GetTask(id string) (task.Record, error)
}

// Listener submits one analysis job per watchlist ticker on every tick.
// A ticker whose previous job is still live is skipped.
type Listener struct {
	*workers.Base
	jobs      JobSubmitter
	snapshots config.SnapshotSource
	mode      string

	mu       sync.Mutex
	inflight map[string]string
}

// NewListener creates the listener worker. It is a no-op on ticks where the
// runtime snapshot has LISTENER_ENABLED off.
func NewListener(jobs JobSubmitter, snapshots config.SnapshotSource, interval time.Duration) *Listener {
	return &Listener{
		Base:      workers.NewBase("watchlist_listener", interval, true),
		jobs:      jobs,
		snapshots: snapshots,
		mode:      "stock",
		inflight:  make(map[string]string),
	}
}

// Run submits jobs for the current watchlist
func (l *Listener) Run(ctx context.Context) error {
	snap, err := l.snapshots.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "read runtime snapshot")
	}
	if !snap.ListenerEnabled {
		l.Logger().Debugw("Listener disabled in runtime config")
		return nil
	}

	entries := snap.WatchlistEntries()
	if len(entries) == 0 {
		l.Logger().Debugw("Watchlist is empty")
		return nil
	}

	submitted, skipped := 0, 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			l.Logger().Infow("Listener interrupted by shutdown", "submitted", submitted)
			return nil
		}

		ticker := strings.ToUpper(entry.Ticker)
		if l.live(ticker) {
			skipped++
			continue
		}

		req := domain.Request{Mode: l.mode}
		if len(entry.Aliases) > 0 {
			req.Title = entry.Aliases[0] + " (" + ticker + ")"
		}
		id, err := l.jobs.SubmitAnalysisJob(ctx, ticker, req)
		if err != nil {
			if errors.Is(err, errors.ErrUnavailable) {
				l.Logger().Warnw("Task manager full, deferring remaining tickers", "ticker", ticker, "submitted", submitted)
				break
			}
			l.Logger().Errorw("Failed to submit watchlist job", "ticker", ticker, "error", err)
			continue
		}

		l.mu.Lock()
		l.inflight[ticker] = id
		l.mu.Unlock()
		submitted++
	}

	l.Logger().Infow("Watchlist jobs submitted", "submitted", submitted, "skipped", skipped, "watchlist", len(entries))
	return nil
}

// live reports whether the last job for ticker has not reached a terminal state
func (l *Listener) live(ticker string) bool {
	l.mu.Lock()
	id, ok := l.inflight[ticker]
	l.mu.Unlock()
	if !ok {
		return false
	}

	rec, err := l.jobs.GetTask(id)
	if err != nil || rec.Status.Terminal() {
		l.mu.Lock()
		delete(l.inflight, ticker)
		l.mu.Unlock()
		return false
	}
	return true
}
