package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"finsight/pkg/logger"
)

// Worker is a periodic job. Run performs a single pass; the Scheduler
// invokes it once at start and then on every Interval tick.
type Worker interface {
	Name() string
	Interval() time.Duration
	Enabled() bool
	Run(ctx context.Context) error
}

// Observed is implemented by workers that keep their own run history
type Observed interface {
	Observe(took time.Duration, err error)
}

// Stats is a snapshot of a worker's run history
type Stats struct {
	Runs     int64
	Failures int64
	LastRun  time.Time
	LastErr  error
	MeanTook time.Duration
}

// Base carries the name, cadence and run history shared by all workers.
// Embed it and implement Run.
type Base struct {
	name     string
	interval time.Duration
	enabled  atomic.Bool
	log      *logger.Logger

	mu    sync.Mutex
	stats Stats
	busy  time.Duration
}

// NewBase builds the embeddable part of a worker
func NewBase(name string, interval time.Duration, enabled bool) *Base {
	b := &Base{
		name:     name,
		interval: interval,
		log:      logger.Get().With("worker", name),
	}
	b.enabled.Store(enabled)
	return b
}

func (b *Base) Name() string            { return b.name }
func (b *Base) Interval() time.Duration { return b.interval }
func (b *Base) Enabled() bool           { return b.enabled.Load() }
func (b *Base) Logger() *logger.Logger  { return b.log }

// Toggle switches the worker on or off; it takes effect on the next Start
func (b *Base) Toggle(on bool) {
	if b.enabled.Swap(on) != on {
		b.log.Infow("Worker toggled", "enabled", on)
	}
}

// Observe folds one run into the history
func (b *Base) Observe(took time.Duration, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Runs++
	b.stats.LastRun = time.Now()
	b.stats.LastErr = err
	if err != nil {
		b.stats.Failures++
	}
	b.busy += took
	b.stats.MeanTook = b.busy / time.Duration(b.stats.Runs)
}

// Stats returns a copy of the run history
func (b *Base) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
