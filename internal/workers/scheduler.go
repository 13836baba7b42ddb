package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finsight/internal/metrics"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

const defaultStopTimeout = 2 * time.Minute

// Scheduler runs registered workers on their own tickers until stopped
type Scheduler struct {
	log         *logger.Logger
	stopTimeout time.Duration

	mu      sync.Mutex
	workers []Worker
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a scheduler. Stop waits at most stopTimeout for
// in-flight runs; a non-positive value selects the default.
func NewScheduler(stopTimeout time.Duration) *Scheduler {
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	return &Scheduler{
		log:         logger.Get().With("component", "scheduler"),
		stopTimeout: stopTimeout,
	}
}

// Add registers a worker. Workers cannot be added while running.
func (s *Scheduler) Add(w Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "add worker %s: scheduler is running", w.Name())
	}
	s.workers = append(s.workers, w)
	s.log.Infow("Worker registered", "worker", w.Name(), "interval", w.Interval())
	return nil
}

// Start launches one loop per enabled worker. Loops end when ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.Wrapf(errors.ErrInternal, "scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	launched := 0
	for _, w := range s.workers {
		switch {
		case !w.Enabled():
			s.log.Infow("Skipping disabled worker", "worker", w.Name())
		case w.Interval() <= 0:
			s.log.Warnw("Skipping worker without interval", "worker", w.Name())
		default:
			wg.Add(1)
			launched++
			go func(w Worker) {
				defer wg.Done()
				s.loop(runCtx, w)
			}(w)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	s.cancel, s.done = cancel, done
	s.log.Infow("Worker scheduler started", "workers", launched, "registered", len(s.workers))
	return nil
}

// Stop cancels all loops and waits for running passes to return
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return errors.Wrapf(errors.ErrInternal, "scheduler not started")
	}
	cancel()

	select {
	case <-done:
		s.log.Infow("Worker scheduler stopped")
		return nil
	case <-time.After(s.stopTimeout):
		s.log.Warnw("Workers still running after stop timeout", "timeout", s.stopTimeout)
		return errors.Wrapf(errors.ErrTimeout, "worker shutdown after %s", s.stopTimeout)
	}
}

func (s *Scheduler) loop(ctx context.Context, w Worker) {
	tick := time.NewTicker(w.Interval())
	defer tick.Stop()

	for {
		s.runOnce(ctx, w)
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// runOnce executes a single pass, converting panics into errors
func (s *Scheduler) runOnce(ctx context.Context, w Worker) {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorw("Worker panicked", "worker", w.Name(), "panic", fmt.Sprint(r))
				err = &errors.PanicError{Value: r}
			}
		}()
		return w.Run(ctx)
	}()
	took := time.Since(start)

	metrics.RecordWorkerExecution(w.Name(), took, err)
	if o, ok := w.(Observed); ok {
		o.Observe(took, err)
	}
	if err != nil && ctx.Err() == nil {
		s.log.Errorw("Worker run failed", "worker", w.Name(), "error", err, "took", took)
	}
}

// Workers returns the registered workers in registration order
func (s *Scheduler) Workers() []Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Worker(nil), s.workers...)
}

// Running reports whether Start has been called without a matching Stop
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
