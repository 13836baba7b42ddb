package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"finsight/internal/adapters/config"
	"finsight/internal/domain/task"
	"finsight/internal/metrics"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

type taskIDKey struct{}

// IDFromContext returns the id of the task running the job, if any
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

// Job is the body of a task. It must call token.Check between steps.
type Job func(ctx context.Context, token *task.CancelToken) (interface{}, error)

// Observer is notified after every record transition. Notifications for one
// manager arrive on a single goroutine in transition order.
type Observer interface {
	TaskTransition(ctx context.Context, rec task.Record)
}

// Option customizes a Manager
type Option func(*Manager)

// WithObserver adds a transition observer
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the in-memory task records of one job family.
// Records are immutable values; every transition replaces the map entry under mu.
type Manager struct {
	family    string
	capacity  int
	sem       *semaphore.Weighted
	observers []Observer
	events    *eventQueue
	now       func() time.Time
	log       *logger.Logger

	mu      sync.RWMutex
	records map[string]task.Record
	tokens  map[string]*task.CancelToken
	seq     uint64
	closed  bool

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewManager creates a manager for family
func NewManager(family string, cfg config.TaskConfig, opts ...Option) *Manager {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 200
	}
	workers := cfg.MaxConcurrent
	if workers <= 0 {
		workers = 1
	}

	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		family:   family,
		capacity: capacity,
		sem:      semaphore.NewWeighted(int64(workers)),
		now:      time.Now,
		log:      logger.Get().With("component", "tasks", "family", family),
		records:  make(map[string]task.Record),
		tokens:   make(map[string]*task.CancelToken),
		ctx:      ctx,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events = newEventQueue(family, m.observers)
	return m
}

// Family returns the job family name
func (m *Manager) Family() string { return m.family }

// Submit records a PENDING task and schedules job. It fails with ErrUnavailable
// when the manager is shut down or every stored record is still live.
func (m *Manager) Submit(kind string, job Job) (string, error) {
	if job == nil {
		return "", errors.NewValidationError("job", "job is nil", kind)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", errors.Wrapf(errors.ErrUnavailable, "%s task manager is shut down", m.family)
	}
	if len(m.records) >= m.capacity && !m.evictLocked() {
		m.mu.Unlock()
		return "", errors.Wrapf(errors.ErrUnavailable, "%s task capacity %d reached", m.family, m.capacity)
	}

	m.seq++
	rec := task.Record{
		ID:        uuid.NewString(),
		Family:    m.family,
		Kind:      kind,
		Status:    task.StatusPending,
		CreatedAt: m.now().UTC(),
	}.WithSeq(m.seq)
	token := task.NewCancelToken()
	m.records[rec.ID] = rec
	m.tokens[rec.ID] = token
	m.wg.Add(1)
	m.events.push(rec)
	m.mu.Unlock()

	go m.run(rec.ID, job, token)
	return rec.ID, nil
}

// evictLocked drops the oldest terminal record. It reports false when all records are live.
func (m *Manager) evictLocked() bool {
	var (
		victim string
		oldest task.Record
	)
	for id, rec := range m.records {
		if !rec.Status.Terminal() {
			continue
		}
		if victim == "" || finishedBefore(rec, oldest) {
			victim, oldest = id, rec
		}
	}
	if victim == "" {
		return false
	}
	delete(m.records, victim)
	delete(m.tokens, victim)
	m.log.Debugw("Evicted task record", "task_id", victim, "status", oldest.Status)
	return true
}

func finishedBefore(a, b task.Record) bool {
	switch {
	case a.FinishedAt == nil || b.FinishedAt == nil:
		return a.Seq() < b.Seq()
	case a.FinishedAt.Equal(*b.FinishedAt):
		return a.Seq() < b.Seq()
	default:
		return a.FinishedAt.Before(*b.FinishedAt)
	}
}

func (m *Manager) run(id string, job Job, token *task.CancelToken) {
	defer m.wg.Done()

	if err := m.sem.Acquire(m.ctx, 1); err != nil {
		m.finish(id, nil, errors.Wrap(errors.ErrCancelled, "manager shut down before start"))
		return
	}
	defer m.sem.Release(1)

	if err := token.Check(); err != nil {
		m.finish(id, nil, err)
		return
	}

	started := m.now().UTC()
	m.transition(id, func(rec *task.Record) {
		rec.Status = task.StatusRunning
		rec.StartedAt = &started
	})

	result, err := m.execute(id, job, token)
	m.finish(id, result, err)
	metrics.RecordTaskDuration(m.family, m.now().Sub(started))
}

// execute runs the job body and converts a panic into an error
func (m *Manager) execute(id string, job Job, token *task.CancelToken) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errors.PanicError{Value: r}
			m.log.Errorw("Task panicked", "task_id", id, "panic", r)
		}
	}()
	return job(context.WithValue(m.ctx, taskIDKey{}, id), token)
}

// finish sets exactly one terminal status
func (m *Manager) finish(id string, result interface{}, err error) {
	finished := m.now().UTC()
	m.transition(id, func(rec *task.Record) {
		rec.FinishedAt = &finished
		switch {
		case err == nil:
			rec.Status = task.StatusSucceeded
			rec.Result = result
		case errors.Is(err, errors.ErrCancelled):
			rec.Status = task.StatusCancelled
		default:
			rec.Status = task.StatusFailed
			rec.Error = err.Error()
		}
	})
	if err != nil && !errors.Is(err, errors.ErrCancelled) {
		m.log.Warnw("Task failed", "task_id", id, "error", err)
	}
}

// transition copies the record, applies fn and stores the copy
func (m *Manager) transition(id string, fn func(rec *task.Record)) {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok || rec.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	fn(&rec)
	m.records[id] = rec
	if rec.Status.Terminal() {
		delete(m.tokens, id)
	}
	m.events.push(rec)
	m.mu.Unlock()
}

// Get returns a snapshot of a task record
func (m *Manager) Get(id string) (task.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return task.Record{}, errors.NotFound("task", id)
	}
	return rec, nil
}

// Has reports whether the manager owns id
func (m *Manager) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id]
	return ok
}

// List returns records, most recently created first
func (m *Manager) List() []task.Record {
	m.mu.RLock()
	out := make([]task.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	m.mu.RUnlock()

	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders records by creation time descending
func SortNewestFirst(records []task.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Seq() > b.Seq()
	})
}

// Cancel requests cooperative cancellation. Cancelling a finished task is a no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return errors.NotFound("task", id)
	}
	if rec.Status.Terminal() || rec.CancelRequested {
		m.mu.Unlock()
		return nil
	}
	rec.CancelRequested = true
	m.records[id] = rec
	token := m.tokens[id]
	m.events.push(rec)
	m.mu.Unlock()

	token.Cancel()
	m.log.Infow("Task cancellation requested", "task_id", id, "status", rec.Status)
	return nil
}

// CancelAll requests cancellation of every live task
func (m *Manager) CancelAll() int {
	m.mu.RLock()
	ids := make([]string, 0, len(m.tokens))
	for id := range m.tokens {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if err := m.Cancel(id); err == nil {
			n++
		}
	}
	return n
}

// Counts returns live and total record counts
func (m *Manager) Counts() (live, total int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if !rec.Status.Terminal() {
			live++
		}
	}
	return live, len(m.records)
}

// Shutdown rejects new submissions, cancels live tasks and waits for them until ctx expires
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	cancelled := m.CancelAll()
	m.log.Infow("Shutting down task manager", "cancelled", cancelled)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.stop()
	case <-ctx.Done():
		m.stop()
		_ = m.events.close(ctx)
		return errors.Wrapf(errors.ErrTimeout, "%s tasks still running: %v", m.family, ctx.Err())
	}

	if err := m.events.close(ctx); err != nil {
		return errors.Wrapf(errors.ErrTimeout, "%s task events not delivered: %v", m.family, err)
	}
	return nil
}
