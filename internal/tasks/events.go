package tasks

import (
	"context"
	"sync"

	"finsight/internal/domain/task"
	"finsight/internal/metrics"
)

// eventQueue delivers record snapshots to observers on one goroutine, in the
// order they were pushed. Pushes never block on observers.
type eventQueue struct {
	family    string
	observers []Observer

	mu      sync.Mutex
	pending []task.Record
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newEventQueue(family string, observers []Observer) *eventQueue {
	q := &eventQueue{
		family:    family,
		observers: observers,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go q.drain()
	return q
}

// push appends rec. Callers hold the manager lock, so queue order matches
// the order transitions were applied.
func (q *eventQueue) push(rec task.Record) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, rec)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch, closed := q.pending, q.closed
		q.pending = nil
		q.mu.Unlock()

		for _, rec := range batch {
			metrics.RecordTaskTransition(q.family, string(rec.Status))
			for _, o := range q.observers {
				o.TaskTransition(context.Background(), rec)
			}
		}
		if closed && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-q.wake
		}
	}
}

// close stops accepting events and waits until queued ones are delivered or
// ctx ends
func (q *eventQueue) close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
