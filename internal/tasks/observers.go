package tasks

import (
	"context"

	"finsight/internal/domain/task"
	"finsight/pkg/errors"
)

// TrackerObserver leaves a breadcrumb per transition and reports failed tasks
type TrackerObserver struct {
	tracker errors.Tracker
}

// NewTrackerObserver creates an observer over an error tracker
func NewTrackerObserver(tracker errors.Tracker) *TrackerObserver {
	return &TrackerObserver{tracker: tracker}
}

// TaskTransition implements Observer
func (o *TrackerObserver) TaskTransition(ctx context.Context, rec task.Record) {
	ctx = context.WithValue(context.WithoutCancel(ctx), taskIDKey{}, rec.ID)
	o.tracker.Trail(ctx, "task", string(rec.Status), map[string]any{
		"task_id": rec.ID,
		"family":  rec.Family,
		"kind":    rec.Kind,
	})
	if rec.Status != task.StatusFailed {
		return
	}
	o.tracker.Capture(ctx, errors.Event{
		Message:  "task failed: " + rec.Error,
		Severity: errors.SeverityError,
		Tags:     map[string]string{"family": rec.Family, "kind": rec.Kind},
	})
}
