package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"finsight/internal/tasks"
	"finsight/pkg/errors"
)

const maxFlushWait = 2 * time.Second

// Tracker reports events to Sentry. Events raised inside a task carry its
// id as the task_id tag.
type Tracker struct {
	hub *sentry.Hub
}

var _ errors.Tracker = (*Tracker)(nil)

// New initialises the Sentry client. An empty dsn yields a client that
// accepts events and sends nothing.
func New(dsn, environment, release string) (*Tracker, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "sentry client")
	}
	return &Tracker{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (t *Tracker) Capture(ctx context.Context, ev errors.Event) {
	t.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(severity(ev.Severity))
		scope.SetTags(ev.Tags)
		if id := tasks.IDFromContext(ctx); id != "" {
			scope.SetTag("task_id", id)
		}
		if ev.Err != nil {
			t.hub.CaptureException(ev.Err)
			return
		}
		t.hub.CaptureMessage(ev.Message)
	})
}

func (t *Tracker) Trail(_ context.Context, category, message string, data map[string]any) {
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Data:      data,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}, nil)
}

// Flush blocks until queued events are sent, bounded by ctx and maxFlushWait
func (t *Tracker) Flush(ctx context.Context) error {
	wait := maxFlushWait
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
		wait = time.Until(deadline)
	}
	if !t.hub.Flush(wait) {
		return errors.Wrap(errors.ErrTimeout, "sentry flush")
	}
	return nil
}

func severity(s errors.Severity) sentry.Level {
	switch s {
	case errors.SeverityInfo:
		return sentry.LevelInfo
	case errors.SeverityWarning:
		return sentry.LevelWarning
	case errors.SeverityFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelError
	}
}
