package errors

import "context"

// Severity grades a tracked event
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	default:
		return "error"
	}
}

// Event is a single report to an error tracker. Either Err or Message is set.
type Event struct {
	Err      error
	Message  string
	Severity Severity
	Tags     map[string]string
}

// Tracker forwards failures to an external tracking service. Implementations
// must be safe for concurrent use and must not block callers on delivery.
type Tracker interface {
	Capture(ctx context.Context, ev Event)
	// Trail records a step that is attached to later events as context
	Trail(ctx context.Context, category, message string, data map[string]any)
	Flush(ctx context.Context) error
}

// Report captures err at error severity. A nil tracker or error is ignored.
func Report(ctx context.Context, t Tracker, err error, tags map[string]string) {
	if t == nil || err == nil {
		return
	}
	t.Capture(ctx, Event{Err: err, Severity: SeverityError, Tags: tags})
}
