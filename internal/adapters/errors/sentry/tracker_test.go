package sentry

import (
	"context"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/errors"
)

func TestSeverity(t *testing.T) {
	assert.Equal(t, sentry.LevelInfo, severity(errors.SeverityInfo))
	assert.Equal(t, sentry.LevelWarning, severity(errors.SeverityWarning))
	assert.Equal(t, sentry.LevelFatal, severity(errors.SeverityFatal))
	assert.Equal(t, sentry.LevelError, severity(errors.Severity(42)))
}

func TestTracker_EmptyDSN(t *testing.T) {
	tracker, err := New("", "test", "dev")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tracker.Trail(ctx, "task", "RUNNING", map[string]any{"task_id": "t1"})
	tracker.Capture(ctx, errors.Event{Err: errors.New("boom"), Severity: errors.SeverityError})
	tracker.Capture(ctx, errors.Event{Message: "note", Severity: errors.SeverityInfo})
	assert.NoError(t, tracker.Flush(ctx))
}
