package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/tools"
	"finsight/pkg/errors"
)

func counting(errs ...error) (tools.Handler, *int) {
	calls := 0
	return func(context.Context, tools.Args) (tools.Result, error) {
		defer func() { calls++ }()
		if calls < len(errs) {
			return tools.Result{}, errs[calls]
		}
		return tools.Result{Source: "ok"}, nil
	}, &calls
}

func TestRetry_RetriesTransientUpToCap(t *testing.T) {
	h, calls := counting(errors.ErrTimeout, errors.ErrTimeout, errors.ErrTimeout, errors.ErrTimeout)
	wrapped := RetryMiddleware{Retries: 9}.Wrap("t", h)

	_, err := wrapped(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 1+MaxRetries, *calls)
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	h, calls := counting(errors.ErrUnavailable)
	wrapped := RetryMiddleware{Retries: 1}.Wrap("t", h)

	res, err := wrapped(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Source)
	assert.Equal(t, 2, *calls)
}

func TestRetry_DoesNotRetryPermanent(t *testing.T) {
	h, calls := counting(errors.NewValidationError("symbol", "bad", "?"))
	wrapped := RetryMiddleware{Retries: 2}.Wrap("t", h)

	_, err := wrapped(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, *calls)
}

func TestTimeout_SetsDeadline(t *testing.T) {
	var deadline time.Time
	h := func(ctx context.Context, _ tools.Args) (tools.Result, error) {
		deadline, _ = ctx.Deadline()
		return tools.Result{}, nil
	}

	_, err := TimeoutMiddleware{Timeout: time.Minute}.Wrap("t", h)(context.Background(), nil)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestTimeout_OwnDeadlineBecomesErrTimeout(t *testing.T) {
	blocked := func(ctx context.Context, _ tools.Args) (tools.Result, error) {
		<-ctx.Done()
		return tools.Result{}, ctx.Err()
	}

	_, err := TimeoutMiddleware{Timeout: 10 * time.Millisecond}.Wrap("slow", blocked)(context.Background(), nil)
	assert.ErrorIs(t, err, errors.ErrTimeout)

	parent, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = TimeoutMiddleware{Timeout: time.Minute}.Wrap("slow", blocked)(parent, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, errors.ErrTimeout)
}

func TestStandardStack(t *testing.T) {
	h, calls := counting(errors.ErrTimeout)
	spec := tools.Spec{Name: "t", Handler: h}.With(Standard(1, 0, time.Second)...)

	res, err := spec.Handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Source)
	assert.Equal(t, 2, *calls)
}
