package middleware

import (
	"context"
	"time"

	"finsight/internal/tools"
	"finsight/pkg/errors"
)

// TimeoutMiddleware bounds a whole tool call, retries included. When its own
// deadline fires the error is reported as errors.ErrTimeout so the caller can
// degrade instead of failing the run; a cancelled parent passes through.
type TimeoutMiddleware struct {
	Timeout time.Duration
}

func (m TimeoutMiddleware) Wrap(name string, next tools.Handler) tools.Handler {
	if m.Timeout <= 0 {
		return next
	}
	limit := m.Timeout

	return func(ctx context.Context, args tools.Args) (tools.Result, error) {
		callCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		res, err := next(callCtx, args)
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return res, errors.Wrapf(errors.ErrTimeout, "tool %s exceeded %s: %v", name, limit, err)
		}
		return res, err
	}
}
