package middleware

import (
	"context"
	"time"

	"finsight/internal/tools"
	"finsight/pkg/errors"
)

// MaxRetries is the hard cap on retries of one tool call
const MaxRetries = 2

// RetryMiddleware retries transient tool failures with a fixed backoff.
// Retries is clamped to [0, MaxRetries].
type RetryMiddleware struct {
	Retries int
	Backoff time.Duration
}

// Wrap adds retry semantics to a tool. The final error from the last attempt is returned.
func (m RetryMiddleware) Wrap(name string, next tools.Handler) tools.Handler {
	retries := m.Retries
	if retries < 0 {
		retries = 0
	}
	if retries > MaxRetries {
		retries = MaxRetries
	}
	backoff := m.Backoff

	return func(ctx context.Context, args tools.Args) (tools.Result, error) {
		var result tools.Result
		var err error

		for i := 0; i <= retries; i++ {
			result, err = next(ctx, args)
			if err == nil || !errors.IsTransient(err) {
				return result, err
			}

			if i < retries {
				select {
				case <-ctx.Done():
					return result, err
				case <-time.After(backoff):
				}
			}
		}

		return result, err
	}
}
