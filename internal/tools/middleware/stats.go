package middleware

import (
	"context"
	"time"

	"finsight/internal/metrics"
	"finsight/internal/tools"
)

// StatsMiddleware records tool latency and outcome in Prometheus.
type StatsMiddleware struct{}

// Wrap adds metrics around a tool.
func (StatsMiddleware) Wrap(name string, next tools.Handler) tools.Handler {
	return func(ctx context.Context, args tools.Args) (tools.Result, error) {
		start := time.Now()
		result, err := next(ctx, args)
		metrics.RecordToolExecution(name, time.Since(start), result.Degraded, err)
		return result, err
	}
}

// Standard returns the stack every registered tool gets: retry inside timeout inside stats
func Standard(retries int, backoff, timeout time.Duration) []tools.Middleware {
	return []tools.Middleware{
		RetryMiddleware{Retries: retries, Backoff: backoff},
		TimeoutMiddleware{Timeout: timeout},
		StatsMiddleware{},
	}
}
