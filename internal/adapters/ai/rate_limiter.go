package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"finsight/internal/domain/analysis"
	"finsight/pkg/errors"
)

// RateLimitError is returned when a call could not get a token before its deadline
type RateLimitError struct {
	Provider string
	Limit    float64
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %.1f req/min): %v", e.Provider, e.Limit, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return errors.ErrRateLimitExceeded
}

// Limiter throttles calls to one provider
type Limiter struct {
	limiter      *rate.Limiter
	reqPerMinute float64
}

// NewLimiter creates a token bucket limiter.
// A non-positive rate disables limiting.
func NewLimiter(reqPerMinute float64, burst int) *Limiter {
	if reqPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst <= 0 {
		burst = int(reqPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
	}
	return &Limiter{
		limiter:      rate.NewLimiter(rate.Limit(reqPerMinute/60.0), burst),
		reqPerMinute: reqPerMinute,
	}
}

// Wait blocks until a call may proceed or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Limit returns the configured requests per minute, 0 when unlimited
func (l *Limiter) Limit() float64 {
	return l.reqPerMinute
}

// RateLimited wraps an analyzer with a limiter
type RateLimited struct {
	next    analysis.Analyzer
	limiter *Limiter
}

// NewRateLimited decorates an analyzer
func NewRateLimited(next analysis.Analyzer, limiter *Limiter) *RateLimited {
	return &RateLimited{next: next, limiter: limiter}
}

func (r *RateLimited) Name() string { return r.next.Name() }

func (r *RateLimited) Analyze(ctx context.Context, prompt analysis.Prompt, model, apiKey string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		switch ctx.Err() {
		case context.Canceled:
			return "", errors.Wrap(errors.ErrCancelled, "waiting for rate limiter")
		case context.DeadlineExceeded:
			return "", errors.Wrap(errors.ErrTimeout, "waiting for rate limiter")
		}
		return "", &RateLimitError{Provider: r.next.Name(), Limit: r.limiter.Limit(), Err: err}
	}
	return r.next.Analyze(ctx, prompt, model, apiKey)
}
