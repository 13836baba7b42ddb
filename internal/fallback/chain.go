package fallback

import (
	"context"
	"fmt"

	"finsight/internal/metrics"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// Candidate is one backend that may fail
type Candidate[T any] struct {
	ID  string
	Run func(ctx context.Context) (T, error)
}

// Terminal is the last tier. It has no error return and must answer for any input.
type Terminal[T any] struct {
	ID  string
	Run func(ctx context.Context) T
}

// Result is the answer of a chain tagged with the candidate that produced it
type Result[T any] struct {
	Value    T
	Source   string
	Warnings []string
	// Attempts counts candidates invoked, terminal included
	Attempts int
}

// Chain tries candidates strictly in order and answers from Terminal when all of them fail softly
type Chain[T any] struct {
	name       string
	candidates []Candidate[T]
	terminal   Terminal[T]
	log        *logger.Logger
}

// New builds a chain. A nil terminal Run is replaced by one returning the zero value.
func New[T any](name string, terminal Terminal[T], candidates ...Candidate[T]) *Chain[T] {
	if terminal.Run == nil {
		terminal.Run = func(context.Context) T {
			var zero T
			return zero
		}
	}
	if terminal.ID == "" {
		terminal.ID = "terminal"
	}
	return &Chain[T]{
		name:       name,
		candidates: candidates,
		terminal:   terminal,
		log:        logger.Get().With("component", "fallback", "chain", name),
	}
}

// Name returns the chain name used in warnings and metrics
func (c *Chain[T]) Name() string { return c.name }

// Resolve runs the chain. It returns an error only on a hard failure.
func (c *Chain[T]) Resolve(ctx context.Context) (Result[T], error) {
	var res Result[T]

	for _, cand := range c.candidates {
		if ctx.Err() != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s skipped: %v", c.name, cand.ID, ctx.Err()))
			continue
		}

		res.Attempts++
		value, err := safeRun(ctx, cand.Run)
		if err == nil {
			res.Value = value
			res.Source = cand.ID
			metrics.RecordFallbackResolved(c.name, cand.ID)
			return res, nil
		}

		if errors.IsHard(err) {
			c.log.Errorw("Fallback chain aborted", "candidate", cand.ID, "error", err)
			return res, errors.Wrapf(err, "%s: %s", c.name, cand.ID)
		}

		c.log.Warnw("Fallback candidate failed", "candidate", cand.ID, "error", err)
		metrics.RecordFallbackAdvance(c.name, cand.ID)
		res.Warnings = append(res.Warnings, Warning(c.name, cand.ID, err))
	}

	res.Attempts++
	res.Value = c.terminal.Run(ctx)
	res.Source = c.terminal.ID
	metrics.RecordFallbackResolved(c.name, c.terminal.ID)
	return res, nil
}

// Warning formats the warning recorded for a skipped candidate
func Warning(chain, candidate string, err error) string {
	return fmt.Sprintf("%s: %s failed: %v", chain, candidate, err)
}

func safeRun[T any](ctx context.Context, run func(context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errors.PanicError{Value: r}
		}
	}()
	if run == nil {
		return value, errors.Wrap(errors.ErrBackendAbsent, "candidate has no implementation")
	}
	return run(ctx)
}
