package shared

import (
	"context"

	"finsight/internal/adapters/config"
)

type invocationKey struct{}

// Invocation identifies the orchestrator run a tool call belongs to and the
// runtime snapshot frozen at its start.
type Invocation struct {
	RunID    string
	Skill    string
	Symbol   string
	Snapshot config.Snapshot
}

func WithInvocation(ctx context.Context, inv Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

func InvocationFrom(ctx context.Context) (Invocation, bool) {
	inv, ok := ctx.Value(invocationKey{}).(Invocation)
	return inv, ok
}

// SnapshotFromContext returns the run snapshot; outside a run the built-in
// defaults apply.
func SnapshotFromContext(ctx context.Context) config.Snapshot {
	if inv, ok := InvocationFrom(ctx); ok {
		return inv.Snapshot
	}
	return config.NewSnapshot(config.DefaultRuntime())
}
