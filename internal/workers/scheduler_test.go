package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/pkg/errors"
)

type countingWorker struct {
	*Base
	calls atomic.Int32
	fn    func(ctx context.Context) error
}

func newCountingWorker(name string, every time.Duration, enabled bool) *countingWorker {
	return &countingWorker{Base: NewBase(name, every, enabled)}
}

func (w *countingWorker) Run(ctx context.Context) error {
	w.calls.Add(1)
	if w.fn != nil {
		return w.fn(ctx)
	}
	return nil
}

func (w *countingWorker) count() int { return int(w.calls.Load()) }

func TestScheduler_RunsImmediatelyThenOnTick(t *testing.T) {
	s := NewScheduler(time.Second)
	w := newCountingWorker("ticker", 40*time.Millisecond, true)
	require.NoError(t, s.Add(w))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())

	assert.Eventually(t, func() bool { return w.count() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.False(t, s.Running())

	after := w.count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, w.count(), "no runs after Stop")
}

func TestScheduler_SkipsDisabledAndZeroInterval(t *testing.T) {
	s := NewScheduler(time.Second)
	on := newCountingWorker("on", 20*time.Millisecond, true)
	off := newCountingWorker("off", 20*time.Millisecond, false)
	idle := newCountingWorker("idle", 0, true)
	for _, w := range []*countingWorker{on, off, idle} {
		require.NoError(t, s.Add(w))
	}

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return on.count() > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, off.count())
	assert.Zero(t, idle.count())
}

func TestScheduler_ParentContextEndsLoops(t *testing.T) {
	s := NewScheduler(time.Second)
	var sawCancel atomic.Bool
	w := newCountingWorker("ctx", 10*time.Millisecond, true)
	w.fn = func(ctx context.Context) error {
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}
	require.NoError(t, s.Add(w))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, sawCancel.Load, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.Equal(t, 1, w.count())
}

func TestScheduler_StartStopLifecycleErrors(t *testing.T) {
	s := NewScheduler(time.Second)
	assert.Error(t, s.Stop(), "stop before start")

	require.NoError(t, s.Add(newCountingWorker("a", time.Minute, true)))
	require.NoError(t, s.Start(context.Background()))

	assert.Error(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Add(newCountingWorker("late", time.Minute, true)), errors.ErrInvalidInput)
	require.NoError(t, s.Stop())

	names := make([]string, 0)
	for _, w := range s.Workers() {
		names = append(names, w.Name())
	}
	assert.Equal(t, []string{"a"}, names)

	require.NoError(t, s.Start(context.Background()), "restart after stop")
	require.NoError(t, s.Stop())
}

func TestScheduler_RecordsStatsAndRecoversPanics(t *testing.T) {
	s := NewScheduler(time.Second)
	failing := newCountingWorker("failing", 20*time.Millisecond, true)
	failing.fn = func(context.Context) error { panic("boom") }
	healthy := newCountingWorker("healthy", 20*time.Millisecond, true)
	require.NoError(t, s.Add(failing))
	require.NoError(t, s.Add(healthy))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return failing.Stats().Failures > 1 && healthy.Stats().Runs > 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	var perr *errors.PanicError
	assert.ErrorAs(t, failing.Stats().LastErr, &perr)
	assert.NoError(t, healthy.Stats().LastErr)
	assert.Zero(t, healthy.Stats().Failures)
	assert.False(t, healthy.Stats().LastRun.IsZero())
}

func TestScheduler_StopTimeout(t *testing.T) {
	s := NewScheduler(20 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	stuck := newCountingWorker("stuck", time.Second, true)
	stuck.fn = func(context.Context) error {
		<-release
		return nil
	}
	require.NoError(t, s.Add(stuck))
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return stuck.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Stop(), errors.ErrTimeout)
}

func TestBase_Toggle(t *testing.T) {
	b := NewBase("toggle", time.Second, false)
	assert.False(t, b.Enabled())
	b.Toggle(true)
	assert.True(t, b.Enabled())

	b.Observe(10*time.Millisecond, nil)
	b.Observe(30*time.Millisecond, errors.New("x"))
	st := b.Stats()
	assert.Equal(t, int64(2), st.Runs)
	assert.Equal(t, int64(1), st.Failures)
	assert.Equal(t, 20*time.Millisecond, st.MeanTook)
}
