package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/domain/task"
	"finsight/pkg/errors"
)

type memoryWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *memoryWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memoryWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer() (*Producer, map[string]*memoryWriter) {
	writers := map[string]*memoryWriter{}
	p := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}})
	p.newWriter = func(topic string) MessageWriter {
		w := &memoryWriter{}
		writers[topic] = w
		return w
	}
	return p, writers
}

func TestTaskEventPublisher(t *testing.T) {
	p, writers := newTestProducer()
	pub := NewTaskEventPublisher(p, "")

	started := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	pub.TaskTransition(context.Background(), task.Record{
		ID:        "task-1",
		Family:    task.FamilyReport,
		Kind:      "market_report",
		Status:    task.StatusRunning,
		StartedAt: &started,
		Result:    "not published",
	})

	w := writers[TopicTaskEvents]
	require.NotNil(t, w)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "task-1", string(w.msgs[0].Key))

	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "RUNNING", ev["status"])
	assert.Equal(t, "report", ev["family"])
	assert.NotContains(t, ev, "result")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestTaskEventPublisher_CancelledContextStillPublishes(t *testing.T) {
	p, writers := newTestProducer()
	pub := NewTaskEventPublisher(p, "custom.tasks")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.TaskTransition(ctx, task.Record{ID: "t", Status: task.StatusCancelled})
	assert.Len(t, writers["custom.tasks"].msgs, 1)
}

func TestProducer_PublishError(t *testing.T) {
	p, _ := newTestProducer()
	p.newWriter = func(string) MessageWriter { return &memoryWriter{err: errors.New("broker down")} }

	err := p.Publish(context.Background(), "t", "k", map[string]int{"a": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	pub := NewTaskEventPublisher(p, "t")
	assert.NotPanics(t, func() {
		pub.TaskTransition(context.Background(), task.Record{ID: "x", Status: task.StatusFailed})
	})
}
