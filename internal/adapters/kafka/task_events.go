package kafka

import (
	"context"
	"time"

	"finsight/internal/domain/task"
	"finsight/pkg/logger"
)

const publishTimeout = 5 * time.Second

// Publisher is implemented by Producer
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// TaskEvent is the wire form of one task transition
type TaskEvent struct {
	TaskID          string      `json:"task_id"`
	Family          string      `json:"family"`
	Kind            string      `json:"kind"`
	Status          task.Status `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`
	Error           string      `json:"error,omitempty"`
	CancelRequested bool        `json:"cancel_requested"`
	EmittedAt       time.Time   `json:"emitted_at"`
}

// NewTaskEvent converts a record. Results are not published, only the lifecycle.
func NewTaskEvent(rec task.Record, now time.Time) TaskEvent {
	return TaskEvent{
		TaskID:          rec.ID,
		Family:          rec.Family,
		Kind:            rec.Kind,
		Status:          rec.Status,
		CreatedAt:       rec.CreatedAt,
		StartedAt:       rec.StartedAt,
		FinishedAt:      rec.FinishedAt,
		Error:           rec.Error,
		CancelRequested: rec.CancelRequested,
		EmittedAt:       now.UTC(),
	}
}

// TaskEventPublisher publishes task transitions keyed by task id
type TaskEventPublisher struct {
	publisher Publisher
	topic     string
	log       *logger.Logger
}

// NewTaskEventPublisher creates a tasks.Observer publishing to topic
func NewTaskEventPublisher(publisher Publisher, topic string) *TaskEventPublisher {
	if topic == "" {
		topic = TopicTaskEvents
	}
	return &TaskEventPublisher{
		publisher: publisher,
		topic:     topic,
		log:       logger.Get().With("component", "task_events"),
	}
}

// TaskTransition implements tasks.Observer. Publish failures are logged and dropped.
func (p *TaskEventPublisher) TaskTransition(ctx context.Context, rec task.Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.publisher.Publish(ctx, p.topic, rec.ID, NewTaskEvent(rec, time.Now())); err != nil {
		p.log.Warnw("Failed to publish task event",
			"task_id", rec.ID,
			"status", rec.Status,
			"error", err,
		)
	}
}
