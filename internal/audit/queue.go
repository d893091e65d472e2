package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueAudit is the asynq queue carrying audit entries.
	QueueAudit = "audit"
	// TaskRecord is the task type for persisting one entry.
	TaskRecord = "audit:record"
)

// Enqueuer is the subset of *asynq.Client used by Queue.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue hands entries to the background worker instead of writing inline.
type Queue struct {
	client Enqueuer
}

// NewQueue constructs a Queue.
func NewQueue(client Enqueuer) *Queue {
	return &Queue{client: client}
}

// NewRecordTask wraps an entry in an asynq task.
func NewRecordTask(e Entry) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecord, payload), nil
}

// Record implements Recorder.
func (q *Queue) Record(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	task, err := NewRecordTask(e)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task, asynq.Queue(QueueAudit), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("audit: enqueue: %w", err)
	}
	return nil
}

// HandleRecordTask returns an asynq handler that writes entries through next.
// Undecodable payloads are dropped without retry.
func HandleRecordTask(next Recorder) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var e Entry
		if err := json.Unmarshal(t.Payload(), &e); err != nil {
			return fmt.Errorf("audit: decode payload: %v: %w", err, asynq.SkipRetry)
		}
		if err := e.validate(); err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return next.Record(ctx, e)
	}
}
