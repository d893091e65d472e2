package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditPurge deletes audit entries older than the retention window.
	TaskAuditPurge = "audit:purge"
)

// AuditPurgePayload describes the retention window for a purge run.
type AuditPurgePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditPurgeTask constructs an Asynq task.
func NewAuditPurgeTask(retentionDays int) (*asynq.Task, error) {
	if retentionDays <= 0 {
		return nil, fmt.Errorf("jobs: retention must be positive, got %d", retentionDays)
	}
	data, err := json.Marshal(AuditPurgePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPurge, data), nil
}

// Purger deletes audit entries recorded before a cutoff.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// HandleAuditPurge returns a handler for TaskAuditPurge tasks.
func HandleAuditPurge(purger Purger, now func() time.Time) asynq.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditPurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RetentionDays <= 0 {
			return fmt.Errorf("jobs: invalid purge payload: %w", asynq.SkipRetry)
		}
		cutoff := now().UTC().AddDate(0, 0, -payload.RetentionDays)
		_, err := purger.Purge(ctx, cutoff)
		return err
	}
}
