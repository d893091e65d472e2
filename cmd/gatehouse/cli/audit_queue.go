package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-io/gatehouse/internal/audit"
	"github.com/gatehouse-io/gatehouse/jobs"
)

// QueueInspector is the subset of *asynq.Inspector used by the CLI.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunAllArchivedTasks(queue string) (int, error)
}

// AuditQueueCLI wraps manual management helpers for the audit queue.
type AuditQueueCLI struct {
	client    *asynq.Client
	inspector QueueInspector
	closers   []io.Closer
}

// NewAuditQueueCLI initialises the CLI helpers against the given Redis.
func NewAuditQueueCLI(redis asynq.RedisConnOpt) *AuditQueueCLI {
	client := asynq.NewClient(redis)
	inspector := asynq.NewInspector(redis)
	return &AuditQueueCLI{client: client, inspector: inspector, closers: []io.Closer{inspector, client}}
}

// Close releases underlying resources.
func (c *AuditQueueCLI) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed_today"`
	Failed    int    `json:"failed_today"`
}

// InspectQueue reports the audit queue metrics.
func (c *AuditQueueCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("audit queue cli: inspector not configured")
	}
	stats := QueueStats{Queue: audit.QueueAudit}
	info, err := c.inspector.GetQueueInfo(audit.QueueAudit)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return stats, nil
		}
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
		stats.Archived = int(info.Archived)
		stats.Processed = int(info.Processed)
		stats.Failed = int(info.Failed)
	}
	return stats, nil
}

// ListArchived returns tasks that exhausted their retries.
func (c *AuditQueueCLI) ListArchived(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("audit queue cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListArchivedTasks(audit.QueueAudit, asynq.PageSize(size), asynq.Page(1))
}

// RequeueArchived moves every archived audit task back to pending.
func (c *AuditQueueCLI) RequeueArchived(ctx context.Context) (int, error) {
	if c == nil || c.inspector == nil {
		return 0, errors.New("audit queue cli: inspector not configured")
	}
	return c.inspector.RunAllArchivedTasks(audit.QueueAudit)
}

// TriggerPurge enqueues a one-off retention purge.
func (c *AuditQueueCLI) TriggerPurge(ctx context.Context, retentionDays int) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("audit queue cli: client not configured")
	}
	task, err := jobs.NewAuditPurgeTask(retentionDays)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

// AuditQueueOptions defines flags for the audit-queue command.
type AuditQueueOptions struct {
	Requeue    bool
	Archived   int
	Purge      int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// Command runs the audit-queue workflow and returns the process exit code.
func (c *AuditQueueCLI) Command(ctx context.Context, opts AuditQueueOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Requeue {
		n, err := c.RequeueArchived(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "audit-queue: requeue: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(opts.Stdout, "requeued %d archived task(s)\n", n)
	}
	if opts.Purge > 0 {
		info, err := c.TriggerPurge(ctx, opts.Purge)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "audit-queue: purge: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(opts.Stdout, "enqueued purge task %s\n", info.ID)
	}
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "audit-queue: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "audit-queue: encode json: %v\n", err)
			return 1
		}
	} else {
		RenderStats(opts.Stdout, stats)
	}
	if opts.Archived > 0 {
		tasks, err := c.ListArchived(ctx, opts.Archived)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "audit-queue: list archived: %v\n", err)
			return 1
		}
		for _, t := range tasks {
			_, _ = fmt.Fprintf(opts.Stdout, "%s\t%s\t%s\n", t.ID, t.LastFailedAt.UTC().Format("2006-01-02T15:04:05Z"), t.LastErr)
		}
	}
	if stats.Archived > 0 {
		return 10
	}
	return 0
}

// RenderStats prints queue statistics as an aligned table.
func RenderStats(w io.Writer, s QueueStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "queue\t%s\n", s.Queue)
	_, _ = fmt.Fprintf(tw, "pending\t%d\n", s.Pending)
	_, _ = fmt.Fprintf(tw, "active\t%d\n", s.Active)
	_, _ = fmt.Fprintf(tw, "scheduled\t%d\n", s.Scheduled)
	_, _ = fmt.Fprintf(tw, "retry\t%d\n", s.Retry)
	_, _ = fmt.Fprintf(tw, "archived\t%d\n", s.Archived)
	_, _ = fmt.Fprintf(tw, "processed today\t%d\n", s.Processed)
	_, _ = fmt.Fprintf(tw, "failed today\t%d\n", s.Failed)
	_ = tw.Flush()
}
