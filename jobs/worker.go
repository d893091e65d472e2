// Package jobs runs the background audit worker.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-io/gatehouse/internal/audit"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// TaskObserver is notified after each task completes.
type TaskObserver interface {
	ObserveAuditTask(err error)
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
	Observer    TaskObserver
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			audit.QueueAudit: 3,
			QueueDefault:     1,
		},
		Logger:   newAsynqLogger(cfg.Logger),
		LogLevel: asynq.WarnLevel,
	})
	mux := NewServeMux(cfg.Logger, cfg.Observer, cfg.Handlers...)

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// NewServeMux registers handlers and wraps them with logging and observation.
func NewServeMux(logger *slog.Logger, observer TaskObserver, handlers ...TaskHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(observe(logger, observer))
	for _, h := range handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}
	return mux
}

func observe(logger *slog.Logger, observer TaskObserver) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			err := next.ProcessTask(ctx, t)
			if err != nil {
				level := slog.LevelWarn
				if errors.Is(err, asynq.SkipRetry) {
					level = slog.LevelError
				}
				logger.Log(ctx, level, "task failed", slog.String("type", t.Type()), slog.Any("error", err))
			}
			if observer != nil && t.Type() == audit.TaskRecord {
				observer.ObserveAuditTask(err)
			}
			return err
		})
	}
}

// Run starts processing jobs and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	if err := w.server.Start(w.mux); err != nil {
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
	<-ctx.Done()
	w.logger.Info("stopping worker")
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return ctx.Err()
}

// QueueCheck reports an error when the audit queue cannot be inspected.
func QueueCheck(inspector *asynq.Inspector) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if inspector == nil {
			return errors.New("queue inspector not configured")
		}
		_, err := inspector.GetQueueInfo(audit.QueueAudit)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return err
		}
		return nil
	}
}
