package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// HandlerFunc processes one task payload. Returning an error requeues the
// task until its retry budget is exhausted, so handlers must be idempotent
// (the queue delivers at least once).
type HandlerFunc func(ctx context.Context, payload []byte) error

// NewHandler adapts a typed function into a HandlerFunc, unmarshalling the
// payload into P before invoking fn.
func NewHandler[P any](fn func(ctx context.Context, payload P) error) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var p P
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("failed to unmarshal payload into %T: %w", p, err)
		}
		return fn(ctx, p)
	}
}

// WorkerStorage is the persistence surface the worker needs.
type WorkerStorage interface {
	ClaimTask(ctx context.Context) (*Task, error)
	CompleteTask(ctx context.Context, task *Task) error
	FailTask(ctx context.Context, task *Task, taskErr error) error
}

// Worker polls the queue and dispatches tasks to registered handlers.
type Worker struct {
	storage  WorkerStorage
	handlers map[string]HandlerFunc
	interval time.Duration
	log      *slog.Logger
	running  atomic.Bool
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithPollInterval sets how often the worker checks for due tasks.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the worker logger.
func WithLogger(log *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if log != nil {
			w.log = log
		}
	}
}

// NewWorker creates a Worker backed by the given storage.
func NewWorker(storage WorkerStorage, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	w := &Worker{
		storage:  storage,
		handlers: make(map[string]HandlerFunc),
		interval: time.Second,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Register binds a handler to a task name. Must be called before Run.
func (w *Worker) Register(name string, handler HandlerFunc) error {
	if name == "" {
		return ErrTaskNameEmpty
	}
	if handler == nil {
		return ErrHandlerNil
	}
	if _, exists := w.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerRegistered, name)
	}
	w.handlers[name] = handler
	return nil
}

// Run processes tasks until the context is cancelled. Only one Run per
// Worker may be active.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrWorkerAlreadyRuns
	}
	defer w.running.Store(false)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		// Drain everything due before sleeping.
		for {
			task, err := w.storage.ClaimTask(ctx)
			if err != nil {
				break
			}
			w.process(ctx, task)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) process(ctx context.Context, task *Task) {
	handler, ok := w.handlers[task.Name]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNoHandler, task.Name)
		w.log.ErrorContext(ctx, "task dropped", "task", task.Name, "task_id", task.ID, "error", err)
		_ = w.storage.FailTask(ctx, task, err)
		return
	}

	if err := handler(ctx, task.Payload); err != nil {
		w.log.WarnContext(ctx, "task failed",
			"task", task.Name, "task_id", task.ID, "retry", task.RetryCount, "error", err)
		_ = w.storage.FailTask(ctx, task, err)
		return
	}

	_ = w.storage.CompleteTask(ctx, task)
}
