package queue

import "errors"

var (
	ErrStorageNil         = errors.New("queue storage is nil")
	ErrPayloadNil         = errors.New("task payload is nil")
	ErrTaskNameEmpty      = errors.New("task name is empty")
	ErrNoHandler          = errors.New("no handler registered for task")
	ErrNoPendingTasks     = errors.New("no pending tasks")
	ErrHandlerNil         = errors.New("task handler is nil")
	ErrHandlerRegistered  = errors.New("handler already registered for task")
	ErrWorkerAlreadyRuns  = errors.New("worker is already running")
	ErrStorageUnavailable = errors.New("queue storage unavailable")
)
