package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Storage is the persistence surface the enqueuer needs.
type Storage interface {
	// CreateTask stores a new pending task.
	CreateTask(ctx context.Context, task *Task) error
	// HasPendingTask reports whether a pending or processing task with the
	// given fingerprint already exists.
	HasPendingTask(ctx context.Context, fingerprint string) (bool, error)
}

// Enqueuer adds tasks to the queue, de-duplicating identical pending units.
// Two tasks are identical when their name and payload match byte for byte.
type Enqueuer struct {
	storage    Storage
	maxRetries int8
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithMaxRetries sets how many times a failed task is retried.
func WithMaxRetries(n int8) EnqueuerOption {
	return func(e *Enqueuer) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// NewEnqueuer creates an Enqueuer backed by the given storage.
func NewEnqueuer(storage Storage, opts ...EnqueuerOption) (*Enqueuer, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	e := &Enqueuer{storage: storage, maxRetries: 3}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enqueue queues a unit of work. Returns (false, nil) when an identical unit
// is already pending, (true, nil) when a new task was stored.
func (e *Enqueuer) Enqueue(ctx context.Context, name string, payload any) (bool, error) {
	if name == "" {
		return false, ErrTaskNameEmpty
	}
	if payload == nil {
		return false, ErrPayloadNil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	fp := Fingerprint(name, body)

	exists, err := e.storage.HasPendingTask(ctx, fp)
	if err != nil {
		return false, fmt.Errorf("failed to check pending tasks: %w", err)
	}
	if exists {
		return false, nil
	}

	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		Name:        name,
		Payload:     body,
		Fingerprint: fp,
		Status:      TaskStatusPending,
		MaxRetries:  e.maxRetries,
		ScheduledAt: now,
		CreatedAt:   now,
	}

	if err := e.storage.CreateTask(ctx, task); err != nil {
		return false, fmt.Errorf("failed to create task %q: %w", name, err)
	}
	return true, nil
}

// Fingerprint derives the de-duplication key for a task name and serialized
// payload.
func Fingerprint(name string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
