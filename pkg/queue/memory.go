package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-process queue backend. Suitable for single-process
// deployments and tests; multi-worker deployments should provide a shared
// Storage implementation instead.
type MemoryStorage struct {
	mu    sync.Mutex
	tasks []*Task
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) CreateTask(_ context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *task
	s.tasks = append(s.tasks, &copied)
	return nil
}

func (s *MemoryStorage) HasPendingTask(_ context.Context, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if t.Fingerprint == fingerprint &&
			(t.Status == TaskStatusPending || t.Status == TaskStatusProcessing) {
			return true, nil
		}
	}
	return false, nil
}

// ClaimTask atomically moves the oldest due pending task to processing.
// Returns ErrNoPendingTasks when nothing is due.
func (s *MemoryStorage) ClaimTask(_ context.Context) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, t := range s.tasks {
		if t.Status == TaskStatusPending && !t.ScheduledAt.After(now) {
			t.Status = TaskStatusProcessing
			copied := *t
			return &copied, nil
		}
	}
	return nil, ErrNoPendingTasks
}

// CompleteTask marks a claimed task as completed.
func (s *MemoryStorage) CompleteTask(_ context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, t := range s.tasks {
		if t.ID == task.ID {
			t.Status = TaskStatusCompleted
			t.ProcessedAt = &now
			return nil
		}
	}
	return nil
}

// FailTask records a failure. Tasks with retries left go back to pending
// with a linear backoff; exhausted tasks stay failed.
func (s *MemoryStorage) FailTask(_ context.Context, task *Task, taskErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, t := range s.tasks {
		if t.ID != task.ID {
			continue
		}
		msg := taskErr.Error()
		t.Error = &msg
		t.RetryCount++
		if t.RetryCount <= t.MaxRetries {
			t.Status = TaskStatusPending
			t.ScheduledAt = now.Add(time.Duration(t.RetryCount) * time.Second)
		} else {
			t.Status = TaskStatusFailed
			t.ProcessedAt = &now
		}
		return nil
	}
	return nil
}

// PruneTerminal drops completed and failed tasks, returning how many were
// removed. Long-running processes call this between scheduling rounds so the
// backlog does not grow without bound.
func (s *MemoryStorage) PruneTerminal() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.Status == TaskStatusPending || t.Status == TaskStatusProcessing {
			kept = append(kept, t)
		}
	}
	removed := len(s.tasks) - len(kept)
	s.tasks = kept
	return removed
}

// Snapshot returns a copy of all tasks, primarily for tests and diagnostics.
func (s *MemoryStorage) Snapshot() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}
