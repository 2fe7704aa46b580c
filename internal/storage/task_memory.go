// Package storage holds the task-status and archive backends the split
// service runs on: memory, Redis or Postgres for tasks, and local disk or S3
// for archives.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/colsplit/internal/core"
)

// MemoryTaskStore keeps tasks in process. Tasks not updated within the
// retention window are treated as gone and pruned on the next write.
type MemoryTaskStore struct {
	mu        sync.RWMutex
	tasks     map[string]core.Task
	retention time.Duration
	now       func() time.Time
}

// NewMemoryTaskStore creates an empty store. A zero retention keeps tasks
// forever.
func NewMemoryTaskStore(retention time.Duration) *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks:     make(map[string]core.Task),
		retention: retention,
		now:       time.Now,
	}
}

func (s *MemoryTaskStore) expired(t core.Task) bool {
	return s.retention > 0 && s.now().Sub(t.UpdatedAt) > s.retention
}

func (s *MemoryTaskStore) Create(_ context.Context, task core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *MemoryTaskStore) Get(_ context.Context, id string) (core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok || s.expired(task) {
		return core.Task{}, core.ErrTaskNotFound
	}
	return task, nil
}

func (s *MemoryTaskStore) Update(_ context.Context, task core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.tasks[task.ID]
	if !ok || s.expired(prev) {
		return core.ErrTaskNotFound
	}
	s.tasks[task.ID] = task
	return nil
}

// Len returns the number of tasks held, expired or not.
func (s *MemoryTaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *MemoryTaskStore) pruneLocked() {
	for id, t := range s.tasks {
		if s.expired(t) {
			delete(s.tasks, id)
		}
	}
}
