package a2a

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrTaskNotFound is returned by Get for unknown task ids.
var ErrTaskNotFound = fmt.Errorf("task not found")

// TaskStore persists terminal tasks so clients can retrieve them later via
// tasks/get.
type TaskStore interface {
	Save(ctx context.Context, task Task) error
	Get(ctx context.Context, id string) (Task, error)
	List(ctx context.Context) ([]Task, error)
	Delete(ctx context.Context, id string) error
}

// InMemoryTaskStore keeps tasks in a process-local map. Suitable for tests
// and single-instance deployments without durability needs.
type InMemoryTaskStore struct {
	mu      sync.RWMutex
	tasks   map[string]Task
	savedAt map[string]time.Time
}

// NewInMemoryTaskStore creates an empty in-memory store.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks:   make(map[string]Task),
		savedAt: make(map[string]time.Time),
	}
}

// Save implements TaskStore. Saving an existing id overwrites it.
func (s *InMemoryTaskStore) Save(_ context.Context, task Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	s.savedAt[task.ID] = time.Now().UTC()
	return nil
}

// Get implements TaskStore.
func (s *InMemoryTaskStore) Get(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task, nil
}

// List implements TaskStore, returning tasks ordered by save time.
func (s *InMemoryTaskStore) List(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.savedAt[out[i].ID].Before(s.savedAt[out[j].ID])
	})
	return out, nil
}

// Delete implements TaskStore. Deleting an unknown id is a no-op.
func (s *InMemoryTaskStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	delete(s.savedAt, id)
	return nil
}
