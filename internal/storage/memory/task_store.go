package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/tasklist/internal/tasks"
)

// ErrClosed is returned by TaskStore calls made after Close.
var ErrClosed = errors.New("memory task store closed")

// TaskStore is a mutex-guarded tasks.Store. Tasks with equal CreatedAt list in
// insertion order.
type TaskStore struct {
	mu     sync.RWMutex
	ids    tasks.IDGenerator
	order  []string
	tasks  map[string]tasks.Task
	closed bool
}

// NewTaskStore returns an empty store that assigns ids from ids.
func NewTaskStore(ids tasks.IDGenerator) *TaskStore {
	return &TaskStore{
		ids:   ids,
		tasks: make(map[string]tasks.Task),
	}
}

// List returns every task, newest first.
func (s *TaskStore) List(_ context.Context) ([]tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]tasks.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	tasks.SortNewestFirst(out)
	return out, nil
}

// Create stores a new task and returns it with its assigned id.
func (s *TaskStore) Create(_ context.Context, title string, createdAt int64) (tasks.Task, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return tasks.Task{}, fmt.Errorf("generate task id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return tasks.Task{}, ErrClosed
	}
	if _, exists := s.tasks[id]; exists {
		return tasks.Task{}, fmt.Errorf("duplicate task id %q", id)
	}
	task := tasks.Task{ID: id, Title: title, CreatedAt: createdAt}
	s.tasks[id] = task
	s.order = append(s.order, id)
	return task, nil
}

// Delete removes id. Unknown ids are ignored.
func (s *TaskStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.tasks[id]; !ok {
		return nil
	}
	delete(s.tasks, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close marks the store closed.
func (s *TaskStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
