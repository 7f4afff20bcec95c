package eventqueue

import (
	"context"
	"sync"
)

// MemoryQueue keeps mailboxes in process memory. It is safe for concurrent use but is not
// shared between processes.
type MemoryQueue[T any] struct {
	mu        sync.Mutex
	mailboxes map[string][]T
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue[T any]() *MemoryQueue[T] {
	return &MemoryQueue[T]{mailboxes: make(map[string][]T)}
}

// Enqueue appends event to the mailbox for key.
func (q *MemoryQueue[T]) Enqueue(_ context.Context, key string, event T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mailboxes[key] = append(q.mailboxes[key], event)
	return nil
}

// Dequeue drains the mailbox for key.
func (q *MemoryQueue[T]) Dequeue(_ context.Context, key string) ([]T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.mailboxes[key]
	delete(q.mailboxes, key)
	if events == nil {
		events = []T{}
	}
	return events, nil
}

// Clear discards the mailbox for key.
func (q *MemoryQueue[T]) Clear(_ context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.mailboxes, key)
	return nil
}
