// Package eventqueue provides keyed FIFO mailboxes that pollers drain on read.
package eventqueue

import (
	"context"
	"time"
)

// Queue is a set of mailboxes addressed by key. Dequeue returns every pending event for a
// key in enqueue order and removes them.
type Queue[T any] interface {
	Enqueue(ctx context.Context, key string, event T) error
	Dequeue(ctx context.Context, key string) ([]T, error)
	Clear(ctx context.Context, key string) error
}

// Event is the envelope delivered to pollers.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, data any) Event {
	return Event{Type: eventType, Data: data, At: time.Now().UTC()}
}
