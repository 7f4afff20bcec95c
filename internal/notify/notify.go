// Package notify queues channel change events for polling clients.
package notify

import (
	"context"
	"log/slog"

	"github.com/jarrod-lowe/collab-service/internal/channel"
	"github.com/jarrod-lowe/collab-service/internal/dynamo"
	"github.com/jarrod-lowe/collab-service/internal/eventqueue"
)

// Room kinds.
const (
	KindChat  = "CHAT"
	KindTasks = "TASKS"
	KindBoard = "BOARD"
)

// Event types.
const (
	EventMessageCreated = "message_created"
	EventTaskCreated    = "task_created"
	EventTaskUpdated    = "task_updated"
	EventTaskDeleted    = "task_deleted"
	EventColumnCreated  = "column_created"
	EventColumnUpdated  = "column_updated"
	EventColumnDeleted  = "column_deleted"
	EventCardCreated    = "card_created"
	EventCardUpdated    = "card_updated"
	EventCardDeleted    = "card_deleted"
	EventSnapshot       = "snapshot"
)

// RoomKey returns the queue key of a channel room.
func RoomKey(kind, workspaceID, channelID string) string {
	return dynamo.Join(kind+"#", workspaceID, channelID)
}

// KindFor maps a channel type to the room its events go to.
func KindFor(t channel.Type) string {
	switch t {
	case channel.TypeTasks:
		return KindTasks
	case channel.TypeBoard:
		return KindBoard
	default:
		return KindChat
	}
}

// Notifier publishes to channel rooms. Publishing never fails the caller's mutation; a
// queue error is logged and the event is lost.
type Notifier struct {
	queue  eventqueue.Queue[eventqueue.Event]
	logger *slog.Logger
}

// New creates a Notifier.
func New(queue eventqueue.Queue[eventqueue.Event], logger *slog.Logger) *Notifier {
	return &Notifier{queue: queue, logger: logger}
}

// Publish queues a change event. A non-nil snapshot is queued after it as a snapshot event
// carrying the channel's full state.
func (n *Notifier) Publish(ctx context.Context, kind, workspaceID, channelID, eventType string, data, snapshot any) {
	key := RoomKey(kind, workspaceID, channelID)
	n.enqueue(ctx, key, eventqueue.NewEvent(eventType, data))
	if snapshot != nil {
		n.enqueue(ctx, key, eventqueue.NewEvent(EventSnapshot, snapshot))
	}
}

// Drain returns and removes the room's pending events.
func (n *Notifier) Drain(ctx context.Context, kind, workspaceID, channelID string) ([]eventqueue.Event, error) {
	return n.queue.Dequeue(ctx, RoomKey(kind, workspaceID, channelID))
}

// Clear drops the room's pending events.
func (n *Notifier) Clear(ctx context.Context, kind, workspaceID, channelID string) error {
	return n.queue.Clear(ctx, RoomKey(kind, workspaceID, channelID))
}

func (n *Notifier) enqueue(ctx context.Context, key string, event eventqueue.Event) {
	if err := n.queue.Enqueue(ctx, key, event); err != nil {
		n.logger.WarnContext(ctx, "failed to queue channel event",
			slog.String("room", key),
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}
