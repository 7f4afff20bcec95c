package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jarrod-lowe/collab-service/internal/mediadelete"
)

type mockRemover struct {
	removeFunc func(ctx context.Context, keys []string) error
}

func (m *mockRemover) Remove(ctx context.Context, keys []string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, keys)
	}
	return nil
}

func makeRecord(id string, keys []string) events.SQSMessage {
	body, _ := json.Marshal(mediadelete.Message{Keys: keys})
	return events.SQSMessage{
		MessageId: id,
		Body:      string(body),
	}
}

func TestHandler_SuccessfulDeletion(t *testing.T) {
	var removed []string
	mock := &mockRemover{
		removeFunc: func(ctx context.Context, keys []string) error {
			removed = append(removed, keys...)
			return nil
		},
	}

	h := newHandler(mock)
	resp, err := h.handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			makeRecord("msg-1", []string{"avatars/sub-1/a.png", "posts/sub-1/b.jpg"}),
		},
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("expected no failures, got %d", len(resp.BatchItemFailures))
	}
	if len(removed) != 2 {
		t.Errorf("removed %d keys, want 2", len(removed))
	}
}

func TestHandler_RemoveError_ReportsFailure(t *testing.T) {
	mock := &mockRemover{
		removeFunc: func(ctx context.Context, keys []string) error {
			return errors.New("delete failed")
		},
	}

	h := newHandler(mock)
	resp, err := h.handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			makeRecord("msg-1", []string{"avatars/sub-1/a.png"}),
			makeRecord("msg-2", []string{"posts/sub-1/b.jpg"}),
		},
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(resp.BatchItemFailures))
	}
	if resp.BatchItemFailures[1].ItemIdentifier != "msg-2" {
		t.Errorf("ItemIdentifier = %q, want %q", resp.BatchItemFailures[1].ItemIdentifier, "msg-2")
	}
}

func TestHandler_InvalidJSON_ReportsFailure(t *testing.T) {
	h := newHandler(&mockRemover{})
	resp, err := h.handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			{MessageId: "msg-bad", Body: "not json"},
		},
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(resp.BatchItemFailures))
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "msg-bad" {
		t.Errorf("ItemIdentifier = %q, want %q", resp.BatchItemFailures[0].ItemIdentifier, "msg-bad")
	}
}

func TestHandler_EmptyKeys_Skipped(t *testing.T) {
	called := false
	mock := &mockRemover{
		removeFunc: func(ctx context.Context, keys []string) error {
			called = true
			return nil
		},
	}

	h := newHandler(mock)
	resp, err := h.handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{makeRecord("msg-1", nil)},
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("expected no failures, got %d", len(resp.BatchItemFailures))
	}
	if called {
		t.Error("Remove called for a message with no keys")
	}
}
