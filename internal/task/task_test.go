package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jarrod-lowe/collab-service/internal/dynamo"
	"github.com/jarrod-lowe/collab-service/internal/dynamo/dynamotest"
)

func storedTask() *Task {
	return &Task{
		TaskID:      "t1",
		WorkspaceID: "w1",
		ChannelID:   "c1",
		Title:       "Write docs",
		Description: "all of them",
		Status:      StatusTodo,
		Priority:    PriorityHigh,
		CreatedAt:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestRepository_Create_Defaults(t *testing.T) {
	repo := NewRepository(&dynamotest.MockClient{}, "test-table")

	got, err := repo.Create(context.Background(), Task{WorkspaceID: "w1", ChannelID: "c1", Title: " Ship it "})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got.Status != StatusTodo {
		t.Errorf("Status = %q, want %q", got.Status, StatusTodo)
	}
	if got.Priority != PriorityMedium {
		t.Errorf("Priority = %q, want %q", got.Priority, PriorityMedium)
	}
	if got.Title != "Ship it" {
		t.Errorf("Title = %q, want %q", got.Title, "Ship it")
	}
	if got.TaskID == "" {
		t.Error("TaskID is empty")
	}
}

func TestRepository_Update_OnlySuppliedFields(t *testing.T) {
	existing := storedTask()
	mock := &dynamotest.MockClient{
		QueryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if got := dynamotest.PrefixOf(input); got != "TASK#" {
				t.Errorf("prefix = %q, want TASK#", got)
			}
			item, _ := dynamo.MarshalRow(existing.PK(), existing.SK(), existing)
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil
		},
		UpdateItemFunc: func(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			if got := dynamotest.S(input.Key, "sk"); got != existing.SK() {
				t.Errorf("sk = %q, want %q", got, existing.SK())
			}
			names := map[string]bool{}
			for _, n := range input.ExpressionAttributeNames {
				names[n] = true
			}
			if !names["status"] || !names["updatedAt"] {
				t.Errorf("update names = %v, want status and updatedAt", input.ExpressionAttributeNames)
			}
			for _, unexpected := range []string{"title", "description", "priority"} {
				if names[unexpected] {
					t.Errorf("update touches %q, which was not supplied", unexpected)
				}
			}
			updated := *existing
			updated.Status = StatusDone
			attrs, _ := attributevalue.MarshalMap(&updated)
			return &dynamodb.UpdateItemOutput{Attributes: attrs}, nil
		},
	}

	done := StatusDone
	got, err := NewRepository(mock, "test-table").Update(context.Background(), "c1", "t1", Update{Status: &done})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Status != StatusDone {
		t.Errorf("Status = %q, want %q", got.Status, StatusDone)
	}
	if got.Description != "all of them" {
		t.Errorf("Description = %q, want unchanged", got.Description)
	}
}

func TestRepository_Update_NotFound(t *testing.T) {
	title := "x"
	_, err := NewRepository(&dynamotest.MockClient{}, "test-table").Update(context.Background(), "c1", "missing", Update{Title: &title})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want %v", err, ErrNotFound)
	}
}

func TestRepository_Delete_UsesStoredKey(t *testing.T) {
	existing := storedTask()
	var deletedSK string
	mock := &dynamotest.MockClient{
		QueryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			item, _ := dynamo.MarshalRow(existing.PK(), existing.SK(), existing)
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil
		},
		DeleteItemFunc: func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			deletedSK = dynamotest.S(input.Key, "sk")
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}

	if err := NewRepository(mock, "test-table").Delete(context.Background(), "c1", "t1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deletedSK != existing.SK() {
		t.Errorf("deleted sk = %q, want %q", deletedSK, existing.SK())
	}
}
