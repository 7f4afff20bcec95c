package channel

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jarrod-lowe/collab-service/internal/dynamo"
	"github.com/jarrod-lowe/collab-service/internal/dynamo/dynamotest"
)

func channelItem(t *testing.T, ch *Channel) map[string]types.AttributeValue {
	t.Helper()
	item, err := dynamo.MarshalRow(ch.PK(), ch.SK(), ch)
	if err != nil {
		t.Fatalf("MarshalRow() error = %v", err)
	}
	return item
}

func TestRepository_Create(t *testing.T) {
	var put map[string]types.AttributeValue
	mock := &dynamotest.MockClient{
		PutItemFunc: func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			put = input.Item
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	repo := NewRepository(mock, "test-table")
	repo.now = func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) }

	ch, err := repo.Create(context.Background(), "w1", " general ", TypeText)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ch.Name != "general" || ch.Type != TypeText {
		t.Errorf("channel = %+v, want name general type text", ch)
	}
	if got := dynamotest.S(put, "pk"); got != "WORKSPACE#w1" {
		t.Errorf("pk = %q, want WORKSPACE#w1", got)
	}
	if got := dynamotest.S(put, "sk"); got != "CHANNEL#"+ch.ID {
		t.Errorf("sk = %q, want CHANNEL#%s", got, ch.ID)
	}
	if got := dynamotest.S(put, "type"); got != "text" {
		t.Errorf("type attribute = %q, want text", got)
	}
}

func TestRepository_Get_NotFound(t *testing.T) {
	repo := NewRepository(&dynamotest.MockClient{}, "test-table")
	if _, err := repo.Get(context.Background(), "w1", "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want %v", err, ErrNotFound)
	}
}

func TestRepository_Rename_NotFound(t *testing.T) {
	mock := &dynamotest.MockClient{
		UpdateItemFunc: func(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			return nil, dynamotest.ConditionFailed()
		},
	}
	if _, err := NewRepository(mock, "test-table").Rename(context.Background(), "w1", "c1", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rename() error = %v, want %v", err, ErrNotFound)
	}
}

func TestRepository_Delete_RemovesMoreThanOneBatch(t *testing.T) {
	ch := &Channel{ID: "c1", WorkspaceID: "w1", Name: "general", Type: TypeText}
	const messages = 57
	var batchSizes []int
	channelRowDeleted := false

	mock := &dynamotest.MockClient{
		GetItemFunc: func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: channelItem(t, ch)}, nil
		},
		QueryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if got := dynamotest.PartitionOf(input); got != "CHANNEL#c1" {
				t.Errorf("partition = %q, want CHANNEL#c1", got)
			}
			items := make([]map[string]types.AttributeValue, messages)
			for i := range items {
				items[i] = dynamo.Key("CHANNEL#c1", fmt.Sprintf("MESSAGE#%03d", i))
			}
			return &dynamodb.QueryOutput{Items: items}, nil
		},
		BatchWriteItemFunc: func(ctx context.Context, input *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
			batchSizes = append(batchSizes, len(input.RequestItems["test-table"]))
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
		DeleteItemFunc: func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			if dynamotest.S(input.Key, "pk") == "WORKSPACE#w1" && dynamotest.S(input.Key, "sk") == "CHANNEL#c1" {
				channelRowDeleted = true
			}
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}

	removed, err := NewRepository(mock, "test-table").Delete(context.Background(), "w1", "c1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != messages {
		t.Errorf("removed = %d, want %d", removed, messages)
	}
	if len(batchSizes) != 3 || batchSizes[0] != 25 || batchSizes[1] != 25 || batchSizes[2] != 7 {
		t.Errorf("batch sizes = %v, want [25 25 7]", batchSizes)
	}
	if !channelRowDeleted {
		t.Error("channel row not deleted")
	}
}

func TestRepository_Delete_MissingChannel(t *testing.T) {
	mock := &dynamotest.MockClient{
		QueryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			t.Error("Query called for a missing channel")
			return &dynamodb.QueryOutput{}, nil
		},
	}
	if _, err := NewRepository(mock, "test-table").Delete(context.Background(), "w1", "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want %v", err, ErrNotFound)
	}
}
