package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jarrod-lowe/collab-service/internal/dynamo/dynamotest"
)

func TestRepository_Create_ScopedToOwner(t *testing.T) {
	var pk, sk string
	mock := &dynamotest.MockClient{
		PutItemFunc: func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			pk, sk = dynamotest.S(input.Item, "pk"), dynamotest.S(input.Item, "sk")
			return &dynamodb.PutItemOutput{}, nil
		},
	}

	p, err := NewRepository(mock, "test-table").Create(context.Background(), Project{OwnerSub: "sub-a", Title: " Site "})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if pk != "PORTFOLIO#sub-a" || sk != "PROJECT#"+p.ID {
		t.Errorf("key = %s/%s, want PORTFOLIO#sub-a/PROJECT#%s", pk, sk, p.ID)
	}
	if p.Title != "Site" {
		t.Errorf("Title = %q, want Site", p.Title)
	}
	if p.Tags == nil {
		t.Error("Tags should default to an empty list")
	}
}

func TestRepository_Update(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "existing"},
		{name: "missing or not owned", err: dynamotest.ConditionFailed(), wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &dynamotest.MockClient{
				UpdateItemFunc: func(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
					if got := dynamotest.S(input.Key, "pk"); got != "PORTFOLIO#sub-a" {
						t.Errorf("pk = %q, want PORTFOLIO#sub-a", got)
					}
					if input.ReturnValues != types.ReturnValueAllNew {
						t.Errorf("ReturnValues = %v, want ALL_NEW", input.ReturnValues)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
						"id":    &types.AttributeValueMemberS{Value: "p1"},
						"title": &types.AttributeValueMemberS{Value: "New"},
					}}, nil
				},
			}

			got, err := NewRepository(mock, "test-table").Update(context.Background(), Project{ID: "p1", OwnerSub: "sub-a", Title: "New"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got.Title != "New" {
				t.Errorf("Title = %q, want New", got.Title)
			}
		})
	}
}

func TestRepository_Delete_Missing(t *testing.T) {
	mock := &dynamotest.MockClient{
		DeleteItemFunc: func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			return nil, dynamotest.ConditionFailed()
		},
	}

	err := NewRepository(mock, "test-table").Delete(context.Background(), "sub-a", "p1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want %v", err, ErrNotFound)
	}
}
