// Package friend stores directed friendship edges between users.
package friend

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jarrod-lowe/collab-service/internal/dynamo"
)

// ListLimit caps how many friends a listing returns.
const ListLimit = 200

// Friendship is the edge subject -> target.
// PK: FRIEND#USER#{subjectSub}
// SK: FRIEND#{targetSub}
type Friendship struct {
	SubjectSub     string    `json:"subjectSub" dynamodbav:"subjectSub"`
	TargetSub      string    `json:"targetSub" dynamodbav:"targetSub"`
	TargetUsername string    `json:"targetUsername,omitempty" dynamodbav:"targetUsername,omitempty"`
	TargetEmail    string    `json:"targetEmail,omitempty" dynamodbav:"targetEmail,omitempty"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// PK returns the DynamoDB partition key for this edge.
func (f *Friendship) PK() string {
	return dynamo.PrefixFriendUser + f.SubjectSub
}

// SK returns the DynamoDB sort key for this edge.
func (f *Friendship) SK() string {
	return dynamo.PrefixFriend + f.TargetSub
}

// Repository handles friendship storage.
type Repository struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(client dynamo.DynamoDBClient, tableName string) *Repository {
	return &Repository{client: client, tableName: tableName, now: time.Now}
}

// Add writes the edge unless it already exists. It returns the stored edge and whether
// this call created it.
func (r *Repository) Add(ctx context.Context, f Friendship) (*Friendship, bool, error) {
	f.CreatedAt = r.now().UTC()
	item, err := dynamo.MarshalRow(f.PK(), f.SK(), &f)
	if err != nil {
		return nil, false, fmt.Errorf("marshal friendship: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err == nil {
		return &f, true, nil
	}
	if !dynamo.IsConditionFailed(err) {
		return nil, false, fmt.Errorf("put friendship: %w", err)
	}

	existing := &Friendship{SubjectSub: f.SubjectSub, TargetSub: f.TargetSub}
	if _, err := dynamo.Get(ctx, r.client, r.tableName, existing.PK(), existing.SK(), existing); err != nil {
		return nil, false, fmt.Errorf("get friendship: %w", err)
	}
	return existing, false, nil
}

// List returns the subject's outgoing edges.
func (r *Repository) List(ctx context.Context, subjectSub string) ([]*Friendship, error) {
	items, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, dynamo.PrefixFriendUser+subjectSub, dynamo.PrefixFriend, true, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	return dynamo.UnmarshalItems[Friendship](items)
}

// Exists reports whether the edge subject -> target is stored.
func (r *Repository) Exists(ctx context.Context, subjectSub, targetSub string) (bool, error) {
	f := &Friendship{SubjectSub: subjectSub, TargetSub: targetSub}
	found, err := dynamo.Get(ctx, r.client, r.tableName, f.PK(), f.SK(), f)
	if err != nil {
		return false, fmt.Errorf("get friendship: %w", err)
	}
	return found, nil
}

// Remove deletes the edge. Removing a missing edge succeeds.
func (r *Repository) Remove(ctx context.Context, subjectSub, targetSub string) error {
	f := &Friendship{SubjectSub: subjectSub, TargetSub: targetSub}
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       dynamo.Key(f.PK(), f.SK()),
	})
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}
