// Package channel provides storage for workspace channels.
package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/dynamo"
)

// Type is the kind of content a channel holds.
type Type string

const (
	TypeText  Type = "text"
	TypeVoice Type = "voice"
	TypeTasks Type = "tasks"
	TypeBoard Type = "board"
)

// ListLimit caps how many channels are returned for a workspace.
const ListLimit = 200

// ErrNotFound is returned when the channel does not exist in the workspace.
var ErrNotFound = apperr.NotFound("Channel not found")

// Channel belongs to exactly one workspace.
// PK: WORKSPACE#{workspaceId}
// SK: CHANNEL#{id}
type Channel struct {
	ID          string    `json:"id" dynamodbav:"id"`
	WorkspaceID string    `json:"workspaceId" dynamodbav:"workspaceId"`
	Name        string    `json:"name" dynamodbav:"name"`
	Type        Type      `json:"type" dynamodbav:"type"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// PK returns the DynamoDB partition key for this channel.
func (c *Channel) PK() string {
	return dynamo.PrefixWorkspace + c.WorkspaceID
}

// SK returns the DynamoDB sort key for this channel.
func (c *Channel) SK() string {
	return dynamo.PrefixChannel + c.ID
}

// ContentPartition is the partition holding the channel's messages, tasks and board.
func (c *Channel) ContentPartition() string {
	return dynamo.PrefixChannel + c.ID
}

// Repository handles channel storage.
type Repository struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(client dynamo.DynamoDBClient, tableName string) *Repository {
	return &Repository{client: client, tableName: tableName, now: time.Now}
}

// Create stores a new channel in a workspace.
func (r *Repository) Create(ctx context.Context, workspaceID, name string, channelType Type) (*Channel, error) {
	now := r.now().UTC()
	ch := &Channel{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        strings.TrimSpace(name),
		Type:        channelType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item, err := dynamo.MarshalRow(ch.PK(), ch.SK(), ch)
	if err != nil {
		return nil, fmt.Errorf("marshal channel: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put channel: %w", err)
	}
	return ch, nil
}

// Get retrieves a channel of a workspace.
func (r *Repository) Get(ctx context.Context, workspaceID, channelID string) (*Channel, error) {
	ch := &Channel{WorkspaceID: workspaceID, ID: channelID}
	found, err := dynamo.Get(ctx, r.client, r.tableName, ch.PK(), ch.SK(), ch)
	if err != nil {
		return nil, fmt.Errorf("get channel %s: %w", channelID, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return ch, nil
}

// List returns the channels of a workspace in sort-key order.
func (r *Repository) List(ctx context.Context, workspaceID string) ([]*Channel, error) {
	items, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, dynamo.PrefixWorkspace+workspaceID, dynamo.PrefixChannel, true, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	return dynamo.UnmarshalItems[Channel](items)
}

// Rename changes a channel's name.
func (r *Repository) Rename(ctx context.Context, workspaceID, channelID, name string) (*Channel, error) {
	ch := &Channel{WorkspaceID: workspaceID, ID: channelID}
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("name"), expression.Value(strings.TrimSpace(name))).
			Set(expression.Name("updatedAt"), expression.Value(r.now().UTC()))).
		WithCondition(expression.AttributeExists(expression.Name(dynamo.AttrPK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build channel update: %w", err)
	}

	output, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       dynamo.Key(ch.PK(), ch.SK()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if dynamo.IsConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update channel %s: %w", channelID, err)
	}
	if err := attributevalue.UnmarshalMap(output.Attributes, ch); err != nil {
		return nil, fmt.Errorf("unmarshal channel: %w", err)
	}
	return ch, nil
}

// Delete removes every row under the channel's content partition, then the channel row.
// It returns the number of content rows removed.
func (r *Repository) Delete(ctx context.Context, workspaceID, channelID string) (int, error) {
	ch, err := r.Get(ctx, workspaceID, channelID)
	if err != nil {
		return 0, err
	}

	removed, err := dynamo.DeletePartition(ctx, r.client, r.tableName, ch.ContentPartition(), "")
	if err != nil {
		return 0, fmt.Errorf("delete channel %s contents: %w", channelID, err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 dynamo.Key(ch.PK(), ch.SK()),
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		if dynamo.IsConditionFailed(err) {
			return removed, ErrNotFound
		}
		return removed, fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return removed, nil
}
