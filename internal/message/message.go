// Package message stores channel chat messages.
package message

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jarrod-lowe/collab-service/internal/dynamo"
)

// ListLimit is how many of the latest messages a channel listing returns.
const ListLimit = 100

// Message is one chat line in a channel.
// PK: CHANNEL#{channelId}
// SK: MESSAGE#{createdAt}#{id}
type Message struct {
	ID          string    `json:"id" dynamodbav:"id"`
	ChannelID   string    `json:"channelId" dynamodbav:"channelId"`
	WorkspaceID string    `json:"workspaceId" dynamodbav:"workspaceId"`
	Text        string    `json:"text" dynamodbav:"text"`
	AuthorEmail string    `json:"authorEmail" dynamodbav:"authorEmail"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// PK returns the DynamoDB partition key for this message.
func (m *Message) PK() string {
	return dynamo.PrefixChannel + m.ChannelID
}

// SK returns the DynamoDB sort key for this message.
func (m *Message) SK() string {
	return dynamo.Join(dynamo.PrefixMessage, dynamo.SortableTime(m.CreatedAt), m.ID)
}

// Repository handles message storage.
type Repository struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(client dynamo.DynamoDBClient, tableName string) *Repository {
	return &Repository{client: client, tableName: tableName, now: time.Now}
}

// Create stores a message. text must already be sanitised.
func (r *Repository) Create(ctx context.Context, workspaceID, channelID, authorEmail, text string) (*Message, error) {
	msg := &Message{
		ID:          uuid.NewString(),
		ChannelID:   channelID,
		WorkspaceID: workspaceID,
		Text:        text,
		AuthorEmail: authorEmail,
		CreatedAt:   r.now().UTC(),
	}
	item, err := dynamo.MarshalRow(msg.PK(), msg.SK(), msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("put message: %w", err)
	}
	return msg, nil
}

// List returns the latest ListLimit messages of a channel, oldest first.
func (r *Repository) List(ctx context.Context, channelID string) ([]*Message, error) {
	items, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, dynamo.PrefixChannel+channelID, dynamo.PrefixMessage, false, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	msgs, err := dynamo.UnmarshalItems[Message](items)
	if err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}
