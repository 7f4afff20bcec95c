// Package dm stores direct-message threads between two users and their messages.
package dm

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/dynamo"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

// List caps.
const (
	ThreadListLimit  = 100
	MessageListLimit = 100
)

// Error types for DM operations.
var (
	ErrNotFound       = apperr.NotFound("Thread not found")
	ErrNotParticipant = apperr.Forbidden("Not a participant of this thread")
	ErrSelfThread     = apperr.Validation("Cannot start a thread with yourself")
	ErrInvalidSub     = apperr.Validation("Thread participants must be user ids")
)

// Thread is a conversation between exactly two users.
// PK: DM
// SK: THREAD#{threadId}
type Thread struct {
	ThreadID      string     `json:"threadId" dynamodbav:"threadId"`
	Participants  []string   `json:"participants" dynamodbav:"participants"`
	LastMessage   string     `json:"lastMessage,omitempty" dynamodbav:"lastMessage,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty" dynamodbav:"lastMessageAt,omitempty"`
	LastSenderSub string     `json:"lastSenderSub,omitempty" dynamodbav:"lastSenderSub,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" dynamodbav:"createdAt"`
}

// PK returns the DynamoDB partition key for this thread.
func (t *Thread) PK() string {
	return dynamo.PartitionDM
}

// SK returns the DynamoDB sort key for this thread.
func (t *Thread) SK() string {
	return dynamo.PrefixThread + t.ThreadID
}

// HasParticipant reports whether sub is one of the two participants.
func (t *Thread) HasParticipant(sub string) bool {
	return slices.Contains(t.Participants, sub)
}

// activity is the time used to order thread listings.
func (t *Thread) activity() time.Time {
	if t.LastMessageAt != nil {
		return *t.LastMessageAt
	}
	return t.CreatedAt
}

// Message is one direct message.
// PK: THREAD#{threadId}
// SK: MESSAGE#{createdAt}#{id}
type Message struct {
	ID        string    `json:"id" dynamodbav:"id"`
	ThreadID  string    `json:"threadId" dynamodbav:"threadId"`
	SenderSub string    `json:"senderSub" dynamodbav:"senderSub"`
	Text      string    `json:"text" dynamodbav:"text"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// PK returns the DynamoDB partition key for this message.
func (m *Message) PK() string {
	return dynamo.PrefixThread + m.ThreadID
}

// SK returns the DynamoDB sort key for this message.
func (m *Message) SK() string {
	return dynamo.Join(dynamo.PrefixMessage, dynamo.SortableTime(m.CreatedAt), m.ID)
}

// ThreadID derives the order-independent thread id of two users.
func ThreadID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "#")
}

// Repository handles thread and DM message storage.
type Repository struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(client dynamo.DynamoDBClient, tableName string) *Repository {
	return &Repository{client: client, tableName: tableName, now: time.Now}
}

// UpsertThread returns the thread between a and b, creating it if needed. The bool reports
// whether this call created it.
func (r *Repository) UpsertThread(ctx context.Context, a, b string) (*Thread, bool, error) {
	if !textnorm.IsSub(a) || !textnorm.IsSub(b) {
		return nil, false, ErrInvalidSub
	}
	if a == b {
		return nil, false, ErrSelfThread
	}
	pair := []string{a, b}
	sort.Strings(pair)
	t := Thread{
		ThreadID:     strings.Join(pair, "#"),
		Participants: pair,
		CreatedAt:    r.now().UTC(),
	}
	id := t.ThreadID
	item, err := dynamo.MarshalRow(t.PK(), t.SK(), &t)
	if err != nil {
		return nil, false, fmt.Errorf("marshal thread: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err == nil {
		return &t, true, nil
	}
	if !dynamo.IsConditionFailed(err) {
		return nil, false, fmt.Errorf("put thread: %w", err)
	}
	existing, err := r.GetThread(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetThread retrieves a thread by id.
func (r *Repository) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	t := &Thread{ThreadID: threadID}
	found, err := dynamo.Get(ctx, r.client, r.tableName, t.PK(), t.SK(), t)
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", threadID, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return t, nil
}

// GetThreadFor retrieves a thread and checks that sub participates in it.
func (r *Repository) GetThreadFor(ctx context.Context, threadID, sub string) (*Thread, error) {
	t, err := r.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !t.HasParticipant(sub) {
		return nil, ErrNotParticipant
	}
	return t, nil
}

// ListThreads returns sub's threads, most recently active first.
func (r *Repository) ListThreads(ctx context.Context, sub string) ([]*Thread, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(dynamo.AttrPK).Equal(expression.Value(dynamo.PartitionDM)).
			And(expression.Key(dynamo.AttrSK).BeginsWith(dynamo.PrefixThread))).
		WithFilter(expression.Contains(expression.Name("participants"), sub)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build thread query: %w", err)
	}
	items, err := dynamo.QueryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	threads, err := dynamo.UnmarshalItems[Thread](items)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].activity().After(threads[j].activity())
	})
	if len(threads) > ThreadListLimit {
		threads = threads[:ThreadListLimit]
	}
	return threads, nil
}

// PostMessage stores a message and records it as the thread's latest.
func (r *Repository) PostMessage(ctx context.Context, threadID, senderSub, text string) (*Message, error) {
	m := Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		SenderSub: senderSub,
		Text:      text,
		CreatedAt: r.now().UTC(),
	}
	item, err := dynamo.MarshalRow(m.PK(), m.SK(), &m)
	if err != nil {
		return nil, fmt.Errorf("marshal dm message: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		return nil, fmt.Errorf("put dm message: %w", err)
	}

	t := &Thread{ThreadID: threadID}
	expr, err := expression.NewBuilder().
		WithUpdate(expression.
			Set(expression.Name("lastMessage"), expression.Value(text)).
			Set(expression.Name("lastMessageAt"), expression.Value(m.CreatedAt)).
			Set(expression.Name("lastSenderSub"), expression.Value(senderSub))).
		WithCondition(expression.AttributeExists(expression.Name(dynamo.AttrPK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build thread update: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       dynamo.Key(t.PK(), t.SK()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if dynamo.IsConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update thread %s: %w", threadID, err)
	}
	return &m, nil
}

// ListMessages returns the latest messages of a thread in chronological order.
func (r *Repository) ListMessages(ctx context.Context, threadID string) ([]*Message, error) {
	items, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, dynamo.PrefixThread+threadID, dynamo.PrefixMessage, false, MessageListLimit)
	if err != nil {
		return nil, fmt.Errorf("query dm messages: %w", err)
	}
	messages, err := dynamo.UnmarshalItems[Message](items)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
