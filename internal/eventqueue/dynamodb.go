package eventqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jarrod-lowe/collab-service/internal/dynamo"
)

// DefaultTTL is how long an undelivered event is kept.
const DefaultTTL = 10 * time.Minute

// Attribute names for queued event items.
const (
	AttrPayload    = "payload"
	AttrEnqueuedAt = "enqueuedAt"
)

// record is a queued event row.
// PK: QUEUE#{key}
// SK: EVENT#{enqueuedAtNanos}#{id} (nanos zero-padded to 20 digits)
type record struct {
	Key        string
	EnqueuedAt time.Time
	ID         string
}

func (r *record) PK() string {
	return dynamo.PrefixQueue + r.Key
}

func (r *record) SK() string {
	return fmt.Sprintf("%s%020d#%s", dynamo.PrefixEvent, r.EnqueuedAt.UnixNano(), r.ID)
}

// DynamoQueue keeps mailboxes in the table so every API instance sees the same events.
// Delivery is at most once: rows are deleted after they are read.
type DynamoQueue[T any] struct {
	client    dynamo.DynamoDBClient
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoQueue creates a DynamoQueue. A non-positive ttl uses DefaultTTL.
func NewDynamoQueue[T any](client dynamo.DynamoDBClient, tableName string, ttl time.Duration) *DynamoQueue[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoQueue[T]{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

// Enqueue writes event under key.
func (q *DynamoQueue[T]) Enqueue(ctx context.Context, key string, event T) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	now := q.now().UTC()
	rec := &record{Key: key, EnqueuedAt: now, ID: uuid.NewString()}

	_, err = q.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(q.tableName),
		Item: map[string]types.AttributeValue{
			dynamo.AttrPK:  &types.AttributeValueMemberS{Value: rec.PK()},
			dynamo.AttrSK:  &types.AttributeValueMemberS{Value: rec.SK()},
			AttrPayload:    &types.AttributeValueMemberS{Value: string(payload)},
			AttrEnqueuedAt: &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			dynamo.AttrTTL: &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(q.ttl).Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("put event for %s: %w", key, err)
	}
	return nil
}

// Dequeue reads the pending events for key in enqueue order and deletes them. Rows past
// their ttl that the table has not yet expired are deleted but not returned.
func (q *DynamoQueue[T]) Dequeue(ctx context.Context, key string) ([]T, error) {
	rec := &record{Key: key}
	items, err := dynamo.QueryPrefix(ctx, q.client, q.tableName, rec.PK(), dynamo.PrefixEvent, true, 0)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", key, err)
	}

	now := q.now().Unix()
	events := make([]T, 0, len(items))
	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{
			dynamo.AttrPK: item[dynamo.AttrPK],
			dynamo.AttrSK: item[dynamo.AttrSK],
		})
		if expired(item, now) {
			continue
		}
		payload, ok := item[AttrPayload].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		var event T
		if err := json.Unmarshal([]byte(payload.Value), &event); err != nil {
			return nil, fmt.Errorf("unmarshal event for %s: %w", key, err)
		}
		events = append(events, event)
	}

	if err := dynamo.BatchDelete(ctx, q.client, q.tableName, keys); err != nil {
		return nil, fmt.Errorf("delete delivered events for %s: %w", key, err)
	}
	return events, nil
}

// Clear deletes every pending event for key.
func (q *DynamoQueue[T]) Clear(ctx context.Context, key string) error {
	rec := &record{Key: key}
	if _, err := dynamo.DeletePartition(ctx, q.client, q.tableName, rec.PK(), dynamo.PrefixEvent); err != nil {
		return fmt.Errorf("clear events for %s: %w", key, err)
	}
	return nil
}

func expired(item map[string]types.AttributeValue, now int64) bool {
	v, ok := item[dynamo.AttrTTL].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(v.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= now
}
