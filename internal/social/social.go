// Package social stores the public post feed.
package social

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

// FeedLimit caps how many posts the feed returns.
const FeedLimit = 50

// Error types for post operations.
var (
	ErrNotFound  = apperr.NotFound("Post not found")
	ErrNotAuthor = apperr.Forbidden("Only the author can delete this post")
)

// Post is one feed entry. IDs are UUIDv7 so sort-key order is creation order.
// PK: SOCIAL
// SK: POST#{id}
type Post struct {
	ID             string    `json:"id" dynamodbav:"id"`
	AuthorSub      string    `json:"authorSub" dynamodbav:"authorSub"`
	AuthorUsername string    `json:"authorUsername,omitempty" dynamodbav:"authorUsername,omitempty"`
	Caption        string    `json:"caption,omitempty" dynamodbav:"caption,omitempty"`
	ImageURL       string    `json:"imageUrl,omitempty" dynamodbav:"imageUrl,omitempty"`
	ImageKey       string    `json:"imageKey,omitempty" dynamodbav:"imageKey,omitempty"`
	LikeCount      int       `json:"likeCount" dynamodbav:"likeCount"`
	CommentCount   int       `json:"commentCount" dynamodbav:"commentCount"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// PK returns the DynamoDB partition key for this post.
func (p *Post) PK() string {
	return dynamo.PartitionSocial
}

// SK returns the DynamoDB sort key for this post.
func (p *Post) SK() string {
	return dynamo.PrefixPost + p.ID
}

// Repository handles post storage.
type Repository struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
	newID     func() (uuid.UUID, error)
}

// NewRepository creates a new Repository.
func NewRepository(client dynamo.DynamoDBClient, tableName string) *Repository {
	return &Repository{client: client, tableName: tableName, now: time.Now, newID: uuid.NewV7}
}

// Create stores a new post with zero counters.
func (r *Repository) Create(ctx context.Context, p Post) (*Post, error) {
	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("generate post id: %w", err)
	}
	p.ID = id.String()
	p.Caption = strings.TrimSpace(p.Caption)
	p.LikeCount = 0
	p.CommentCount = 0
	p.CreatedAt = r.now().UTC()

	item, err := dynamo.MarshalRow(p.PK(), p.SK(), &p)
	if err != nil {
		return nil, fmt.Errorf("marshal post: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put post: %w", err)
	}
	return &p, nil
}

// Get retrieves a post by id.
func (r *Repository) Get(ctx context.Context, id string) (*Post, error) {
	p := &Post{ID: id}
	found, err := dynamo.Get(ctx, r.client, r.tableName, p.PK(), p.SK(), p)
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return p, nil
}

// Feed returns the newest posts first.
func (r *Repository) Feed(ctx context.Context) ([]*Post, error) {
	items, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, dynamo.PartitionSocial, dynamo.PrefixPost, false, FeedLimit)
	if err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}
	return dynamo.UnmarshalItems[Post](items)
}

// Like atomically increments the like counter and returns the updated post.
func (r *Repository) Like(ctx context.Context, id string) (*Post, error) {
	p := &Post{ID: id}
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name("likeCount"), expression.Value(1))).
		WithCondition(expression.AttributeExists(expression.Name(dynamo.AttrPK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build like update: %w", err)
	}

	output, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       dynamo.Key(p.PK(), p.SK()),
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
		return nil, fmt.Errorf("like post %s: %w", id, err)
	}
	if err := attributevalue.UnmarshalMap(output.Attributes, p); err != nil {
		return nil, fmt.Errorf("unmarshal post: %w", err)
	}
	return p, nil
}

// Delete removes a post written by authorSub and returns it so its image can be released.
func (r *Repository) Delete(ctx context.Context, id, authorSub string) (*Post, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AuthorSub != authorSub {
		return nil, ErrNotAuthor
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 dynamo.Key(p.PK(), p.SK()),
		ConditionExpression: aws.String("authorSub = :author"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":author": &types.AttributeValueMemberS{Value: authorSub},
		},
	})
	if err != nil {
		if dynamo.IsConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete post %s: %w", id, err)
	}
	return p, nil
}
