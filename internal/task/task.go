// Package task stores tasks of a tasks channel.
package task

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

// Status values.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// Priority values.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ListLimit caps how many tasks a channel listing returns.
const ListLimit = 500

// ErrNotFound is returned when the task does not exist in the channel.
var ErrNotFound = apperr.NotFound("Task not found")

// Task is a unit of work in a tasks channel.
// PK: CHANNEL#{channelId}
// SK: TASK#{createdAt}#{taskId}
type Task struct {
	TaskID      string    `json:"taskId" dynamodbav:"taskId"`
	WorkspaceID string    `json:"workspaceId" dynamodbav:"workspaceId"`
	ChannelID   string    `json:"channelId" dynamodbav:"channelId"`
	Title       string    `json:"title" dynamodbav:"title"`
	Description string    `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Status      string    `json:"status" dynamodbav:"status"`
	AssignedTo  string    `json:"assignedTo,omitempty" dynamodbav:"assignedTo,omitempty"`
	DueDate     string    `json:"dueDate,omitempty" dynamodbav:"dueDate,omitempty"`
	Priority    string    `json:"priority" dynamodbav:"priority"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// PK returns the DynamoDB partition key for this task.
func (t *Task) PK() string {
	return dynamo.PrefixChannel + t.ChannelID
}

// SK returns the DynamoDB sort key for this task.
func (t *Task) SK() string {
	return dynamo.Join(dynamo.PrefixTask, dynamo.SortableTime(t.CreatedAt), t.TaskID)
}

// Update holds the fields a caller supplied; nil fields are left unchanged.
type Update struct {
	Title       *string
	Description *string
	Status      *string
	AssignedTo  *string
	DueDate     *string
	Priority    *string
}

// Repository handles task storage.
type Repository struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(client dynamo.DynamoDBClient, tableName string) *Repository {
	return &Repository{client: client, tableName: tableName, now: time.Now}
}

// Create stores a new task. Empty status and priority default to todo and medium.
func (r *Repository) Create(ctx context.Context, t Task) (*Task, error) {
	now := r.now().UTC()
	t.TaskID = uuid.NewString()
	t.Title = strings.TrimSpace(t.Title)
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	item, err := dynamo.MarshalRow(t.PK(), t.SK(), &t)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("put task: %w", err)
	}
	return &t, nil
}

// List returns the tasks of a channel in creation order.
func (r *Repository) List(ctx context.Context, channelID string) ([]*Task, error) {
	items, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, dynamo.PrefixChannel+channelID, dynamo.PrefixTask, true, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return dynamo.UnmarshalItems[Task](items)
}

// Get finds a task of a channel by ID.
func (r *Repository) Get(ctx context.Context, channelID, taskID string) (*Task, error) {
	item, err := dynamo.FindOne(ctx, r.client, r.tableName, dynamo.PrefixChannel+channelID, dynamo.PrefixTask, "taskId", taskID)
	if err != nil {
		return nil, fmt.Errorf("find task %s: %w", taskID, err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	t := &Task{}
	if err := attributevalue.UnmarshalMap(item, t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return t, nil
}

// Update changes only the supplied fields.
func (r *Repository) Update(ctx context.Context, channelID, taskID string, update Update) (*Task, error) {
	existing, err := r.Get(ctx, channelID, taskID)
	if err != nil {
		return nil, err
	}

	set := expression.Set(expression.Name("updatedAt"), expression.Value(r.now().UTC()))
	fields := []struct {
		name  string
		value *string
	}{
		{"title", update.Title},
		{"description", update.Description},
		{"status", update.Status},
		{"assignedTo", update.AssignedTo},
		{"dueDate", update.DueDate},
		{"priority", update.Priority},
	}
	for _, f := range fields {
		if f.value != nil {
			set = set.Set(expression.Name(f.name), expression.Value(*f.value))
		}
	}

	expr, err := expression.NewBuilder().
		WithUpdate(set).
		WithCondition(expression.AttributeExists(expression.Name(dynamo.AttrPK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build task update: %w", err)
	}
	output, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       dynamo.Key(existing.PK(), existing.SK()),
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
		return nil, fmt.Errorf("update task %s: %w", taskID, err)
	}
	updated := &Task{}
	if err := attributevalue.UnmarshalMap(output.Attributes, updated); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return updated, nil
}

// Delete removes a task.
func (r *Repository) Delete(ctx context.Context, channelID, taskID string) error {
	existing, err := r.Get(ctx, channelID, taskID)
	if err != nil {
		return err
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       dynamo.Key(existing.PK(), existing.SK()),
	})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	return nil
}
