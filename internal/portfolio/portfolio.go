// Package portfolio stores each user's showcase projects.
package portfolio

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

// ListLimit caps how many projects a listing returns.
const ListLimit = 100

// ErrNotFound is returned when the owner has no such project.
var ErrNotFound = apperr.NotFound("Project not found")

// Project is one portfolio entry.
// PK: PORTFOLIO#{ownerSub}
// SK: PROJECT#{id}
type Project struct {
	ID          string    `json:"id" dynamodbav:"id"`
	OwnerSub    string    `json:"ownerSub" dynamodbav:"ownerSub"`
	Title       string    `json:"title" dynamodbav:"title"`
	Description string    `json:"description,omitempty" dynamodbav:"description,omitempty"`
	URL         string    `json:"url,omitempty" dynamodbav:"url,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty" dynamodbav:"imageUrl,omitempty"`
	Tags        []string  `json:"tags" dynamodbav:"tags"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// PK returns the DynamoDB partition key for this project.
func (p *Project) PK() string {
	return dynamo.PrefixPortfolio + p.OwnerSub
}

// SK returns the DynamoDB sort key for this project.
func (p *Project) SK() string {
	return dynamo.PrefixProject + p.ID
}

// Repository handles project storage.
type Repository struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(client dynamo.DynamoDBClient, tableName string) *Repository {
	return &Repository{client: client, tableName: tableName, now: time.Now}
}

// Create stores a new project for p.OwnerSub.
func (r *Repository) Create(ctx context.Context, p Project) (*Project, error) {
	now := r.now().UTC()
	p.ID = uuid.NewString()
	p.Title = strings.TrimSpace(p.Title)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	item, err := dynamo.MarshalRow(p.PK(), p.SK(), &p)
	if err != nil {
		return nil, fmt.Errorf("marshal project: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put project: %w", err)
	}
	return &p, nil
}

// List returns the projects of ownerSub.
func (r *Repository) List(ctx context.Context, ownerSub string) ([]*Project, error) {
	items, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, dynamo.PrefixPortfolio+ownerSub, dynamo.PrefixProject, true, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	return dynamo.UnmarshalItems[Project](items)
}

// Update replaces the mutable fields of an existing project owned by p.OwnerSub.
func (r *Repository) Update(ctx context.Context, p Project) (*Project, error) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	expr, err := expression.NewBuilder().
		WithUpdate(expression.
			Set(expression.Name("title"), expression.Value(strings.TrimSpace(p.Title))).
			Set(expression.Name("description"), expression.Value(p.Description)).
			Set(expression.Name("url"), expression.Value(p.URL)).
			Set(expression.Name("imageUrl"), expression.Value(p.ImageURL)).
			Set(expression.Name("tags"), expression.Value(p.Tags)).
			Set(expression.Name("updatedAt"), expression.Value(r.now().UTC()))).
		WithCondition(expression.AttributeExists(expression.Name(dynamo.AttrPK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build project update: %w", err)
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
		return nil, fmt.Errorf("update project %s: %w", p.ID, err)
	}
	updated := &Project{}
	if err := attributevalue.UnmarshalMap(output.Attributes, updated); err != nil {
		return nil, fmt.Errorf("unmarshal project: %w", err)
	}
	return updated, nil
}

// Delete removes a project owned by ownerSub.
func (r *Repository) Delete(ctx context.Context, ownerSub, id string) error {
	p := &Project{OwnerSub: ownerSub, ID: id}
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 dynamo.Key(p.PK(), p.SK()),
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		if dynamo.IsConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}
