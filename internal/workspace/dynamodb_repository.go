package workspace

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jarrod-lowe/collab-service/internal/dynamo"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

// DynamoDBRepository implements Repository using DynamoDB.
type DynamoDBRepository struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
}

// NewDynamoDBRepository creates a new DynamoDBRepository.
func NewDynamoDBRepository(client dynamo.DynamoDBClient, tableName string) *DynamoDBRepository {
	return &DynamoDBRepository{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

// Create stores a new workspace owned by ownerEmail.
func (r *DynamoDBRepository) Create(ctx context.Context, name, ownerEmail string, members []string, imageURL string) (*Workspace, error) {
	now := r.now().UTC()
	owner := textnorm.NormalizeEmail(ownerEmail)
	ws := &Workspace{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(name),
		OwnerEmail: owner,
		Members:    NormalizeMembers(owner, members),
		ImageURL:   imageURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	item, err := dynamo.MarshalRow(ws.PK(), ws.SK(), ws)
	if err != nil {
		return nil, fmt.Errorf("marshal workspace: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put workspace: %w", err)
	}
	return ws, nil
}

// Get retrieves a workspace by ID.
func (r *DynamoDBRepository) Get(ctx context.Context, id string) (*Workspace, error) {
	ws := &Workspace{ID: id}
	found, err := dynamo.Get(ctx, r.client, r.tableName, ws.PK(), ws.SK(), ws)
	if err != nil {
		return nil, fmt.Errorf("get workspace %s: %w", id, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return ws, nil
}

// ListForMember returns the workspaces email owns or belongs to, in sort-key order.
func (r *DynamoDBRepository) ListForMember(ctx context.Context, email string) ([]*Workspace, error) {
	items, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, dynamo.PartitionWorkspace, dynamo.PrefixWorkspace, true, MaxScan)
	if err != nil {
		return nil, fmt.Errorf("query workspaces: %w", err)
	}
	all, err := dynamo.UnmarshalItems[Workspace](items)
	if err != nil {
		return nil, fmt.Errorf("unmarshal workspaces: %w", err)
	}

	out := make([]*Workspace, 0, len(all))
	for _, ws := range all {
		if ws.HasMember(email) {
			out = append(out, ws)
		}
	}
	return out, nil
}

// Update applies the non-nil fields of update.
func (r *DynamoDBRepository) Update(ctx context.Context, id string, update Update) (*Workspace, error) {
	set := expression.Set(expression.Name("updatedAt"), expression.Value(r.now().UTC()))
	if update.Name != nil {
		set = set.Set(expression.Name("name"), expression.Value(strings.TrimSpace(*update.Name)))
	}
	if update.ImageURL != nil {
		set = set.Set(expression.Name("imageUrl"), expression.Value(*update.ImageURL))
	}
	return r.update(ctx, id, set)
}

// AddMember adds email to the member list. Adding an existing member is a no-op write.
func (r *DynamoDBRepository) AddMember(ctx context.Context, id, email string) (*Workspace, error) {
	ws, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	members := NormalizeMembers(ws.OwnerEmail, append(ws.Members, email))
	return r.setMembers(ctx, id, members)
}

// RemoveMember removes email from the member list. The owner cannot be removed.
func (r *DynamoDBRepository) RemoveMember(ctx context.Context, id, email string) (*Workspace, error) {
	ws, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.IsOwner(email) {
		return nil, ErrCannotRemoveOwner
	}
	target := textnorm.NormalizeEmail(email)
	members := slices.DeleteFunc(NormalizeMembers(ws.OwnerEmail, ws.Members), func(m string) bool {
		return m == target
	})
	return r.setMembers(ctx, id, members)
}

func (r *DynamoDBRepository) setMembers(ctx context.Context, id string, members []string) (*Workspace, error) {
	set := expression.Set(expression.Name("members"), expression.Value(members)).
		Set(expression.Name("updatedAt"), expression.Value(r.now().UTC()))
	return r.update(ctx, id, set)
}

func (r *DynamoDBRepository) update(ctx context.Context, id string, set expression.UpdateBuilder) (*Workspace, error) {
	ws := &Workspace{ID: id}
	expr, err := expression.NewBuilder().
		WithUpdate(set).
		WithCondition(expression.AttributeExists(expression.Name(dynamo.AttrPK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build workspace update: %w", err)
	}

	output, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       dynamo.Key(ws.PK(), ws.SK()),
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
		return nil, fmt.Errorf("update workspace %s: %w", id, err)
	}
	if err := attributevalue.UnmarshalMap(output.Attributes, ws); err != nil {
		return nil, fmt.Errorf("unmarshal workspace: %w", err)
	}
	return ws, nil
}

// Delete removes the workspace, every channel in it and every row under each channel.
func (r *DynamoDBRepository) Delete(ctx context.Context, id string) error {
	ws := &Workspace{ID: id}
	wsPartition := dynamo.PrefixWorkspace + id

	channels, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, wsPartition, dynamo.PrefixChannel, true, 0)
	if err != nil {
		return fmt.Errorf("query channels of workspace %s: %w", id, err)
	}
	for _, item := range channels {
		var row struct {
			SK string `dynamodbav:"sk"`
		}
		if err := attributevalue.UnmarshalMap(item, &row); err != nil {
			return fmt.Errorf("unmarshal channel key: %w", err)
		}
		channelID := strings.TrimPrefix(row.SK, dynamo.PrefixChannel)
		if _, err := dynamo.DeletePartition(ctx, r.client, r.tableName, dynamo.PrefixChannel+channelID, ""); err != nil {
			return fmt.Errorf("delete channel %s contents: %w", channelID, err)
		}
	}
	if _, err := dynamo.DeletePartition(ctx, r.client, r.tableName, wsPartition, ""); err != nil {
		return fmt.Errorf("delete channels of workspace %s: %w", id, err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 dynamo.Key(ws.PK(), ws.SK()),
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		if dynamo.IsConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete workspace %s: %w", id, err)
	}
	return nil
}

var _ Repository = (*DynamoDBRepository)(nil)
