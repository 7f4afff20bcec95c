package board

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

	"github.com/jarrod-lowe/collab-service/internal/dynamo"
)

// Repository handles board column and card storage.
type Repository struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(client dynamo.DynamoDBClient, tableName string) *Repository {
	return &Repository{client: client, tableName: tableName, now: time.Now}
}

// CreateColumn stores a new column.
func (r *Repository) CreateColumn(ctx context.Context, col Column) (*Column, error) {
	now := r.now().UTC()
	col.ColumnID = uuid.NewString()
	col.Title = strings.TrimSpace(col.Title)
	col.CreatedAt = now
	col.UpdatedAt = now

	if err := r.put(ctx, col.PK(), col.SK(), &col, "attribute_not_exists(pk)"); err != nil {
		return nil, fmt.Errorf("put column: %w", err)
	}
	return &col, nil
}

// GetColumn retrieves a column.
func (r *Repository) GetColumn(ctx context.Context, channelID, columnID string) (*Column, error) {
	col := &Column{ChannelID: channelID, ColumnID: columnID}
	found, err := dynamo.Get(ctx, r.client, r.tableName, col.PK(), col.SK(), col)
	if err != nil {
		return nil, fmt.Errorf("get column %s: %w", columnID, err)
	}
	if !found {
		return nil, ErrColumnNotFound
	}
	return col, nil
}

// ListColumns returns the columns of a board channel.
func (r *Repository) ListColumns(ctx context.Context, channelID string) ([]*Column, error) {
	items, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, dynamo.PrefixChannel+channelID, dynamo.PrefixBoardColumn, true, ColumnListLimit)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	return dynamo.UnmarshalItems[Column](items)
}

// UpdateColumn changes only the supplied column fields.
func (r *Repository) UpdateColumn(ctx context.Context, channelID, columnID string, update ColumnUpdate) (*Column, error) {
	col := &Column{ChannelID: channelID, ColumnID: columnID}
	set := expression.Set(expression.Name("updatedAt"), expression.Value(r.now().UTC()))
	if update.Title != nil {
		set = set.Set(expression.Name("title"), expression.Value(strings.TrimSpace(*update.Title)))
	}
	if update.Order != nil {
		set = set.Set(expression.Name("order"), expression.Value(*update.Order))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(set).
		WithCondition(expression.AttributeExists(expression.Name(dynamo.AttrPK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build column update: %w", err)
	}

	output, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       dynamo.Key(col.PK(), col.SK()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if dynamo.IsConditionFailed(err) {
			return nil, ErrColumnNotFound
		}
		return nil, fmt.Errorf("update column %s: %w", columnID, err)
	}
	if err := attributevalue.UnmarshalMap(output.Attributes, col); err != nil {
		return nil, fmt.Errorf("unmarshal column: %w", err)
	}
	return col, nil
}

// DeleteColumn removes a column and every card in it. It returns the number of cards removed.
func (r *Repository) DeleteColumn(ctx context.Context, channelID, columnID string) (int, error) {
	col, err := r.GetColumn(ctx, channelID, columnID)
	if err != nil {
		return 0, err
	}
	removed, err := dynamo.DeletePartition(ctx, r.client, r.tableName, col.PK(), col.CardPrefix())
	if err != nil {
		return 0, fmt.Errorf("delete cards of column %s: %w", columnID, err)
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       dynamo.Key(col.PK(), col.SK()),
	})
	if err != nil {
		return removed, fmt.Errorf("delete column %s: %w", columnID, err)
	}
	return removed, nil
}

// CreateCard stores a new card in an existing column.
func (r *Repository) CreateCard(ctx context.Context, card Card) (*Card, error) {
	if _, err := r.GetColumn(ctx, card.ChannelID, card.ColumnID); err != nil {
		return nil, err
	}
	now := r.now().UTC()
	card.CardID = uuid.NewString()
	card.Title = strings.TrimSpace(card.Title)
	card.CreatedAt = now
	card.UpdatedAt = now
	normalizeLists(&card)

	if err := r.put(ctx, card.PK(), card.SK(), &card, "attribute_not_exists(pk)"); err != nil {
		return nil, fmt.Errorf("put card: %w", err)
	}
	return &card, nil
}

// ListCards returns the cards of a board channel, grouped by column in sort-key order.
// A non-empty columnID restricts the listing to that column.
func (r *Repository) ListCards(ctx context.Context, channelID, columnID string) ([]*Card, error) {
	prefix := dynamo.PrefixBoardCard
	if columnID != "" {
		prefix = (&Column{ColumnID: columnID}).CardPrefix()
	}
	items, err := dynamo.QueryPrefix(ctx, r.client, r.tableName, dynamo.PrefixChannel+channelID, prefix, true, CardListLimit)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	return dynamo.UnmarshalItems[Card](items)
}

// GetCard finds a card of a board channel by ID.
func (r *Repository) GetCard(ctx context.Context, channelID, cardID string) (*Card, error) {
	item, err := dynamo.FindOne(ctx, r.client, r.tableName, dynamo.PrefixChannel+channelID, dynamo.PrefixBoardCard, "cardId", cardID)
	if err != nil {
		return nil, fmt.Errorf("find card %s: %w", cardID, err)
	}
	if item == nil {
		return nil, ErrCardNotFound
	}
	card := &Card{}
	if err := attributevalue.UnmarshalMap(item, card); err != nil {
		return nil, fmt.Errorf("unmarshal card: %w", err)
	}
	return card, nil
}

// UpdateCard changes only the supplied fields. Moving to another column writes the card
// under its new sort key and then deletes the old row.
func (r *Repository) UpdateCard(ctx context.Context, channelID, cardID string, update CardUpdate) (*Card, error) {
	existing, err := r.GetCard(ctx, channelID, cardID)
	if err != nil {
		return nil, err
	}
	oldSK := existing.SK()

	updated := *existing
	update.apply(&updated)
	updated.Title = strings.TrimSpace(updated.Title)
	updated.UpdatedAt = r.now().UTC()
	normalizeLists(&updated)

	if updated.ColumnID == existing.ColumnID {
		if err := r.put(ctx, updated.PK(), updated.SK(), &updated, "attribute_exists(pk)"); err != nil {
			if dynamo.IsConditionFailed(err) {
				return nil, ErrCardNotFound
			}
			return nil, fmt.Errorf("put card: %w", err)
		}
		return &updated, nil
	}

	if _, err := r.GetColumn(ctx, channelID, updated.ColumnID); err != nil {
		return nil, err
	}
	if err := r.put(ctx, updated.PK(), updated.SK(), &updated, "attribute_not_exists(pk)"); err != nil {
		return nil, fmt.Errorf("put moved card: %w", err)
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       dynamo.Key(existing.PK(), oldSK),
	})
	if err != nil {
		return nil, fmt.Errorf("delete card %s from old column: %w", cardID, err)
	}
	return &updated, nil
}

// DeleteCard removes a card.
func (r *Repository) DeleteCard(ctx context.Context, channelID, cardID string) error {
	existing, err := r.GetCard(ctx, channelID, cardID)
	if err != nil {
		return err
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       dynamo.Key(existing.PK(), existing.SK()),
	})
	if err != nil {
		return fmt.Errorf("delete card %s: %w", cardID, err)
	}
	return nil
}

func (r *Repository) put(ctx context.Context, pk, sk string, v any, condition string) error {
	item, err := dynamo.MarshalRow(pk, sk, v)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String(condition),
	})
	return err
}

func normalizeLists(c *Card) {
	if c.Assignees == nil {
		c.Assignees = []string{}
	}
	if c.Labels == nil {
		c.Labels = []string{}
	}
}
