package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jarrod-lowe/jmap-service-libs/dbclient"
)

// DynamoDBClient is the subset of the DynamoDB API used by the repositories.
type DynamoDBClient interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, input *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// BatchSize is the BatchWriteItem request limit.
const BatchSize = 25

// maxBatchAttempts bounds re-submission of UnprocessedItems for one page.
const maxBatchAttempts = 5

// ErrUnprocessedItems is returned when a batch page still has unprocessed items after
// maxBatchAttempts submissions.
var ErrUnprocessedItems = errors.New("batch write left unprocessed items")

// Key builds a primary key attribute map.
func Key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: pk},
		AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

// IsConditionFailed reports whether err is a failed conditional write.
func IsConditionFailed(err error) bool {
	return dbclient.IsConditionalCheckFailed(err)
}

// QueryAll runs input, following LastEvaluatedKey until limit items were collected.
// A limit of zero or less collects every page.
func QueryAll(ctx context.Context, client DynamoDBClient, input *dynamodb.QueryInput, limit int) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	query := *input
	for {
		if limit > 0 {
			query.Limit = aws.Int32(int32(limit - len(items)))
		}
		output, err := client.Query(ctx, &query)
		if err != nil {
			return nil, err
		}
		items = append(items, output.Items...)
		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
		if len(output.LastEvaluatedKey) == 0 {
			return items, nil
		}
		query.ExclusiveStartKey = output.LastEvaluatedKey
	}
}

// QueryPrefix returns up to limit items in partition pk whose sort key begins with prefix.
func QueryPrefix(ctx context.Context, client DynamoDBClient, tableName, pk, prefix string, forward bool, limit int) ([]map[string]types.AttributeValue, error) {
	return QueryAll(ctx, client, &dynamodb.QueryInput{
		TableName:              aws.String(tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		},
		ScanIndexForward: aws.Bool(forward),
	}, limit)
}

// BatchDelete deletes keys in sequential pages of BatchSize.
func BatchDelete(ctx context.Context, client DynamoDBClient, tableName string, keys []map[string]types.AttributeValue) error {
	for start := 0; start < len(keys); start += BatchSize {
		end := min(start+BatchSize, len(keys))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key},
			})
		}
		if err := writeBatch(ctx, client, tableName, requests); err != nil {
			return fmt.Errorf("batch delete of items %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

// BatchPut writes items in sequential pages of BatchSize.
func BatchPut(ctx context.Context, client DynamoDBClient, tableName string, items []map[string]types.AttributeValue) error {
	for start := 0; start < len(items); start += BatchSize {
		end := min(start+BatchSize, len(items))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, item := range items[start:end] {
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}
		if err := writeBatch(ctx, client, tableName, requests); err != nil {
			return fmt.Errorf("batch put of items %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

func writeBatch(ctx context.Context, client DynamoDBClient, tableName string, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{tableName: requests}
	for attempt := 0; attempt < maxBatchAttempts; attempt++ {
		output, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return err
		}
		if len(output.UnprocessedItems[tableName]) == 0 {
			return nil
		}
		pending = output.UnprocessedItems
	}
	return ErrUnprocessedItems
}

// DeletePartition removes every row in pk whose sort key begins with prefix and returns
// the number of rows deleted. An empty prefix removes the whole partition.
func DeletePartition(ctx context.Context, client DynamoDBClient, tableName, pk, prefix string) (int, error) {
	keyCond := expression.Key(AttrPK).Equal(expression.Value(pk))
	if prefix != "" {
		keyCond = keyCond.And(expression.Key(AttrSK).BeginsWith(prefix))
	}
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithProjection(expression.NamesList(expression.Name(AttrPK), expression.Name(AttrSK))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("build partition query: %w", err)
	}

	items, err := QueryAll(ctx, client, &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, 0)
	if err != nil {
		return 0, fmt.Errorf("query partition %s: %w", pk, err)
	}

	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{
			AttrPK: item[AttrPK],
			AttrSK: item[AttrSK],
		})
	}
	if err := BatchDelete(ctx, client, tableName, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// FindOne returns the first row in pk under prefix whose attr equals value, or nil.
func FindOne(ctx context.Context, client DynamoDBClient, tableName, pk, prefix, attr, value string) (map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(AttrPK).Equal(expression.Value(pk)).
			And(expression.Key(AttrSK).BeginsWith(prefix))).
		WithFilter(expression.Name(attr).Equal(expression.Value(value))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build lookup query: %w", err)
	}

	query := &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	for {
		output, err := client.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(output.Items) > 0 {
			return output.Items[0], nil
		}
		if len(output.LastEvaluatedKey) == 0 {
			return nil, nil
		}
		query.ExclusiveStartKey = output.LastEvaluatedKey
	}
}
