package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Get reads the row at (pk, sk) into out and reports whether it exists.
func Get(ctx context.Context, client DynamoDBClient, tableName, pk, sk string, out any) (bool, error) {
	output, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key:       Key(pk, sk),
	})
	if err != nil {
		return false, err
	}
	if output.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(output.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal %s/%s: %w", pk, sk, err)
	}
	return true, nil
}

// MarshalRow encodes v and stamps it with the given primary key.
func MarshalRow(pk, sk string, v any) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, err
	}
	item[AttrPK] = &types.AttributeValueMemberS{Value: pk}
	item[AttrSK] = &types.AttributeValueMemberS{Value: sk}
	return item, nil
}

// UnmarshalItems decodes query results in order.
func UnmarshalItems[T any](items []map[string]types.AttributeValue) ([]*T, error) {
	out := make([]*T, 0, len(items))
	for _, item := range items {
		v := new(T)
		if err := attributevalue.UnmarshalMap(item, v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
