// Package dynamotest provides a DynamoDB client test double shared by repository tests.
package dynamotest

import (
	"context"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MockClient is a test double for DynamoDB operations. Unset funcs return empty outputs.
type MockClient struct {
	GetItemFunc        func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItemFunc        func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItemFunc     func(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItemFunc     func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	QueryFunc          func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItemFunc func(ctx context.Context, input *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

func (m *MockClient) GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.GetItemFunc != nil {
		return m.GetItemFunc(ctx, input, opts...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *MockClient) PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.PutItemFunc != nil {
		return m.PutItemFunc(ctx, input, opts...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *MockClient) UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if m.UpdateItemFunc != nil {
		return m.UpdateItemFunc(ctx, input, opts...)
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *MockClient) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if m.DeleteItemFunc != nil {
		return m.DeleteItemFunc(ctx, input, opts...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *MockClient) Query(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, input, opts...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *MockClient) BatchWriteItem(ctx context.Context, input *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if m.BatchWriteItemFunc != nil {
		return m.BatchWriteItemFunc(ctx, input, opts...)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

// S returns the string value of attribute name in item, or "".
func S(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// ExprValue returns the string or number value bound to placeholder in values, or "".
func ExprValue(values map[string]types.AttributeValue, placeholder string) string {
	switch v := values[placeholder].(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

// ConditionFailed returns the error DynamoDB reports for a failed condition expression.
func ConditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: new(string)}
}

var (
	equalsRe     = regexp.MustCompile(`(#?\w+) = (:\w+)`)
	beginsWithRe = regexp.MustCompile(`begins_with ?\((#?\w+), (:\w+)\)`)
)

// PartitionOf returns the partition key value a query targets. It understands both
// hand-written and expression-builder key conditions.
func PartitionOf(input *dynamodb.QueryInput) string {
	return boundValue(input, equalsRe, "pk")
}

// PrefixOf returns the begins_with sort key prefix of a query, or "".
func PrefixOf(input *dynamodb.QueryInput) string {
	return boundValue(input, beginsWithRe, "sk")
}

func boundValue(input *dynamodb.QueryInput, re *regexp.Regexp, attr string) string {
	if input.KeyConditionExpression == nil {
		return ""
	}
	for _, m := range re.FindAllStringSubmatch(*input.KeyConditionExpression, -1) {
		name := m[1]
		if resolved, ok := input.ExpressionAttributeNames[name]; ok {
			name = resolved
		}
		if name == attr {
			return ExprValue(input.ExpressionAttributeValues, m[2])
		}
	}
	return ""
}
