package kvddb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// GetItem reads one key with a strongly consistent read.
func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	input := &dynamodb.GetItemInput{
		TableName:      &s.table.Name,
		Key:            keyDDB(key),
		ConsistentRead: ptr(true),
	}

	if err := s.applyProjection(input); err != nil {
		return "", false, fmt.Errorf("failed to apply projection: %w", err)
	}

	res, err := s.awsddb.GetItem(ctx, input)
	if err != nil {
		return "", false, fmt.Errorf("get item failed: %w", err)
	}
	if res.Item == nil || expired(res.Item, s.table.TimeToLiveKey, s.now()) {
		return "", false, nil
	}

	var it item
	if err := attributevalue.UnmarshalMap(res.Item, &it); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return it.Value, true, nil
}

func (s *Store) applyProjection(input *dynamodb.GetItemInput) error {
	proj := expression.NamesList(expression.Name(keyAttr), expression.Name(valueAttr), expression.Name(updatedAtAttr))
	if s.table.TimeToLiveKey != "" {
		proj = proj.AddNames(expression.Name(s.table.TimeToLiveKey))
	}
	expr, err := expression.NewBuilder().WithProjection(proj).Build()
	if err != nil {
		return err
	}
	input.ProjectionExpression = expr.Projection()
	input.ExpressionAttributeNames = expr.Names()
	return nil
}
