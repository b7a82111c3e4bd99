package kvddb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// SetItem creates or replaces the item for key.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	doc, err := s.table.marshalItem(key, value, s.now(), s.ttl)
	if err != nil {
		return err
	}
	_, err = s.awsddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table.Name,
		Item:      doc,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	s.log.Debug("put item", zap.String("table", s.table.Name), zap.String("key", key))
	return nil
}

// SetItemIfAbsent puts the item under an attribute_not_exists condition.
// With a TimeToLiveKey, an expired item that DynamoDB has not reaped yet
// counts as absent, matching GetItem.
func (s *Store) SetItemIfAbsent(ctx context.Context, key, value string) (bool, error) {
	now := s.now()
	doc, err := s.table.marshalItem(key, value, now, s.ttl)
	if err != nil {
		return false, err
	}
	cond := expression.AttributeNotExists(expression.Name(keyAttr))
	if s.table.TimeToLiveKey != "" {
		cond = cond.Or(expression.Name(s.table.TimeToLiveKey).LessThan(expression.Value(now.Unix())))
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return false, fmt.Errorf("build: %w", err)
	}

	_, err = s.awsddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 &s.table.Name,
		Item:                      doc,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to put item: %w", err)
	}
	return true, nil
}

// RemoveItem deletes the item for key. Deleting a missing key succeeds.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	_, err := s.awsddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table.Name,
		Key:       keyDDB(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}
