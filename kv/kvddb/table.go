package kvddb

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of a stored item. The table's partition key must be a
// string attribute named "pk"; there is no sort key.
const (
	keyAttr       = "pk"
	valueAttr     = "value"
	updatedAtAttr = "updatedAt"
)

// TableDefinition describes the DynamoDB table holding the items.
type TableDefinition struct {
	Name string
	// TimeToLiveKey names the table's TTL attribute. Required when the store
	// is configured with a TTL.
	TimeToLiveKey string
}

func (t TableDefinition) validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	return nil
}

// item is the stored shape of one key-value pair.
type item struct {
	Key       string `dynamodbav:"pk"`
	Value     string `dynamodbav:"value"`
	UpdatedAt int64  `dynamodbav:"updatedAt"`
}

func (t TableDefinition) marshalItem(key, value string, now time.Time, ttl time.Duration) (map[string]types.AttributeValue, error) {
	doc, err := attributevalue.MarshalMap(item{
		Key:       key,
		Value:     value,
		UpdatedAt: now.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item to dynamodb map: %w", err)
	}
	if ttl > 0 && t.TimeToLiveKey != "" {
		doc[t.TimeToLiveKey] = ttlDDB(now.Add(ttl))
	}
	return doc, nil
}

func keyDDB(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttr: &types.AttributeValueMemberS{Value: key},
	}
}
