package kvddb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Keys scans the table for keys starting with prefix. Scans read the whole
// table, so this is meant for tooling rather than hot paths.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	b := expression.NewBuilder().WithProjection(expression.NamesList(expression.Name(keyAttr)))
	if prefix != "" {
		b = b.WithFilter(expression.Name(keyAttr).BeginsWith(prefix))
	}
	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 &s.table.Name,
		ProjectionExpression:      expr.Projection(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var keys []string
	for {
		res, err := s.awsddb.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for _, doc := range res.Items {
			k, ok := doc[keyAttr].(*types.AttributeValueMemberS)
			if !ok || !strings.HasPrefix(k.Value, prefix) {
				continue
			}
			keys = append(keys, k.Value)
		}
		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = res.LastEvaluatedKey
	}

	sort.Strings(keys)
	return keys, nil
}
