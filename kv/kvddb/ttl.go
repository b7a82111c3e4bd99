package kvddb

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func ttlDDB(expiry time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{
		Value: fmt.Sprintf("%d", expiry.Unix()),
	}
}

// expired reports whether an item's TTL attribute lies in the past.
// DynamoDB deletes expired items lazily, up to days later, so reads filter
// them out themselves.
func expired(doc map[string]types.AttributeValue, ttlKey string, now time.Time) bool {
	if ttlKey == "" {
		return false
	}
	n, ok := doc[ttlKey].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	secs, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return false
	}
	return !now.Before(time.Unix(secs, 0))
}
