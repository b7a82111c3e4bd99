package kvddb

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTable = TableDefinition{Name: "stash-test", TimeToLiveKey: "ttl"}

// fakeDynamo is a map-backed stand-in for the handful of DynamoDB operations
// the store uses. Conditional puts only understand the conditions the store
// issues: attribute_not_exists on the key, optionally OR'ed with the TTL
// attribute being less than a number. Scan pages hold at most pageSize items.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int

	lastGet  *dynamodb.GetItemInput
	putCalls int
	failWith error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}, pageSize: 2}
}

var _ AWSDynamoClientV2 = &fakeDynamo{}

func pkOf(m map[string]types.AttributeValue) string {
	return m[keyAttr].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.lastGet = params
	return &dynamodb.GetItemOutput{Item: f.items[pkOf(params.Key)]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.putCalls++
	pk := pkOf(params.Item)
	if params.ConditionExpression != nil {
		if existing, exists := f.items[pk]; exists && !expiredBefore(existing, params) {
			return nil, &types.ConditionalCheckFailedException{Message: ptr("The conditional request failed")}
		}
	}
	f.items[pk] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

// expiredBefore evaluates the "<ttl attribute> < :value" half of a
// conditional put against an existing item.
func expiredBefore(existing map[string]types.AttributeValue, params *dynamodb.PutItemInput) bool {
	var limit int64
	found := false
	for _, v := range params.ExpressionAttributeValues {
		if n, ok := v.(*types.AttributeValueMemberN); ok {
			limit, _ = strconv.ParseInt(n.Value, 10, 64)
			found = true
		}
	}
	if !found {
		return false
	}
	for _, name := range params.ExpressionAttributeNames {
		if name == keyAttr {
			continue
		}
		n, ok := existing[name].(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		secs, err := strconv.ParseInt(n.Value, 10, 64)
		return err == nil && secs < limit
	}
	return false
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, pkOf(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if params.ExclusiveStartKey != nil {
		after := pkOf(params.ExclusiveStartKey)
		start = sort.SearchStrings(keys, after) + 1
	}

	out := &dynamodb.ScanOutput{}
	for i := start; i < len(keys) && len(out.Items) < f.pageSize; i++ {
		out.Items = append(out.Items, map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: keys[i]},
		})
		if len(out.Items) == f.pageSize && i+1 < len(keys) {
			out.LastEvaluatedKey = keyDDB(keys[i])
		}
	}
	return out, nil
}

func newTestStore(t *testing.T, client AWSDynamoClientV2, opts Options) *Store {
	t.Helper()
	if opts.Table.Name == "" {
		opts.Table = testTable
	}
	s, err := New(client, opts)
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{Table: testTable})
	require.Error(t, err)

	_, err = New(newFakeDynamo(), Options{})
	require.Error(t, err, "table name is required")

	_, err = New(newFakeDynamo(), Options{Table: TableDefinition{Name: "t"}, TTL: time.Hour})
	require.Error(t, err, "TTL without TimeToLiveKey")
}

func TestStore_SetGetRemove(t *testing.T) {
	client := newFakeDynamo()
	store := newTestStore(t, client, Options{})
	ctx := context.Background()

	_, ok, err := store.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetItem(ctx, "snippets", `{"version":1}`))

	got, ok, err := store.GetItem(ctx, "snippets")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"version":1}`, got)

	require.NotNil(t, client.lastGet)
	assert.True(t, *client.lastGet.ConsistentRead)
	assert.NotNil(t, client.lastGet.ProjectionExpression)

	require.NoError(t, store.RemoveItem(ctx, "snippets"))
	_, ok, err = store.GetItem(ctx, "snippets")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SetItemIfAbsent(t *testing.T) {
	client := newFakeDynamo()
	store := newTestStore(t, client, Options{})
	ctx := context.Background()

	written, err := store.SetItemIfAbsent(ctx, "seed", "first")
	require.NoError(t, err)
	assert.True(t, written)

	written, err = store.SetItemIfAbsent(ctx, "seed", "second")
	require.NoError(t, err)
	assert.False(t, written)

	got, _, err := store.GetItem(ctx, "seed")
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func TestStore_TTL(t *testing.T) {
	client := newFakeDynamo()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, client, Options{
		TTL: time.Hour,
		Now: func() time.Time { return now },
	})
	ctx := context.Background()

	require.NoError(t, store.SetItem(ctx, "k", "v"))

	ttl, ok := client.items["k"]["ttl"].(*types.AttributeValueMemberN)
	require.True(t, ok, "expected ttl attribute")
	assert.Equal(t, "1704114000", ttl.Value)

	_, ok, err := store.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok, err = store.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "expired item must not be returned")
}

func TestStore_SetItemIfAbsent_Expired(t *testing.T) {
	client := newFakeDynamo()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, client, Options{
		TTL: time.Hour,
		Now: func() time.Time { return now },
	})
	ctx := context.Background()

	written, err := store.SetItemIfAbsent(ctx, "seed", "first")
	require.NoError(t, err)
	require.True(t, written)

	written, err = store.SetItemIfAbsent(ctx, "seed", "second")
	require.NoError(t, err)
	assert.False(t, written, "live item blocks the write")

	// Expired but not yet reaped: reads and conditional writes agree it is gone.
	now = now.Add(2 * time.Hour)
	_, ok, err := store.GetItem(ctx, "seed")
	require.NoError(t, err)
	require.False(t, ok)

	written, err = store.SetItemIfAbsent(ctx, "seed", "third")
	require.NoError(t, err)
	assert.True(t, written)

	got, ok, err := store.GetItem(ctx, "seed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "third", got)
}

func TestStore_Keys(t *testing.T) {
	client := newFakeDynamo()
	store := newTestStore(t, client, Options{})
	ctx := context.Background()

	for _, k := range []string{"app:c", "app:a", "app:b", "other:x", "app:d"} {
		require.NoError(t, store.SetItem(ctx, k, "v"))
	}

	keys, err := store.Keys(ctx, "app:")
	require.NoError(t, err)
	assert.Equal(t, []string{"app:a", "app:b", "app:c", "app:d"}, keys)
}

func TestStore_ErrorsAreWrapped(t *testing.T) {
	boom := errors.New("throttled")
	client := newFakeDynamo()
	client.failWith = boom
	store := newTestStore(t, client, Options{})
	ctx := context.Background()

	_, _, err := store.GetItem(ctx, "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.SetItem(ctx, "k", "v"), boom)
	_, err = store.SetItemIfAbsent(ctx, "k", "v")
	assert.ErrorIs(t, err, boom)
}
