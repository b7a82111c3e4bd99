// Package kvddb implements kv.Store on Amazon DynamoDB, one item per key.
//
// The store talks to DynamoDB through AWSDynamoClientV2, which the AWS SDK v2
// *dynamodb.Client satisfies, so tests and local tooling can substitute any
// implementation of the four operations used.
package kvddb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// AWSDynamoClientV2 is the subset of DynamoDB client operations the store
// needs. It mirrors the method signatures of the AWS SDK v2 *dynamodb.Client.
type AWSDynamoClientV2 interface {
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var _ AWSDynamoClientV2 = (*dynamodb.Client)(nil)
