package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/joingo/blobstore"
)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentCommit is returned when another publisher committed the
// same version first.
var ErrConcurrentCommit = errors.New("concurrent snapshot commit detected")

// VersionStore tracks the current snapshot of each index in DynamoDB.
//
// S3 offers no compare-and-swap, so repointing an index at a new
// snapshot through S3 alone can lose updates when two publishers race.
// The version store keeps one row per committed version and relies on
// DynamoDB conditional writes for the swap:
//   - Commit writes version N+1 only if no row for N+1 exists yet
//   - Current reads the row with the highest version
//
// Table schema:
//   - Partition key: index_name (string)
//   - Sort key: version (number) - monotonically increasing
//   - Attribute: snapshot_key (string) - blob name of the snapshot
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name joingo-versions \
//	  --attribute-definitions AttributeName=index_name,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=index_name,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type VersionStore struct {
	client DDBClient
	table  string
}

// NewVersionStore creates a version store on the given table.
func NewVersionStore(client DDBClient, table string) *VersionStore {
	return &VersionStore{client: client, table: table}
}

// Current returns the snapshot key and version most recently committed
// for the index. It reports blobstore.ErrNotFound when nothing has been
// committed yet.
func (s *VersionStore) Current(ctx context.Context, index string) (string, uint64, error) {
	key, version, err := s.latest(ctx, index)
	if err != nil {
		return "", 0, err
	}
	if version == 0 {
		return "", 0, fmt.Errorf("index %q: no committed snapshot: %w", index, blobstore.ErrNotFound)
	}
	return key, version, nil
}

// latest returns the highest committed version, or version 0 when the
// index has no rows. Committed versions start at 1.
func (s *VersionStore) latest(ctx context.Context, index string) (string, uint64, error) {
	resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("index_name = :name"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":name": &types.AttributeValueMemberS{Value: index},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to query version table: %w", err)
	}

	if len(resp.Items) == 0 {
		return "", 0, nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return "", 0, errors.New("invalid version attribute in version table")
	}
	keyAttr, ok := item["snapshot_key"].(*types.AttributeValueMemberS)
	if !ok {
		return "", 0, errors.New("invalid snapshot_key attribute in version table")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return "", 0, fmt.Errorf("failed to parse version: %w", err)
	}

	return keyAttr.Value, version, nil
}

// Commit atomically publishes snapshotKey as the next version of the
// index and returns the committed version number. ErrConcurrentCommit
// is returned when another publisher won the race; the caller may
// re-read Current and retry.
func (s *VersionStore) Commit(ctx context.Context, index, snapshotKey string) (uint64, error) {
	_, current, err := s.latest(ctx, index)
	if err != nil {
		return 0, err
	}

	next := current + 1

	// Conditional put: only succeed if this version doesn't exist yet
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"index_name":   &types.AttributeValueMemberS{Value: index},
			"version":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", next)},
			"snapshot_key": &types.AttributeValueMemberS{Value: snapshotKey},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentCommit
		}
		return 0, fmt.Errorf("failed to commit version: %w", err)
	}

	return next, nil
}
