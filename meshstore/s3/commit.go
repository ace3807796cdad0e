package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/recogo/meshstore"
)

// DDBClient is the subset of the DynamoDB API used by CommitStore.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentCommit is returned when another writer committed a snapshot
// between reading and updating the current-snapshot pointer.
var ErrConcurrentCommit = errors.New("s3: concurrent snapshot commit")

// CommitStore implements meshstore.Store backed by S3 with DynamoDB for
// atomic current-pointer commits.
//
// S3 has no compare-and-swap, so overwriting the current-snapshot pointer
// directly would let concurrent writers lose commits. CommitStore records
// each commit as a new DynamoDB item keyed by a monotonically increasing
// version; the conditional write fails for a version that already exists.
//
// Table schema:
//   - Partition key: base_uri (string), the S3 bucket/prefix
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name recogo-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	store   *Store
	ddb     DDBClient
	table   string
	baseURI string
}

// Compile time check to ensure CommitStore satisfies the meshstore.Store interface.
var _ meshstore.Store = (*CommitStore)(nil)

// NewCommitStore creates an S3+DynamoDB commit store. baseURI identifies the
// library location (e.g. "s3://bucket/prefix") and is the partition key for
// its commit history.
func NewCommitStore(store *Store, ddb DDBClient, table, baseURI string) *CommitStore {
	return &CommitStore{
		store:   store,
		ddb:     ddb,
		table:   table,
		baseURI: baseURI,
	}
}

// Open opens a blob for reading. The current-snapshot pointer is served from
// the latest committed DynamoDB version instead of S3.
func (s *CommitStore) Open(ctx context.Context, name string) (meshstore.Blob, error) {
	if name != meshstore.CurrentPointer {
		return s.store.Open(ctx, name)
	}

	version, manifestName, err := s.latestVersion(ctx)
	if err != nil {
		return nil, err
	}

	if version == 0 {
		return nil, meshstore.ErrNotFound
	}

	return &pointerBlob{content: []byte(manifestName)}, nil
}

// Put writes a blob. Writing the current-snapshot pointer commits a new
// version through DynamoDB; everything else goes straight to S3.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == meshstore.CurrentPointer {
		return s.commit(ctx, string(data))
	}

	return s.store.Put(ctx, name, data)
}

// Delete removes a blob from S3.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	return s.store.Delete(ctx, name)
}

// List returns all S3 blob names with the given prefix, sorted.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.store.List(ctx, prefix)
}

// latestVersion returns the newest committed version and its manifest blob
// name. A zero version means nothing was committed yet.
func (s *CommitStore) latestVersion(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit table: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]

	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: invalid version attribute in commit table")
	}

	manifestAttr, ok := item["manifest_path"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: invalid manifest_path attribute in commit table")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse commit version: %w", err)
	}

	return version, manifestAttr.Value, nil
}

// commit records manifestName as the next version with a conditional write.
func (s *CommitStore) commit(ctx context.Context, manifestName string) error {
	current, _, err := s.latestVersion(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: s.baseURI},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(current+1, 10)},
			"manifest_path": &types.AttributeValueMemberS{Value: manifestName},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return ErrConcurrentCommit
		}

		return fmt.Errorf("commit version: %w", err)
	}

	return nil
}

// pointerBlob serves the current-snapshot pointer content from memory.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) Close() error {
	return nil
}

func (b *pointerBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *pointerBlob) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.content)) {
		return 0, io.EOF
	}

	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}
