package s3

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recogo/meshstore"
)

type fakeDDB struct {
	put   func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	query func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
}

// Compile time check to ensure fakeDDB satisfies the DDBClient interface.
var _ DDBClient = (*fakeDDB)(nil)

func (f *fakeDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return f.put(in)
}

func (f *fakeDDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.query(in)
}

func commitItem(version, manifest string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"base_uri":      &ddbtypes.AttributeValueMemberS{Value: "s3://bucket/lib"},
		"version":       &ddbtypes.AttributeValueMemberN{Value: version},
		"manifest_path": &ddbtypes.AttributeValueMemberS{Value: manifest},
	}
}

func newCommitStore(ddb DDBClient, s3Client Client) *CommitStore {
	if s3Client == nil {
		s3Client = &fakeS3{}
	}

	return NewCommitStore(NewStore(s3Client, "bucket", "lib"), ddb, "recogo-commits", "s3://bucket/lib")
}

func TestCommitStoreOpenCurrent(t *testing.T) {
	t.Run("Committed", func(t *testing.T) {
		ddb := &fakeDDB{
			query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
				assert.Equal(t, "recogo-commits", aws.ToString(in.TableName))
				assert.False(t, aws.ToBool(in.ScanIndexForward))

				return &dynamodb.QueryOutput{
					Items: []map[string]ddbtypes.AttributeValue{commitItem("3", "manifests/x.json")},
				}, nil
			},
		}

		blob, err := newCommitStore(ddb, nil).Open(context.Background(), meshstore.CurrentPointer)
		require.NoError(t, err)

		content, err := meshstore.ReadAll(blob)
		require.NoError(t, err)
		assert.Equal(t, "manifests/x.json", string(content))
	})

	t.Run("NothingCommitted", func(t *testing.T) {
		ddb := &fakeDDB{
			query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
				return &dynamodb.QueryOutput{}, nil
			},
		}

		_, err := newCommitStore(ddb, nil).Open(context.Background(), meshstore.CurrentPointer)
		require.ErrorIs(t, err, meshstore.ErrNotFound)
	})
}

func TestCommitStorePutCurrent(t *testing.T) {
	tests := []struct {
		name        string
		items       []map[string]ddbtypes.AttributeValue
		wantVersion string
	}{
		{name: "FirstCommit", wantVersion: "1"},
		{
			name:        "NextVersion",
			items:       []map[string]ddbtypes.AttributeValue{commitItem("41", "manifests/old.json")},
			wantVersion: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured *dynamodb.PutItemInput

			ddb := &fakeDDB{
				query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
					return &dynamodb.QueryOutput{Items: tt.items}, nil
				},
				put: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
					captured = in

					return &dynamodb.PutItemOutput{}, nil
				},
			}

			err := newCommitStore(ddb, nil).Put(context.Background(), meshstore.CurrentPointer, []byte("manifests/new.json"))
			require.NoError(t, err)
			require.NotNil(t, captured)

			assert.Equal(t, "attribute_not_exists(version)", aws.ToString(captured.ConditionExpression))

			version, ok := captured.Item["version"].(*ddbtypes.AttributeValueMemberN)
			require.True(t, ok)
			assert.Equal(t, tt.wantVersion, version.Value)

			manifest, ok := captured.Item["manifest_path"].(*ddbtypes.AttributeValueMemberS)
			require.True(t, ok)
			assert.Equal(t, "manifests/new.json", manifest.Value)

			baseURI, ok := captured.Item["base_uri"].(*ddbtypes.AttributeValueMemberS)
			require.True(t, ok)
			assert.Equal(t, "s3://bucket/lib", baseURI.Value)
		})
	}
}

func TestCommitStoreConcurrentCommit(t *testing.T) {
	ddb := &fakeDDB{
		query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{}, nil
		},
		put: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			return nil, &ddbtypes.ConditionalCheckFailedException{}
		},
	}

	err := newCommitStore(ddb, nil).Put(context.Background(), meshstore.CurrentPointer, []byte("manifests/new.json"))
	require.ErrorIs(t, err, ErrConcurrentCommit)
}

func TestCommitStoreDelegatesOtherBlobs(t *testing.T) {
	s3Client := &fakeS3{
		head: func(in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
			assert.Equal(t, "lib/objects/a.bin", aws.ToString(in.Key))

			return &s3.HeadObjectOutput{ContentLength: aws.Int64(5)}, nil
		},
	}

	ddb := &fakeDDB{
		query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			t.Fatal("commit table should not be queried for plain blobs")

			return nil, nil
		},
	}

	blob, err := newCommitStore(ddb, s3Client).Open(context.Background(), "objects/a.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(5), blob.Size())
}
