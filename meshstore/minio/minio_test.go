package minio

import (
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recogo/meshstore"
)

// TestIntegrationStore requires a running MinIO instance; set MINIO_ENDPOINT
// (e.g. "localhost:9000") to enable it.
func TestIntegrationStore(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "minioadmin"
	}

	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if secretKey == "" {
		secretKey = "minioadmin"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	require.NoError(t, err)

	ctx := context.Background()
	bucket := "recogo-test"

	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not reachable: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)

	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "it-prefix/")

	data := []byte("snapshot blob content")
	require.NoError(t, store.Put(ctx, "objects/a.bin", data))

	t.Cleanup(func() {
		_ = store.Delete(ctx, "objects/a.bin")
	})

	blob, err := store.Open(ctx, "objects/a.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), blob.Size())

	got, err := meshstore.ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	buf := make([]byte, 4)
	n, err := blob.ReadAt(buf, 9)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "blob", string(buf))
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "objects/")
	require.NoError(t, err)
	assert.Contains(t, names, "objects/a.bin")

	_, err = store.Open(ctx, "objects/missing.bin")
	require.ErrorIs(t, err, meshstore.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "objects/a.bin"))
	require.NoError(t, store.Delete(ctx, "objects/a.bin"))
}
