package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatmate.app/chatmate/internal/config"
)

// Runs against a real server, e.g. CHATMATE_TEST_MINIO_ENDPOINT=localhost:9000.
func TestStore_UploadFetchRemove(t *testing.T) {
	endpoint := os.Getenv("CHATMATE_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("CHATMATE_TEST_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	s, err := New(ctx, config.MinIOConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "chatmate-test",
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("stored text"), 0o644))

	require.NoError(t, s.Upload(ctx, "rooms/test/doc.txt", path))
	data, err := s.Fetch(ctx, "rooms/test/doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "stored text", string(data))

	require.NoError(t, s.Remove(ctx, "rooms/test/doc.txt"))
	_, err = s.Fetch(ctx, "rooms/test/doc.txt")
	assert.Error(t, err)
}

func TestNewClient_RejectsBadEndpoint(t *testing.T) {
	_, err := NewClient("http://not a host", "k", "s", false)
	assert.Error(t, err)
}
