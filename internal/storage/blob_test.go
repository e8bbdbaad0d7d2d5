package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBlobStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()

	require.NoError(t, store.Put(ctx, "files/a", strings.NewReader("hello"), 5, "text/plain"))

	rc, size, err := store.Get(ctx, "files/a")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)

	assert.EqualValues(t, 5, size)
	assert.Equal(t, "hello", string(body))
}

func TestMemoryBlobStore_ShortWrite(t *testing.T) {
	err := NewMemoryBlobStore().Put(context.Background(), "k", strings.NewReader("abc"), 10, "")
	assert.Error(t, err)
}

func TestMemoryBlobStore_Missing(t *testing.T) {
	_, _, err := NewMemoryBlobStore().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemoryBlobStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	require.NoError(t, store.Put(ctx, "files/a", strings.NewReader("x"), 1, ""))

	require.NoError(t, store.Delete(ctx, "files/a"))
	_, _, err := store.Get(ctx, "files/a")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.NoError(t, store.Delete(ctx, "files/a"))
}

func TestNormaliseEndpoint(t *testing.T) {
	cases := []struct {
		raw      string
		endpoint string
		secure   bool
		wantErr  bool
	}{
		{raw: "minio:9000", endpoint: "minio:9000"},
		{raw: "http://minio:9000", endpoint: "minio:9000"},
		{raw: "https://s3.example.com", endpoint: "s3.example.com", secure: true},
		{raw: "https://s3.example.com/bucket", wantErr: true},
		{raw: "  ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			endpoint, secure, err := NormaliseEndpoint(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.endpoint, endpoint)
			assert.Equal(t, tc.secure, secure)
		})
	}
}
