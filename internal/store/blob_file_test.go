// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicekeep/voicekeep/internal/logger"
)

func newTestFileBackend(t *testing.T) BlobBackend {
	t.Helper()
	backend, err := NewFileBlobStore(t.TempDir(), logger.Nop())
	require.NoError(t, err)
	return backend
}

func TestFileBlobStore_SaveAndOpen(t *testing.T) {
	backend := newTestFileBackend(t)
	ctx := context.Background()

	meta, err := backend.SaveBlob(ctx, "abc123", "audio/wav", strings.NewReader("wav bytes"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", meta.ID)
	assert.Equal(t, "audio/wav", meta.MimeType)
	assert.Equal(t, int64(len("wav bytes")), meta.Size)
	assert.False(t, meta.Timestamp.IsZero())

	rc, got, err := backend.OpenBlob(ctx, "abc123")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "wav bytes", string(data))
	assert.Equal(t, meta.MimeType, got.MimeType)
	assert.Equal(t, meta.Size, got.Size)
}

func TestFileBlobStore_ShardedLayout(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBlobStore(dir, logger.Nop())
	require.NoError(t, err)

	_, err = backend.SaveBlob(context.Background(), "abcd", "audio/wav", strings.NewReader("x"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "blobs", "ab", "abcd"))
	assert.NoError(t, err, "blob file lives under a two-character shard directory")
}

func TestFileBlobStore_MetadataMiss(t *testing.T) {
	backend := newTestFileBackend(t)

	_, err := backend.BlobMetadata(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestFileBlobStore_Delete(t *testing.T) {
	backend := newTestFileBackend(t)
	ctx := context.Background()

	_, err := backend.SaveBlob(ctx, "key1", "audio/wav", strings.NewReader("data"))
	require.NoError(t, err)

	require.NoError(t, backend.DeleteBlob(ctx, "key1"))

	_, err = backend.BlobMetadata(ctx, "key1")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	err = backend.DeleteBlob(ctx, "key1")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestFileBlobStore_ListBlobKeysSorted(t *testing.T) {
	backend := newTestFileBackend(t)
	ctx := context.Background()

	for _, key := range []string{"zz", "aa", "mm"} {
		_, err := backend.SaveBlob(ctx, key, "audio/wav", strings.NewReader(key))
		require.NoError(t, err)
	}

	keys, err := backend.ListBlobKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "mm", "zz"}, keys)
}

func TestFileBlobStore_IndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileBlobStore(dir, logger.Nop())
	require.NoError(t, err)
	_, err = first.SaveBlob(ctx, "persisted", "audio/wav", strings.NewReader("bytes"))
	require.NoError(t, err)

	second, err := NewFileBlobStore(dir, logger.Nop())
	require.NoError(t, err)

	meta, err := second.BlobMetadata(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, int64(len("bytes")), meta.Size)
}

func TestFileBlobStore_FailedReaderLeavesNoState(t *testing.T) {
	backend := newTestFileBackend(t)
	ctx := context.Background()

	_, err := backend.SaveBlob(ctx, "broken", "audio/wav", &failingReader{})
	require.Error(t, err)

	_, err = backend.BlobMetadata(ctx, "broken")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestNewFileBlobStore_UnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	_, err := NewFileBlobStore(filepath.Join(dir, "nested"), logger.Nop())
	assert.Error(t, err)
}

type failingReader struct{}

func (*failingReader) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}
