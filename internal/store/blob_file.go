package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/models"
)

// fileBlobStore is the primary blob backend. Blob bytes are streamed
// directly into a hierarchical private file area (never buffered whole in
// memory) and a JSON metadata index is kept next to the tree.
//
// Writes go through a temp file followed by fsync and rename, so a reader
// can never observe a partially written blob. The index is rewritten
// atomically after the bytes are in place; if the index write fails the
// blob file is removed again to keep bytes and metadata consistent.
type fileBlobStore struct {
	root string

	mu    sync.RWMutex
	index map[string]models.StoredAudioMetadata

	logger *logger.Logger
}

// NewFileBlobStore opens (or creates) the file backend rooted at dir. The
// constructor doubles as the capability probe: it returns an error when the
// directory cannot be created or written, in which case callers fall back
// to the secondary backend.
func NewFileBlobStore(dir string, log *logger.Logger) (BlobBackend, error) {
	s := &fileBlobStore{
		root:   dir,
		index:  make(map[string]models.StoredAudioMetadata),
		logger: log,
	}

	for _, sub := range []string{"blobs", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("create blob dir: %w", err)
		}
	}

	// Probe writability, not just existence.
	probe := filepath.Join(dir, "tmp", ".probe")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return nil, fmt.Errorf("blob dir not writable: %w", err)
	}
	_ = os.Remove(probe)

	if err := s.loadIndex(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *fileBlobStore) indexPath() string {
	return filepath.Join(s.root, "index.json")
}

func (s *fileBlobStore) blobPath(key string) string {
	shard := "00"
	if len(key) >= 2 {
		shard = key[:2]
	}
	return filepath.Join(s.root, "blobs", shard, key)
}

func (s *fileBlobStore) loadIndex() error {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read blob index: %w", err)
	}

	index := make(map[string]models.StoredAudioMetadata)
	if err = json.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("decode blob index: %w", err)
	}

	s.index = index
	return nil
}

// persistIndex writes the metadata index atomically. Caller must hold mu.
func (s *fileBlobStore) persistIndex() error {
	payload, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode blob index: %w", err)
	}

	return writeFileAtomic(s.indexPath(), payload, 0o600)
}

// SaveBlob implements [BlobBackend]. It streams r into a temp file, fsyncs,
// renames into the shard directory, then records the metadata entry.
func (s *fileBlobStore) SaveBlob(ctx context.Context, key, mimeType string, r io.Reader) (models.StoredAudioMetadata, error) {
	if err := ctx.Err(); err != nil {
		return models.StoredAudioMetadata{}, err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, "tmp"), key+"-*")
	if err != nil {
		return models.StoredAudioMetadata{}, fmt.Errorf("create temp blob file: %w", err)
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return models.StoredAudioMetadata{}, fmt.Errorf("write blob bytes: %w", err)
	}

	dst := s.blobPath(key)
	if err = os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		_ = os.Remove(tmpName)
		return models.StoredAudioMetadata{}, fmt.Errorf("create blob shard dir: %w", err)
	}
	if err = os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return models.StoredAudioMetadata{}, fmt.Errorf("finalize blob file: %w", err)
	}

	meta := models.StoredAudioMetadata{
		ID:        key,
		MimeType:  mimeType,
		Size:      size,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.index[key] = meta
	if err = s.persistIndex(); err != nil {
		delete(s.index, key)
		_ = os.Remove(dst)
		return models.StoredAudioMetadata{}, err
	}

	s.logger.Debug().Str("key", key).Int64("size", size).Msg("blob saved to file backend")
	return meta, nil
}

// OpenBlob implements [BlobBackend].
func (s *fileBlobStore) OpenBlob(ctx context.Context, key string) (io.ReadCloser, models.StoredAudioMetadata, error) {
	meta, err := s.BlobMetadata(ctx, key)
	if err != nil {
		return nil, models.StoredAudioMetadata{}, err
	}

	f, err := os.Open(s.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.StoredAudioMetadata{}, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, models.StoredAudioMetadata{}, fmt.Errorf("open blob file: %w", err)
	}

	return f, meta, nil
}

// BlobMetadata implements [BlobBackend].
func (s *fileBlobStore) BlobMetadata(ctx context.Context, key string) (models.StoredAudioMetadata, error) {
	if err := ctx.Err(); err != nil {
		return models.StoredAudioMetadata{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.index[key]
	if !ok {
		return models.StoredAudioMetadata{}, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	return meta, nil
}

// DeleteBlob implements [BlobBackend]. The index entry goes first so a
// concurrent reader cannot resolve metadata for bytes that are being
// removed.
func (s *fileBlobStore) DeleteBlob(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[key]; !ok {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}

	delete(s.index, key)
	if err := s.persistIndex(); err != nil {
		return err
	}

	if err := os.Remove(s.blobPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob file: %w", err)
	}
	return nil
}

// ListBlobKeys implements [BlobBackend]. Keys are returned sorted for
// stable bulk cleanup.
func (s *fileBlobStore) ListBlobKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.index))
	for key := range s.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// writeFileAtomic writes data to path via a temp file in the same directory
// followed by fsync and rename, so readers observe either the old or the
// new content, never a mix.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, perm)
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("atomic write %s: %w", path, err)
	}
	return nil
}
