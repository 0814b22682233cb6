package store

import (
	"context"
	"errors"
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

// fallbackBlobStore is the [BlobStore] facade over the two backends. The
// primary (file) backend is preferred; whenever it fails, the same
// operation is retried transparently on the secondary (sqlite) backend.
// Callers never see which backend served them: the only errors surfaced
// are ErrBlobNotFound and re-wrapped originals.
//
// It also owns the ephemeral handle cache used by Resolve. Handles are
// file:// URLs exported into a private handle directory with an expiry;
// forceRefresh discards the cached handle and mints a new one.
type fallbackBlobStore struct {
	primary   BlobBackend // nil when the capability probe failed at startup
	secondary BlobBackend

	handleDir string
	handleTTL time.Duration

	mu      sync.Mutex
	handles map[string]cachedHandle

	logger *logger.Logger
}

type cachedHandle struct {
	resolved models.ResolvedAudio
	path     string
}

// NewBlobStore assembles the dual-backend blob store. primary may be nil
// when the file backend probe failed; every operation then goes straight to
// the secondary backend.
func NewBlobStore(primary, secondary BlobBackend, handleDir string, handleTTL time.Duration, log *logger.Logger) (BlobStore, error) {
	if secondary == nil && primary == nil {
		return nil, errors.New("blob store requires at least one backend")
	}
	if err := os.MkdirAll(handleDir, 0o700); err != nil {
		return nil, fmt.Errorf("create handle dir: %w", err)
	}

	return &fallbackBlobStore{
		primary:   primary,
		secondary: secondary,
		handleDir: handleDir,
		handleTTL: handleTTL,
		handles:   make(map[string]cachedHandle),
		logger:    log,
	}, nil
}

// Save implements [BlobStore].
func (s *fallbackBlobStore) Save(ctx context.Context, key, mimeType string, r io.Reader) (string, error) {
	if s.primary != nil {
		if _, err := s.primary.SaveBlob(ctx, key, mimeType, r); err == nil {
			return MakeRef(key), nil
		} else if s.secondary == nil {
			return "", fmt.Errorf("save blob: %w", err)
		} else {
			// The primary's temp-file protocol never leaves partial state
			// behind, but it may have consumed part of the reader. Retry on
			// the secondary only when the reader can be rewound; a
			// non-seekable reader would store a truncated blob.
			seeker, ok := r.(io.Seeker)
			if !ok {
				return "", fmt.Errorf("save blob: %w", err)
			}
			if _, serr := seeker.Seek(0, io.SeekStart); serr != nil {
				return "", fmt.Errorf("save blob: %w", err)
			}
			s.logger.Warn().Err(err).Str("key", key).Msg("primary blob backend failed, falling back")
		}
	}

	if _, err := s.secondary.SaveBlob(ctx, key, mimeType, r); err != nil {
		return "", fmt.Errorf("save blob: %w", err)
	}
	return MakeRef(key), nil
}

// Open implements [BlobStore].
func (s *fallbackBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, models.StoredAudioMetadata, error) {
	if s.primary != nil {
		rc, meta, err := s.primary.OpenBlob(ctx, key)
		if err == nil {
			return rc, meta, nil
		}
		if s.secondary == nil {
			return nil, models.StoredAudioMetadata{}, err
		}
	}

	rc, meta, err := s.secondary.OpenBlob(ctx, key)
	if err != nil {
		return nil, models.StoredAudioMetadata{}, err
	}
	return rc, meta, nil
}

// Metadata implements [BlobStore].
func (s *fallbackBlobStore) Metadata(ctx context.Context, key string) (models.StoredAudioMetadata, error) {
	if s.primary != nil {
		meta, err := s.primary.BlobMetadata(ctx, key)
		if err == nil {
			return meta, nil
		}
		if s.secondary == nil {
			return models.StoredAudioMetadata{}, err
		}
	}

	return s.secondary.BlobMetadata(ctx, key)
}

// Delete implements [BlobStore]. The blob may live in either backend, so
// both are attempted; the call succeeds when at least one held the key.
// Any cached handle is invalidated regardless.
func (s *fallbackBlobStore) Delete(ctx context.Context, key string) error {
	s.dropHandle(MakeRef(key))

	var primaryErr, secondaryErr error

	if s.primary != nil {
		primaryErr = s.primary.DeleteBlob(ctx, key)
	} else {
		primaryErr = ErrBlobNotFound
	}
	if s.secondary != nil {
		secondaryErr = s.secondary.DeleteBlob(ctx, key)
	} else {
		secondaryErr = ErrBlobNotFound
	}

	if primaryErr == nil || secondaryErr == nil {
		return nil
	}
	if errors.Is(primaryErr, ErrBlobNotFound) && errors.Is(secondaryErr, ErrBlobNotFound) {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	return fmt.Errorf("delete blob: %w", errors.Join(primaryErr, secondaryErr))
}

// ListKeys implements [BlobStore]. It returns the deduplicated union of
// both backends so bulk cleanup sees blobs written during fallback periods.
func (s *fallbackBlobStore) ListKeys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	if s.primary != nil {
		keys, err := s.primary.ListBlobKeys(ctx)
		if err != nil && s.secondary == nil {
			return nil, err
		}
		for _, key := range keys {
			seen[key] = struct{}{}
		}
	}
	if s.secondary != nil {
		keys, err := s.secondary.ListBlobKeys(ctx)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			seen[key] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}

// Resolve implements [BlobStore]. Without forceRefresh a cached, unexpired
// handle whose exported file still exists is returned as is; otherwise the
// blob bytes are exported into the handle directory and a fresh handle is
// minted.
func (s *fallbackBlobStore) Resolve(ctx context.Context, ref string, forceRefresh bool) (*models.ResolvedAudio, error) {
	key, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	if !forceRefresh {
		s.mu.Lock()
		cached, ok := s.handles[ref]
		s.mu.Unlock()

		if ok && time.Now().Before(cached.resolved.ExpiresAt) {
			if _, statErr := os.Stat(cached.path); statErr == nil {
				resolved := cached.resolved
				return &resolved, nil
			}
			// Handle went stale out of band; fall through and re-mint.
		}
	} else {
		s.dropHandle(ref)
	}

	rc, meta, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	handlePath := filepath.Join(s.handleDir, key+mimeExt(meta.MimeType))
	if err = exportToFile(handlePath, rc); err != nil {
		return nil, fmt.Errorf("mint audio handle: %w", err)
	}

	resolved := models.ResolvedAudio{
		URL:       "file://" + handlePath,
		MimeType:  meta.MimeType,
		ExpiresAt: time.Now().Add(s.handleTTL),
	}

	s.mu.Lock()
	s.handles[ref] = cachedHandle{resolved: resolved, path: handlePath}
	s.mu.Unlock()

	return &resolved, nil
}

func (s *fallbackBlobStore) dropHandle(ref string) {
	s.mu.Lock()
	cached, ok := s.handles[ref]
	delete(s.handles, ref)
	s.mu.Unlock()

	if ok {
		_ = os.Remove(cached.path)
	}
}

func exportToFile(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func mimeExt(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
