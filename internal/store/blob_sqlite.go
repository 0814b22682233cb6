// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/migrations"
	"github.com/voicekeep/voicekeep/models"
)

// sqliteBlobStore is the fallback blob backend. Each blob lives in a single
// row of the blobs table, written inside one transaction, so readers see
// either the complete record or nothing. It trades the primary backend's
// streaming for transactional durability and is used when the file area is
// unavailable (quota, permission, read-only media).
type sqliteBlobStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSQLiteBlobStore opens (or creates) the fallback blob database at dsn,
// verifies connectivity, and applies the embedded migrations.
func NewSQLiteBlobStore(ctx context.Context, dsn string, log *logger.Logger) (BlobBackend, error) {
	if err := createLocalDBFileIfNotExists(dsn); err != nil {
		log.Err(err).Str("func", "NewSQLiteBlobStore").Msg("error creating database file")
		return nil, fmt.Errorf("error creating database file: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening connection to blob db: %w", err)
	}

	if err = conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("error connecting blob db: %w", err)
	}

	if err = migrations.Migrate(conn); err != nil {
		return nil, err
	}

	log.Debug().Str("dsn", dsn).Msg("connected to fallback blob database")
	return &sqliteBlobStore{db: conn, logger: log}, nil
}

// newSQLiteBlobStoreWithDB wraps an existing connection; used by tests.
func newSQLiteBlobStoreWithDB(db *sql.DB, log *logger.Logger) *sqliteBlobStore {
	return &sqliteBlobStore{db: db, logger: log}
}

func createLocalDBFileIfNotExists(dbFile string) error {
	if dbFile == "" || dbFile == ":memory:" {
		return nil
	}
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		return f.Close()
	}
	return nil
}

// SaveBlob implements [BlobBackend]. The whole blob is buffered and written
// as one record inside a transaction.
func (s *sqliteBlobStore) SaveBlob(ctx context.Context, key, mimeType string, r io.Reader) (models.StoredAudioMetadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.StoredAudioMetadata{}, fmt.Errorf("read blob bytes: %w", err)
	}

	meta := models.StoredAudioMetadata{
		ID:        key,
		MimeType:  mimeType,
		Size:      int64(len(data)),
		Timestamp: time.Now(),
	}

	query, args, err := sq.Replace("blobs").
		Columns("key", "mime_type", "size", "duration", "created_at", "data").
		Values(meta.ID, meta.MimeType, meta.Size, meta.Duration, meta.Timestamp, data).
		ToSql()
	if err != nil {
		return models.StoredAudioMetadata{}, fmt.Errorf("build blob insert query: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.StoredAudioMetadata{}, fmt.Errorf("begin blob transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return models.StoredAudioMetadata{}, fmt.Errorf("insert blob record: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return models.StoredAudioMetadata{}, fmt.Errorf("commit blob transaction: %w", err)
	}

	s.logger.Debug().Str("key", key).Int64("size", meta.Size).Msg("blob saved to sqlite backend")
	return meta, nil
}

// OpenBlob implements [BlobBackend].
func (s *sqliteBlobStore) OpenBlob(ctx context.Context, key string) (io.ReadCloser, models.StoredAudioMetadata, error) {
	query, args, err := sq.Select("mime_type", "size", "duration", "created_at", "data").
		From("blobs").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, models.StoredAudioMetadata{}, fmt.Errorf("build blob select query: %w", err)
	}

	meta := models.StoredAudioMetadata{ID: key}
	var data []byte

	row := s.db.QueryRowContext(ctx, query, args...)
	if err = row.Scan(&meta.MimeType, &meta.Size, &meta.Duration, &meta.Timestamp, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.StoredAudioMetadata{}, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, models.StoredAudioMetadata{}, fmt.Errorf("scan blob record: %w", err)
	}

	return io.NopCloser(bytes.NewReader(data)), meta, nil
}

// BlobMetadata implements [BlobBackend]. Only the index columns are read,
// never the payload.
func (s *sqliteBlobStore) BlobMetadata(ctx context.Context, key string) (models.StoredAudioMetadata, error) {
	query, args, err := sq.Select("mime_type", "size", "duration", "created_at").
		From("blobs").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return models.StoredAudioMetadata{}, fmt.Errorf("build blob metadata query: %w", err)
	}

	meta := models.StoredAudioMetadata{ID: key}
	row := s.db.QueryRowContext(ctx, query, args...)
	if err = row.Scan(&meta.MimeType, &meta.Size, &meta.Duration, &meta.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.StoredAudioMetadata{}, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return models.StoredAudioMetadata{}, fmt.Errorf("scan blob metadata: %w", err)
	}

	return meta, nil
}

// DeleteBlob implements [BlobBackend].
func (s *sqliteBlobStore) DeleteBlob(ctx context.Context, key string) error {
	query, args, err := sq.Delete("blobs").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("build blob delete query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete blob record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete blob rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	return nil
}

// ListBlobKeys implements [BlobBackend].
func (s *sqliteBlobStore) ListBlobKeys(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("key").From("blobs").OrderBy("key").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build blob list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list blob keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan blob key: %w", err)
		}
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blob keys: %w", err)
	}
	return keys, nil
}
