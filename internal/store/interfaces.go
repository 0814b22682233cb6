package store

import (
	"context"
	"io"

	"github.com/voicekeep/voicekeep/models"
)

// BlobStore persists arbitrary binary audio under a string key and resolves
// keys back to short-lived fetchable handles. It has no knowledge of notes
// or transcription.
type BlobStore interface {
	// Save writes the bytes read from r under key and returns an opaque
	// storage reference. The write is atomic: a reader never observes a
	// metadata entry without complete bytes or vice versa.
	Save(ctx context.Context, key, mimeType string, r io.Reader) (string, error)

	// Resolve converts a storage reference into a short-lived fetchable
	// handle. forceRefresh discards any previously issued handle and mints
	// a new one; this is the only recovery for handles that silently went
	// stale. Returns ErrBlobNotFound (wrapped) for unknown references.
	Resolve(ctx context.Context, ref string, forceRefresh bool) (*models.ResolvedAudio, error)

	// Open returns a reader over the stored bytes together with the entry
	// metadata.
	Open(ctx context.Context, key string) (io.ReadCloser, models.StoredAudioMetadata, error)

	// Metadata returns the index entry for key without touching the bytes.
	Metadata(ctx context.Context, key string) (models.StoredAudioMetadata, error)

	// Delete removes the blob and its metadata entry.
	Delete(ctx context.Context, key string) error

	// ListKeys returns every stored key, for bulk cleanup.
	ListKeys(ctx context.Context) ([]string, error)
}

// BlobBackend is one concrete storage strategy behind the blob store. The
// primary backend streams to a hierarchical file area; the fallback holds
// each blob in a single transactional database record.
type BlobBackend interface {
	SaveBlob(ctx context.Context, key, mimeType string, r io.Reader) (models.StoredAudioMetadata, error)
	OpenBlob(ctx context.Context, key string) (io.ReadCloser, models.StoredAudioMetadata, error)
	BlobMetadata(ctx context.Context, key string) (models.StoredAudioMetadata, error)
	DeleteBlob(ctx context.Context, key string) error
	ListBlobKeys(ctx context.Context) ([]string, error)
}

// NoteRepository is the in-memory, persisted tree of notes. All mutations
// are synchronous and last-write-wins; only one logical writer mutates a
// given note at a time by convention.
type NoteRepository interface {
	// Add stores a note, assigning id and timestamps when absent. When
	// ParentID is set the note is appended to the parent's children.
	Add(note models.Note) (models.Note, error)

	// Update merges the non-zero fields of patch into the stored note and
	// always stamps a fresh LastEdited.
	Update(id string, patch models.Note) (models.Note, error)

	// Delete removes the note, prunes its id from every other note's
	// takeaways and from its parent's children, and detaches (but does not
	// delete) its children.
	Delete(id string) error

	GetByID(id string) (models.Note, error)
	List() []models.Note

	// GetNextInOrder and GetPreviousInOrder return the neighbor of id in a
	// pre-order flattening of the note tree, children included.
	GetNextInOrder(id string) (models.Note, error)
	GetPreviousInOrder(id string) (models.Note, error)

	// AppendTakeaway adds childID to the note's takeaways, ignoring
	// duplicates.
	AppendTakeaway(id, childID string) error

	// SnapshotVersion appends the note's current content to its version
	// history.
	SnapshotVersion(id, description string) error

	// Export and Import round-trip the full note tree through a JSON array.
	// Import backfills missing tags, versions, and timestamps with defaults
	// rather than rejecting older records.
	Export() ([]byte, error)
	Import(data []byte) error
}

// AgentStore holds custom and built-in agent definitions.
type AgentStore interface {
	// Seed inserts built-in agents, skipping ids that already exist.
	Seed(agents []models.Agent) error

	Add(agent models.Agent) (models.Agent, error)
	Update(id string, agent models.Agent) (models.Agent, error)
	Delete(id string) error
	GetByID(id string) (models.Agent, error)
	List() []models.Agent
}
