package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/voicekeep/voicekeep/models"
)

// Export implements [NoteRepository]. The export format is a JSON array of
// note objects with all fields, suitable for backup and transfer.
func (r *noteRepository) Export() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return encodeNotes(r.snapshotLocked())
}

// Import implements [NoteRepository]. The current note set is replaced by
// the imported one. Records from older exports may lack tags, versions,
// takeaways, or timestamps; those are backfilled with defaults rather than
// rejected.
func (r *noteRepository) Import(data []byte) error {
	notes, err := decodeNotes(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.notes = make(map[string]models.Note, len(notes))
	for _, n := range notes {
		if n.ID == "" {
			n.ID = r.ids.Generate()
		}
		r.notes[n.ID] = n
	}

	return r.persist()
}

func encodeNotes(notes []models.Note) ([]byte, error) {
	payload, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode notes: %w", err)
	}
	return payload, nil
}

func decodeNotes(data []byte) ([]models.Note, error) {
	var notes []models.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("decode notes: %w", err)
	}

	for i := range notes {
		notes[i] = normalizeNote(notes[i])
	}
	return notes, nil
}

// normalizeNote backfills fields that older records may be missing.
func normalizeNote(n models.Note) models.Note {
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if n.Versions == nil {
		n.Versions = []models.NoteVersion{}
	}
	if n.ChildNotes == nil {
		n.ChildNotes = []string{}
	}
	if n.Takeaways == nil {
		n.Takeaways = []string{}
	}
	if n.Type == "" {
		n.Type = models.NoteTypeUser
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.LastEdited.IsZero() {
		n.LastEdited = n.CreatedAt
	}
	return n
}
