// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"dario.cat/mergo"

	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/internal/utils"
	"github.com/voicekeep/voicekeep/models"
)

// noteRepository is the in-memory note tree with JSON file persistence.
// Every mutation rewrites the file atomically; ":memory:" skips persistence
// entirely (used by tests).
//
// Correctness relies on the single-writer convention: one note is only
// written by the session, pipeline, or orchestrator step currently
// responsible for it. The internal mutex protects the map itself, not the
// ordering of logical writes.
type noteRepository struct {
	path     string
	inMemory bool
	ids      *utils.UUIDGenerator

	mu    sync.RWMutex
	notes map[string]models.Note

	logger *logger.Logger
}

// NewNoteRepository loads (or creates) the note repository persisted at
// path. Pass ":memory:" for a purely in-memory repository.
func NewNoteRepository(path string, log *logger.Logger) (NoteRepository, error) {
	inMemory := path == ":memory:" || path == "memory"
	r := &noteRepository{
		path:     path,
		inMemory: inMemory,
		ids:      utils.NewUUIDGenerator(),
		notes:    make(map[string]models.Note),
		logger:   log,
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *noteRepository) load() error {
	if r.inMemory {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read notes file: %w", err)
	}

	notes, err := decodeNotes(data)
	if err != nil {
		return fmt.Errorf("decode notes file: %w", err)
	}

	for _, n := range notes {
		r.notes[n.ID] = n
	}
	return nil
}

// persist rewrites the notes file. Caller must hold mu.
func (r *noteRepository) persist() error {
	if r.inMemory {
		return nil
	}

	dir := filepath.Dir(r.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create notes dir: %w", err)
		}
	}

	payload, err := encodeNotes(r.snapshotLocked())
	if err != nil {
		return err
	}

	return writeFileAtomic(r.path, payload, 0o600)
}

// snapshotLocked returns all notes sorted by id. UUIDv7 ids are
// time-ordered, so this is creation order. Caller must hold mu.
func (r *noteRepository) snapshotLocked() []models.Note {
	notes := make([]models.Note, 0, len(r.notes))
	for _, n := range r.notes {
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes
}

// Add implements [NoteRepository].
func (r *noteRepository) Add(note models.Note) (models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if note.ID == "" {
		note.ID = r.ids.Generate()
	}
	if _, exists := r.notes[note.ID]; exists {
		return models.Note{}, fmt.Errorf("note %s already exists", note.ID)
	}

	now := time.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.LastEdited = now
	note = normalizeNote(note)

	if note.ParentID != "" {
		parent, ok := r.notes[note.ParentID]
		if !ok {
			return models.Note{}, fmt.Errorf("parent %s: %w", note.ParentID, ErrNoteNotFound)
		}
		parent.ChildNotes = append(parent.ChildNotes, note.ID)
		r.notes[parent.ID] = parent
	}

	r.notes[note.ID] = note
	if err := r.persist(); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

// Update implements [NoteRepository]. Non-zero fields of patch are merged
// onto the stored note and LastEdited is always stamped fresh.
func (r *noteRepository) Update(id string, patch models.Note) (models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.notes[id]
	if !ok {
		return models.Note{}, fmt.Errorf("note %s: %w", id, ErrNoteNotFound)
	}

	if patch.ParentID != "" && patch.ParentID != existing.ParentID {
		if err := r.checkNoCycleLocked(id, patch.ParentID); err != nil {
			return models.Note{}, err
		}
	}

	patch.ID = ""
	oldParent := existing.ParentID
	if err := mergo.Merge(&existing, patch, mergo.WithOverride); err != nil {
		return models.Note{}, fmt.Errorf("merge note fields: %w", err)
	}
	existing.ID = id
	existing.LastEdited = time.Now()

	if existing.ParentID != oldParent {
		r.rewireParentLocked(id, oldParent, existing.ParentID)
	}

	r.notes[id] = existing
	if err := r.persist(); err != nil {
		return models.Note{}, err
	}
	return existing, nil
}

// checkNoCycleLocked verifies that assigning newParent to id keeps the tree
// acyclic: a note must never be its own ancestor. Caller must hold mu.
func (r *noteRepository) checkNoCycleLocked(id, newParent string) error {
	for cur := newParent; cur != ""; {
		if cur == id {
			return fmt.Errorf("note %s: %w", id, ErrNoteCycle)
		}
		parent, ok := r.notes[cur]
		if !ok {
			return fmt.Errorf("parent %s: %w", cur, ErrNoteNotFound)
		}
		cur = parent.ParentID
	}
	return nil
}

func (r *noteRepository) rewireParentLocked(id, oldParent, newParent string) {
	if old, ok := r.notes[oldParent]; ok {
		old.ChildNotes = removeString(old.ChildNotes, id)
		r.notes[oldParent] = old
	}
	if next, ok := r.notes[newParent]; ok {
		next.ChildNotes = appendUnique(next.ChildNotes, id)
		r.notes[newParent] = next
	}
}

// Delete implements [NoteRepository]. The deleted id is pruned from every
// other note's takeaways and from its parent's children; its own children
// are detached and become roots, never deleted.
func (r *noteRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	note, ok := r.notes[id]
	if !ok {
		return fmt.Errorf("note %s: %w", id, ErrNoteNotFound)
	}

	delete(r.notes, id)

	for otherID, other := range r.notes {
		changed := false
		if len(other.Takeaways) > 0 {
			pruned := removeString(other.Takeaways, id)
			if len(pruned) != len(other.Takeaways) {
				other.Takeaways = pruned
				changed = true
			}
		}
		if otherID == note.ParentID {
			other.ChildNotes = removeString(other.ChildNotes, id)
			changed = true
		}
		if changed {
			r.notes[otherID] = other
		}
	}

	for _, childID := range note.ChildNotes {
		if child, ok := r.notes[childID]; ok {
			child.ParentID = ""
			r.notes[childID] = child
		}
	}

	return r.persist()
}

// GetByID implements [NoteRepository].
func (r *noteRepository) GetByID(id string) (models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	note, ok := r.notes[id]
	if !ok {
		return models.Note{}, fmt.Errorf("note %s: %w", id, ErrNoteNotFound)
	}
	return note, nil
}

// List implements [NoteRepository]. Notes are returned in creation order.
func (r *noteRepository) List() []models.Note {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// flattenLocked produces the pre-order traversal of the whole forest:
// each root followed by its subtree, children in stored order. Caller must
// hold mu.
func (r *noteRepository) flattenLocked() []string {
	roots := make([]string, 0)
	for id, n := range r.notes {
		_, parentExists := r.notes[n.ParentID]
		if n.ParentID == "" || !parentExists {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)

	order := make([]string, 0, len(r.notes))
	var walk func(id string)
	walk = func(id string) {
		note, ok := r.notes[id]
		if !ok {
			return
		}
		order = append(order, id)
		for _, childID := range note.ChildNotes {
			walk(childID)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return order
}

// GetNextInOrder implements [NoteRepository].
func (r *noteRepository) GetNextInOrder(id string) (models.Note, error) {
	return r.neighbor(id, 1)
}

// GetPreviousInOrder implements [NoteRepository].
func (r *noteRepository) GetPreviousInOrder(id string) (models.Note, error) {
	return r.neighbor(id, -1)
}

func (r *noteRepository) neighbor(id string, offset int) (models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := r.flattenLocked()
	for i, cur := range order {
		if cur != id {
			continue
		}
		j := i + offset
		if j < 0 || j >= len(order) {
			return models.Note{}, fmt.Errorf("note %s has no neighbor: %w", id, ErrNoteNotFound)
		}
		return r.notes[order[j]], nil
	}
	return models.Note{}, fmt.Errorf("note %s: %w", id, ErrNoteNotFound)
}

// AppendTakeaway implements [NoteRepository].
func (r *noteRepository) AppendTakeaway(id, childID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	note, ok := r.notes[id]
	if !ok {
		return fmt.Errorf("note %s: %w", id, ErrNoteNotFound)
	}

	note.Takeaways = appendUnique(note.Takeaways, childID)
	note.LastEdited = time.Now()
	r.notes[id] = note
	return r.persist()
}

// SnapshotVersion implements [NoteRepository].
func (r *noteRepository) SnapshotVersion(id, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	note, ok := r.notes[id]
	if !ok {
		return fmt.Errorf("note %s: %w", id, ErrNoteNotFound)
	}

	note.Versions = append(note.Versions, models.NoteVersion{
		Content:     note.Content,
		Timestamp:   time.Now(),
		Description: description,
	})
	r.notes[id] = note
	return r.persist()
}

func removeString(list []string, s string) []string {
	out := list[:0:len(list)]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
