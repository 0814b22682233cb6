package models

import "time"

// NoteType distinguishes notes written by the user from notes produced by an
// agent run.
type NoteType string

const (
	// NoteTypeUser marks a note created by the user, typically from a
	// recording session.
	NoteTypeUser NoteType = "user"

	// NoteTypeAgent marks a note generated by an agent from one or more
	// source notes.
	NoteTypeAgent NoteType = "agent"
)

// NoteVersion is a single append-only content snapshot of a note.
type NoteVersion struct {
	// Content is the full note content at the moment the snapshot was taken.
	Content string `json:"content"`

	// Timestamp records when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`

	// Description explains why the snapshot exists (e.g. "transcription
	// completed").
	Description string `json:"description"`
}

// GeneratedBy records provenance for an agent-produced note.
type GeneratedBy struct {
	AgentID     string    `json:"agent_id"`
	ModelUsed   string    `json:"model_used"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Note is the central entity of the application: a user recording with its
// transcript, or an agent-generated document derived from other notes.
//
// Notes form a tree: a note may have at most one parent and any number of
// children. Children are referenced by id and stored flatly in the
// repository; a note must never be its own ancestor.
type Note struct {
	// ID is unique and sorts by creation time (UUIDv7).
	ID string `json:"id"`

	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`

	// AudioRef is an opaque storage reference resolvable via the blob store.
	// Empty for notes without audio.
	AudioRef string `json:"audio_ref,omitempty"`

	// Duration is the audio length in seconds, zero when unknown.
	Duration float64 `json:"duration,omitempty"`

	// Versions holds append-only content snapshots, oldest first.
	Versions []NoteVersion `json:"versions"`

	// ParentID is the id of the owning parent note, empty for roots.
	ParentID string `json:"parent_id,omitempty"`

	// ChildNotes lists the ids of child notes in creation order.
	ChildNotes []string `json:"child_notes"`

	Type NoteType `json:"type"`

	// AgentID identifies the agent that produced this note.
	// Set only when Type is NoteTypeAgent.
	AgentID string `json:"agent_id,omitempty"`

	// SourceNoteIDs lists the notes this agent note was derived from.
	SourceNoteIDs []string `json:"source_note_ids,omitempty"`

	// GeneratedBy carries provenance for agent notes, nil otherwise.
	GeneratedBy *GeneratedBy `json:"generated_by,omitempty"`

	// Takeaways holds back-references to agent notes derived from this note.
	// It is a weak relation used for navigation only: deleting a referenced
	// note prunes it from every other note's takeaways.
	Takeaways []string `json:"takeaways"`

	CreatedAt  time.Time `json:"created_at"`
	LastEdited time.Time `json:"last_edited"`
}
