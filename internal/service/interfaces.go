package service

import (
	"context"

	"github.com/voicekeep/voicekeep/internal/adapter"
	"github.com/voicekeep/voicekeep/models"
)

// ProviderRegistry holds configured AI-service credentials, validates them,
// and reports which models are currently usable. The query methods are pure
// derived state with no side effects; callers must treat them as
// authoritative gates before attempting any provider call.
type ProviderRegistry interface {
	// AddProvider stores the configuration under a stable human-readable id
	// and immediately triggers asynchronous validation.
	AddProvider(ctx context.Context, cfg models.LLMProvider) (models.LLMProvider, error)

	// Validate performs a minimal real request against the provider. It
	// never returns an error: the outcome lands in the provider's IsValid,
	// Models, and LastError fields, and the boolean mirrors IsValid.
	Validate(ctx context.Context, providerID string) bool

	// ValidateAll fires all validations concurrently and waits for every
	// one to settle; a failing provider never aborts the others.
	ValidateAll(ctx context.Context)

	GetProvider(providerID string) (models.LLMProvider, error)
	ListProviders() []models.LLMProvider
	RemoveProvider(providerID string) error

	GetAvailableModels() []string
	HasValidProvider() bool
	GetDefaultModel() string
	SetDefaultModel(model string) error

	// CanRunAgents reports HasValidProvider() && GetDefaultModel() != "".
	CanRunAgents() bool

	// ModelClient returns a client for some valid provider currently
	// offering model.
	ModelClient(model string) (adapter.ProviderClient, error)

	// TranscriptionClient returns a client for the first valid provider
	// that supports speech-to-text, with ok=false when none exists.
	TranscriptionClient() (adapter.ProviderClient, bool)

	// ClientFor returns a client bound to the given provider's endpoint and
	// credentials regardless of validation state.
	ClientFor(providerID string) (adapter.ProviderClient, error)

	// Export serializes the registered providers and the default model.
	// Import replaces the current registration with the snapshot; every
	// imported provider comes back unvalidated.
	Export() ([]byte, error)
	Import(data []byte) error
}

// RecordingState enumerates the recording session state machine
// idle → recording → (paused ⇄ recording) → stopped | cancelled.
type RecordingState string

const (
	RecordingIdle      RecordingState = "idle"
	RecordingActive    RecordingState = "recording"
	RecordingPaused    RecordingState = "paused"
	RecordingStopped   RecordingState = "stopped"
	RecordingCancelled RecordingState = "cancelled"
)

// RecordingService owns the microphone capture state machine. On Stop it
// persists the audio, creates the note, and hands off to transcription.
type RecordingService interface {
	// Start acquires the microphone and begins capturing. Acquisition
	// failure aborts back to idle; it never partially transitions state.
	Start(ctx context.Context) error

	// Pause and Resume toggle capture without losing buffered audio.
	// Elapsed time excludes paused duration.
	Pause() error
	Resume() error

	// Stop finalizes the capture into one audio blob, creates the note,
	// releases the microphone, and triggers transcription. Valid from
	// recording or paused.
	Stop(ctx context.Context) (models.Note, error)

	// Cancel releases the microphone and discards all buffered audio
	// without creating a note or invoking transcription.
	Cancel() error

	State() RecordingState

	// Elapsed returns the recorded duration in whole seconds, advancing
	// only while the state is recording.
	Elapsed() int
}

// TranscriptionService turns captured audio into text written incrementally
// and finally into the triggering note, then hands the note to the agent
// pipeline.
type TranscriptionService interface {
	// TranscribeNote starts transcription for noteID over interleaved
	// samples. Only one note may be current at a time; a second request
	// fails with ErrTranscriptionBusy. The work itself runs asynchronously.
	TranscribeNote(ctx context.Context, noteID string, samples []float32, sampleRate, channels int) error

	// CurrentNoteID returns the note a transcription is in flight for, or
	// empty.
	CurrentNoteID() string

	Status(noteID string) models.ProcessingStatus
	ClearStatus(noteID string)
}

// AgentService sequentially invokes eligible agents against a transcribed
// note, isolating failures per agent.
type AgentService interface {
	// GetAvailableAgents returns custom + built-in agents whose bound model
	// (or the default model) is currently available. Empty when no valid
	// provider exists at all.
	GetAvailableAgents() []models.Agent

	// GetAutoRunAgents is GetAvailableAgents filtered by AutoRun.
	GetAutoRunAgents() []models.Agent

	// CanRunAgent checks, in order: a valid provider exists, a default
	// model is selected, the agent exists, and any pinned model is
	// available. It never performs a network call.
	CanRunAgent(agentID string) models.CanRunResult

	// ProcessNoteWithAgent runs one agent against one note and returns a
	// structured result; all failures are reported, never thrown.
	ProcessNoteWithAgent(ctx context.Context, noteID, agentID string) models.AgentRunResult

	// ProcessNoteWithAllAutoAgents computes the eligible auto-run set once,
	// then runs each agent strictly sequentially, collecting per-agent
	// results. An empty eligible set is a no-op.
	ProcessNoteWithAllAutoAgents(ctx context.Context, noteID string) models.AgentRunSummary

	// ValidateAgentDependencies is a read-only diagnostic; execution gating
	// goes through CanRunAgent instead.
	ValidateAgentDependencies() models.DependencyReport
}

// StatusTracker keeps the transient per-note processing state. Every code
// path that sets a processing flag must clear it in a final step, including
// on error.
type StatusTracker interface {
	Begin(noteID, status string)
	Set(noteID, status string)

	// Fail marks processing finished with a human-readable failure class.
	Fail(noteID, status string)

	// Finish marks processing finished successfully and clears the status.
	Finish(noteID string)

	// Clear removes the entry entirely once the operation lifecycle ends.
	Clear(noteID string)

	Get(noteID string) models.ProcessingStatus
}
