package service

import "errors"

// Sentinel errors returned by the pipeline services. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrInvalidStateTransition is returned when a recording operation is
	// not meaningful in the current state (e.g. Pause while idle).
	ErrInvalidStateTransition = errors.New("invalid recording state transition")

	// ErrMicrophoneUnavailable is returned when microphone acquisition
	// fails; the session aborts back to idle.
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")

	// ErrTranscriptionBusy is returned when a transcription is requested
	// while another note is current. The pipeline does not queue.
	ErrTranscriptionBusy = errors.New("a transcription is already in progress")

	// ErrNoValidProvider is returned when an operation requires at least
	// one validated provider and none exists.
	ErrNoValidProvider = errors.New("no valid provider configured")

	// ErrNoDefaultModel is returned when an operation requires a default
	// model and none is selected.
	ErrNoDefaultModel = errors.New("no default model selected")

	// ErrModelUnavailable is returned when a requested model is not
	// offered by any currently valid provider.
	ErrModelUnavailable = errors.New("model not available")

	// ErrProviderNotFound is returned when a provider id is unknown.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrEmptyNoteContent is returned when an agent run targets a note
	// whose stripped content is empty.
	ErrEmptyNoteContent = errors.New("note has no content to process")
)
