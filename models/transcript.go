package models

// TranscriptMessageKind tags messages emitted by the local transcription
// worker. The set is closed; orchestrators should match it exhaustively.
type TranscriptMessageKind string

const (
	// TranscriptInitiate signals that the model file is about to load.
	TranscriptInitiate TranscriptMessageKind = "initiate"

	// TranscriptProgress reports model load progress as a percentage.
	TranscriptProgress TranscriptMessageKind = "progress"

	// TranscriptReady signals that the model finished loading.
	TranscriptReady TranscriptMessageKind = "ready"

	// TranscriptUpdate carries the full running hypothesis so far. Each
	// update supersedes the previous one; consumers overwrite, not append.
	TranscriptUpdate TranscriptMessageKind = "update"

	// TranscriptComplete carries the final transcript.
	TranscriptComplete TranscriptMessageKind = "complete"

	// TranscriptError terminates the job with a failure.
	TranscriptError TranscriptMessageKind = "error"
)

// TranscriptMessage is one message of the worker protocol
// initiate → progress* → ready → update* → (complete | error).
type TranscriptMessage struct {
	Kind TranscriptMessageKind `json:"kind"`

	// Progress is set for TranscriptProgress messages (0–100).
	Progress int `json:"progress,omitempty"`

	// Text is the running hypothesis for TranscriptUpdate and the final
	// transcript for TranscriptComplete.
	Text string `json:"text,omitempty"`

	// Err describes the failure for TranscriptError messages.
	Err string `json:"error,omitempty"`
}
