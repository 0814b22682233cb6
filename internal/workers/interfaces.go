package workers

import (
	"context"

	"github.com/voicekeep/voicekeep/models"
)

// Engine performs the actual speech recognition for the local strategy.
// Implementations must be safe for reuse across jobs but are driven by one
// job at a time.
type Engine interface {
	// LoadModel prepares the model for inference, reporting coarse progress
	// (0–100) through the callback. Called once before the first job and
	// again only after an explicit Reset.
	LoadModel(ctx context.Context, progress func(percent int)) error

	// Transcribe runs inference over mono samples. partial is invoked with
	// the full running hypothesis whenever it changes; the return value is
	// the final transcript.
	Transcribe(ctx context.Context, samples []float32, sampleRate int, partial func(text string)) (string, error)
}

// TranscriptionWorker runs engine inference off the interactive path and
// reports progress over the typed message protocol
// initiate → progress* → ready → update* → (complete | error).
type TranscriptionWorker interface {
	// Transcribe starts one job and returns its message channel. The
	// channel is closed after the terminal complete or error message.
	// The worker is a single shared resource: a second job while one is in
	// flight fails immediately with ErrWorkerBusy.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (<-chan models.TranscriptMessage, error)
}
