// SPDX-License-Identifier: Apache-2.0

// Package workers hosts the background transcription worker: the single
// parallel compute resource of the application. Everything else is
// cooperative asynchronous work; inference alone runs on its own goroutine
// so it never blocks the interactive path.
package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/models"
)

// ErrWorkerBusy is returned when a transcription job is started while
// another one is still in flight. The worker does not queue; serialized
// usage is the caller's responsibility.
var ErrWorkerBusy = errors.New("transcription worker busy")

type transcriptionWorker struct {
	engine Engine

	mu     sync.Mutex
	busy   bool
	loaded bool

	logger *logger.Logger
}

// NewTranscriptionWorker wraps engine in a [TranscriptionWorker]. The model
// is loaded lazily on the first job and kept loaded afterwards.
func NewTranscriptionWorker(engine Engine, log *logger.Logger) TranscriptionWorker {
	return &transcriptionWorker{engine: engine, logger: log}
}

// Transcribe implements [TranscriptionWorker].
func (w *transcriptionWorker) Transcribe(ctx context.Context, samples []float32, sampleRate int) (<-chan models.TranscriptMessage, error) {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return nil, ErrWorkerBusy
	}
	w.busy = true
	w.mu.Unlock()

	// Buffered so the worker goroutine never blocks on a slow consumer for
	// the handful of lifecycle messages; updates flow at consumer pace.
	out := make(chan models.TranscriptMessage, 16)

	go w.run(ctx, samples, sampleRate, out)
	return out, nil
}

// run executes one job. Messages are emitted in protocol order and the
// channel is always closed after the terminal message, busy-flag cleared in
// the same final step.
func (w *transcriptionWorker) run(ctx context.Context, samples []float32, sampleRate int, out chan<- models.TranscriptMessage) {
	defer func() {
		close(out)
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
	}()

	if !w.isLoaded() {
		out <- models.TranscriptMessage{Kind: models.TranscriptInitiate}

		err := w.engine.LoadModel(ctx, func(percent int) {
			out <- models.TranscriptMessage{Kind: models.TranscriptProgress, Progress: percent}
		})
		if err != nil {
			w.logger.Err(err).Msg("transcription model load failed")
			out <- models.TranscriptMessage{Kind: models.TranscriptError, Err: err.Error()}
			return
		}
		w.setLoaded()
	}
	out <- models.TranscriptMessage{Kind: models.TranscriptReady}

	final, err := w.engine.Transcribe(ctx, samples, sampleRate, func(text string) {
		out <- models.TranscriptMessage{Kind: models.TranscriptUpdate, Text: text}
	})
	if err != nil {
		w.logger.Err(err).Msg("transcription inference failed")
		out <- models.TranscriptMessage{Kind: models.TranscriptError, Err: err.Error()}
		return
	}

	out <- models.TranscriptMessage{Kind: models.TranscriptComplete, Text: final}
}

func (w *transcriptionWorker) isLoaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

func (w *transcriptionWorker) setLoaded() {
	w.mu.Lock()
	w.loaded = true
	w.mu.Unlock()
}
