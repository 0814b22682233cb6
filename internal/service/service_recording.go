// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voicekeep/voicekeep/internal/audio"
	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/internal/store"
	"github.com/voicekeep/voicekeep/internal/utils"
	"github.com/voicekeep/voicekeep/models"
)

// recordingService drives one microphone capture at a time through the
// state machine idle → recording ⇄ paused → stopped | cancelled.
//
// A collector goroutine drains capture chunks (discarding them while
// paused) and a ticker goroutine advances the elapsed counter only while
// the state is recording, so paused time never counts.
type recordingService struct {
	newSource    func() audio.CaptureSource
	blobs        store.BlobStore
	notes        store.NoteRepository
	transcriber  TranscriptionService
	ids          *utils.UUIDGenerator
	tickInterval time.Duration

	mu          sync.Mutex
	state       RecordingState
	source      audio.CaptureSource
	samples     []float32
	elapsed     int
	cancelled   bool
	stopTicker  context.CancelFunc
	collectDone chan struct{}

	logger *logger.Logger
}

// NewRecordingService constructs a [RecordingService]. newSource is called
// once per session so a fresh capture device is acquired each time.
func NewRecordingService(
	newSource func() audio.CaptureSource,
	blobs store.BlobStore,
	notes store.NoteRepository,
	transcriber TranscriptionService,
	log *logger.Logger,
) RecordingService {
	return &recordingService{
		newSource:    newSource,
		blobs:        blobs,
		notes:        notes,
		transcriber:  transcriber,
		ids:          utils.NewUUIDGenerator(),
		tickInterval: time.Second,
		state:        RecordingIdle,
		logger:       log,
	}
}

// Start implements [RecordingService].
func (s *recordingService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case RecordingIdle, RecordingStopped, RecordingCancelled:
	default:
		return fmt.Errorf("start from %s: %w", s.state, ErrInvalidStateTransition)
	}

	source := s.newSource()
	chunks, err := source.Start(ctx)
	if err != nil {
		// Acquisition failure aborts back to idle, never half-started.
		s.state = RecordingIdle
		return fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}

	s.source = source
	s.samples = nil
	s.elapsed = 0
	s.cancelled = false
	s.state = RecordingActive
	s.collectDone = make(chan struct{})

	tickerCtx, cancel := context.WithCancel(context.Background())
	s.stopTicker = cancel

	go s.collect(chunks)
	go s.tick(tickerCtx)

	s.logger.Debug().Int("rate", source.SampleRate()).Int("channels", source.Channels()).Msg("recording started")
	return nil
}

// collect drains the capture channel until the source closes it. Chunks
// arriving while paused are dropped so pause really excludes audio, not
// just time.
func (s *recordingService) collect(chunks <-chan audio.Chunk) {
	defer close(s.collectDone)
	for chunk := range chunks {
		s.mu.Lock()
		if s.state == RecordingActive {
			s.samples = append(s.samples, chunk.Samples...)
		}
		s.mu.Unlock()
	}
}

func (s *recordingService) tick(ctx context.Context) {
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			if s.state == RecordingActive {
				s.elapsed++
			}
			s.mu.Unlock()
		}
	}
}

// Pause implements [RecordingService].
func (s *recordingService) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != RecordingActive {
		return fmt.Errorf("pause from %s: %w", s.state, ErrInvalidStateTransition)
	}
	s.state = RecordingPaused
	return nil
}

// Resume implements [RecordingService].
func (s *recordingService) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != RecordingPaused {
		return fmt.Errorf("resume from %s: %w", s.state, ErrInvalidStateTransition)
	}
	s.state = RecordingActive
	return nil
}

// shutdownCapture releases the microphone and waits for buffered chunks to
// drain. It is the shared tail of both Stop and Cancel.
func (s *recordingService) shutdownCapture() {
	s.mu.Lock()
	source := s.source
	stopTicker := s.stopTicker
	done := s.collectDone
	s.source = nil
	s.stopTicker = nil
	s.mu.Unlock()

	if stopTicker != nil {
		stopTicker()
	}
	if source != nil {
		_ = source.Stop()
	}
	if done != nil {
		<-done
	}
}

// Stop implements [RecordingService].
func (s *recordingService) Stop(ctx context.Context) (models.Note, error) {
	s.mu.Lock()
	if s.state != RecordingActive && s.state != RecordingPaused {
		s.mu.Unlock()
		return models.Note{}, fmt.Errorf("stop from %s: %w", s.state, ErrInvalidStateTransition)
	}
	s.state = RecordingStopped
	source := s.source
	s.mu.Unlock()

	s.shutdownCapture()

	s.mu.Lock()
	// Cancel and Stop share the capture shutdown path; a cancellation that
	// raced in must win before any note is created.
	if s.cancelled {
		s.samples = nil
		s.mu.Unlock()
		return models.Note{}, fmt.Errorf("stop after cancel: %w", ErrInvalidStateTransition)
	}
	samples := s.samples
	s.samples = nil
	duration := s.elapsed
	s.mu.Unlock()

	sampleRate := source.SampleRate()
	channels := source.Channels()

	wav, err := audio.EncodeWAVBytes(samples, sampleRate, channels)
	if err != nil {
		return models.Note{}, fmt.Errorf("encode recording: %w", err)
	}

	key := s.ids.Generate()
	ref, err := s.blobs.Save(ctx, key, audio.WAVMimeType, bytes.NewReader(wav))
	if err != nil {
		return models.Note{}, fmt.Errorf("store recording: %w", err)
	}

	// The sample count is the precise duration: chunks arriving while
	// paused were never buffered, so no paused time is included.
	note, err := s.notes.Add(models.Note{
		Title:    "Recording " + time.Now().Format("Jan 2, 2006 15:04"),
		Type:     models.NoteTypeUser,
		AudioRef: ref,
		Duration: audio.Duration(len(samples), sampleRate, channels),
	})
	if err != nil {
		// Without a note the blob is unreachable; remove it so storage and
		// the note tree stay consistent.
		_ = s.blobs.Delete(ctx, key)
		return models.Note{}, fmt.Errorf("create note for recording: %w", err)
	}

	s.logger.Info().Str("note", note.ID).Int("seconds", duration).Msg("recording stored")

	if err = s.transcriber.TranscribeNote(ctx, note.ID, samples, sampleRate, channels); err != nil {
		// The note and its audio exist; transcription can be retried later.
		s.logger.Warn().Err(err).Str("note", note.ID).Msg("transcription handoff failed")
	}

	return note, nil
}

// Cancel implements [RecordingService]. All buffered audio is discarded;
// no note is created and no transcription is started.
func (s *recordingService) Cancel() error {
	s.mu.Lock()
	if s.state != RecordingActive && s.state != RecordingPaused {
		s.mu.Unlock()
		return fmt.Errorf("cancel from %s: %w", s.state, ErrInvalidStateTransition)
	}
	s.cancelled = true
	s.state = RecordingCancelled
	s.mu.Unlock()

	s.shutdownCapture()

	s.mu.Lock()
	s.samples = nil
	s.elapsed = 0
	s.mu.Unlock()

	s.logger.Debug().Msg("recording cancelled")
	return nil
}

// State implements [RecordingService].
func (s *recordingService) State() RecordingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed implements [RecordingService].
func (s *recordingService) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}
