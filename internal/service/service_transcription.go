// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/voicekeep/voicekeep/internal/audio"
	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/internal/store"
	"github.com/voicekeep/voicekeep/internal/workers"
	"github.com/voicekeep/voicekeep/models"
)

// TranscriptionConfig selects the transcription strategy. When remote
// transcription is enabled and a capable provider is valid, audio goes to
// that provider first; the local recognizer is the fallback and the only
// path otherwise.
type TranscriptionConfig struct {
	RemoteEnabled bool
	RemoteModel   string
}

// transcriptionService is the single-slot implementation of
// [TranscriptionService]. One note at a time; the slot is held from
// TranscribeNote until the run finishes or fails.
type transcriptionService struct {
	notes    store.NoteRepository
	worker   workers.TranscriptionWorker
	registry ProviderRegistry
	status   StatusTracker
	cfg      TranscriptionConfig

	mu            sync.Mutex
	currentNoteID string

	// agents is wired after construction to break the cycle with the agent
	// pipeline, which in turn needs notes produced here.
	agents AgentService

	logger *logger.Logger
}

// NewTranscriptionService constructs a [TranscriptionService]. Call
// [SetAgentService] before the first transcription to enable auto-run
// agent processing on completion.
func NewTranscriptionService(
	notes store.NoteRepository,
	worker workers.TranscriptionWorker,
	registry ProviderRegistry,
	status StatusTracker,
	cfg TranscriptionConfig,
	log *logger.Logger,
) *transcriptionService {
	return &transcriptionService{
		notes:    notes,
		worker:   worker,
		registry: registry,
		status:   status,
		cfg:      cfg,
		logger:   log,
	}
}

// SetAgentService wires the downstream agent pipeline invoked when a
// transcription completes.
func (s *transcriptionService) SetAgentService(agents AgentService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = agents
}

// TranscribeNote implements [TranscriptionService].
func (s *transcriptionService) TranscribeNote(ctx context.Context, noteID string, samples []float32, sampleRate, channels int) error {
	if _, err := s.notes.GetByID(noteID); err != nil {
		return fmt.Errorf("transcribe note %s: %w", noteID, err)
	}

	s.mu.Lock()
	if s.currentNoteID != "" {
		current := s.currentNoteID
		s.mu.Unlock()
		return fmt.Errorf("note %s is current: %w", current, ErrTranscriptionBusy)
	}
	s.currentNoteID = noteID
	s.mu.Unlock()

	s.status.Begin(noteID, "starting transcription")

	go s.run(ctx, noteID, samples, sampleRate, channels)
	return nil
}

// run executes the whole transcription lifecycle for one note and always
// releases the slot on exit.
func (s *transcriptionService) run(ctx context.Context, noteID string, samples []float32, sampleRate, channels int) {
	defer s.release()

	if s.remoteEligible() {
		if text, err := s.transcribeRemote(ctx, samples, sampleRate, channels); err == nil {
			s.writeContent(noteID, text)
			s.finalize(ctx, noteID, text)
			return
		} else {
			// Remote failure is silent from the note's perspective; the
			// local recognizer takes over.
			s.logger.Warn().Err(err).Str("note", noteID).Msg("remote transcription failed, falling back to local")
		}
	}

	s.transcribeLocal(ctx, noteID, samples, sampleRate, channels)
}

func (s *transcriptionService) remoteEligible() bool {
	if !s.cfg.RemoteEnabled {
		return false
	}
	_, ok := s.registry.TranscriptionClient()
	return ok
}

// transcribeRemote downmixes the capture to mono, encodes it as WAV, and
// sends it to the first valid speech-capable provider. Both strategies
// consume mono; stereo never goes over the wire.
func (s *transcriptionService) transcribeRemote(ctx context.Context, samples []float32, sampleRate, channels int) (string, error) {
	client, ok := s.registry.TranscriptionClient()
	if !ok {
		return "", ErrNoValidProvider
	}

	mono := audio.EnsureMono(samples, channels)
	wav, err := audio.EncodeWAVBytes(mono, sampleRate, 1)
	if err != nil {
		return "", fmt.Errorf("encode audio: %w", err)
	}

	var body io.Reader = bytes.NewReader(wav)
	text, err := client.Transcribe(ctx, s.cfg.RemoteModel, "audio.wav", body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("remote transcription returned empty text")
	}
	return text, nil
}

// transcribeLocal feeds the capture through the local recognizer worker and
// translates its message protocol into note updates and status changes.
func (s *transcriptionService) transcribeLocal(ctx context.Context, noteID string, samples []float32, sampleRate, channels int) {
	mono := audio.EnsureMono(samples, channels)

	messages, err := s.worker.Transcribe(ctx, mono, sampleRate)
	if err != nil {
		s.logger.Error().Err(err).Str("note", noteID).Msg("local transcription unavailable")
		s.status.Fail(noteID, "transcription failed")
		return
	}

	var final string
	for msg := range messages {
		switch msg.Kind {
		case models.TranscriptInitiate:
			s.status.Set(noteID, "loading model")
		case models.TranscriptProgress:
			s.status.Set(noteID, fmt.Sprintf("loading model (%d%%)", msg.Progress))
		case models.TranscriptReady:
			s.status.Set(noteID, "transcribing")
		case models.TranscriptUpdate:
			// Each hypothesis replaces the note content wholesale; partial
			// text stays visible even if the run later fails.
			s.writeContent(noteID, msg.Text)
		case models.TranscriptComplete:
			final = msg.Text
			s.writeContent(noteID, final)
		case models.TranscriptError:
			s.logger.Error().Str("error", msg.Err).Str("note", noteID).Msg("transcription failed")
			s.status.Fail(noteID, "transcription failed")
			return
		}
	}

	s.finalize(ctx, noteID, final)
}

func (s *transcriptionService) writeContent(noteID, text string) {
	if _, err := s.notes.Update(noteID, models.Note{Content: text}); err != nil {
		s.logger.Warn().Err(err).Str("note", noteID).Msg("content update failed")
	}
}

// finalize titles the note from its transcript, snapshots the version, and
// hands the note to the auto-run agents.
func (s *transcriptionService) finalize(ctx context.Context, noteID, text string) {
	title := deriveTitle(text)
	if _, err := s.notes.Update(noteID, models.Note{Title: title}); err != nil {
		s.logger.Warn().Err(err).Str("note", noteID).Msg("title update failed")
	}
	if err := s.notes.SnapshotVersion(noteID, "transcription completed"); err != nil {
		s.logger.Warn().Err(err).Str("note", noteID).Msg("version snapshot failed")
	}

	s.status.Finish(noteID)

	s.mu.Lock()
	agents := s.agents
	s.mu.Unlock()
	if agents != nil {
		summary := agents.ProcessNoteWithAllAutoAgents(ctx, noteID)
		s.logger.Debug().Str("note", noteID).Int("succeeded", summary.Succeeded).Int("failed", summary.Failed).Msg("auto agents finished")
	}
}

func (s *transcriptionService) release() {
	s.mu.Lock()
	s.currentNoteID = ""
	s.mu.Unlock()
}

// CurrentNoteID implements [TranscriptionService].
func (s *transcriptionService) CurrentNoteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentNoteID
}

// Status implements [TranscriptionService].
func (s *transcriptionService) Status(noteID string) models.ProcessingStatus {
	return s.status.Get(noteID)
}

// ClearStatus implements [TranscriptionService].
func (s *transcriptionService) ClearStatus(noteID string) {
	s.status.Clear(noteID)
}

// deriveTitle extracts a display title from transcript text: the first
// sentence or line, kept only when it lands between 5 and 80 characters.
func deriveTitle(text string) string {
	const fallback = "New Recording"

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fallback
	}

	candidate := trimmed
	if idx := strings.IndexAny(candidate, "\n"); idx >= 0 {
		candidate = candidate[:idx]
	}
	if idx := strings.IndexAny(candidate, ".!?"); idx >= 0 {
		candidate = candidate[:idx]
	}
	candidate = strings.TrimSpace(candidate)

	if n := len([]rune(candidate)); n >= 5 && n <= 80 {
		return candidate
	}
	return fallback
}
