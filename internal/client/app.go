// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/voicekeep/voicekeep/internal/adapter"
	"github.com/voicekeep/voicekeep/internal/audio"
	"github.com/voicekeep/voicekeep/internal/config"
	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/internal/service"
	"github.com/voicekeep/voicekeep/internal/store"
	"github.com/voicekeep/voicekeep/internal/workers"
)

// App assembles the stores and services of the pipeline from configuration.
// Construction performs the blob backend capability probe: if the file area
// is unusable the sqlite backend quietly serves everything.
type App struct {
	Config   *config.StructuredConfig
	Blobs    store.BlobStore
	Notes    store.NoteRepository
	Agents   store.AgentStore
	Services *service.Services

	logger *logger.Logger
}

// New wires the full application.
func New(ctx context.Context, cfg *config.StructuredConfig, log *logger.Logger) (*App, error) {
	primary, err := store.NewFileBlobStore(cfg.Storage.BlobDir, log)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.Storage.BlobDir).Msg("file blob backend unavailable, using sqlite only")
		primary = nil
	}

	secondary, err := store.NewSQLiteBlobStore(ctx, cfg.Storage.BlobDSN, log)
	if err != nil {
		if primary == nil {
			return nil, fmt.Errorf("no usable blob backend: %w", err)
		}
		log.Warn().Err(err).Str("dsn", cfg.Storage.BlobDSN).Msg("sqlite blob backend unavailable")
		secondary = nil
	}

	handleDir := filepath.Join(os.TempDir(), "voicekeep-handles")
	blobs, err := store.NewBlobStore(primary, secondary, handleDir, cfg.Storage.HandleTTL, log)
	if err != nil {
		return nil, err
	}

	notes, err := store.NewNoteRepository(cfg.Storage.NotesPath, log)
	if err != nil {
		return nil, fmt.Errorf("open note repository: %w", err)
	}

	agentsPath := filepath.Join(filepath.Dir(cfg.Storage.NotesPath), "agents.json")
	agents, err := store.NewAgentStore(agentsPath, log)
	if err != nil {
		return nil, fmt.Errorf("open agent store: %w", err)
	}

	engine := workers.NewExecEngine(cfg.Transcription.RecognizerBin, cfg.Transcription.ModelPath, log)
	worker := workers.NewTranscriptionWorker(engine, log)

	newSource := func() audio.CaptureSource {
		return audio.NewMicrophoneSource(cfg.Recording.SampleRate, cfg.Recording.Channels)
	}

	services, err := service.NewServices(
		newSource,
		blobs,
		notes,
		agents,
		worker,
		adapter.NewClientFactory(cfg.Adapter.RequestTimeout),
		service.TranscriptionConfig{
			RemoteEnabled: cfg.Transcription.RemoteEnabled,
			RemoteModel:   cfg.Transcription.RemoteModel,
		},
		log,
	)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Blobs:    blobs,
		Notes:    notes,
		Agents:   agents,
		Services: services,
		logger:   log,
	}, nil
}

// Record captures audio until ctx is cancelled, then stops the session and
// waits for the resulting transcription (and its auto-run agents) to settle.
// It returns the created note id.
func (a *App) Record(ctx context.Context) (string, error) {
	if err := a.Services.Recording.Start(ctx); err != nil {
		return "", err
	}

	<-ctx.Done()

	// The interrupt cancelled ctx; finalize with a fresh context so the
	// blob write and transcription are not themselves cancelled. The app
	// logger rides along for context-scoped logging downstream.
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	stopCtx = a.logger.WithContext(stopCtx)

	note, err := a.Services.Recording.Stop(stopCtx)
	if err != nil {
		return "", err
	}

	a.waitForTranscription(stopCtx)
	return note.ID, nil
}

// waitForTranscription polls the single transcription slot until it frees
// or ctx expires.
func (a *App) waitForTranscription(ctx context.Context) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.Services.Transcription.CurrentNoteID() == "" {
				return
			}
		}
	}
}

// PruneOrphans deletes every stored blob no note references. It returns the
// number of blobs removed.
func (a *App) PruneOrphans(ctx context.Context) (int, error) {
	referenced := make(map[string]struct{})
	for _, note := range a.Notes.List() {
		if note.AudioRef == "" {
			continue
		}
		key, err := store.ParseRef(note.AudioRef)
		if err != nil {
			continue
		}
		referenced[key] = struct{}{}
	}

	keys, err := a.Blobs.ListKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list blobs: %w", err)
	}

	pruned := 0
	for _, key := range keys {
		if _, ok := referenced[key]; ok {
			continue
		}
		if err = a.Blobs.Delete(ctx, key); err != nil {
			a.logger.Warn().Err(err).Str("key", key).Msg("orphan blob delete failed")
			continue
		}
		pruned++
	}

	if pruned > 0 {
		a.logger.Info().Int("pruned", pruned).Msg("orphan blobs removed")
	}
	return pruned, nil
}
