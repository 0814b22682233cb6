package service

import (
	"github.com/voicekeep/voicekeep/internal/adapter"
	"github.com/voicekeep/voicekeep/internal/audio"
	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/internal/store"
	"github.com/voicekeep/voicekeep/internal/workers"
)

// Services aggregates the pipeline services behind one constructor so the
// application wires them in a single place.
type Services struct {
	Providers     ProviderRegistry
	Recording     RecordingService
	Transcription TranscriptionService
	Agents        AgentService
	Status        StatusTracker
}

// NewServices builds and cross-wires the full pipeline.
func NewServices(
	newSource func() audio.CaptureSource,
	blobs store.BlobStore,
	notes store.NoteRepository,
	agentStore store.AgentStore,
	worker workers.TranscriptionWorker,
	factory adapter.ClientFactory,
	transcriptionCfg TranscriptionConfig,
	log *logger.Logger,
) (*Services, error) {
	status := NewStatusTracker()
	registry := NewProviderRegistry(factory, log)

	transcription := NewTranscriptionService(notes, worker, registry, status, transcriptionCfg, log)

	agents, err := NewAgentService(agentStore, notes, registry, status, log)
	if err != nil {
		return nil, err
	}
	transcription.SetAgentService(agents)

	recording := NewRecordingService(newSource, blobs, notes, transcription, log)

	return &Services{
		Providers:     registry,
		Recording:     recording,
		Transcription: transcription,
		Agents:        agents,
		Status:        status,
	}, nil
}
