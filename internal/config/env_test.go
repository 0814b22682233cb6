package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("APP_VERSION", "1.2.3")
	t.Setenv("APP_LOG_TO_FILE", "true")
	t.Setenv("STORAGE_BLOB_DIR", "/var/lib/voicekeep/audio")
	t.Setenv("STORAGE_HANDLE_TTL", "30m")
	t.Setenv("ADAPTER_REQUEST_TIMEOUT", "45s")
	t.Setenv("RECORDING_SAMPLE_RATE", "48000")
	t.Setenv("RECORDING_CHANNELS", "2")
	t.Setenv("TRANSCRIPTION_REMOTE_ENABLED", "true")
	t.Setenv("TRANSCRIPTION_REMOTE_MODEL", "whisper-large")
	t.Setenv("VOICEKEEP_CONFIG", "/etc/voicekeep/config.json")

	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "1.2.3", cfg.App.Version)
	assert.True(t, cfg.App.LogToFile)
	assert.Equal(t, "/var/lib/voicekeep/audio", cfg.Storage.BlobDir)
	assert.Equal(t, 30*time.Minute, cfg.Storage.HandleTTL)
	assert.Equal(t, 45*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, 48000, cfg.Recording.SampleRate)
	assert.Equal(t, 2, cfg.Recording.Channels)
	assert.True(t, cfg.Transcription.RemoteEnabled)
	assert.Equal(t, "whisper-large", cfg.Transcription.RemoteModel)
	assert.Equal(t, "/etc/voicekeep/config.json", cfg.JSONFilePath)
}

func TestParseEnvLeavesUnsetFieldsZero(t *testing.T) {
	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Empty(t, cfg.Storage.NotesPath)
	assert.Zero(t, cfg.Recording.SampleRate)
	assert.False(t, cfg.Transcription.RemoteEnabled)
}

func TestParseEnvBadValue(t *testing.T) {
	t.Setenv("RECORDING_SAMPLE_RATE", "not-a-number")

	cfg := &StructuredConfig{}
	assert.Error(t, parseEnv(cfg))
}
