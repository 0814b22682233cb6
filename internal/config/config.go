// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the voicekeep configuration.
//
// Values are merged from three sources with the following precedence:
// environment variables override an optional JSON file, which overrides the
// built-in defaults.
package config

import (
	"errors"
	"time"
)

// StructuredConfig is the top-level configuration container for the
// voicekeep application. It aggregates all sub-configurations and is
// populated by merging values from environment variables, an optional JSON
// file, and built-in defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings.
	App App `envPrefix:"APP_"`

	// Storage holds configuration for the blob backends and the note file.
	Storage Storage `envPrefix:"STORAGE_"`

	// Adapter holds settings for outbound provider requests.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Recording holds audio capture settings.
	Recording Recording `envPrefix:"RECORDING_"`

	// Transcription holds settings for the local and remote transcription
	// strategies.
	Transcription Transcription `envPrefix:"TRANSCRIPTION_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged underneath the values
	// already loaded from environment variables.
	// Populated via the VOICEKEEP_CONFIG environment variable.
	JSONFilePath string `env:"VOICEKEEP_CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// Version is the semantic version string of the running application.
	// Env: APP_VERSION
	Version string `env:"VERSION"`

	// LogRole is the "role" field stamped on every log entry.
	// Env: APP_LOG_ROLE
	LogRole string `env:"LOG_ROLE"`

	// LogToFile switches log output from stdout to a file next to the
	// executable, so a backgrounded run does not lose its output.
	// Env: APP_LOG_TO_FILE
	LogToFile bool `env:"LOG_TO_FILE"`
}

// Storage groups the configuration for all persistence used by the
// application.
type Storage struct {
	// BlobDir is the root directory of the primary (file) blob backend.
	// Env: STORAGE_BLOB_DIR
	BlobDir string `env:"BLOB_DIR"`

	// BlobDSN is the SQLite connection string of the fallback blob backend.
	// Env: STORAGE_BLOB_DSN
	BlobDSN string `env:"BLOB_DSN"`

	// NotesPath is the JSON file the note repository persists to.
	// Env: STORAGE_NOTES_PATH
	NotesPath string `env:"NOTES_PATH"`

	// HandleTTL is how long a resolved audio handle stays valid before a
	// fresh resolve mints a new one (e.g. "15m").
	// Env: STORAGE_HANDLE_TTL
	HandleTTL time.Duration `env:"HANDLE_TTL"`
}

// Adapter holds network settings used by the provider transport layer.
type Adapter struct {
	// RequestTimeout is the default timeout for outbound provider requests
	// (e.g. "30s", "2m").
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Recording holds audio capture settings for the recording session.
type Recording struct {
	// SampleRate is the capture sample rate in Hz.
	// Env: RECORDING_SAMPLE_RATE
	SampleRate int `env:"SAMPLE_RATE"`

	// Channels is the number of capture channels (1 or 2). Stereo input is
	// downmixed to mono before transcription.
	// Env: RECORDING_CHANNELS
	Channels int `env:"CHANNELS"`
}

// Transcription holds settings for both transcription strategies.
type Transcription struct {
	// ModelPath is the model file loaded by the local recognizer.
	// Env: TRANSCRIPTION_MODEL_PATH
	ModelPath string `env:"MODEL_PATH"`

	// RecognizerBin is the external recognizer executable spawned by the
	// local strategy.
	// Env: TRANSCRIPTION_RECOGNIZER_BIN
	RecognizerBin string `env:"RECOGNIZER_BIN"`

	// RemoteEnabled opts in to the remote speech-to-text strategy. Even
	// when enabled, remote failures fall back to the local strategy.
	// Env: TRANSCRIPTION_REMOTE_ENABLED
	RemoteEnabled bool `env:"REMOTE_ENABLED"`

	// RemoteModel is the model identifier sent with remote transcription
	// uploads (e.g. "whisper-1").
	// Env: TRANSCRIPTION_REMOTE_MODEL
	RemoteModel string `env:"REMOTE_MODEL"`
}

// defaults returns the built-in configuration every other source is merged
// on top of.
func defaults() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			Version: "dev",
			LogRole: "voicekeep",
		},
		Storage: Storage{
			BlobDir:   "data/audio",
			BlobDSN:   "data/blobs.db",
			NotesPath: "data/notes.json",
			HandleTTL: 15 * time.Minute,
		},
		Adapter: Adapter{
			RequestTimeout: 60 * time.Second,
		},
		Recording: Recording{
			SampleRate: 16000,
			Channels:   1,
		},
		Transcription: Transcription{
			RecognizerBin: "whisper-stream",
			RemoteModel:   "whisper-1",
		},
	}
}

func (c *StructuredConfig) validate() error {
	var errs []error

	if c.Storage.BlobDir == "" || c.Storage.NotesPath == "" {
		errs = append(errs, ErrInvalidStorageConfigs)
	}
	if c.Storage.HandleTTL <= 0 {
		errs = append(errs, ErrInvalidStorageConfigs)
	}
	if c.Adapter.RequestTimeout <= 0 {
		errs = append(errs, ErrInvalidAdapterConfigs)
	}
	if c.Recording.SampleRate <= 0 || c.Recording.Channels < 1 || c.Recording.Channels > 2 {
		errs = append(errs, ErrInvalidRecordingConfigs)
	}

	return errors.Join(errs...)
}

// GetStructuredConfig builds the merged configuration: environment variables
// first, then the optional JSON file named by VOICEKEEP_CONFIG, then the
// built-in defaults. The result is validated before being returned.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withJSON().
		withDefaults().
		build()
}
