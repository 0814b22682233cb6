package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON tags and
// string-friendly durations for file-based configuration.
type StructuredJSONConfig struct {
	App struct {
		Version   string `json:"version"`
		LogRole   string `json:"log_role"`
		LogToFile bool   `json:"log_to_file"`
	} `json:"app,omitempty"`

	Storage struct {
		BlobDir   string   `json:"blob_dir"`
		BlobDSN   string   `json:"blob_dsn"`
		NotesPath string   `json:"notes_path"`
		HandleTTL Duration `json:"handle_ttl"`
	} `json:"storage,omitempty"`

	Adapter struct {
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"adapter,omitempty"`

	Recording struct {
		SampleRate int `json:"sample_rate"`
		Channels   int `json:"channels"`
	} `json:"recording,omitempty"`

	Transcription struct {
		ModelPath     string `json:"model_path"`
		RecognizerBin string `json:"recognizer_bin"`
		RemoteEnabled bool   `json:"remote_enabled"`
		RemoteModel   string `json:"remote_model"`
	} `json:"transcription,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			Version:   jsonCfg.App.Version,
			LogRole:   jsonCfg.App.LogRole,
			LogToFile: jsonCfg.App.LogToFile,
		},
		Storage: Storage{
			BlobDir:   jsonCfg.Storage.BlobDir,
			BlobDSN:   jsonCfg.Storage.BlobDSN,
			NotesPath: jsonCfg.Storage.NotesPath,
			HandleTTL: time.Duration(jsonCfg.Storage.HandleTTL),
		},
		Adapter: Adapter{
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
		},
		Recording: Recording{
			SampleRate: jsonCfg.Recording.SampleRate,
			Channels:   jsonCfg.Recording.Channels,
		},
		Transcription: Transcription{
			ModelPath:     jsonCfg.Transcription.ModelPath,
			RecognizerBin: jsonCfg.Transcription.RecognizerBin,
			RemoteEnabled: jsonCfg.Transcription.RemoteEnabled,
			RemoteModel:   jsonCfg.Transcription.RemoteModel,
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
