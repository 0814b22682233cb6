package models

import "time"

// LLMProvider holds the configuration and derived validation state of one
// AI service endpoint.
//
// IsValid and Models are derived state: they are refreshed only by an
// explicit validation run and never assumed from the mere presence of
// credentials.
type LLMProvider struct {
	// ID is a stable human-readable slug assigned when the provider is
	// added. It is deliberately not time-based so it survives re-imports.
	ID string `json:"id"`

	Name    string `json:"name"`
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`

	// Models lists the model ids the provider reported on its last
	// successful validation.
	Models []string `json:"models"`

	IsValid       bool      `json:"is_valid"`
	LastValidated time.Time `json:"last_validated,omitempty"`

	// LastError holds the classified failure of the last validation
	// ("unauthorized", "forbidden", "rate-limited", "network", "other"),
	// empty after a successful one.
	LastError string `json:"last_error,omitempty"`

	// SupportsTranscription marks providers that expose a speech-to-text
	// endpoint usable by the remote transcription strategy.
	SupportsTranscription bool `json:"supports_transcription,omitempty"`
}
