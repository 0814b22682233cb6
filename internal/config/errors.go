package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidStorageConfigs indicates invalid storage settings
	// (for example, an empty blob directory or a non-positive handle TTL).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidAdapterConfigs indicates invalid adapter settings
	// (for example, a non-positive request timeout).
	ErrInvalidAdapterConfigs = errors.New("invalid adapter configuration")
	// ErrInvalidRecordingConfigs indicates invalid capture settings
	// (for example, a zero sample rate or an unsupported channel count).
	ErrInvalidRecordingConfigs = errors.New("invalid recording configuration")
)
