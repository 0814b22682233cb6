package models

import "time"

// StoredAudioMetadata describes one blob store entry. It is kept in a fast
// index separate from the blob bytes and must stay consistent with them:
// no orphaned metadata, no metadata-less blobs.
type StoredAudioMetadata struct {
	// ID is the storage key of the blob.
	ID string `json:"id"`

	// MimeType is the media type the blob was saved with.
	MimeType string `json:"mime_type"`

	// Size is the blob length in bytes.
	Size int64 `json:"size"`

	// Timestamp records when the blob was saved.
	Timestamp time.Time `json:"timestamp"`

	// Duration is the audio length in seconds, zero when unknown.
	Duration float64 `json:"duration,omitempty"`
}

// ResolvedAudio is a short-lived fetchable handle minted from a storage
// reference. Handles can silently go stale; consumers recover by resolving
// again with forceRefresh.
type ResolvedAudio struct {
	// URL is directly fetchable until ExpiresAt.
	URL      string    `json:"url"`
	MimeType string    `json:"mime_type"`

	ExpiresAt time.Time `json:"expires_at"`
}
