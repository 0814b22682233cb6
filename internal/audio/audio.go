// Package audio provides microphone capture, PCM utilities, and WAV
// encoding for the recording and transcription pipeline.
package audio

import "context"

// Chunk is one batch of interleaved PCM samples in the range [-1, 1].
type Chunk struct {
	Samples []float32
}

// CaptureSource abstracts a live audio input. The microphone implementation
// is backed by miniaudio; tests use the in-memory source.
//
// Start may be called once per source. The returned channel is closed when
// the source ends or Stop is called; buffered chunks already sent remain
// readable.
type CaptureSource interface {
	Start(ctx context.Context) (<-chan Chunk, error)
	Stop() error

	SampleRate() int
	Channels() int
}
