package audio

import (
	"context"
	"sync"
)

// MemorySource replays a fixed buffer of interleaved samples as capture
// chunks. It backs tests and offline processing of pre-recorded audio.
type MemorySource struct {
	samples    []float32
	sampleRate int
	channels   int
	chunkSize  int

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// NewMemorySource wraps samples in a [CaptureSource]. chunkSize controls
// how many samples each chunk carries; zero picks a sensible default.
func NewMemorySource(samples []float32, sampleRate, channels, chunkSize int) *MemorySource {
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	return &MemorySource{
		samples:    samples,
		sampleRate: sampleRate,
		channels:   channels,
		chunkSize:  chunkSize,
	}
}

// Start implements [CaptureSource].
func (m *MemorySource) Start(ctx context.Context) (<-chan Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for i := 0; i < len(m.samples); i += m.chunkSize {
			end := i + m.chunkSize
			if end > len(m.samples) {
				end = len(m.samples)
			}
			select {
			case out <- Chunk{Samples: m.samples[i:end]}:
			case <-runCtx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Stop implements [CaptureSource].
func (m *MemorySource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *MemorySource) SampleRate() int { return m.sampleRate }
func (m *MemorySource) Channels() int   { return m.channels }
