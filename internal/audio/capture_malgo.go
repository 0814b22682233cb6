package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// microphoneSource captures from the default input device via miniaudio.
// Samples arrive as S16LE and are converted to float32 before being sent on
// the chunk channel.
type microphoneSource struct {
	sampleRate int
	channels   int

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	out     chan Chunk
	stopped bool
}

// NewMicrophoneSource returns a capture source over the default system
// microphone. Acquisition happens in Start, so construction never touches
// the device.
func NewMicrophoneSource(sampleRate, channels int) CaptureSource {
	return &microphoneSource{sampleRate: sampleRate, channels: channels}
}

// Start implements [CaptureSource]. It acquires the microphone and begins
// delivering chunks. Acquisition failure leaves the source unstarted and is
// returned to the caller; no partial state survives.
func (m *microphoneSource) Start(ctx context.Context) (<-chan Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return nil, fmt.Errorf("capture already started")
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(m.channels)
	deviceConfig.SampleRate = uint32(m.sampleRate)

	out := make(chan Chunk, 64)

	onRecv := func(_, in []byte, frameCount uint32) {
		samples := s16leToFloat32(in)
		select {
		case out <- Chunk{Samples: samples}:
		case <-ctx.Done():
		default:
			// Consumer fell behind; dropping is preferable to stalling the
			// audio callback thread.
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("acquire microphone: %w", err)
	}

	if err = device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("start microphone: %w", err)
	}

	m.ctx = mctx
	m.device = device
	m.out = out
	return out, nil
}

// Stop implements [CaptureSource]. It releases the microphone and closes
// the chunk channel. Safe to call more than once.
func (m *microphoneSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.device == nil {
		m.stopped = true
		return nil
	}
	m.stopped = true

	m.device.Uninit()
	_ = m.ctx.Uninit()
	m.ctx.Free()
	close(m.out)

	m.device = nil
	m.ctx = nil
	return nil
}

func (m *microphoneSource) SampleRate() int { return m.sampleRate }
func (m *microphoneSource) Channels() int   { return m.channels }

func s16leToFloat32(in []byte) []float32 {
	n := len(in) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(uint16(in[2*i]) | uint16(in[2*i+1])<<8)
		samples[i] = float32(v) / 32768
	}
	return samples
}
