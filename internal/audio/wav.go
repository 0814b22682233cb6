package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WAVMimeType is the media type blobs encoded by this package are saved
// with.
const WAVMimeType = "audio/wav"

// EncodeWAV writes float32 PCM samples as a 16-bit little-endian RIFF/WAVE
// stream. Samples outside [-1, 1] are clamped.
func EncodeWAV(w io.Writer, samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid wav parameters: rate=%d channels=%d", sampleRate, channels)
	}

	dataLen := len(samples) * 2
	blockAlign := channels * 2
	byteRate := sampleRate * blockAlign

	var header bytes.Buffer
	header.WriteString("RIFF")
	binary.Write(&header, binary.LittleEndian, uint32(36+dataLen)) //nolint:errcheck // bytes.Buffer never fails
	header.WriteString("WAVE")
	header.WriteString("fmt ")
	binary.Write(&header, binary.LittleEndian, uint32(16))         //nolint:errcheck
	binary.Write(&header, binary.LittleEndian, uint16(1))          // PCM
	binary.Write(&header, binary.LittleEndian, uint16(channels))   //nolint:errcheck
	binary.Write(&header, binary.LittleEndian, uint32(sampleRate)) //nolint:errcheck
	binary.Write(&header, binary.LittleEndian, uint32(byteRate))   //nolint:errcheck
	binary.Write(&header, binary.LittleEndian, uint16(blockAlign)) //nolint:errcheck
	binary.Write(&header, binary.LittleEndian, uint16(16))         // bits per sample
	header.WriteString("data")
	binary.Write(&header, binary.LittleEndian, uint32(dataLen)) //nolint:errcheck

	if _, err := w.Write(header.Bytes()); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	pcm := make([]byte, dataLen)
	for i, s := range samples {
		v := int16(clamp(s) * math.MaxInt16)
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(v))
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// EncodeWAVBytes is EncodeWAV into a fresh buffer.
func EncodeWAVBytes(samples []float32, sampleRate, channels int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeWAV(&buf, samples, sampleRate, channels); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Duration returns the playback length in seconds of the given sample
// count.
func Duration(sampleCount, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return float64(sampleCount) / float64(sampleRate*channels)
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
