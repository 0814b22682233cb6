package audio

import "math"

var sqrt2 = float32(math.Sqrt2)

// DownmixStereo folds interleaved stereo samples into mono using
// equal-power mixing:
//
//	mono[i] = sqrt(2) * (left[i] + right[i]) / 2
//
// Both transcription strategies expect single-channel input. A trailing
// unpaired sample (malformed input) is dropped.
func DownmixStereo(interleaved []float32) []float32 {
	n := len(interleaved) / 2
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		left := interleaved[2*i]
		right := interleaved[2*i+1]
		mono[i] = sqrt2 * (left + right) / 2
	}
	return mono
}

// EnsureMono returns single-channel samples for any supported channel
// count. Mono input is returned unchanged.
func EnsureMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	return DownmixStereo(samples)
}
