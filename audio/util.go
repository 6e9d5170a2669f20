package audio

import (
	"encoding/binary"
	"math"
)

// DownmixStereoToMono converts an interleaved stereo float32 buffer to mono
// by averaging the left and right channels.
func DownmixStereoToMono(stereo []float32) []float32 {
	return Downmix(stereo, 2)
}

// Downmix averages interleaved frames of the given channel count into mono.
// A trailing partial frame is dropped.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}
	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	scale := 1 / float32(channels)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum * scale
	}
	return mono
}

// float32sFromLE decodes little-endian f32 PCM as produced by FFmpeg's f32le muxer.
func float32sFromLE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// float32sToLE encodes samples as little-endian f32 PCM.
func float32sToLE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
