package audio

import (
	"sync"
)

// SharedAudioBuffer is a thread-safe sample FIFO between a producer goroutine
// and a real-time consumer such as a PortAudio output callback. When full,
// the oldest samples are overwritten so latency stays bounded.
type SharedAudioBuffer struct {
	mu             sync.Mutex
	data           []float32
	readPos        int
	available      int
	totalWritten   int64
	droppedSamples int64
	underruns      int64
}

// NewSharedAudioBuffer creates a buffer holding up to capacity samples.
func NewSharedAudioBuffer(capacity int) *SharedAudioBuffer {
	return &SharedAudioBuffer{
		data: make([]float32, max(capacity, 1)),
	}
}

// Write appends samples, dropping the oldest ones on overflow.
func (b *SharedAudioBuffer) Write(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.data)
	if len(samples) > size {
		b.droppedSamples += int64(len(samples) - size)
		samples = samples[len(samples)-size:]
	}
	if overflow := b.available + len(samples) - size; overflow > 0 {
		b.readPos = (b.readPos + overflow) % size
		b.available -= overflow
		b.droppedSamples += int64(overflow)
	}

	writePos := (b.readPos + b.available) % size
	n := copy(b.data[writePos:], samples)
	copy(b.data, samples[n:])
	b.available += len(samples)
	b.totalWritten += int64(len(samples))
}

// ReadInto destructively fills dst with the oldest samples and zero-fills
// the remainder. It returns the number of real samples copied and does not
// allocate, so it is safe to call from an audio callback.
func (b *SharedAudioBuffer) ReadInto(dst []float32) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.data)
	count := min(len(dst), b.available)
	n := copy(dst[:count], b.data[b.readPos:])
	if n < count {
		copy(dst[n:count], b.data[:count-n])
	}
	b.readPos = (b.readPos + count) % size
	b.available -= count

	if count < len(dst) {
		clear(dst[count:])
		if count == 0 && len(dst) > 0 {
			b.underruns++
		}
	}
	return count
}

// Reset discards all buffered samples.
func (b *SharedAudioBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readPos = 0
	b.available = 0
}

// AvailableSamples returns the number of readable samples.
func (b *SharedAudioBuffer) AvailableSamples() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

// Stats returns the totals written and dropped, and the number of empty reads.
func (b *SharedAudioBuffer) Stats() (written, dropped, underruns int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalWritten, b.droppedSamples, b.underruns
}
