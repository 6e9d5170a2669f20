package audio

import "sync"

// We'll be using portaudio for microphone input and the default output.
// macos:	brew install portaudio
// debian:	sudo apt-get install portaudio19-dev
// windows:	pacman -S mingw-w64-x86_64-portaudio

// Device is an acquisition handle. A producer implements it to provide a
// stream of mono float32 chunks at SampleRate.
type Device interface {
	// Start begins acquisition and returns a receive-only channel of audio chunks.
	Start() (<-chan []float32, error)
	// Stop releases the underlying hardware, process or file and closes the channel.
	// It is safe to call more than once.
	Stop() error
	// SampleRate returns the sample rate of the produced chunks.
	SampleRate() int
}

// NullDevice produces a channel that never sends anything until it is stopped.
type NullDevice struct {
	rate int
	ch   chan []float32
	once sync.Once
}

func NewNullDevice(sampleRate int) *NullDevice {
	return &NullDevice{
		rate: sampleRate,
		ch:   make(chan []float32),
	}
}

func (d *NullDevice) Start() (<-chan []float32, error) {
	return d.ch, nil
}

func (d *NullDevice) Stop() error {
	d.once.Do(func() { close(d.ch) })
	return nil
}

func (d *NullDevice) SampleRate() int { return d.rate }
