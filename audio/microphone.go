package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Microphone is a pure producer fed by a PortAudio input stream.
type Microphone struct {
	sampleRate      int
	framesPerBuffer int
	deviceName      string

	mu          sync.Mutex
	stream      *portaudio.Stream
	audioChan   chan []float32
	isStreaming bool
	dropped     int
}

// NewMicrophone creates a microphone on the named input device, or the
// system default when name is empty.
func NewMicrophone(sampleRate, framesPerBuffer int, name string) *Microphone {
	return &Microphone{
		sampleRate:      sampleRate,
		framesPerBuffer: framesPerBuffer,
		deviceName:      name,
	}
}

// audioCallback runs on the PortAudio thread and must never block.
func (m *Microphone) audioCallback(in []float32) {
	// PortAudio reuses its buffer.
	dataCopy := make([]float32, len(in))
	copy(dataCopy, in)

	select {
	case m.audioChan <- dataCopy:
	default:
		m.dropped++
		if m.dropped%100 == 1 {
			slog.Debug("microphone buffer full, dropping audio", "dropped", m.dropped)
		}
	}
}

func (m *Microphone) Start() (<-chan []float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isStreaming {
		return m.audioChan, nil
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	dev, err := findInputDevice(m.deviceName)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	// Jitter buffer between the callback and the consumer.
	m.audioChan = make(chan []float32, 16)

	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(m.sampleRate)
	params.FramesPerBuffer = m.framesPerBuffer

	stream, err := portaudio.OpenStream(params, m.audioCallback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream on %q: %w", dev.Name, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	m.stream = stream
	m.isStreaming = true

	slog.Info("microphone started", "device", dev.Name, "sample_rate", m.sampleRate)
	return m.audioChan, nil
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isStreaming {
		return nil
	}
	m.isStreaming = false

	// Stop waits for the last callback, so closing the channel afterwards is safe.
	stopErr := m.stream.Stop()
	closeErr := m.stream.Close()
	close(m.audioChan)
	termErr := portaudio.Terminate()

	if stopErr != nil {
		return fmt.Errorf("failed to stop audio stream: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close audio stream: %w", closeErr)
	}
	return termErr
}

func (m *Microphone) SampleRate() int {
	return m.sampleRate
}

// findInputDevice resolves an input device by name. PortAudio must be initialized.
func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device %q: %w", name, ErrDeviceNotFound)
}
