package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/richinsley/goreactive/options"
)

// Sink is an audible destination for mono float32 samples.
// Start and Stop pause and resume playback; Close releases it for good.
type Sink interface {
	Start() error
	Stop() error
	Write(samples []float32) error
	Close() error
}

// NewDestination picks the sink configured in opts: an FFmpeg output device
// when one is named, the default PortAudio output otherwise.
func NewDestination(opts *options.EngineOptions) (Sink, error) {
	if opts.OutputDevice != "" {
		return NewAudioPlayer(opts)
	}
	return NewPortAudioOutput(opts.SampleRate, opts.FramesPerBuffer)
}

// PortAudioOutput plays samples on the default output device. Writes land in
// a SharedAudioBuffer that the stream callback drains.
type PortAudioOutput struct {
	sampleRate int
	buffer     *SharedAudioBuffer

	mu      sync.Mutex
	stream  *portaudio.Stream
	playing bool
	closed  bool
}

// NewPortAudioOutput opens an output-only stream. The stream is not started.
func NewPortAudioOutput(sampleRate, framesPerBuffer int) (*PortAudioOutput, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("no default output device: %w", err)
	}

	o := &PortAudioOutput{
		sampleRate: sampleRate,
		// Half a second of headroom; older audio is dropped beyond that.
		buffer: NewSharedAudioBuffer(sampleRate / 2),
	}

	params := portaudio.HighLatencyParameters(nil, dev)
	params.Output.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = framesPerBuffer

	stream, err := portaudio.OpenStream(params, o.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open output stream on %q: %w", dev.Name, err)
	}
	o.stream = stream
	return o, nil
}

func (o *PortAudioOutput) callback(out []float32) {
	o.buffer.ReadInto(out)
}

func (o *PortAudioOutput) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("output stream closed")
	}
	if o.playing {
		return nil
	}
	if err := o.stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	o.playing = true
	return nil
}

func (o *PortAudioOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.playing {
		return nil
	}
	o.playing = false
	o.buffer.Reset()
	return o.stream.Stop()
}

func (o *PortAudioOutput) Write(samples []float32) error {
	o.buffer.Write(samples)
	return nil
}

func (o *PortAudioOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if o.playing {
		o.playing = false
		o.stream.Stop()
	}
	written, dropped, underruns := o.buffer.Stats()
	slog.Debug("output stream closed", "written", written, "dropped", dropped, "underruns", underruns)
	err := o.stream.Close()
	portaudio.Terminate()
	return err
}
