package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/richinsley/goreactive/options"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// AudioPlayer plays audio through an FFmpeg output device. Each Start
// launches an FFmpeg process fed with f32le over a pipe; Stop kills it.
type AudioPlayer struct {
	device     string
	ffmpegPath string
	sampleRate int

	mu         sync.Mutex
	cmd        *exec.Cmd
	pipeWriter *io.PipeWriter
	queue      chan []float32
	done       chan struct{}
	closed     bool
}

// NewAudioPlayer creates a player for opts.OutputDevice.
func NewAudioPlayer(opts *options.EngineOptions) (*AudioPlayer, error) {
	if opts.OutputDevice == "" {
		return nil, fmt.Errorf("no audio output device specified")
	}
	return &AudioPlayer{
		device:     opts.OutputDevice,
		ffmpegPath: opts.FFMPEGPath,
		sampleRate: opts.SampleRate,
	}, nil
}

func (p *AudioPlayer) getArgs() (outputDevice string, outputArgs ffmpeg.KwArgs) {
	outputArgs = ffmpeg.KwArgs{}
	outputDevice = p.device
	switch runtime.GOOS {
	case "darwin":
		outputArgs["f"] = "audiotoolbox"
		outputArgs["audio_device_index"] = p.device
		outputDevice = "-"
	case "windows":
		outputArgs["f"] = "dshow"
	default:
		outputArgs["f"] = "pulse"
	}
	return outputDevice, outputArgs
}

// Start launches the FFmpeg consumer. It is a no-op while already playing.
func (p *AudioPlayer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("audio player closed")
	}
	if p.cmd != nil {
		return nil
	}

	outputDevice, outputArgs := p.getArgs()
	pipeReader, pipeWriter := io.Pipe()

	ffmpegCmd := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":  "f32le",
		"ar": strconv.Itoa(p.sampleRate),
		"ac": "1",
	}).Output(outputDevice, outputArgs).WithInput(pipeReader).ErrorToStdOut()

	if p.ffmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(p.ffmpegPath)
	}

	cmd := ffmpegCmd.Compile()
	if err := cmd.Start(); err != nil {
		pipeWriter.Close()
		return fmt.Errorf("failed to start ffmpeg player: %w", err)
	}

	p.cmd = cmd
	p.pipeWriter = pipeWriter
	p.queue = make(chan []float32, 32)
	p.done = make(chan struct{})

	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("ffmpeg player exited", "error", err)
		}
		pipeReader.Close()
	}()
	go p.pump(p.queue, pipeWriter, p.done)

	slog.Info("ffmpeg player started", "device", p.device)
	return nil
}

// pump moves queued chunks into the FFmpeg pipe so Write never blocks on the process.
func (p *AudioPlayer) pump(queue <-chan []float32, w *io.PipeWriter, done chan<- struct{}) {
	defer close(done)
	for data := range queue {
		if _, err := w.Write(float32sToLE(data)); err != nil {
			slog.Warn("error writing to ffmpeg player pipe", "error", err)
			for range queue {
			}
			return
		}
	}
}

// Write queues samples for playback. Samples are dropped when the player is
// stopped or behind.
func (p *AudioPlayer) Write(samples []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue == nil {
		return nil
	}
	select {
	case p.queue <- samples:
	default:
	}
	return nil
}

// Stop terminates the FFmpeg process.
func (p *AudioPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *AudioPlayer) stopLocked() error {
	if p.cmd == nil {
		return nil
	}
	close(p.queue)
	p.pipeWriter.Close()
	<-p.done

	var err error
	if p.cmd.Process != nil {
		err = p.cmd.Process.Kill()
	}
	p.cmd, p.pipeWriter, p.queue, p.done = nil, nil, nil, nil
	return err
}

func (p *AudioPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.stopLocked()
}
