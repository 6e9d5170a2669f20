package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/richinsley/goreactive/options"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Capture acquires tab or system audio through an FFmpeg input device:
// the PulseAudio monitor on Linux, avfoundation on macOS and dshow on Windows.
type Capture struct {
	format          string
	device          string
	ffmpegPath      string
	ffprobePath     string
	sampleRate      int
	framesPerBuffer int
	startupTimeout  time.Duration

	mu       sync.Mutex
	cmd      *exec.Cmd
	out      chan []float32
	done     chan struct{}
	wg       sync.WaitGroup
	stderr   syncBuffer
	started  bool
	stopOnce sync.Once
}

// NewCapture creates a capture device from the capture options.
func NewCapture(opts *options.EngineOptions) *Capture {
	format, device := defaultCaptureInput()
	if opts.Capture.Format != "" {
		format = opts.Capture.Format
	}
	if opts.Capture.Device != "" {
		device = opts.Capture.Device
	}
	timeout := opts.Capture.StartupTimeout
	if timeout <= 0 {
		timeout = options.DefaultStartupTimeout
	}
	return &Capture{
		format:          format,
		device:          device,
		ffmpegPath:      opts.FFMPEGPath,
		ffprobePath:     ffprobePath(opts),
		sampleRate:      opts.SampleRate,
		framesPerBuffer: opts.FramesPerBuffer,
		startupTimeout:  timeout,
		done:            make(chan struct{}),
	}
}

// ffprobePath resolves the ffprobe binary: the configured path, the sibling
// of a configured ffmpeg, or ffprobe from PATH.
func ffprobePath(opts *options.EngineOptions) string {
	if opts.FFprobePath != "" {
		return opts.FFprobePath
	}
	p := opts.FFMPEGPath
	if p == "" || filepath.Base(p) == p {
		return "ffprobe"
	}
	return filepath.Join(filepath.Dir(p), "ffprobe"+filepath.Ext(p))
}

func defaultCaptureInput() (format, device string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=Stereo Mix"
	default:
		return "pulse", "default.monitor"
	}
}

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

// Probe inspects the capture input and fails with ErrNoAudioTrack when it
// carries no audio stream.
func (c *Capture) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.startupTimeout)
	defer cancel()

	args := ffmpeg.ConvertKwargsToCmdLineArgs(ffmpeg.KwArgs{
		"f":            c.format,
		"show_streams": "",
		"of":           "json",
		"v":            "error",
	})
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.ffprobePath, append(args, c.device)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := lastErrorLine(stderr.String()); msg != "" {
			return fmt.Errorf("probe %s input %q: %s: %w", c.format, c.device, msg, err)
		}
		return fmt.Errorf("probe %s input %q: %w", c.format, c.device, err)
	}
	out := stdout.Bytes()

	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return fmt.Errorf("parse probe output: %w", err)
	}
	for _, s := range res.Streams {
		if s.CodecType == "audio" {
			return nil
		}
	}
	return fmt.Errorf("%s input %q: %w", c.format, c.device, ErrNoAudioTrack)
}

// Start launches FFmpeg and waits until the first chunk arrives, the process
// exits, or the startup timeout elapses.
func (c *Capture) Start() (<-chan []float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return c.out, nil
	}

	pipeReader, pipeWriter := io.Pipe()

	ffmpegCmd := ffmpeg.Input(c.device, ffmpeg.KwArgs{
		"f":      c.format,
		"fflags": "nobuffer",
	}).Filter("asetnsamples", ffmpeg.Args{strconv.Itoa(c.framesPerBuffer)}).
		Output("pipe:", ffmpeg.KwArgs{
			"f":   "f32le",
			"c:a": "pcm_f32le",
			"ac":  "1",
			"ar":  strconv.Itoa(c.sampleRate),
		}).
		WithOutput(pipeWriter).
		WithErrorOutput(&c.stderr)

	if c.ffmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(c.ffmpegPath)
	}

	cmd := ffmpegCmd.Compile()
	if err := cmd.Start(); err != nil {
		pipeWriter.Close()
		return nil, fmt.Errorf("failed to start ffmpeg capture: %w", err)
	}
	c.cmd = cmd
	c.out = make(chan []float32, 16)
	c.started = true

	exited := make(chan error, 1)
	ready := make(chan struct{})

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		err := cmd.Wait()
		if err != nil {
			pipeWriter.CloseWithError(err)
		} else {
			pipeWriter.Close()
		}
		exited <- err
	}()
	go func() {
		defer c.wg.Done()
		defer close(c.out)
		c.readLoop(pipeReader, ready)
	}()

	select {
	case <-ready:
		slog.Info("capture started", "format", c.format, "device", c.device)
		return c.out, nil
	case err := <-exited:
		c.stopLocked()
		return nil, c.exitError(err)
	case <-time.After(c.startupTimeout):
		c.stopLocked()
		return nil, fmt.Errorf("no audio from %s input %q within %s: %w", c.format, c.device, c.startupTimeout, ErrNoAudioTrack)
	}
}

func (c *Capture) readLoop(r *io.PipeReader, ready chan<- struct{}) {
	defer r.Close()

	buf := make([]byte, c.framesPerBuffer*4)
	var once sync.Once
	for {
		n, err := io.ReadFull(r, buf)
		if n >= 4 {
			chunk := float32sFromLE(buf[:n-n%4])
			once.Do(func() { close(ready) })
			select {
			case c.out <- chunk:
			case <-c.done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.ErrClosedPipe) {
				slog.Debug("capture pipe closed", "error", err)
			}
			return
		}
	}
}

func (c *Capture) exitError(err error) error {
	msg := lastErrorLine(c.stderr.String())
	if msg == "" && err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "ffmpeg exited before producing audio"
	}
	return fmt.Errorf("capture %s input %q: %s", c.format, c.device, msg)
}

func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Capture) stopLocked() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.done)
		if c.cmd != nil && c.cmd.Process != nil {
			if kerr := c.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				err = kerr
			}
		}
		c.wg.Wait()
	})
	return err
}

func (c *Capture) SampleRate() int {
	return c.sampleRate
}

// syncBuffer is a bytes.Buffer safe for concurrent writes from exec and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
