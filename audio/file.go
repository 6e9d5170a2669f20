package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/richinsley/goreactive/options"
	resampling "github.com/tphakala/go-audio-resampling"
)

// FileInput plays a user-supplied file as a looping source. Samples are
// downmixed to mono, resampled to the engine rate and released at real-time
// rate so the analysis sees the file as it would be heard.
type FileInput struct {
	src             FileSource
	ffmpegPath      string
	sampleRate      int
	framesPerBuffer int

	mu       sync.Mutex
	format   Format
	dec      decoder
	stream   decodedStream
	pending  []float32
	out      chan []float32
	stopChan chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// NewFileInput creates a file source. Nothing is read until Start.
func NewFileInput(src FileSource, opts *options.EngineOptions) *FileInput {
	return &FileInput{
		src:             src,
		ffmpegPath:      opts.FFMPEGPath,
		sampleRate:      opts.SampleRate,
		framesPerBuffer: opts.FramesPerBuffer,
		stopChan:        make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start sniffs and opens the file. Header and decode errors are returned
// here; later decode errors end the stream.
func (f *FileInput) Start() (<-chan []float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started {
		return f.out, nil
	}

	format, err := DetectFormat(f.src)
	if err != nil {
		return nil, err
	}
	dec, stream, err := openStream(f.src, format, f.ffmpegPath, f.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.src.Name(), err)
	}
	if stream.Channels() < 1 || stream.SampleRate() <= 0 {
		stream.Close()
		return nil, fmt.Errorf("open %s: invalid stream (%d channels at %d Hz)", f.src.Name(), stream.Channels(), stream.SampleRate())
	}

	// Decode the first block now so unreadable files fail here rather than
	// as a silent stream.
	first := make([]float32, f.framesPerBuffer*stream.Channels())
	n, err := stream.ReadSamples(first)
	if n == 0 {
		stream.Close()
		if err == nil || errors.Is(err, io.EOF) {
			err = errors.New("no audio samples")
		}
		return nil, fmt.Errorf("open %s: %w", f.src.Name(), err)
	}

	f.format = format
	f.dec = dec
	f.stream = stream
	f.pending = first[:n]
	f.out = make(chan []float32, 16)
	f.started = true

	go f.run()

	slog.Info("file input started", "file", f.src.Name(), "format", format,
		"file_rate", stream.SampleRate(), "channels", stream.Channels())
	return f.out, nil
}

func (f *FileInput) run() {
	defer close(f.done)
	defer close(f.out)

	var resampler resampling.Resampler
	rate := 0

	startTime := time.Now()
	var samplesSent int64
	passSamples := 0

	for {
		stream := f.stream
		if rate != stream.SampleRate() {
			rate = stream.SampleRate()
			resampler = nil
			if rate != f.sampleRate {
				r, err := resampling.New(&resampling.Config{
					InputRate:  float64(rate),
					OutputRate: float64(f.sampleRate),
					Channels:   1,
					Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
				})
				if err != nil {
					slog.Error("failed to create resampler", "from", rate, "to", f.sampleRate, "error", err)
					return
				}
				resampler = r
			}
		}

		var (
			buf []float32
			n   int
			err error
		)
		if f.pending != nil {
			buf, n = f.pending, len(f.pending)
			f.pending = nil
		} else {
			buf = make([]float32, f.framesPerBuffer*stream.Channels())
			n, err = stream.ReadSamples(buf)
		}
		if n > 0 {
			chunk := Downmix(buf[:n], stream.Channels())
			if resampler != nil {
				chunk, err = resample(resampler, chunk)
				if err != nil {
					slog.Error("resample failed", "file", f.src.Name(), "error", err)
					return
				}
			}
			if len(chunk) > 0 {
				passSamples += len(chunk)
				select {
				case f.out <- chunk:
				case <-f.stopChan:
					return
				}
				samplesSent += int64(len(chunk))
				if !f.pace(startTime, samplesSent) {
					return
				}
			}
			continue
		}

		if err != nil && !errors.Is(err, io.EOF) {
			slog.Error("file decode failed", "file", f.src.Name(), "error", err)
			return
		}
		if passSamples == 0 {
			slog.Warn("file produced no audio, stopping", "file", f.src.Name())
			return
		}
		if !f.rewind() {
			return
		}
		passSamples = 0
	}
}

// pace sleeps while the producer is ahead of real time. It returns false
// when the input is being stopped.
func (f *FileInput) pace(startTime time.Time, samplesSent int64) bool {
	expected := time.Duration(float64(samplesSent) / float64(f.sampleRate) * float64(time.Second))
	ahead := expected - time.Since(startTime)
	if ahead <= 0 {
		return true
	}
	select {
	case <-time.After(ahead):
		return true
	case <-f.stopChan:
		return false
	}
}

// rewind reopens the decoder at the start of the file for the next loop.
func (f *FileInput) rewind() bool {
	f.stream.Close()
	if _, err := f.src.Seek(0, io.SeekStart); err != nil {
		slog.Error("failed to rewind file", "file", f.src.Name(), "error", err)
		return false
	}
	stream, err := f.dec.Decode(f.src)
	if err != nil {
		slog.Error("failed to reopen file", "file", f.src.Name(), "error", err)
		return false
	}
	f.stream = stream
	return true
}

func resample(r resampling.Resampler, chunk []float32) ([]float32, error) {
	in := make([]float64, len(chunk))
	for i, v := range chunk {
		in[i] = float64(v)
	}
	out, err := r.Process(in)
	if err != nil {
		return nil, err
	}
	res := make([]float32, len(out))
	for i, v := range out {
		res[i] = float32(v)
	}
	return res, nil
}

// Stop ends playback and waits for the producer goroutine.
func (f *FileInput) Stop() error {
	f.mu.Lock()
	started := f.started
	f.mu.Unlock()

	f.stopOnce.Do(func() {
		close(f.stopChan)
		if started {
			<-f.done
			f.stream.Close()
		}
	})
	return nil
}

func (f *FileInput) SampleRate() int {
	return f.sampleRate
}
