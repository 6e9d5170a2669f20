package audio

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/richinsley/goreactive/options"
)

// writeWAV writes a 16-bit PCM file holding frames of the given per-channel values.
func writeWAV(t *testing.T, sampleRate, channels, frames int, value int) string {
	t.Helper()
	return writeWAVEncoded(t, sampleRate, channels, frames, value, 16, 1)
}

// writeWAVEncoded writes frames of value with the given bit depth and WAV
// format tag (1 integer PCM, 3 IEEE float).
func writeWAVEncoded(t *testing.T, sampleRate, channels, frames, value, bitDepth, audioFormat int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, audioFormat)
	data := make([]int, frames*channels)
	for i := range data {
		data[i] = value
	}
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func openFile(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	f := openFile(t, writeWAV(t, 44100, 1, 16, 0))
	got, err := DetectFormat(f)
	if err != nil {
		t.Fatal(err)
	}
	if got != FormatWAV {
		t.Errorf("DetectFormat(wav) = %v, want %v", got, FormatWAV)
	}
	if pos, _ := f.Seek(0, 1); pos != 0 {
		t.Errorf("DetectFormat left the reader at %d, want 0", pos)
	}

	txt := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(txt, []byte("just some text"), 0o644)
	if got, _ := DetectFormat(openFile(t, txt)); got != FormatOther {
		t.Errorf("DetectFormat(text) = %v, want %v", got, FormatOther)
	}
}

func TestFileInputDecodesAndLoops(t *testing.T) {
	t.Parallel()

	opts := options.Default()
	opts.FramesPerBuffer = 256
	// 512 stereo frames of half scale: two chunks per pass.
	f := openFile(t, writeWAV(t, opts.SampleRate, 2, 512, 16384))

	in := NewFileInput(f, opts)
	ch, err := in.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	total := 0
	deadline := time.After(5 * time.Second)
	for total < 512*3 {
		select {
		case chunk, ok := <-ch:
			if !ok {
				t.Fatalf("stream ended after %d samples, want it to loop", total)
			}
			for i, v := range chunk {
				if math.Abs(float64(v)-0.5) > 1e-3 {
					t.Fatalf("sample %d = %v, want 0.5 after downmix", total+i, v)
				}
			}
			total += len(chunk)
		case <-deadline:
			t.Fatalf("timed out after %d samples", total)
		}
	}

	if err := in.Stop(); err != nil {
		t.Fatal(err)
	}
	for range ch {
	}
	// Stop is idempotent.
	if err := in.Stop(); err != nil {
		t.Fatal(err)
	}
}

// readSamples collects n samples from ch and checks each is within 1e-3 of want.
func readSamples(t *testing.T, ch <-chan []float32, n int, want float64) {
	t.Helper()
	total := 0
	deadline := time.After(5 * time.Second)
	for total < n {
		select {
		case chunk, ok := <-ch:
			if !ok {
				t.Fatalf("stream ended after %d samples", total)
			}
			for i, v := range chunk {
				if math.Abs(float64(v)-want) > 1e-3 {
					t.Fatalf("sample %d = %v, want %v", total+i, v, want)
				}
			}
			total += len(chunk)
		case <-deadline:
			t.Fatalf("timed out after %d samples", total)
		}
	}
}

func TestWAVDecoderScaling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		bitDepth int
		value    int
		want     float64
	}{
		{"8-bit silence", 8, 128, 0},
		{"8-bit positive", 8, 192, 0.5},
		{"8-bit negative", 8, 0, -1},
		{"16-bit", 16, -16384, -0.5},
		{"24-bit", 24, 1 << 22, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := openFile(t, writeWAVEncoded(t, 44100, 1, 16, tt.value, tt.bitDepth, 1))
			stream, err := wavDecoder{}.Decode(f)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			defer stream.Close()

			dst := make([]float32, 16)
			n, err := stream.ReadSamples(dst)
			if err != nil || n != 16 {
				t.Fatalf("ReadSamples() = %d, %v; want 16 samples", n, err)
			}
			for i, v := range dst {
				if math.Abs(float64(v)-tt.want) > 1e-6 {
					t.Fatalf("sample %d = %v, want %v", i, v, tt.want)
				}
			}
		})
	}
}

func TestFileInputEightBitSilenceIsZero(t *testing.T) {
	t.Parallel()

	opts := options.Default()
	opts.FramesPerBuffer = 128
	f := openFile(t, writeWAVEncoded(t, opts.SampleRate, 2, 256, 128, 8, 1))

	in := NewFileInput(f, opts)
	ch, err := in.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer in.Stop()
	readSamples(t, ch, 512, 0)
}

// Not parallel: it execs a freshly written script (see writeScript).
func TestFileInputFloatWAVFallsBackToFFmpeg(t *testing.T) {
	opts := options.Default()
	opts.FramesPerBuffer = 128
	opts.FFMPEGPath = writeScript(t, t.TempDir(), "ffmpeg", `cat >/dev/null
i=0
while [ $i -lt 256 ]; do printf '\000\000\000\077'; i=$((i+1)); done`)
	f := openFile(t, writeWAVEncoded(t, opts.SampleRate, 1, 256, 0, 32, 3))

	if _, err := (wavDecoder{}).Decode(f); !errors.Is(err, errUnsupportedEncoding) {
		t.Fatalf("native Decode() error = %v, want errUnsupportedEncoding", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}

	in := NewFileInput(f, opts)
	ch, err := in.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer in.Stop()
	// Three passes: the loop reopens the file with the FFmpeg decoder too.
	readSamples(t, ch, 256*3, 0.5)
}

func TestFileInputRejectsEmptyFile(t *testing.T) {
	t.Parallel()

	f := openFile(t, writeWAV(t, 44100, 1, 0, 0))
	in := NewFileInput(f, options.Default())
	_, err := in.Start()
	if err == nil {
		in.Stop()
		t.Fatal("Start() on an empty file succeeded")
	}
	if !strings.Contains(err.Error(), "tone.wav") {
		t.Errorf("error %q does not name the file", err)
	}
	if got := Classify(File, err).Class; got != Unknown {
		t.Errorf("class = %v, want unknown", got)
	}
	in.Stop()
}

func TestDownmix(t *testing.T) {
	t.Parallel()

	got := Downmix([]float32{1, 0, 0.5, 0.5, 1}, 2)
	want := []float32{0.5, 0.5}
	if len(got) != len(want) {
		t.Fatalf("Downmix len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Downmix[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFloat32LERoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 1, -1, 0.25}
	out := float32sFromLE(float32sToLE(in))
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
}
