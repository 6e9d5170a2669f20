package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gabriel-vasile/mimetype"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Format is the container/codec family of a file source.
type Format string

const (
	FormatWAV    Format = "wav"
	FormatMP3    Format = "mp3"
	FormatVorbis Format = "vorbis"
	FormatOther  Format = "other"
)

// DetectFormat sniffs the first bytes of r and rewinds it.
func DetectFormat(r io.ReadSeeker) (Format, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("detect file format: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}
	switch {
	case mtype.Is("audio/wav"):
		return FormatWAV, nil
	case mtype.Is("audio/mpeg"):
		return FormatMP3, nil
	case mtype.Is("audio/ogg"):
		return FormatVorbis, nil
	}
	return FormatOther, nil
}

// decodedStream yields interleaved float32 frames.
type decodedStream interface {
	SampleRate() int
	Channels() int
	// ReadSamples fills dst with interleaved samples and returns io.EOF at the end.
	ReadSamples(dst []float32) (int, error)
	Close() error
}

// decoder opens a decodedStream positioned at the first sample.
type decoder interface {
	Decode(r io.ReadSeeker) (decodedStream, error)
}

// errUnsupportedEncoding marks a container the native decoder recognises
// but whose sample encoding it cannot read.
var errUnsupportedEncoding = errors.New("unsupported encoding")

// decoderFor returns the native decoder for format, falling back to FFmpeg.
func decoderFor(format Format, ffmpegPath string, sampleRate int) decoder {
	switch format {
	case FormatWAV:
		return wavDecoder{}
	case FormatMP3:
		return mp3Decoder{}
	case FormatVorbis:
		return vorbisDecoder{}
	default:
		return ffmpegDecoder{ffmpegPath: ffmpegPath, sampleRate: sampleRate}
	}
}

// openStream decodes r with the native decoder for format. Encodings the
// native decoder rejects are handed to FFmpeg from the start of r. The
// decoder that succeeded is returned so later passes reuse it.
func openStream(r io.ReadSeeker, format Format, ffmpegPath string, sampleRate int) (decoder, decodedStream, error) {
	dec := decoderFor(format, ffmpegPath, sampleRate)
	stream, err := dec.Decode(r)
	if !errors.Is(err, errUnsupportedEncoding) {
		return dec, stream, err
	}
	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return nil, nil, fmt.Errorf("rewind file: %w", serr)
	}
	slog.Debug("native decoder rejected encoding, using ffmpeg", "format", format, "reason", err)
	dec = ffmpegDecoder{ffmpegPath: ffmpegPath, sampleRate: sampleRate}
	stream, err = dec.Decode(r)
	return dec, stream, err
}

// --- WAV ---

type wavDecoder struct{}

type wavStream struct {
	dec   *wav.Decoder
	buf   *goaudio.IntBuffer
	scale float32
	// bias recentres unsigned 8-bit samples.
	bias int
}

func (wavDecoder) Decode(r io.ReadSeeker) (decodedStream, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("seek to wav pcm data: %w", err)
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("wav format tag %d: %w", dec.WavAudioFormat, errUnsupportedEncoding)
	}
	if dec.BitDepth < 8 || dec.BitDepth > 32 {
		return nil, fmt.Errorf("wav bit depth %d: %w", dec.BitDepth, errUnsupportedEncoding)
	}
	s := &wavStream{
		dec:   dec,
		buf:   &goaudio.IntBuffer{Data: make([]int, 4096)},
		scale: 1 / float32(int64(1)<<(dec.BitDepth-1)),
	}
	// 8-bit PCM is unsigned with silence at 128.
	if dec.BitDepth == 8 {
		s.bias = 128
	}
	return s, nil
}

func (s *wavStream) SampleRate() int { return int(s.dec.SampleRate) }
func (s *wavStream) Channels() int   { return int(s.dec.NumChans) }
func (s *wavStream) Close() error    { return nil }

func (s *wavStream) ReadSamples(dst []float32) (int, error) {
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]
	count, err := s.dec.PCMBuffer(s.buf)
	if err != nil {
		return 0, fmt.Errorf("decode wav: %w", err)
	}
	if count == 0 {
		return 0, io.EOF
	}
	for i, v := range s.buf.Data[:count] {
		dst[i] = float32(v-s.bias) * s.scale
	}
	return count, nil
}

// --- MP3 ---

type mp3Decoder struct{}

// mp3Stream reads go-mp3's signed 16-bit little-endian stereo output.
type mp3Stream struct {
	dec *gomp3.Decoder
	raw []byte
}

func (mp3Decoder) Decode(r io.ReadSeeker) (decodedStream, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	return &mp3Stream{dec: dec}, nil
}

func (s *mp3Stream) SampleRate() int { return s.dec.SampleRate() }
func (s *mp3Stream) Channels() int   { return 2 }
func (s *mp3Stream) Close() error    { return nil }

func (s *mp3Stream) ReadSamples(dst []float32) (int, error) {
	need := len(dst) * 2
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	s.raw = s.raw[:need]
	n, err := io.ReadFull(s.dec, s.raw)
	samples := n / 2
	for i := range samples {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(s.raw[i*2:]))) / 32768
	}
	if samples == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return 0, err
	}
	return samples, nil
}

// --- Ogg Vorbis ---

type vorbisDecoder struct{}

type vorbisStream struct {
	dec *oggvorbis.Reader
}

func (vorbisDecoder) Decode(r io.ReadSeeker) (decodedStream, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decode ogg vorbis: %w", err)
	}
	return &vorbisStream{dec: dec}, nil
}

func (s *vorbisStream) SampleRate() int { return s.dec.SampleRate() }
func (s *vorbisStream) Channels() int   { return s.dec.Channels() }
func (s *vorbisStream) Close() error    { return nil }

func (s *vorbisStream) ReadSamples(dst []float32) (int, error) {
	// The reader works in whole frames.
	ch := s.dec.Channels()
	n, err := s.dec.Read(dst[:len(dst)/ch*ch])
	if n == 0 && err == nil {
		err = io.EOF
	}
	if n > 0 {
		return n, nil
	}
	return 0, err
}

// --- FFmpeg fallback ---

// ffmpegDecoder pipes any container FFmpeg understands through an f32le
// mono decode at the engine rate.
type ffmpegDecoder struct {
	ffmpegPath string
	sampleRate int
}

type ffmpegStream struct {
	cmd        *exec.Cmd
	pipeReader *io.PipeReader
	sampleRate int
	stderr     syncBuffer
	raw        []byte
	exited     chan struct{}
}

func (d ffmpegDecoder) Decode(r io.ReadSeeker) (decodedStream, error) {
	s := &ffmpegStream{sampleRate: d.sampleRate, exited: make(chan struct{})}
	pipeReader, pipeWriter := io.Pipe()

	ffmpegCmd := ffmpeg.Input("pipe:").
		Output("pipe:", ffmpeg.KwArgs{
			"f":  "f32le",
			"ac": "1",
			"ar": strconv.Itoa(d.sampleRate),
			"vn": "",
		}).
		WithInput(r).
		WithOutput(pipeWriter).
		WithErrorOutput(&s.stderr)
	if d.ffmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(d.ffmpegPath)
	}

	s.cmd = ffmpegCmd.Compile()
	if err := s.cmd.Start(); err != nil {
		pipeWriter.Close()
		return nil, fmt.Errorf("failed to start ffmpeg decoder: %w", err)
	}
	s.pipeReader = pipeReader

	go func() {
		defer close(s.exited)
		err := s.cmd.Wait()
		if err != nil {
			if msg := lastErrorLine(s.stderr.String()); msg != "" {
				err = fmt.Errorf("ffmpeg decode: %s", msg)
			}
			pipeWriter.CloseWithError(err)
			return
		}
		pipeWriter.Close()
	}()
	return s, nil
}

func (s *ffmpegStream) SampleRate() int { return s.sampleRate }
func (s *ffmpegStream) Channels() int   { return 1 }

func (s *ffmpegStream) ReadSamples(dst []float32) (int, error) {
	need := len(dst) * 4
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	s.raw = s.raw[:need]
	n, err := io.ReadFull(s.pipeReader, s.raw)
	samples := n / 4
	if samples == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return 0, err
	}
	copy(dst, float32sFromLE(s.raw[:samples*4]))
	return samples, nil
}

func (s *ffmpegStream) Close() error {
	s.pipeReader.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	// Wait also drains the stdin copy, which must finish before the file is rewound.
	<-s.exited
	return nil
}
