package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/richinsley/goreactive/analysis"
	"github.com/richinsley/goreactive/audio"
	"github.com/richinsley/goreactive/options"
)

// fakeDevice is an acquisition handle fed by the test.
type fakeDevice struct {
	acq      *fakeAcquirer
	ch       chan []float32
	startErr error
	once     sync.Once
}

func (d *fakeDevice) Start() (<-chan []float32, error) {
	if d.startErr != nil {
		return nil, d.startErr
	}
	return d.ch, nil
}

func (d *fakeDevice) Stop() error {
	d.once.Do(func() {
		close(d.ch)
		d.acq.release()
	})
	return nil
}

func (d *fakeDevice) SampleRate() int { return 44100 }

// fakeAcquirer counts handles and can be told to fail per kind.
type fakeAcquirer struct {
	mu       sync.Mutex
	opens    int
	closes   int
	open     int
	maxOpen  int
	openErr  map[audio.Kind]error
	startErr map[audio.Kind]error
	last     *fakeDevice
}

func newFakeAcquirer() *fakeAcquirer {
	return &fakeAcquirer{
		openErr:  map[audio.Kind]error{},
		startErr: map[audio.Kind]error{},
	}
}

func (a *fakeAcquirer) Open(_ context.Context, req audio.Request) (audio.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.openErr[req.Kind]; err != nil {
		return nil, err
	}
	a.opens++
	a.open++
	a.maxOpen = max(a.maxOpen, a.open)
	d := &fakeDevice{acq: a, ch: make(chan []float32, 64), startErr: a.startErr[req.Kind]}
	a.last = d
	return d, nil
}

func (a *fakeAcquirer) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closes++
	a.open--
}

func (a *fakeAcquirer) counts() (opens, closes, maxOpen int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opens, a.closes, a.maxOpen
}

func (a *fakeAcquirer) lastDevice() *fakeDevice {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// memSink records everything written to the destination.
type memSink struct {
	mu      sync.Mutex
	samples []float32
}

func (s *memSink) Start() error { return nil }
func (s *memSink) Stop() error  { return nil }
func (s *memSink) Close() error { return nil }

func (s *memSink) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
	return nil
}

func (s *memSink) snapshot() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.samples...)
}

type memFile struct {
	*bytes.Reader
	name string
}

func (f memFile) Name() string { return f.name }

func newTestManager(t *testing.T) (*Manager, *fakeAcquirer, *memSink) {
	t.Helper()
	opts := options.Default()
	acq := newFakeAcquirer()
	sink := &memSink{}
	ctx := audio.NewContext(opts.SampleRate, func() (audio.Sink, error) { return sink, nil })
	m := New(opts, acq, ctx)
	t.Cleanup(func() { m.Close() })
	return m, acq, sink
}

func testFile() audio.FileSource {
	return memFile{Reader: bytes.NewReader([]byte("RIFF")), name: "song.wav"}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAtMostOneAcquisition(t *testing.T) {
	t.Parallel()

	m, acq, _ := newTestManager(t)
	acq.openErr[audio.TabOrSystemCapture] = fmt.Errorf("probe: %w", audio.ErrNoAudioTrack)
	acq.startErr[audio.File] = errors.New("bad header")

	steps := []struct {
		kind audio.Kind
		file audio.FileSource
	}{
		{audio.Microphone, nil},
		{audio.Microphone, nil},
		{audio.TabOrSystemCapture, nil},
		{audio.Microphone, nil},
		{audio.File, testFile()},
		{audio.Microphone, nil},
		{audio.File, testFile()},
	}

	ctx := context.Background()
	for i, s := range steps {
		m.SetSource(ctx, s.kind, s.file, false)
		opens, closes, _ := acq.counts()
		if d := opens - closes; d != 0 && d != 1 {
			t.Fatalf("step %d (%v): opens-closes = %d", i, s.kind, d)
		}
	}

	m.Stop()
	opens, closes, maxOpen := acq.counts()
	if opens != closes {
		t.Errorf("after Stop opens = %d, closes = %d", opens, closes)
	}
	if maxOpen != 1 {
		t.Errorf("max simultaneously open handles = %d, want 1", maxOpen)
	}
}

func TestConcurrentSetSourceIsSerialized(t *testing.T) {
	t.Parallel()

	m, acq, _ := newTestManager(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				m.SetSource(context.Background(), audio.Microphone, nil, false)
			} else {
				m.SetSource(context.Background(), audio.File, testFile(), true)
			}
		}()
	}
	wg.Wait()

	opens, closes, maxOpen := acq.counts()
	if opens-closes != 1 {
		t.Errorf("opens-closes = %d, want 1", opens-closes)
	}
	if maxOpen != 1 {
		t.Errorf("max simultaneously open handles = %d, want 1", maxOpen)
	}
	if m.ActiveTap() == nil {
		t.Error("no active tap after the last SetSource")
	}
}

func TestFailedSwitchReleasesPrevious(t *testing.T) {
	t.Parallel()

	m, acq, _ := newTestManager(t)
	acq.openErr[audio.TabOrSystemCapture] = fmt.Errorf("probe: %w", audio.ErrNoAudioTrack)

	if err := m.SetSource(context.Background(), audio.Microphone, nil, false); err != nil {
		t.Fatalf("SetSource(mic) error: %v", err)
	}
	mic := acq.lastDevice()

	err := m.SetSource(context.Background(), audio.TabOrSystemCapture, nil, false)
	var acqErr *audio.AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("SetSource(capture) = %v, want *audio.AcquisitionError", err)
	}
	if acqErr.Class != audio.NoAudioTrack || !errors.Is(err, audio.ErrNoAudioTrack) {
		t.Errorf("class = %v, want no_audio_track", acqErr.Class)
	}

	// The microphone was released and not restored.
	select {
	case _, ok := <-mic.ch:
		if ok {
			t.Error("microphone channel still open")
		}
	default:
		t.Error("microphone channel still open")
	}
	if m.ActiveTap() != nil {
		t.Error("a tap is still published after a failed switch")
	}
	if st := m.Status(); st.Active {
		t.Errorf("Status() = %+v, want inactive", st)
	}
	opens, closes, _ := acq.counts()
	if opens != closes {
		t.Errorf("opens = %d, closes = %d", opens, closes)
	}
}

func TestNoAudioTrackThenExtractIsZero(t *testing.T) {
	t.Parallel()

	m, acq, _ := newTestManager(t)
	acq.openErr[audio.TabOrSystemCapture] = fmt.Errorf("capture: %w", audio.ErrNoAudioTrack)
	ex := analysis.NewExtractor(m, analysis.ExtractorConfigFromOptions(m.opts))

	err := m.SetSource(context.Background(), audio.TabOrSystemCapture, nil, false)
	if !errors.Is(err, audio.ErrNoAudioTrack) {
		t.Fatalf("SetSource(capture) = %v, want ErrNoAudioTrack", err)
	}
	v := ex.Extract()
	if v.Bass != 0 || v.Mid != 0 || v.High != 0 || v.Volume != 0 || len(v.Spectrum) != 0 {
		t.Errorf("Extract() = %+v, want zero vector", v)
	}
}

func TestMicrophoneZerosUntilAudio(t *testing.T) {
	t.Parallel()

	m, acq, _ := newTestManager(t)
	ex := analysis.NewExtractor(m, analysis.ExtractorConfigFromOptions(m.opts))

	if err := m.SetSource(context.Background(), audio.Microphone, nil, false); err != nil {
		t.Fatalf("SetSource(mic) error: %v", err)
	}

	v := ex.Extract()
	if v.Bass != 0 || v.Mid != 0 || v.High != 0 || v.Volume != 0 {
		t.Fatalf("Extract() before audio = %+v, want zeros", v)
	}
	if len(v.Spectrum) != 256 {
		t.Fatalf("spectrum len = %d, want 256", len(v.Spectrum))
	}
	for i, b := range v.Spectrum {
		if b != 0 {
			t.Fatalf("bin %d = %d before audio", i, b)
		}
	}

	// A 2 kHz tone lands in the mid band.
	dev := acq.lastDevice()
	chunk := make([]float32, 1024)
	for i := range chunk {
		chunk[i] = float32(0.5 * math.Sin(2*math.Pi*2000*float64(i)/44100))
	}
	for range 4 {
		dev.ch <- chunk
	}

	waitFor(t, "nonzero features", func() bool {
		v = ex.Extract()
		return v.Mid > 0 && v.Volume > 0
	})
}

func TestMonitorRampHasNoJumps(t *testing.T) {
	t.Parallel()

	m, acq, sink := newTestManager(t)
	if err := m.SetSource(context.Background(), audio.File, testFile(), true); err != nil {
		t.Fatalf("SetSource(file) error: %v", err)
	}
	if !m.Status().Monitor {
		t.Fatal("monitor not on for a file source")
	}
	dev := acq.lastDevice()

	ones := make([]float32, 1024)
	for i := range ones {
		ones[i] = 1
	}
	feed := func(chunks int) {
		want := len(sink.snapshot()) + chunks*len(ones)
		for range chunks {
			dev.ch <- ones
		}
		waitFor(t, "monitor output", func() bool { return len(sink.snapshot()) >= want })
	}

	feed(2)
	m.SetMonitor(false)
	feed(44) // about ten time constants
	m.SetMonitor(true)
	feed(44)

	out := sink.snapshot()
	coeff := 1 - math.Exp(-1/(options.DefaultRampTimeConstant.Seconds()*44100))
	minSeen := float32(1)
	for i := 1; i < len(out); i++ {
		if step := math.Abs(float64(out[i] - out[i-1])); step > coeff+1e-6 {
			t.Fatalf("sample %d jumps by %v (max %v)", i, step, coeff)
		}
		minSeen = min(minSeen, out[i])
	}
	if out[0] != 1 {
		t.Errorf("first sample = %v, want 1 with monitor on", out[0])
	}
	if minSeen > 1e-3 {
		t.Errorf("gain never approached 0 (min %v)", minSeen)
	}
	if last := out[len(out)-1]; last < 0.999 {
		t.Errorf("gain did not return to 1 (last %v)", last)
	}
}

func TestSetMonitorWithoutSource(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	m.SetMonitor(true)
	m.SetMonitor(true)
	if st := m.Status(); st.Active || st.Monitor {
		t.Errorf("Status() = %+v, want inactive", st)
	}
}

func TestInvalidRequestHasNoSideEffects(t *testing.T) {
	t.Parallel()

	m, acq, _ := newTestManager(t)
	if err := m.SetSource(context.Background(), audio.Microphone, nil, false); err != nil {
		t.Fatal(err)
	}
	before := m.Status()

	tests := []struct {
		name string
		kind audio.Kind
		file audio.FileSource
	}{
		{"file without handle", audio.File, nil},
		{"microphone with handle", audio.Microphone, testFile()},
		{"capture with handle", audio.TabOrSystemCapture, testFile()},
		{"unknown kind", audio.Kind(42), nil},
	}
	for _, tt := range tests {
		err := m.SetSource(context.Background(), tt.kind, tt.file, false)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%s: err = %v, want ErrInvalidRequest", tt.name, err)
		}
	}

	if after := m.Status(); after.GraphID != before.GraphID || !after.Active {
		t.Errorf("invalid requests changed the active graph: %+v -> %+v", before, after)
	}
	if opens, _, _ := acq.counts(); opens != 1 {
		t.Errorf("opens = %d, want 1", opens)
	}
}

func TestStartFailureReleasesDevice(t *testing.T) {
	t.Parallel()

	m, acq, _ := newTestManager(t)
	acq.startErr[audio.Microphone] = fmt.Errorf("open stream: %w", os.ErrPermission)

	err := m.SetSource(context.Background(), audio.Microphone, nil, false)
	var acqErr *audio.AcquisitionError
	if !errors.As(err, &acqErr) || acqErr.Class != audio.PermissionDenied {
		t.Fatalf("SetSource = %v, want permission_denied", err)
	}
	opens, closes, _ := acq.counts()
	if opens != 1 || closes != 1 {
		t.Errorf("opens = %d, closes = %d; want 1, 1", opens, closes)
	}
	if m.ActiveTap() != nil {
		t.Error("tap published after a failed start")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	m, acq, _ := newTestManager(t)
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() with nothing active: %v", err)
	}
	if err := m.SetSource(context.Background(), audio.Microphone, nil, false); err != nil {
		t.Fatal(err)
	}
	if got := m.Status().ContextState; got != audio.Running {
		t.Fatalf("context state = %v, want running", got)
	}

	for range 2 {
		if err := m.Stop(); err != nil {
			t.Fatalf("Stop() error: %v", err)
		}
	}
	if m.ActiveTap() != nil {
		t.Error("tap still published after Stop")
	}
	if got := m.Status().ContextState; got != audio.Suspended {
		t.Errorf("context state = %v, want suspended", got)
	}
	opens, closes, _ := acq.counts()
	if opens != closes {
		t.Errorf("opens = %d, closes = %d", opens, closes)
	}

	// A new source resumes the context.
	if err := m.SetSource(context.Background(), audio.Microphone, nil, false); err != nil {
		t.Fatal(err)
	}
	if got := m.Status().ContextState; got != audio.Running {
		t.Errorf("context state = %v, want running after SetSource", got)
	}
}
