package audio

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/gordonklaus/portaudio"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind Kind
		err  error
		want ErrorClass
	}{
		{"os permission", Microphone, fmt.Errorf("open: %w", os.ErrPermission), PermissionDenied},
		{"permission text", Microphone, errors.New("Permission denied by user"), PermissionDenied},
		{"portaudio invalid device", Microphone, fmt.Errorf("open stream: %w", portaudio.InvalidDevice), DeviceNotFound},
		{"portaudio no default", Microphone, portaudio.NoDefaultInputDevice, DeviceNotFound},
		{"named device missing", Microphone, fmt.Errorf("input device %q: %w", "usb", ErrDeviceNotFound), DeviceNotFound},
		{"pulse refused", TabOrSystemCapture, errors.New("default.monitor: Connection refused"), DeviceNotFound},
		{"no such device", TabOrSystemCapture, errors.New(":0: No such device"), DeviceNotFound},
		{"no audio track", TabOrSystemCapture, fmt.Errorf("probe: %w", ErrNoAudioTrack), NoAudioTrack},
		{"file not found text stays unknown", File, errors.New("No such file or directory"), Unknown},
		{"bad header", File, errors.New("invalid wav file"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Classify(tt.kind, tt.err)
			if got.Class != tt.want {
				t.Errorf("Classify(%v).Class = %v, want %v", tt.err, got.Class, tt.want)
			}
			if got.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if !errors.Is(got, tt.want.sentinel()) {
				t.Errorf("errors.Is(%v, %v) = false", got, tt.want.sentinel())
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error does not wrap the cause")
			}
		})
	}
}

func TestClassifyKeepsClassifiedErrors(t *testing.T) {
	t.Parallel()

	orig := &AcquisitionError{Class: NoAudioTrack, Kind: TabOrSystemCapture}
	if got := Classify(Microphone, fmt.Errorf("wrapped: %w", orig)); got != orig {
		t.Errorf("Classify re-wrapped an already classified error")
	}
	if Classify(Microphone, nil) != nil {
		t.Errorf("Classify(nil) != nil")
	}
}

func TestLastErrorLine(t *testing.T) {
	t.Parallel()

	stderr := "ffmpeg version 6.0\n  built with gcc\n[pulse @ 0x1] Connection refused\ndefault.monitor: Input/output error\n\n"
	if got, want := lastErrorLine(stderr), "default.monitor: Input/output error"; got != want {
		t.Errorf("lastErrorLine() = %q, want %q", got, want)
	}
	if got := lastErrorLine("  \n"); got != "" {
		t.Errorf("lastErrorLine(blank) = %q, want empty", got)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range []Kind{Microphone, TabOrSystemCapture, File} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("speaker"); err == nil {
		t.Error("ParseKind(speaker) succeeded")
	}
	if !File.DefaultMonitor() || Microphone.DefaultMonitor() || TabOrSystemCapture.DefaultMonitor() {
		t.Error("DefaultMonitor: want on for files only")
	}
}
