package audio

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// ErrorClass is the user-facing category of an acquisition failure.
type ErrorClass int

const (
	Unknown ErrorClass = iota
	PermissionDenied
	DeviceNotFound
	NoAudioTrack
)

func (c ErrorClass) String() string {
	switch c {
	case PermissionDenied:
		return "permission_denied"
	case DeviceNotFound:
		return "device_not_found"
	case NoAudioTrack:
		return "no_audio_track"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against an *AcquisitionError.
var (
	ErrPermissionDenied = errors.New("audio: permission denied")
	ErrDeviceNotFound   = errors.New("audio: device not found")
	ErrNoAudioTrack     = errors.New("audio: no audio track")
	ErrUnknown          = errors.New("audio: acquisition failed")
)

func (c ErrorClass) sentinel() error {
	switch c {
	case PermissionDenied:
		return ErrPermissionDenied
	case DeviceNotFound:
		return ErrDeviceNotFound
	case NoAudioTrack:
		return ErrNoAudioTrack
	default:
		return ErrUnknown
	}
}

// AcquisitionError is the only error kind SetSource surfaces.
type AcquisitionError struct {
	Class ErrorClass
	Kind  Kind
	Err   error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Class.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Class, e.Err)
}

func (e *AcquisitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class.sentinel()}
	}
	return []error{e.Class.sentinel(), e.Err}
}

// UserMessage is the text shown to the user for this failure.
func (e *AcquisitionError) UserMessage() string {
	switch e.Class {
	case PermissionDenied:
		return "Access denied. Please check your audio permissions."
	case DeviceNotFound:
		return "No audio input device found."
	case NoAudioTrack:
		return "No audio detected. Is anything playing on the captured output?"
	}
	if e.Kind == File {
		return "Failed to play file."
	}
	return "Failed to access audio source."
}

var (
	permissionHints = []string{"permission denied", "not permitted", "not allowed", "access denied"}
	deviceHints     = []string{"no such device", "no such file", "device unavailable", "connection refused", "no default input", "invalid device", "device not found"}
)

// Classify maps a raw acquisition failure to an *AcquisitionError.
// An error that is already classified is returned unchanged.
func Classify(kind Kind, err error) *AcquisitionError {
	if err == nil {
		return nil
	}

	var acq *AcquisitionError
	if errors.As(err, &acq) {
		return acq
	}

	class := Unknown
	switch {
	case errors.Is(err, ErrNoAudioTrack):
		class = NoAudioTrack
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, os.ErrPermission):
		class = PermissionDenied
	case errors.Is(err, ErrDeviceNotFound), isPortAudioDeviceError(err):
		class = DeviceNotFound
	default:
		msg := strings.ToLower(err.Error())
		if containsAny(msg, permissionHints) {
			class = PermissionDenied
		} else if kind != File && containsAny(msg, deviceHints) {
			class = DeviceNotFound
		}
	}
	return &AcquisitionError{Class: class, Kind: kind, Err: err}
}

func isPortAudioDeviceError(err error) bool {
	var paErr portaudio.Error
	if !errors.As(err, &paErr) {
		return false
	}
	switch paErr {
	case portaudio.InvalidDevice, portaudio.DeviceUnavailable, portaudio.NoDefaultInputDevice, portaudio.NoDefaultOutputDevice:
		return true
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// lastErrorLine returns the last non-empty line of FFmpeg stderr output,
// which is where FFmpeg reports the fatal condition.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
