package audio

import (
	"fmt"
	"io"
)

// Kind selects where the engine acquires its signal from.
type Kind int

const (
	Microphone Kind = iota
	TabOrSystemCapture
	File
)

func (k Kind) String() string {
	switch k {
	case Microphone:
		return "microphone"
	case TabOrSystemCapture:
		return "capture"
	case File:
		return "file"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps the names used on the command line and over the wire to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "microphone", "mic":
		return Microphone, nil
	case "capture", "tab", "system":
		return TabOrSystemCapture, nil
	case "file":
		return File, nil
	}
	return 0, fmt.Errorf("unknown source %q (want microphone, capture or file)", s)
}

// DefaultMonitor reports whether loopback is on by default for a source.
// Files are meant to be heard; live inputs would feed back.
func (k Kind) DefaultMonitor() bool {
	return k == File
}

// FileSource is a user-supplied audio file. *os.File satisfies it.
type FileSource interface {
	io.ReadSeeker
	Name() string
}

// Request describes one acquisition. File is set only for the File kind.
type Request struct {
	Kind Kind
	File FileSource
}
