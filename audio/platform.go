package audio

import (
	"context"
	"fmt"

	"github.com/richinsley/goreactive/options"
)

// Platform opens acquisition handles on the host machine.
type Platform struct {
	opts *options.EngineOptions
}

func NewPlatform(opts *options.EngineOptions) *Platform {
	return &Platform{opts: opts}
}

// Open returns an unstarted Device for the request. Capture inputs are
// probed here so a source without audio is rejected before anything runs.
func (p *Platform) Open(ctx context.Context, req Request) (Device, error) {
	switch req.Kind {
	case Microphone:
		return NewMicrophone(p.opts.SampleRate, p.opts.FramesPerBuffer, p.opts.InputDevice), nil
	case TabOrSystemCapture:
		c := NewCapture(p.opts)
		if err := c.Probe(ctx); err != nil {
			return nil, err
		}
		return c, nil
	case File:
		if req.File == nil {
			return nil, fmt.Errorf("file source requires a file")
		}
		return NewFileInput(req.File, p.opts), nil
	default:
		return nil, fmt.Errorf("unsupported source kind %v", req.Kind)
	}
}
