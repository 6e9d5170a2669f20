// Package engine owns the signal graph: it acquires sources, wires them into
// the analysis tap and the monitor gain, and guarantees teardown.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/richinsley/goreactive/analysis"
	"github.com/richinsley/goreactive/audio"
	"github.com/richinsley/goreactive/options"
)

// ErrInvalidRequest is returned by SetSource for a request that breaks its
// preconditions. No side effect happens in that case.
var ErrInvalidRequest = errors.New("engine: invalid source request")

// Acquirer opens acquisition handles. *audio.Platform is the production one.
type Acquirer interface {
	Open(ctx context.Context, req audio.Request) (audio.Device, error)
}

// Manager serializes source changes and publishes the active graph to the
// read path. Its zero value is not usable; use New.
type Manager struct {
	opts     *options.EngineOptions
	acquirer Acquirer
	audioCtx *audio.Context

	// mu serializes SetSource, Stop and Close.
	mu      sync.Mutex
	current *graph

	// active is what the read path sees; it is only set once a graph is fully wired.
	active atomic.Pointer[graph]
}

// New creates a manager over the given acquirer and processing context.
func New(opts *options.EngineOptions, acquirer Acquirer, audioCtx *audio.Context) *Manager {
	return &Manager{
		opts:     opts,
		acquirer: acquirer,
		audioCtx: audioCtx,
	}
}

// NewDefault creates a manager on the host platform with the configured
// audible destination.
func NewDefault(opts *options.EngineOptions) *Manager {
	audioCtx := audio.NewContext(opts.SampleRate, func() (audio.Sink, error) {
		return audio.NewDestination(opts)
	})
	return New(opts, audio.NewPlatform(opts), audioCtx)
}

// SetSource replaces the active source. The previous graph is fully released
// before the new one is acquired; on failure no source is active and the
// returned error is an *audio.AcquisitionError. ctx bounds the acquisition.
func (m *Manager) SetSource(ctx context.Context, kind audio.Kind, file audio.FileSource, monitor bool) error {
	if err := validateRequest(kind, file); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.audioCtx.Resume(); err != nil {
		m.teardownLocked()
		return m.fail(kind, fmt.Errorf("resume audio context: %w", err))
	}

	m.teardownLocked()

	tap := analysis.NewTap(analysis.TapConfigFromOptions(m.opts))
	initial := float32(0)
	if monitor {
		initial = 1
	}
	gain := audio.NewGain(initial, m.opts.Monitor.RampTimeConstant, m.opts.SampleRate)

	device, err := m.acquirer.Open(ctx, audio.Request{Kind: kind, File: file})
	if err != nil {
		return m.fail(kind, err)
	}

	samples, err := device.Start()
	if err != nil {
		device.Stop()
		return m.fail(kind, err)
	}

	g := newGraph(kind, device, tap, gain)
	g.wire(samples, m.audioCtx)

	m.current = g
	m.active.Store(g)

	slog.Info("audio source active", "graph", g.id, "kind", kind, "monitor", monitor)
	return nil
}

func validateRequest(kind audio.Kind, file audio.FileSource) error {
	switch kind {
	case audio.File:
		if file == nil {
			return fmt.Errorf("%w: file source without a file", ErrInvalidRequest)
		}
	case audio.Microphone, audio.TabOrSystemCapture:
		if file != nil {
			return fmt.Errorf("%w: %s source with a file", ErrInvalidRequest, kind)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %v", ErrInvalidRequest, kind)
	}
	return nil
}

func (m *Manager) fail(kind audio.Kind, err error) error {
	acqErr := audio.Classify(kind, err)
	if acqErr.Class == audio.PermissionDenied {
		slog.Warn("audio source permission denied", "kind", kind, "error", err)
	} else {
		slog.Error("failed to acquire audio source", "kind", kind, "class", acqErr.Class, "error", err)
	}
	return acqErr
}

// teardownLocked unpublishes and releases the current graph. m.mu must be held.
func (m *Manager) teardownLocked() {
	g := m.current
	if g == nil {
		return
	}
	m.active.Store(nil)
	m.current = nil
	g.teardown()
}

// SetMonitor ramps the monitor gain to 1 or 0. It does nothing without an
// active graph and never waits for a source change in progress.
func (m *Manager) SetMonitor(enabled bool) {
	g := m.active.Load()
	if g == nil {
		return
	}
	target := float32(0)
	if enabled {
		target = 1
	}
	g.gain.SetTarget(target)
}

// Stop releases the active graph and suspends the processing context.
// It is safe to call when nothing is active.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
	if err := m.audioCtx.Suspend(); err != nil {
		return err
	}
	slog.Info("audio stopped")
	return nil
}

// Close stops the engine and closes the processing context.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
	return m.audioCtx.Close()
}

// ActiveTap returns the tap of the published graph, or nil.
func (m *Manager) ActiveTap() *analysis.Tap {
	if g := m.active.Load(); g != nil {
		return g.tap
	}
	return nil
}

// Status is a point-in-time view of the engine for UIs.
type Status struct {
	Active       bool        `json:"active" msgpack:"active"`
	Kind         string      `json:"kind,omitempty" msgpack:"kind,omitempty"`
	Monitor      bool        `json:"monitor" msgpack:"monitor"`
	GraphID      uuid.UUID   `json:"graph_id" msgpack:"graph_id"`
	ContextState audio.State `json:"-" msgpack:"-"`
	Context      string      `json:"context" msgpack:"context"`
}

// Status reports the active source without waiting for the control path.
func (m *Manager) Status() Status {
	st := Status{ContextState: m.audioCtx.State()}
	st.Context = st.ContextState.String()
	if g := m.active.Load(); g != nil {
		st.Active = true
		st.Kind = g.kind.String()
		st.Monitor = g.gain.Target() > 0
		st.GraphID = g.id
	}
	return st
}
