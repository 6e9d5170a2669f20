package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// State is the lifecycle state of a processing Context.
type State int

const (
	Uninitialized State = iota
	Running
	Suspended
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SinkFactory creates the audible destination of a Context.
type SinkFactory func() (Sink, error)

// Context owns the audible destination and its lifecycle. Writes made while
// the context is not running are discarded.
type Context struct {
	sampleRate int
	newSink    SinkFactory

	mu    sync.RWMutex
	state State
	sink  Sink
}

// NewContext returns an uninitialized context. Nothing is opened until Init.
func NewContext(sampleRate int, newSink SinkFactory) *Context {
	return &Context{
		sampleRate: sampleRate,
		newSink:    newSink,
	}
}

func (c *Context) SampleRate() int { return c.sampleRate }

func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Init creates the destination and starts it. It is a no-op when the context
// is already live, and recreates the context after Close.
func (c *Context) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked()
}

func (c *Context) initLocked() error {
	if c.state == Running || c.state == Suspended {
		return nil
	}
	sink, err := c.newSink()
	if err != nil {
		return fmt.Errorf("failed to create audio destination: %w", err)
	}
	if err := sink.Start(); err != nil {
		sink.Close()
		return fmt.Errorf("failed to start audio destination: %w", err)
	}
	c.sink = sink
	c.state = Running
	slog.Debug("audio context running", "sample_rate", c.sampleRate)
	return nil
}

// Resume brings the context to Running, initializing it if needed.
func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Running:
		return nil
	case Suspended:
		if err := c.sink.Start(); err != nil {
			return fmt.Errorf("failed to resume audio destination: %w", err)
		}
		c.state = Running
		return nil
	default:
		return c.initLocked()
	}
}

// Suspend pauses the destination. It is a no-op unless the context is running.
func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Running {
		return nil
	}
	c.state = Suspended
	if err := c.sink.Stop(); err != nil {
		return fmt.Errorf("failed to suspend audio destination: %w", err)
	}
	return nil
}

// Close releases the destination. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Running && c.state != Suspended {
		c.state = Closed
		return nil
	}
	c.state = Closed
	sink := c.sink
	c.sink = nil
	return sink.Close()
}

// Write forwards samples to the destination while the context is running.
func (c *Context) Write(samples []float32) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Running {
		return nil
	}
	return c.sink.Write(samples)
}
