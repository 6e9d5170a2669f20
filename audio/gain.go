package audio

import (
	"math"
	"sync/atomic"
	"time"
)

// snapEpsilon is the distance at which the ramp lands exactly on its target.
const snapEpsilon = 1e-4

// Gain is the monitor stage between acquisition and the destination.
// SetTarget may be called from any goroutine; Process runs on the single
// monitor goroutine and moves the value towards the target exponentially,
// one step per sample, so target changes never click.
type Gain struct {
	target atomic.Uint32 // float32 bits
	value  atomic.Uint32 // float32 bits
	coeff  float32
}

// NewGain creates a gain at initial with the given ramp time constant.
// A zero time constant makes target changes take effect immediately.
func NewGain(initial float32, timeConstant time.Duration, sampleRate int) *Gain {
	g := &Gain{coeff: 1}
	if timeConstant > 0 && sampleRate > 0 {
		g.coeff = float32(1 - math.Exp(-1/(timeConstant.Seconds()*float64(sampleRate))))
	}
	initial = clamp01(initial)
	g.target.Store(math.Float32bits(initial))
	g.value.Store(math.Float32bits(initial))
	return g
}

// SetTarget sets the level the gain ramps towards, clamped to [0, 1].
func (g *Gain) SetTarget(target float32) {
	g.target.Store(math.Float32bits(clamp01(target)))
}

// Target returns the level the gain is ramping towards.
func (g *Gain) Target() float32 {
	return math.Float32frombits(g.target.Load())
}

// Value returns the current gain.
func (g *Gain) Value() float32 {
	return math.Float32frombits(g.value.Load())
}

// Process applies the gain to buf in place.
func (g *Gain) Process(buf []float32) {
	target := g.Target()
	v := g.Value()
	if v == target {
		if v == 1 {
			return
		}
		for i := range buf {
			buf[i] *= v
		}
		return
	}
	for i := range buf {
		v += (target - v) * g.coeff
		if d := target - v; d < snapEpsilon && d > -snapEpsilon {
			v = target
		}
		buf[i] *= v
	}
	g.value.Store(math.Float32bits(v))
}

func clamp01(v float32) float32 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}
