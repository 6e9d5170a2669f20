package analysis

import (
	"github.com/richinsley/goreactive/options"
)

// TapProvider exposes the tap of the currently published signal graph, or
// nil when no source is active.
type TapProvider interface {
	ActiveTap() *Tap
}

// FeatureVector is the per-frame reduction of the spectrum. Spectrum aliases
// the extractor's buffer and is overwritten by the next Extract.
type FeatureVector struct {
	Bass     float32 `json:"bass" msgpack:"bass"`
	Mid      float32 `json:"mid" msgpack:"mid"`
	High     float32 `json:"high" msgpack:"high"`
	Volume   float32 `json:"volume" msgpack:"volume"`
	Spectrum []byte  `json:"spectrum" msgpack:"spectrum"`
}

// Scaled multiplies the scalar features by sensitivity, clamping to 1.
func (v FeatureVector) Scaled(sensitivity float64) FeatureVector {
	s := float32(sensitivity)
	v.Bass = min(v.Bass*s, 1)
	v.Mid = min(v.Mid*s, 1)
	v.High = min(v.High*s, 1)
	v.Volume = min(v.Volume*s, 1)
	return v
}

// ExtractorConfig configures an Extractor.
type ExtractorConfig struct {
	Cutoffs     Cutoffs
	VolumeAlpha float64 // weight of the newest instant volume
	BinCount    int     // initial buffer size
}

// ExtractorConfigFromOptions builds an ExtractorConfig from the analysis options.
func ExtractorConfigFromOptions(opts *options.EngineOptions) ExtractorConfig {
	return ExtractorConfig{
		Cutoffs:     Cutoffs{Bass: opts.Analysis.BassCutoff, Mid: opts.Analysis.MidCutoff},
		VolumeAlpha: opts.Analysis.VolumeAlpha,
		BinCount:    opts.Analysis.FFTSize / 2,
	}
}

// Extractor reduces the active tap's spectrum to a FeatureVector once per
// rendered frame. It keeps smoothing state and a reusable buffer, so a single
// goroutine should own it.
type Extractor struct {
	src      TapProvider
	cutoffs  Cutoffs
	alpha    float32
	buf      []byte
	smoothed float32
	// tap is the tap buf was last filled from.
	tap *Tap
}

func NewExtractor(src TapProvider, cfg ExtractorConfig) *Extractor {
	if cfg.Cutoffs == (Cutoffs{}) {
		cfg.Cutoffs = DefaultCutoffs
	}
	return &Extractor{
		src:     src,
		cutoffs: cfg.Cutoffs,
		alpha:   float32(cfg.VolumeAlpha),
		buf:     make([]byte, 0, max(cfg.BinCount, 0)),
	}
}

// Extract returns the features of the current frame. Without an active tap
// it returns the zero vector and leaves the smoothed volume untouched.
func (e *Extractor) Extract() FeatureVector {
	tap := e.src.ActiveTap()
	if tap == nil {
		e.tap = nil
		return FeatureVector{Spectrum: e.buf[:0]}
	}

	n := tap.FrequencyBinCount()
	if cap(e.buf) < n {
		e.buf = make([]byte, n)
	}
	e.buf = e.buf[:n]
	if tap != e.tap {
		// Another graph's spectrum must not stand in for this one.
		clear(e.buf)
		e.tap = tap
	}
	// On contention the previous contents stand in for this frame.
	tap.ByteFrequencyData(e.buf)

	bands := Partition(n, e.cutoffs)
	bass := bandMean(e.buf[bands[0].Start:bands[0].End])
	mid := bandMean(e.buf[bands[1].Start:bands[1].End])
	high := bandMean(e.buf[bands[2].Start:bands[2].End])
	instant := bandMean(e.buf)

	e.smoothed += (instant - e.smoothed) * e.alpha

	return FeatureVector{
		Bass:     bass,
		Mid:      mid,
		High:     high,
		Volume:   e.smoothed,
		Spectrum: e.buf,
	}
}

// SmoothedVolume returns the current smoothed volume.
func (e *Extractor) SmoothedVolume() float32 {
	return e.smoothed
}
