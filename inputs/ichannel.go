package inputs

import "github.com/richinsley/goreactive/analysis"

// Uniforms holds the per-frame values channels and passes read.
type Uniforms struct {
	Time     float32
	Features analysis.FeatureVector
}

// IChannel is a texture bound to one of the iChannel samplers.
type IChannel interface {
	// Update is called once per frame before the pass is drawn.
	Update(uniforms *Uniforms)

	GetTextureID() uint32

	// ChannelRes returns the resolution of the input channel as a vec3.
	ChannelRes() [3]float32

	Destroy()
}
