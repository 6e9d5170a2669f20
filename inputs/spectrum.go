package inputs

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"
)

// SpectrumChannel uploads the byte spectrum as a one-row R8 texture.
type SpectrumChannel struct {
	textureID uint32
	width     int
	data      []byte
}

// NewSpectrumChannel creates the texture for binCount bins. A GL context
// must be current.
func NewSpectrumChannel(binCount int) *SpectrumChannel {
	c := &SpectrumChannel{
		width: binCount,
		data:  make([]byte, binCount),
	}
	gl.GenTextures(1, &c.textureID)
	gl.BindTexture(gl.TEXTURE_2D, c.textureID)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.R8, int32(binCount), 1, 0, gl.RED, gl.UNSIGNED_BYTE, gl.Ptr(c.data))
	minFilter, magFilter := getFilterMode("linear")
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, getWrapMode("clamp"))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, getWrapMode("clamp"))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return c
}

// Update copies the frame's spectrum into the texture. A shorter spectrum,
// including the empty one of an idle engine, leaves the remaining bins at 0.
func (c *SpectrumChannel) Update(uniforms *Uniforms) {
	n := copy(c.data, uniforms.Features.Spectrum)
	clear(c.data[n:])
	gl.BindTexture(gl.TEXTURE_2D, c.textureID)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(c.width), 1, gl.RED, gl.UNSIGNED_BYTE, gl.Ptr(c.data))
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (c *SpectrumChannel) GetTextureID() uint32 { return c.textureID }

func (c *SpectrumChannel) ChannelRes() [3]float32 {
	return [3]float32{float32(c.width), 1, 1}
}

func (c *SpectrumChannel) Destroy() {
	gl.DeleteTextures(1, &c.textureID)
}
