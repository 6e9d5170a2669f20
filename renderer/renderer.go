package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/goreactive/analysis"
	"github.com/richinsley/goreactive/graphics"
	"github.com/richinsley/goreactive/inputs"
	"github.com/richinsley/goreactive/shader"
	xlate "github.com/richinsley/goreactive/translator"
	gst "github.com/richinsley/goshadertranslator"
)

var glInitOnce sync.Once

// FeatureSource produces one feature vector per frame. It is only called
// from the render loop.
type FeatureSource interface {
	Extract() analysis.FeatureVector
}

// Options configures a Renderer.
type Options struct {
	BinCount    int
	FPS         int
	Sensitivity float64
	// Image is user code defining mainImage; empty uses shader.DefaultImage.
	Image string
}

// Renderer draws one audio-reactive fragment shader to a window.
type Renderer struct {
	context  graphics.Context
	opts     Options
	quadVAO  uint32
	quadVBO  uint32
	program  uint32
	spectrum *inputs.SpectrumChannel

	resolutionLoc int32
	timeLoc       int32
	bassLoc       int32
	midLoc        int32
	highLoc       int32
	volumeLoc     int32
	channelLoc    int32
}

var quadVertices = []float32{
	-1.0, 1.0, -1.0, -1.0, 1.0, -1.0,
	-1.0, 1.0, 1.0, -1.0, 1.0, 1.0,
}

// NewRenderer makes ctx current, translates the shader and creates the GL
// resources. It must run on the thread that owns ctx.
func NewRenderer(ctx graphics.Context, opts Options) (*Renderer, error) {
	ctx.MakeCurrent()

	var initErr error
	glInitOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", initErr)
	}

	if opts.Image == "" {
		opts.Image = shader.DefaultImage
	}
	r := &Renderer{context: ctx, opts: opts}

	tr, err := xlate.GetTranslator()
	if err != nil {
		return nil, err
	}
	fsShader, err := tr.TranslateShader(shader.GetFragmentShader(opts.Image), "fragment", gst.ShaderSpecWebGL2, gst.OutputFormatGLSL330)
	if err != nil {
		return nil, fmt.Errorf("fragment shader translation failed: %w", err)
	}
	r.program, err = newProgram(shader.GenerateVertexShader(), fsShader.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}

	locate := func(name string) int32 {
		if v, ok := fsShader.Variables[name]; ok {
			return gl.GetUniformLocation(r.program, gl.Str(v.MappedName+"\x00"))
		}
		return -1
	}
	r.resolutionLoc = locate("iResolution")
	r.timeLoc = locate("iTime")
	r.bassLoc = locate("iBass")
	r.midLoc = locate("iMid")
	r.highLoc = locate("iHigh")
	r.volumeLoc = locate("iVolume")
	r.channelLoc = locate("iChannel0")

	gl.GenVertexArrays(1, &r.quadVAO)
	gl.GenBuffers(1, &r.quadVBO)
	gl.BindVertexArray(r.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	r.spectrum = inputs.NewSpectrumChannel(opts.BinCount)
	return r, nil
}

// Shutdown releases the GL resources. The context itself is shut down by its owner.
func (r *Renderer) Shutdown() {
	r.spectrum.Destroy()
	gl.DeleteProgram(r.program)
	gl.DeleteBuffers(1, &r.quadVBO)
	gl.DeleteVertexArrays(1, &r.quadVAO)
}

// RenderFrame draws one frame into the default framebuffer.
func (r *Renderer) RenderFrame(uniforms *inputs.Uniforms) {
	width, height := r.context.GetFramebufferSize()

	r.spectrum.Update(uniforms)

	gl.Viewport(0, 0, int32(width), int32(height))
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.UseProgram(r.program)

	if r.resolutionLoc != -1 {
		gl.Uniform3f(r.resolutionLoc, float32(width), float32(height), 0)
	}
	setFloat(r.timeLoc, uniforms.Time)
	setFloat(r.bassLoc, uniforms.Features.Bass)
	setFloat(r.midLoc, uniforms.Features.Mid)
	setFloat(r.highLoc, uniforms.Features.High)
	setFloat(r.volumeLoc, uniforms.Features.Volume)

	if r.channelLoc != -1 {
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, r.spectrum.GetTextureID())
		gl.Uniform1i(r.channelLoc, 0)
	}

	gl.BindVertexArray(r.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func setFloat(loc int32, v float32) {
	if loc != -1 {
		gl.Uniform1f(loc, v)
	}
}

// Run extracts features once per frame and draws until the window closes
// or ctx is cancelled.
func (r *Renderer) Run(ctx context.Context, features FeatureSource) {
	ticker := time.NewTicker(time.Second / time.Duration(max(r.opts.FPS, 1)))
	defer ticker.Stop()

	startTime := r.context.Time()
	var frames int
	uniforms := &inputs.Uniforms{}
	for !r.context.ShouldClose() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		uniforms.Time = float32(r.context.Time() - startTime)
		uniforms.Features = features.Extract().Scaled(r.opts.Sensitivity)
		r.RenderFrame(uniforms)
		r.context.EndFrame()
		frames++
	}
	slog.Debug("render loop finished", "frames", frames)
}

func newProgram(vertexShaderSource, fragmentShaderSource string) (uint32, error) {
	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		return 0, fmt.Errorf("failed to link program: %v", log)
	}

	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	return program, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		return 0, fmt.Errorf("failed to compile shader: %v", logText)
	}
	return shader, nil
}
