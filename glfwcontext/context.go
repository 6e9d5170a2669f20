package glfwcontext

import (
	"log/slog"
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/richinsley/goreactive/graphics"
	"github.com/richinsley/goreactive/options"
)

var glfwKeys = map[graphics.Key]glfw.Key{
	graphics.Key1:      glfw.Key1,
	graphics.Key2:      glfw.Key2,
	graphics.Key3:      glfw.Key3,
	graphics.KeyM:      glfw.KeyM,
	graphics.KeyEscape: glfw.KeyEscape,
}

// Context is a visible GLFW window with a core 4.1 context.
type Context struct {
	window *glfw.Window
	// A map to store functions to be called on key presses.
	keyCallbacks map[glfw.Key]func()
}

// New creates the window. InitGraphics must have been called on this thread.
func New(opts *options.EngineOptions) (*Context, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(opts.Render.Width, opts.Render.Height, "goreactive", nil, nil)
	if err != nil {
		return nil, err
	}

	c := &Context{
		window:       win,
		keyCallbacks: make(map[glfw.Key]func()),
	}
	win.SetKeyCallback(c.glfwKeyCallback)
	return c, nil
}

// RegisterKeyCallback runs f whenever key is pressed.
func (c *Context) RegisterKeyCallback(key graphics.Key, f func()) {
	if k, ok := glfwKeys[key]; ok {
		c.keyCallbacks[k] = f
	}
}

func (c *Context) glfwKeyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	if key == glfw.KeyEscape {
		w.SetShouldClose(true)
	}
	if callback, ok := c.keyCallbacks[key]; ok {
		callback()
	}
}

// MakeCurrent makes the context current for the calling goroutine.
func (c *Context) MakeCurrent() {
	c.window.MakeContextCurrent()
}

func (c *Context) Shutdown() {
	c.window.Destroy()
}

func (c *Context) ShouldClose() bool {
	return c.window.ShouldClose()
}

// RequestClose makes ShouldClose report true.
func (c *Context) RequestClose() {
	c.window.SetShouldClose(true)
}

func (c *Context) EndFrame() {
	c.window.SwapBuffers()
	glfw.PollEvents()
}

func (c *Context) GetFramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

func (c *Context) Time() float64 {
	return glfw.GetTime()
}

// InitGraphics initializes GLFW. Must be called from the main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	slog.Debug("GLFW initialized")
	return nil
}

// TerminateGraphics shuts GLFW down. Must be called from the main thread.
func TerminateGraphics() {
	glfw.Terminate()
	slog.Debug("GLFW terminated")
}
