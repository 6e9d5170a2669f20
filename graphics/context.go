package graphics

// Context defines the interface for an OpenGL context.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	EndFrame()
	GetFramebufferSize() (int, int)
	Time() float64
}

// Key is a keyboard key the renderer binds actions to.
type Key int

const (
	Key1 Key = iota + 1
	Key2
	Key3
	KeyM
	KeyEscape
)

// Input is a Context that reports key presses.
type Input interface {
	Context
	RegisterKeyCallback(key Key, f func())
}
