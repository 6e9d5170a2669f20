// Command goreactive drives audio-reactive visuals from a microphone, system
// audio capture or an audio file.
//
// Usage:
//
//	goreactive [flags] <command>
//
// Commands:
//
//	window   - render the built-in shader in a GLFW window
//	meter    - draw feature bars in the terminal
//	serve    - stream features to websocket clients
//	devices  - list audio devices
package main

import (
	"fmt"
	"os"
	"runtime"
)

func init() {
	// GLFW must run on the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
