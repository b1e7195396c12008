// Package present defines the receiver-side Presentation collaborator:
// texture upload / on-screen rendering, out of scope by name but wired
// here as a narrow interface so the Render Dispatcher (receiver.Dispatcher)
// has something concrete to call.
package present

// Presentation receives decoded color+depth planes for display.
type Presentation interface {
	Submit(color, depth []byte, timestampMs float32, keyframe bool) error
}
