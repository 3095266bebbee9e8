// ABOUTME: Audio output interface definition
// ABOUTME: Common contract for playback backends
package output

import (
	"errors"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
)

var (
	// ErrStopped is returned by Write when the device is not started
	ErrStopped = errors.New("output: device stopped")

	// ErrReleased is returned when a released device is used
	ErrReleased = errors.New("output: device released")
)

// Device represents an audio output device
type Device interface {
	// Start begins playback
	Start() error

	// Stop halts playback and unblocks pending writes
	Stop() error

	// Release frees the device. It implies Stop.
	Release() error

	// Write queues PCM for playback, blocking until buffer space is available.
	// It may accept fewer bytes than len(p); callers retry the remainder.
	Write(p []byte) (int, error)

	// Playing reports whether the device is started
	Playing() bool

	// NotifyDrained calls fn on another goroutine once every byte written
	// before the call has been played
	NotifyDrained(fn func())
}

// Opener opens a device for format with roughly bufferSize bytes of buffering
type Opener func(format audio.Format, bufferSize int) (Device, error)
