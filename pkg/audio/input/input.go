// ABOUTME: Audio input interface definition
// ABOUTME: Common contract for capture backends
package input

import (
	"errors"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
)

// ErrReleased is returned when a released device is used
var ErrReleased = errors.New("input: device released")

// Device represents an audio capture device
type Device interface {
	// Start begins capture
	Start() error

	// Stop halts capture. A pending Read returns with what is buffered.
	Stop() error

	// Release frees the device. It implies Stop.
	Release() error

	// Read blocks until len(p) bytes of 16-bit PCM are captured or the
	// device is stopped, in which case the count is short
	Read(p []byte) (int, error)
}

// Opener opens a capture device for format with bufferSize bytes of buffering
type Opener func(format audio.Format, bufferSize int) (Device, error)
