// ABOUTME: Encoder interface definition
// ABOUTME: Common frame-based contract for all file encoders
package encode

import (
	"errors"
	"time"
)

// FrameDuration is the amount of audio handed to an encoder per call
const FrameDuration = 60 * time.Millisecond

var (
	// ErrClosed is returned when a closed encoder is used
	ErrClosed = errors.New("encode: encoder closed")

	// ErrFrameTooLarge is returned for frames longer than FrameBytes
	ErrFrameTooLarge = errors.New("encode: frame exceeds frame size")
)

// Encoder writes PCM frames to a file
type Encoder interface {
	// FrameBytes returns the PCM size of one frame
	FrameBytes() int

	// EncodeFrame encodes one frame of 16-bit interleaved PCM
	EncodeFrame(frame []byte) error

	// Close flushes and finalizes the file
	Close() error
}
