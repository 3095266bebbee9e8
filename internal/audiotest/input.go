// ABOUTME: In-memory capture device for engine tests
// ABOUTME: Produces a finite amount of PCM, then blocks until stopped
package audiotest

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/input"
)

// Input is a fake input.Device. It serves Total bytes (zero unless Fill is
// set), then blocks in Read until Stop, like a real microphone.
type Input struct {
	// Total is the number of bytes to produce
	Total int
	// Fill returns the byte at a stream offset; nil produces silence
	Fill func(offset int) byte
	// ReadDelay is slept inside each Read that returns data
	ReadDelay time.Duration
	// StartErr is returned by Start
	StartErr error

	mu         sync.Mutex
	cond       *sync.Cond
	format     audio.Format
	bufferSize int
	offset     int
	running    bool
	stopped    bool
	released   bool
	starts     int
	releases   int
}

// NewInput creates a fake device producing total bytes
func NewInput(total int) *Input {
	in := &Input{Total: total}
	in.cond = sync.NewCond(&in.mu)
	return in
}

// Opener returns an opener that hands out this device and records its arguments
func (in *Input) Opener() input.Opener {
	return func(format audio.Format, bufferSize int) (input.Device, error) {
		in.mu.Lock()
		in.format = format
		in.bufferSize = bufferSize
		in.mu.Unlock()
		return in, nil
	}
}

// FailingInputOpener returns an opener that always fails with err
func FailingInputOpener(err error) input.Opener {
	return func(audio.Format, int) (input.Device, error) {
		return nil, err
	}
}

// Start begins capture
func (in *Input) Start() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.StartErr != nil {
		return in.StartErr
	}
	in.starts++
	in.running = true
	in.stopped = false
	return nil
}

// Stop releases a blocked Read
func (in *Input) Stop() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.running = false
	in.stopped = true
	in.cond.Broadcast()
	return nil
}

// Release stops the device
func (in *Input) Release() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.running = false
	in.stopped = true
	in.released = true
	in.releases++
	in.cond.Broadcast()
	return nil
}

// Read fills p from the remaining stream. Once the stream is exhausted it
// blocks until Stop and then returns 0.
func (in *Input) Read(p []byte) (int, error) {
	in.mu.Lock()
	delay := in.ReadDelay
	in.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.released {
		return 0, input.ErrReleased
	}
	for in.offset >= in.Total && !in.stopped {
		in.cond.Wait()
	}
	if in.stopped || in.offset >= in.Total {
		return 0, nil
	}

	n := len(p)
	if remaining := in.Total - in.offset; n > remaining {
		n = remaining
	}
	for i := 0; i < n; i++ {
		if in.Fill != nil {
			p[i] = in.Fill(in.offset + i)
		} else {
			p[i] = 0
		}
	}
	in.offset += n
	return n, nil
}

// Produced returns the number of bytes handed out so far
func (in *Input) Produced() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.offset
}

// Exhausted reports whether every byte has been read
func (in *Input) Exhausted() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.offset >= in.Total
}

// BufferSize returns the buffer size passed to the opener
func (in *Input) BufferSize() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.bufferSize
}

// Released reports whether Release was called
func (in *Input) Released() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.released
}

// Releases returns how many times Release was called
func (in *Input) Releases() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.releases
}
