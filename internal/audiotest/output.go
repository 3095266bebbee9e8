// ABOUTME: In-memory output device for engine tests
// ABOUTME: Counts written bytes and fires drain notifications asynchronously
package audiotest

import (
	"errors"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/output"
)

// Output is a fake output.Device
type Output struct {
	// WriteLimit caps the bytes accepted per Write call, forcing short writes
	WriteLimit int
	// WriteDelay is slept inside every Write
	WriteDelay time.Duration
	// DrainDelay is how long after NotifyDrained the callback fires
	DrainDelay time.Duration
	// StartErr is returned by Start
	StartErr error

	mu         sync.Mutex
	format     audio.Format
	data       []byte
	playing    bool
	released   bool
	starts     int
	stops      int
	releases   int
	writes     int
	drainCalls int
	wake       chan struct{}
}

// NewOutput creates a fake output device
func NewOutput() *Output {
	return &Output{wake: make(chan struct{})}
}

// Opener returns an opener that hands out this device and records the format
func (o *Output) Opener() output.Opener {
	return func(format audio.Format, bufferSize int) (output.Device, error) {
		o.mu.Lock()
		o.format = format
		o.mu.Unlock()
		return o, nil
	}
}

// FailingOpener returns an opener that always fails with err
func FailingOpener(err error) output.Opener {
	return func(audio.Format, int) (output.Device, error) {
		return nil, err
	}
}

// Start begins accepting writes
func (o *Output) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.StartErr != nil {
		return o.StartErr
	}
	if o.released {
		return output.ErrReleased
	}
	o.starts++
	o.playing = true
	return nil
}

// Stop rejects further writes and wakes a delayed Write
func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
	return nil
}

func (o *Output) stopLocked() {
	if !o.playing {
		return
	}
	o.playing = false
	o.stops++
	close(o.wake)
	o.wake = make(chan struct{})
}

// Release stops the device
func (o *Output) Release() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
	o.released = true
	o.releases++
	return nil
}

// Write records p, honouring WriteLimit and WriteDelay
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	wake := o.wake
	delay := o.WriteDelay
	o.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-wake:
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.playing {
		return 0, output.ErrStopped
	}
	n := len(p)
	if o.WriteLimit > 0 && n > o.WriteLimit {
		n = o.WriteLimit
	}
	o.data = append(o.data, p[:n]...)
	o.writes++
	return n, nil
}

// Playing reports whether the device is started
func (o *Output) Playing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing
}

// NotifyDrained calls fn from another goroutine after DrainDelay
func (o *Output) NotifyDrained(fn func()) {
	o.mu.Lock()
	o.drainCalls++
	delay := o.DrainDelay
	o.mu.Unlock()

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		fn()
	}()
}

// Format returns the format passed to the opener
func (o *Output) Format() audio.Format {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.format
}

// Data returns a copy of everything written
func (o *Output) Data() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]byte(nil), o.data...)
}

// BytesWritten returns the number of bytes accepted
func (o *Output) BytesWritten() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.data)
}

// OutputCounts is a snapshot of call counters
type OutputCounts struct {
	Starts, Stops, Releases, Writes, DrainCalls int
}

// Counts returns the call counters
func (o *Output) Counts() OutputCounts {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OutputCounts{
		Starts:     o.starts,
		Stops:      o.stops,
		Releases:   o.releases,
		Writes:     o.writes,
		DrainCalls: o.drainCalls,
	}
}

// Released reports whether Release was called
func (o *Output) Released() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.released
}

// ErrInjected is a generic failure for tests
var ErrInjected = errors.New("audiotest: injected failure")
