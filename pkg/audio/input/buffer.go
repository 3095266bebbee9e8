// ABOUTME: Capture buffer between the device callback and blocking readers
// ABOUTME: Wraps smallnest/ringbuffer with a condition variable for full reads
package input

import (
	"errors"
	"log"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// captureBuffer accepts callback data without blocking and lets one reader
// wait for a full request
type captureBuffer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	rb      *ringbuffer.RingBuffer
	stopped bool
	dropped int64
}

func newCaptureBuffer(capacity int) *captureBuffer {
	b := &captureBuffer{rb: ringbuffer.New(capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// push stores callback data. Bytes that do not fit are dropped and counted;
// the callback must never block.
func (b *captureBuffer) push(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped || len(data) == 0 {
		return
	}

	// A full ring reports an error along with the short count
	n, err := b.rb.Write(data)
	if n < len(data) {
		b.dropped += int64(len(data) - n)
	} else if err != nil {
		log.Printf("input: unexpected ring buffer error: %v", err)
	}
	b.cond.Broadcast()
}

// read waits until len(p) bytes are buffered or the buffer is stopped
func (b *captureBuffer) read(p []byte) int {
	if len(p) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.rb.Length() < len(p) && !b.stopped {
		b.cond.Wait()
	}
	if b.rb.IsEmpty() {
		return 0
	}
	n, err := b.rb.Read(p)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		log.Printf("input: unexpected ring buffer error: %v", err)
	}
	return n
}

// stop wakes the reader; buffered bytes remain readable
func (b *captureBuffer) stop() {
	b.mu.Lock()
	b.stopped = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// restart clears buffered data and accepts pushes again
func (b *captureBuffer) restart() {
	b.mu.Lock()
	b.rb.Reset()
	b.stopped = false
	b.mu.Unlock()
}

// overruns returns the number of bytes dropped because the reader fell behind
func (b *captureBuffer) overruns() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
