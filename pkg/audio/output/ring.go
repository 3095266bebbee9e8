// ABOUTME: Byte ring buffer between writers and the audio callback
// ABOUTME: Blocks writers when full and tracks how many bytes were consumed
package output

import (
	"io"
	"sync"
)

// RingBuffer provides a thread-safe circular buffer for PCM bytes. Writers
// block while it is full; readers either zero-fill (device callbacks) or
// block for data (pull-based players).
type RingBuffer struct {
	buffer   []byte
	readPos  int
	writePos int
	size     int
	count    int   // bytes currently in buffer
	consumed int64 // bytes read since creation
	closed   bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewRingBuffer creates a ring buffer with the given capacity in bytes
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	rb := &RingBuffer{
		buffer: make([]byte, capacity),
		size:   capacity,
	}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Write copies all of p into the buffer, waiting for space as needed. It
// returns early with io.ErrClosedPipe if the buffer is closed.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for written < len(p) {
		for rb.count == rb.size && !rb.closed {
			rb.cond.Wait()
		}
		if rb.closed {
			return written, io.ErrClosedPipe
		}

		n := rb.copyIn(p[written:])
		written += n
		rb.cond.Broadcast()
	}
	return written, nil
}

// copyIn must hold rb.mu
func (rb *RingBuffer) copyIn(p []byte) int {
	free := rb.size - rb.count
	if len(p) > free {
		p = p[:free]
	}
	n := 0
	for n < len(p) {
		end := rb.writePos + len(p) - n
		if end > rb.size {
			end = rb.size
		}
		c := copy(rb.buffer[rb.writePos:end], p[n:])
		rb.writePos = (rb.writePos + c) % rb.size
		n += c
	}
	rb.count += n
	return n
}

// copyOut must hold rb.mu
func (rb *RingBuffer) copyOut(p []byte) int {
	if len(p) > rb.count {
		p = p[:rb.count]
	}
	n := 0
	for n < len(p) {
		end := rb.readPos + len(p) - n
		if end > rb.size {
			end = rb.size
		}
		c := copy(p[n:], rb.buffer[rb.readPos:end])
		rb.readPos = (rb.readPos + c) % rb.size
		n += c
	}
	rb.count -= n
	rb.consumed += int64(n)
	return n
}

// ReadAvailable copies whatever is buffered into p without blocking and
// zero-fills the rest (underrun plays silence). It returns the real byte count.
func (rb *RingBuffer) ReadAvailable(p []byte) int {
	rb.mu.Lock()
	n := rb.copyOut(p)
	if n > 0 {
		rb.cond.Broadcast()
	}
	rb.mu.Unlock()

	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return n
}

// Read blocks until some data is buffered, then copies it into p. It returns
// io.EOF once the buffer is closed and empty.
func (rb *RingBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.count == 0 && !rb.closed {
		rb.cond.Wait()
	}
	if rb.count == 0 {
		return 0, io.EOF
	}
	n := rb.copyOut(p)
	rb.cond.Broadcast()
	return n, nil
}

// Close wakes every waiter. Buffered bytes are discarded.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.consumed += int64(rb.count)
	rb.count = 0
	rb.readPos = rb.writePos
	rb.cond.Broadcast()
}

// Reopen clears the closed state so the buffer accepts writes again
func (rb *RingBuffer) Reopen() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = false
}

// Available returns the number of bytes ready to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of bytes that can be written without blocking
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

// Consumed returns the total number of bytes read or discarded
func (rb *RingBuffer) Consumed() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.consumed
}
