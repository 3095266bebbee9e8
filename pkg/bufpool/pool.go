// ABOUTME: Bounded pool of fixed-capacity audio buffers
// ABOUTME: Rotates buffers between free and in-flight lists under one lock
package bufpool

import (
	"errors"
	"sync"
)

var (
	// ErrNotInTransit is returned when a buffer is handed back while it still
	// sits on one of the pool lists
	ErrNotInTransit = errors.New("bufpool: buffer is not in transit")

	// ErrForeign is returned for buffers that belong to another pool
	ErrForeign = errors.New("bufpool: buffer belongs to another pool")
)

type owner uint8

const (
	ownerFree owner = iota
	ownerInFlight
	ownerTransit
)

func (o owner) String() string {
	switch o {
	case ownerFree:
		return "free"
	case ownerInFlight:
		return "in-flight"
	case ownerTransit:
		return "in-transit"
	default:
		return "unknown"
	}
}

// Buffer is a fixed-capacity byte region plus stream metadata
type Buffer struct {
	data []byte

	// Size is the number of valid bytes in the buffer
	Size int
	// Offset is the stream position of the first sample, in samples per channel
	Offset int64
	// Final marks the last buffer of a stream (or a flush boundary on capture)
	Final bool

	id    int
	pool  *Pool
	owner owner // guarded by pool.mu
}

// Data returns the full-capacity backing slice for producers to fill
func (b *Buffer) Data() []byte {
	return b.data
}

// Bytes returns the valid portion of the buffer
func (b *Buffer) Bytes() []byte {
	return b.data[:b.Size]
}

// Cap returns the fixed capacity of the buffer
func (b *Buffer) Cap() int {
	return len(b.data)
}

// ID identifies the buffer within its pool
func (b *Buffer) ID() int {
	return b.id
}

func (b *Buffer) reset() {
	b.Size = 0
	b.Offset = 0
	b.Final = false
}

// Stats is a snapshot of pool occupancy
type Stats struct {
	Free      int
	InFlight  int
	InTransit int
	Total     int
}

// Pool holds every buffer in exactly one place: the free list, the in-flight
// list, or the hands of a single caller (in transit)
type Pool struct {
	mu       sync.Mutex
	free     []*Buffer
	inFlight []*Buffer
	total    int
	capacity int
	growable bool
}

// New creates a pool of count buffers of the given capacity
func New(count, capacity int) *Pool {
	p := &Pool{capacity: capacity}
	for i := 0; i < count; i++ {
		p.free = append(p.free, p.allocate())
	}
	return p
}

// NewGrowable creates a pool that allocates a new buffer whenever
// AcquireOrGrow finds the free list empty
func NewGrowable(initial, capacity int) *Pool {
	p := New(initial, capacity)
	p.growable = true
	return p
}

// allocate must hold p.mu (or be called before the pool is shared)
func (p *Pool) allocate() *Buffer {
	b := &Buffer{
		data:  make([]byte, p.capacity),
		id:    p.total,
		pool:  p,
		owner: ownerFree,
	}
	p.total++
	return b
}

// BufferCapacity returns the capacity of every buffer in the pool
func (p *Pool) BufferCapacity() int {
	return p.capacity
}

// AcquireFree removes the oldest free buffer. It never blocks; ok is false
// when no buffer is available.
func (p *Pool) AcquireFree() (*Buffer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return nil, false
	}

	b := p.free[0]
	p.free[0] = nil
	p.free = p.free[1:]
	b.owner = ownerTransit
	return b, true
}

// AcquireOrGrow returns a free buffer, allocating one if the pool is
// growable and the free list is empty. It returns nil only for a fixed pool
// with no free buffer.
func (p *Pool) AcquireOrGrow() *Buffer {
	if b, ok := p.AcquireFree(); ok {
		return b
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.growable {
		return nil
	}
	b := p.allocate()
	b.owner = ownerTransit
	return b
}

// Publish appends a filled buffer to the in-flight list
func (p *Pool) Publish(b *Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkTransit(b); err != nil {
		return err
	}
	b.owner = ownerInFlight
	p.inFlight = append(p.inFlight, b)
	return nil
}

// TakeInFlight removes the oldest published buffer
func (p *Pool) TakeInFlight() (*Buffer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.inFlight) == 0 {
		return nil, false
	}

	b := p.inFlight[0]
	p.inFlight[0] = nil
	p.inFlight = p.inFlight[1:]
	b.owner = ownerTransit
	return b, true
}

// Release returns an in-transit buffer to the free list and clears its metadata
func (p *Pool) Release(b *Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkTransit(b); err != nil {
		return err
	}
	b.reset()
	b.owner = ownerFree
	p.free = append(p.free, b)
	return nil
}

// Reset moves every in-flight buffer back to the free list
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, b := range p.inFlight {
		b.reset()
		b.owner = ownerFree
		p.free = append(p.free, b)
		p.inFlight[i] = nil
	}
	p.inFlight = p.inFlight[:0]
}

// InFlight returns the number of published buffers awaiting consumption
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}

// Stats returns a snapshot of the pool
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Free:      len(p.free),
		InFlight:  len(p.inFlight),
		InTransit: p.total - len(p.free) - len(p.inFlight),
		Total:     p.total,
	}
}

// checkTransit must hold p.mu
func (p *Pool) checkTransit(b *Buffer) error {
	if b == nil || b.pool != p {
		return ErrForeign
	}
	if b.owner != ownerTransit {
		return ErrNotInTransit
	}
	return nil
}
