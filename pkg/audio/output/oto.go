// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams PCM to an oto player reading from a blocking byte ring
package output

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

const otoPollInterval = 5 * time.Millisecond

// ErrFormatMismatch is returned when oto is asked for a second format.
// oto only allows one context per process.
var ErrFormatMismatch = errors.New("output: oto context already open with another format")

var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// sharedContext returns the process-wide oto context, creating it on first use
func sharedContext(format audio.Format, bufferSize int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat.SampleRate != format.SampleRate || otoFormat.Channels != format.Channels {
			return nil, fmt.Errorf("%w: have %s, want %s", ErrFormatMismatch, otoFormat, format)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   format.Duration(bufferSize),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoFormat = format
	return ctx, nil
}

// Oto output implementation using oto library
type Oto struct {
	format audio.Format
	ctx    *oto.Context
	player *oto.Player

	ringBuffer *RingBuffer
	drains     drainTracker
	written    atomic.Int64
	playing    atomic.Bool

	mu       sync.Mutex
	released bool
	stopPoll chan struct{}
	pollDone chan struct{}
}

// NewOto prepares an oto player for format
func NewOto(format audio.Format, bufferSize int) (Device, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid output format: %w", err)
	}

	ctx, err := sharedContext(format, bufferSize)
	if err != nil {
		return nil, err
	}

	if floor := format.BytesFor(minRingDuration); bufferSize < floor {
		bufferSize = floor
	}

	log.Printf("Audio output initialized: %s, ring %d bytes (oto)", format, bufferSize)
	return &Oto{
		format:     format,
		ctx:        ctx,
		ringBuffer: NewRingBuffer(bufferSize),
	}, nil
}

// Start creates a player over the ring and begins playback
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return ErrReleased
	}
	if o.playing.Load() {
		return nil
	}

	o.ringBuffer.Reopen()
	o.player = o.ctx.NewPlayer(o.ringBuffer)
	o.player.Play()
	o.playing.Store(true)

	o.stopPoll = make(chan struct{})
	o.pollDone = make(chan struct{})
	go o.poll(o.player, o.stopPoll, o.pollDone)
	return nil
}

// poll advances drain markers from the player's position. oto has no
// callback, so the played position is what it pulled minus what it buffers.
func (o *Oto) poll(player *oto.Player, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(otoPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !o.drains.waiting() {
				continue
			}
			played := o.ringBuffer.Consumed() - int64(player.BufferedSize())
			o.drains.advance(played)
		}
	}
}

// Stop closes the ring, which ends the current player
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopLocked()
}

// stopLocked must hold o.mu
func (o *Oto) stopLocked() error {
	if !o.playing.Swap(false) {
		return nil
	}

	close(o.stopPoll)
	<-o.pollDone

	o.ringBuffer.Close()
	o.drains.clear()
	o.player.Pause()
	err := o.player.Close()
	o.player = nil
	if err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}
	return nil
}

// Release stops playback. The shared oto context stays open.
func (o *Oto) Release() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return nil
	}
	o.released = true
	return o.stopLocked()
}

// Write queues PCM, blocking while the ring is full
func (o *Oto) Write(p []byte) (int, error) {
	if !o.playing.Load() {
		return 0, ErrStopped
	}

	n, err := o.ringBuffer.Write(p)
	o.written.Add(int64(n))
	if err != nil {
		return n, ErrStopped
	}
	return n, nil
}

// Playing reports whether the device is started
func (o *Oto) Playing() bool {
	return o.playing.Load()
}

// NotifyDrained fires fn once the player has played every written byte
func (o *Oto) NotifyDrained(fn func()) {
	o.drains.add(o.written.Load(), o.playedEstimate(), fn)
}

func (o *Oto) playedEstimate() int64 {
	o.mu.Lock()
	player := o.player
	o.mu.Unlock()

	consumed := o.ringBuffer.Consumed()
	if player == nil {
		return consumed
	}
	return consumed - int64(player.BufferedSize())
}
