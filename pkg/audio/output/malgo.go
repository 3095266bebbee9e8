// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Feeds miniaudio's playback callback from a blocking byte ring
package output

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/gen2brain/malgo"
)

const minRingDuration = 20 * time.Millisecond

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	format   audio.Format
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	// Ring buffer for callback-based playback
	ringBuffer *RingBuffer
	drains     drainTracker
	written    atomic.Int64
	playing    atomic.Bool

	// played trails the ring by one callback: bytes handed to miniaudio in
	// one period leave the device during the next
	played atomic.Int64

	mu       sync.Mutex
	released bool
}

// NewMalgo opens the default playback device for format
func NewMalgo(format audio.Format, bufferSize int) (Device, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid output format: %w", err)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	if floor := format.BytesFor(minRingDuration); bufferSize < floor {
		bufferSize = floor
	}

	m := &Malgo{
		format:     format,
		malgoCtx:   ctx,
		ringBuffer: NewRingBuffer(bufferSize),
	}

	// Configure device
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		m.dataCallback(pOutputSample, frameCount)
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		freeContext(ctx)
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	m.device = device

	log.Printf("Audio output initialized: %s, ring %d bytes (malgo)", format, bufferSize)
	return m, nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	want := int(frameCount) * m.format.FrameBytes()
	if want > len(pOutput) {
		want = len(pOutput)
	}
	m.drains.advance(m.played.Load())
	m.ringBuffer.ReadAvailable(pOutput[:want])
	m.played.Store(m.ringBuffer.Consumed())
}

// Start begins pulling from the ring
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return ErrReleased
	}
	if m.playing.Load() {
		return nil
	}

	m.ringBuffer.Reopen()
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	m.playing.Store(true)
	return nil
}

// Stop halts the device, drops buffered audio and pending drain markers
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

// stopLocked must hold m.mu
func (m *Malgo) stopLocked() error {
	if !m.playing.Swap(false) {
		return nil
	}

	m.ringBuffer.Close()
	m.drains.clear()
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

// Release stops the device and frees miniaudio resources
func (m *Malgo) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return nil
	}
	m.released = true

	if err := m.stopLocked(); err != nil {
		log.Printf("Warning: device stop error: %v", err)
	}
	m.device.Uninit()
	freeContext(m.malgoCtx)
	return nil
}

// Write queues PCM, blocking while the ring is full
func (m *Malgo) Write(p []byte) (int, error) {
	if !m.playing.Load() {
		return 0, ErrStopped
	}

	n, err := m.ringBuffer.Write(p)
	m.written.Add(int64(n))
	if err != nil {
		return n, ErrStopped
	}
	return n, nil
}

// Playing reports whether the device is started
func (m *Malgo) Playing() bool {
	return m.playing.Load()
}

// NotifyDrained fires fn once every written byte has been played, one device
// period after the callback consumed it
func (m *Malgo) NotifyDrained(fn func()) {
	m.drains.add(m.written.Load(), m.played.Load(), fn)
}

func freeContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	ctx.Free()
}
