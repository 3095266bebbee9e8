// ABOUTME: Malgo-based audio capture implementation
// ABOUTME: Copies miniaudio capture callbacks into a ring buffer for blocking reads
package input

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo capture implementation using malgo/miniaudio library
type Malgo struct {
	format   audio.Format
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	buffer   *captureBuffer

	mu       sync.Mutex
	running  bool
	released bool
}

// NewMalgo opens the default capture device for format
func NewMalgo(format audio.Format, bufferSize int) (Device, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input format: %w", err)
	}
	if bufferSize <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", bufferSize)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	m := &Malgo{
		format:   format,
		malgoCtx: ctx,
		buffer:   newCaptureBuffer(bufferSize),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onData := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		n := int(frameCount) * format.FrameBytes()
		if n > len(pInputSamples) {
			n = len(pInputSamples)
		}
		m.buffer.push(pInputSamples[:n])
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onData,
	})
	if err != nil {
		freeContext(ctx)
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	m.device = device

	log.Printf("Audio input initialized: %s, buffer %d bytes (malgo)", format, bufferSize)
	return m, nil
}

// Start begins capture
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return ErrReleased
	}
	if m.running {
		return nil
	}

	m.buffer.restart()
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	m.running = true
	return nil
}

// Stop halts capture and releases a pending Read
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

// stopLocked must hold m.mu
func (m *Malgo) stopLocked() error {
	if !m.running {
		return nil
	}
	m.running = false

	err := m.device.Stop()
	m.buffer.stop()
	if dropped := m.buffer.overruns(); dropped > 0 {
		log.Printf("input: capture overrun dropped %d bytes", dropped)
	}
	if err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

// Release stops capture and frees miniaudio resources
func (m *Malgo) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return nil
	}
	m.released = true

	if err := m.stopLocked(); err != nil {
		log.Printf("Warning: capture stop error: %v", err)
	}
	m.buffer.stop()
	m.device.Uninit()
	freeContext(m.malgoCtx)
	return nil
}

// Read blocks for len(p) bytes, returning short once stopped
func (m *Malgo) Read(p []byte) (int, error) {
	m.mu.Lock()
	released := m.released
	m.mu.Unlock()
	if released {
		return 0, ErrReleased
	}
	return m.buffer.read(p), nil
}

func freeContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	ctx.Free()
}
