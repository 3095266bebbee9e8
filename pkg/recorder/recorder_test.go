// ABOUTME: Tests for the capture engine
// ABOUTME: Covers lifecycle rules, frame staging and draining stop
package recorder

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/audiopipe/internal/audiotest"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/codec"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitTimeout = 5 * time.Second

type harness struct {
	recorder *Recorder
	input    *audiotest.Input
	encoder  *audiotest.Encoder
	path     string
	opens    atomic.Int32
	errs     atomic.Int32
}

func newHarness(t *testing.T, total, frameBytes int, tweak func(*Config)) *harness {
	t.Helper()

	h := &harness{
		input:   audiotest.NewInput(total),
		encoder: audiotest.NewEncoder(DefaultFormat, frameBytes),
		path:    filepath.Join(t.TempDir(), "take"+audiotest.FakeExt),
	}
	h.input.Fill = func(offset int) byte { return byte(offset % 251) }

	opener := h.input.Opener()
	cfg := Config{
		Codecs: audiotest.Codecs(nil, h.encoder),
		OpenInput: func(format audio.Format, size int) (input.Device, error) {
			h.opens.Add(1)
			return opener(format, size)
		},
		OnError: func(error) { h.errs.Add(1) },
	}
	if tweak != nil {
		tweak(&cfg)
	}

	r, err := New(cfg)
	require.NoError(t, err)
	h.recorder = r
	t.Cleanup(func() { _ = r.Stop(context.Background()) })
	return h
}

func (h *harness) waitExhausted(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !h.input.Exhausted() {
		if time.Now().After(deadline) {
			t.Fatal("input never exhausted")
		}
		time.Sleep(time.Millisecond)
	}
}

func expected(total int) []byte {
	data := make([]byte, total)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestNewAppliesDefaults(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)
	defer r.Stop(context.Background())

	assert.Equal(t, DefaultFormat, r.config.Format)
	assert.Equal(t, DefaultReadBufferSize, r.config.ReadBufferSize)
	assert.Equal(t, DefaultDeviceBufferMultiplier, r.config.DeviceBufferMultiplier)
	assert.Equal(t, DefaultDrainTimeout, r.config.DrainTimeout)
	assert.Equal(t, StateIdle, r.State())
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unaligned read size", Config{ReadBufferSize: 1281}},
		{"negative multiplier", Config{DeviceBufferMultiplier: -1}},
		{"unsupported bit depth", Config{Format: audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 24}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestStartOpensDeviceWithScaledBuffer(t *testing.T) {
	h := newHarness(t, 0, 1920, nil)

	require.NoError(t, h.recorder.Start(h.path))
	assert.Equal(t, StateRecording, h.recorder.State())
	assert.Equal(t, DefaultReadBufferSize*DefaultDeviceBufferMultiplier, h.input.BufferSize())
	assert.Equal(t, h.path, h.recorder.Path())
	require.NoError(t, h.recorder.Stop(context.Background()))
}

func TestStartTwiceOpensNothing(t *testing.T) {
	h := newHarness(t, 0, 1920, nil)

	require.NoError(t, h.recorder.Start(h.path))
	assert.ErrorIs(t, h.recorder.Start(h.path), ErrNotIdle)
	assert.Equal(t, int32(1), h.opens.Load())
	assert.Equal(t, StateRecording, h.recorder.State())
}

func TestStartEmptyPathOpensNothing(t *testing.T) {
	h := newHarness(t, 0, 1920, nil)

	assert.ErrorIs(t, h.recorder.Start(""), ErrEmptyPath)
	assert.Zero(t, h.opens.Load())
	assert.Zero(t, h.encoder.Closes())
	assert.Equal(t, StateIdle, h.recorder.State())
}

func TestStartFailuresReleaseEverything(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		h := newHarness(t, 0, 1920, nil)
		err := h.recorder.Start(filepath.Join(t.TempDir(), "take.xyz"))
		assert.ErrorIs(t, err, codec.ErrUnsupported)
		assert.Zero(t, h.opens.Load())
		assert.Equal(t, StateIdle, h.recorder.State())
	})

	t.Run("device open fails", func(t *testing.T) {
		h := newHarness(t, 0, 1920, func(c *Config) {
			c.OpenInput = audiotest.FailingInputOpener(audiotest.ErrInjected)
		})
		err := h.recorder.Start(h.path)
		assert.ErrorIs(t, err, audiotest.ErrInjected)
		assert.Equal(t, 1, h.encoder.Closes())
		assert.Equal(t, StateIdle, h.recorder.State())
	})

	t.Run("device start fails", func(t *testing.T) {
		h := newHarness(t, 0, 1920, nil)
		h.input.StartErr = audiotest.ErrInjected
		err := h.recorder.Start(h.path)
		assert.ErrorIs(t, err, audiotest.ErrInjected)
		assert.True(t, h.input.Released())
		assert.Equal(t, 1, h.encoder.Closes())
		assert.Equal(t, StateIdle, h.recorder.State())
	})
}

func TestStagingProducesCodecFrames(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		frameBytes int
	}{
		{"frame larger than read", 64000, 1920},
		{"frame smaller than read", 6400 + 300, 500},
		{"frame equal to read", 1280 * 7, 1280},
		{"short tail read", 1280*3 + 440, 1920},
		{"frame spans several reads", 1280 * 9, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.total, tt.frameBytes, nil)

			require.NoError(t, h.recorder.Start(h.path))
			h.waitExhausted(t)
			require.NoError(t, h.recorder.Stop(context.Background()))

			assert.Equal(t, expected(tt.total), h.encoder.Data())

			var want []int
			for i := 0; i < tt.total/tt.frameBytes; i++ {
				want = append(want, tt.frameBytes)
			}
			if rem := tt.total % tt.frameBytes; rem != 0 {
				want = append(want, rem)
			}
			assert.Equal(t, want, h.encoder.Frames())

			stats := h.recorder.Stats()
			assert.Equal(t, int64(tt.total), stats.BytesCaptured)
			assert.Equal(t, int64(tt.total), stats.BytesEncoded)
			assert.Equal(t, int64(len(want)), stats.FramesEncoded)
		})
	}
}

func TestStopDrainsCapturedAudio(t *testing.T) {
	h := newHarness(t, 1280*400, 1920, nil)
	h.input.ReadDelay = time.Millisecond

	require.NoError(t, h.recorder.Start(h.path))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, h.recorder.Stop(context.Background()))

	produced := h.input.Produced()
	require.Positive(t, produced)
	assert.Equal(t, expected(produced), h.encoder.Data())
	assert.Equal(t, int64(produced), h.recorder.Stats().BytesEncoded)
	assert.Equal(t, 1, h.encoder.Closes())
	assert.True(t, h.input.Released())
	assert.Equal(t, StateFinished, h.recorder.State())
}

func TestStopTwiceIsNoop(t *testing.T) {
	h := newHarness(t, 5000, 1920, nil)

	require.NoError(t, h.recorder.Start(h.path))
	require.NoError(t, h.recorder.Stop(context.Background()))
	require.NoError(t, h.recorder.Stop(context.Background()))

	assert.Equal(t, 1, h.input.Releases())
	assert.Equal(t, 1, h.encoder.Closes())
	assert.Equal(t, StateFinished, h.recorder.State())
}

func TestStopTimeoutFinishesInBackground(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration // DrainTimeout; zero uses a ctx deadline
	}{
		{"ctx deadline", 0},
		{"drain timeout", 10 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1280*100, 1920, func(c *Config) {
				if tt.timeout > 0 {
					c.DrainTimeout = tt.timeout
				}
			})
			h.input.ReadDelay = 50 * time.Millisecond

			require.NoError(t, h.recorder.Start(h.path))
			time.Sleep(10 * time.Millisecond)

			ctx := context.Background()
			if tt.timeout == 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, 10*time.Millisecond)
				defer cancel()
			}
			err := h.recorder.Stop(ctx)
			require.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Equal(t, StateFinished, h.recorder.State())

			for _, q := range []<-chan struct{}{h.recorder.captureQueue.Done(), h.recorder.encodeQueue.Done()} {
				select {
				case <-q:
				case <-time.After(waitTimeout):
					t.Fatal("queues never exited after a timed out stop")
				}
			}

			assert.Equal(t, 1, h.encoder.Closes())
			assert.Equal(t, 1, h.input.Releases())
			assert.Zero(t, h.errs.Load(), "no errors after the encoder closes")
			assert.NoError(t, h.recorder.Stop(context.Background()))
		})
	}
}

func TestStopFromIdleFinishes(t *testing.T) {
	h := newHarness(t, 0, 1920, nil)

	require.NoError(t, h.recorder.Stop(context.Background()))
	assert.Equal(t, StateFinished, h.recorder.State())
	assert.ErrorIs(t, h.recorder.Start(h.path), ErrNotIdle)
	assert.Zero(t, h.opens.Load())
}

func TestEncodeErrorsAreReported(t *testing.T) {
	h := newHarness(t, 1920*3, 1920, nil)
	h.encoder.Err = audiotest.ErrInjected

	require.NoError(t, h.recorder.Start(h.path))
	h.waitExhausted(t)
	require.NoError(t, h.recorder.Stop(context.Background()))

	assert.Equal(t, int32(3), h.errs.Load())
	assert.Zero(t, h.recorder.Stats().FramesEncoded)
}

func TestCaptureBuffersAreRecycled(t *testing.T) {
	h := newHarness(t, 1280*100, 1920, nil)
	h.input.ReadDelay = time.Millisecond

	require.NoError(t, h.recorder.Start(h.path))
	h.waitExhausted(t)
	require.NoError(t, h.recorder.Stop(context.Background()))

	stats := h.recorder.Stats()
	assert.GreaterOrEqual(t, stats.BuffersAllocated, 1)
	assert.Less(t, stats.BuffersAllocated, 100)
}

func TestElapsedTracksCapturedAudio(t *testing.T) {
	h := newHarness(t, 32000, 1920, nil)

	require.NoError(t, h.recorder.Start(h.path))
	h.waitExhausted(t)
	require.NoError(t, h.recorder.Stop(context.Background()))

	assert.Equal(t, time.Second, h.recorder.Elapsed())
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateRecording, "recording"},
		{StateFinished, "finished"},
		{State(7), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
