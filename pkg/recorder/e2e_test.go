// ABOUTME: End-to-end test recording to Opus and playing the file back
// ABOUTME: Uses the real Opus codec with in-memory devices
package recorder_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/audiopipe/internal/audiotest"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/codec"
	"github.com/Resonate-Protocol/audiopipe/pkg/player"
	"github.com/Resonate-Protocol/audiopipe/pkg/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordThenPlayOpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silence.opus")

	// 2.0s of 16kHz mono 16-bit silence
	const total = 2 * 16000 * 2
	in := audiotest.NewInput(total)

	rec, err := recorder.New(recorder.Config{OpenInput: in.Opener()})
	require.NoError(t, err)
	require.NoError(t, rec.Start(path))

	deadline := time.Now().Add(5 * time.Second)
	for !in.Exhausted() {
		require.True(t, time.Now().Before(deadline), "input never exhausted")
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, rec.Stop(context.Background()))
	assert.Equal(t, int64(total), rec.Stats().BytesEncoded)

	require.True(t, codec.Default().Probe(path), "recorded file must probe as playable")

	out := audiotest.NewOutput()
	var finishes atomic.Int32
	finished := make(chan struct{}, 2)

	p, err := player.New(player.Config{
		OpenOutput: out.Opener(),
		OnFinish: func() {
			finishes.Add(1)
			finished <- struct{}{}
		},
	})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Play(path))
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("playback never finished")
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(1), finishes.Load())
	stats := p.Stats()
	// Every recorded byte plays; only padding of the last Opus frame is extra
	assert.GreaterOrEqual(t, stats.BytesDecoded, int64(total))
	assert.Equal(t, stats.BytesDecoded, stats.BytesWritten)
	assert.Equal(t, int(stats.BytesWritten), out.BytesWritten())
	assert.Equal(t, 16000, out.Format().SampleRate)
	assert.Equal(t, 1, out.Format().Channels)
}
