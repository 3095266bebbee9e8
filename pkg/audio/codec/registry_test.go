// ABOUTME: Tests for the codec registry
// ABOUTME: Covers extension lookup, probe ordering and encoder creation
package codec

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/decode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var voice = audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16}

func writeRecording(t *testing.T, r *Registry, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	enc, err := r.Create(path, voice)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, enc.EncodeFrame(make([]byte, enc.FrameBytes())))
	}
	require.NoError(t, enc.Close())
	return path
}

func TestDefaultRoundTrips(t *testing.T) {
	r := Default()
	assert.Same(t, r, Default())

	for _, name := range []string{"voice.opus", "voice.ogg", "voice.wav", "VOICE.WAV"} {
		t.Run(name, func(t *testing.T) {
			path := writeRecording(t, r, name)
			require.True(t, r.Probe(path))

			dec, err := r.Open(path)
			require.NoError(t, err)
			defer dec.Close()
			assert.Equal(t, 16000, dec.Format().SampleRate)
		})
	}
}

func TestProbeRequiresMatchingContent(t *testing.T) {
	r := Default()
	dir := t.TempDir()

	// WAV bytes behind a .flac name never reach the WAV reader
	wavPath := writeRecording(t, r, "real.wav")
	data, err := os.ReadFile(wavPath)
	require.NoError(t, err)
	renamed := filepath.Join(dir, "fake.flac")
	require.NoError(t, os.WriteFile(renamed, data, 0o644))
	assert.False(t, r.Probe(renamed))

	garbage := filepath.Join(dir, "noise.opus")
	require.NoError(t, os.WriteFile(garbage, []byte("not an ogg stream"), 0o644))
	assert.False(t, r.Probe(garbage))

	assert.False(t, r.Probe(""))
	assert.False(t, r.Probe(filepath.Join(dir, "missing.wav")))
	assert.False(t, r.Probe(filepath.Join(dir, "file.xyz")))
}

func TestOpenUnsupported(t *testing.T) {
	r := Default()
	dec, err := r.Open(filepath.Join(t.TempDir(), "song.xyz"))
	assert.Nil(t, dec)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestCreateUnsupported(t *testing.T) {
	r := Default()
	enc, err := r.Create(filepath.Join(t.TempDir(), "song.mp3"), voice)
	assert.Nil(t, enc)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestReadersProbeInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	var probed []string
	open := func(string) (decode.Decoder, error) { return nil, errors.New("not implemented") }

	r.RegisterReader("ogg", Reader{Name: "first", Probe: func(string) bool {
		probed = append(probed, "first")
		return false
	}, Open: open})
	r.RegisterReader(".OGG", Reader{Name: "second", Probe: func(string) bool {
		probed = append(probed, "second")
		return true
	}, Open: open})

	assert.True(t, r.Probe("a.ogg"))
	assert.Equal(t, []string{"first", "second"}, probed)

	_, err := r.Open("a.ogg")
	assert.ErrorContains(t, err, "as second")
}

func TestReadExtensions(t *testing.T) {
	exts := Default().ReadExtensions()
	sort.Strings(exts)
	assert.Equal(t, []string{".aif", ".aiff", ".flac", ".mp3", ".oga", ".ogg", ".opus", ".wav"}, exts)
}
