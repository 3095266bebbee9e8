// ABOUTME: Tests for the WAV and AIFF decoders
// ABOUTME: Writes fixtures with go-audio encoders and decodes them back
package decode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampSamples(n, channels int) []int {
	data := make([]int, n*channels)
	for i := range data {
		data[i] = (i*37)%2000 - 1000
	}
	return data
}

func writeWAV(t *testing.T, rate, bitDepth, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bitDepth, channels, wavFormatPCM)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: rate, NumChannels: channels},
		Data:           data,
		SourceBitDepth: bitDepth,
	}))
	require.NoError(t, enc.Close())
	return path
}

func writeAIFF(t *testing.T, rate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.aiff")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := aiff.NewEncoder(f, rate, 16, channels)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: rate, NumChannels: channels},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

// drain reads dec to the end with the given buffer size
func drain(t *testing.T, dec Decoder, bufSize int) ([]byte, int) {
	t.Helper()
	var out []byte
	finals := 0
	buf := make([]byte, bufSize)
	for i := 0; i < 100000; i++ {
		res, err := dec.DecodeInto(buf)
		require.NoError(t, err)
		out = append(out, buf[:res.N]...)
		if res.Final {
			finals++
			break
		}
	}
	return out, finals
}

func TestWAVDecoderRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		rate     int
		channels int
		frames   int
	}{
		{"mono 16k", 16000, 1, 1000},
		{"stereo 48k", 48000, 2, 4097},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := rampSamples(tt.frames, tt.channels)
			path := writeWAV(t, tt.rate, 16, tt.channels, data)

			require.True(t, ProbeWAV(path))
			dec, err := OpenWAV(path)
			require.NoError(t, err)
			defer dec.Close()

			format := dec.Format()
			assert.Equal(t, "wav", format.Codec)
			assert.Equal(t, tt.rate, format.SampleRate)
			assert.Equal(t, tt.channels, format.Channels)
			assert.Equal(t, 16, format.BitDepth)

			pcm, finals := drain(t, dec, 3840)
			assert.Equal(t, 1, finals)
			require.Len(t, pcm, len(data)*2)

			for i, want := range data {
				got := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
				if int(got) != want {
					t.Fatalf("sample %d: got %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestWAVDecoder24BitIsScaled(t *testing.T) {
	data := []int{1 << 16, -(1 << 16), 256}
	path := writeWAV(t, 16000, 24, 1, data)

	dec, err := OpenWAV(path)
	require.NoError(t, err)
	defer dec.Close()

	pcm, _ := drain(t, dec, 64)
	require.Len(t, pcm, 6)
	assert.Equal(t, int16(256), int16(uint16(pcm[0])|uint16(pcm[1])<<8))
	assert.Equal(t, int16(-256), int16(uint16(pcm[2])|uint16(pcm[3])<<8))
	assert.Equal(t, int16(1), int16(uint16(pcm[4])|uint16(pcm[5])<<8))
}

func TestWAVDecoderSeekUnsupported(t *testing.T) {
	path := writeWAV(t, 16000, 16, 1, rampSamples(10, 1))
	dec, err := OpenWAV(path)
	require.NoError(t, err)

	assert.ErrorIs(t, dec.Seek(0.5), ErrSeekUnsupported)
	require.NoError(t, dec.Close())
	require.NoError(t, dec.Close(), "second close is a no-op")

	_, err = dec.DecodeInto(make([]byte, 4))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAIFFDecoderRoundTrip(t *testing.T) {
	data := rampSamples(2500, 2)
	path := writeAIFF(t, 44100, 2, data)

	require.True(t, ProbeAIFF(path))
	assert.False(t, ProbeWAV(path))

	dec, err := OpenAIFF(path)
	require.NoError(t, err)
	defer dec.Close()

	assert.Equal(t, 44100, dec.Format().SampleRate)
	pcm, finals := drain(t, dec, 1000)
	assert.Equal(t, 1, finals)
	assert.Len(t, pcm, len(data)*2)
}

func TestProbeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio data at all"), 0o644))

	probes := map[string]func(string) bool{
		"opus":   ProbeOpus,
		"vorbis": ProbeVorbis,
		"flac":   ProbeFLAC,
		"wav":    ProbeWAV,
		"aiff":   ProbeAIFF,
	}
	for name, probe := range probes {
		assert.False(t, probe(path), name)
		assert.False(t, probe(filepath.Join(t.TempDir(), "missing")), name)
	}
}

func TestOpenMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	openers := map[string]func(string) (Decoder, error){
		"opus":   OpenOpus,
		"vorbis": OpenVorbis,
		"mp3":    OpenMP3,
		"flac":   OpenFLAC,
		"wav":    OpenWAV,
		"aiff":   OpenAIFF,
	}
	for name, open := range openers {
		dec, err := open(missing)
		assert.Error(t, err, name)
		assert.Nil(t, dec, name)
	}
}
