// ABOUTME: Ogg Vorbis file decoder
// ABOUTME: Wraps jfreymuth/oggvorbis and converts float samples to 16-bit PCM
package decode

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

const vorbisChunkFrames = 2048

// VorbisDecoder decodes an Ogg Vorbis file
type VorbisDecoder struct {
	file    *os.File
	reader  *oggvorbis.Reader
	format  audio.Format
	floats  []float32
	samples []int16
	out     []byte
	filler  pcmFiller
	closed  bool
}

// ProbeVorbis reports whether path holds an Ogg Vorbis stream
func ProbeVorbis(path string) bool {
	return probeFile(path, func(f *os.File) bool {
		_, err := oggvorbis.NewReader(f)
		return err == nil
	})
}

// OpenVorbis opens an Ogg Vorbis file for decoding
func OpenVorbis(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vorbis file: %w", err)
	}

	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create vorbis decoder: %w", err)
	}

	channels := reader.Channels()
	d := &VorbisDecoder{
		file:   f,
		reader: reader,
		format: audio.Format{
			Codec:      "vorbis",
			SampleRate: reader.SampleRate(),
			Channels:   channels,
			BitDepth:   16,
		},
		floats:  make([]float32, vorbisChunkFrames*channels),
		samples: make([]int16, vorbisChunkFrames*channels),
		out:     make([]byte, vorbisChunkFrames*channels*2),
	}
	d.filler = newFiller(d.nextChunk, d.format)
	return d, nil
}

// Format returns the PCM output format
func (d *VorbisDecoder) Format() audio.Format {
	return d.format
}

// DecodeInto fills p with decoded PCM
func (d *VorbisDecoder) DecodeInto(p []byte) (Result, error) {
	if d.closed {
		return Result{}, ErrClosed
	}
	return d.filler.fill(p)
}

// nextChunk reads interleaved float values; oggvorbis counts values, not frames
func (d *VorbisDecoder) nextChunk() ([]byte, error) {
	n, err := d.reader.Read(d.floats)
	for i := 0; i < n; i++ {
		d.samples[i] = audio.FloatToInt16(d.floats[i])
	}
	written := audio.PutInt16(d.out, d.samples[:n])
	return d.out[:written], err
}

// Seek moves to position in samples per channel
func (d *VorbisDecoder) Seek(position float64) error {
	if d.closed {
		return ErrClosed
	}

	length := d.reader.Length()
	if length <= 0 {
		return ErrSeekUnsupported
	}

	target := int64(clampPosition(position) * float64(length))
	if err := d.reader.SetPosition(target); err != nil {
		return fmt.Errorf("vorbis seek failed: %w", err)
	}
	d.filler.reset(d.reader.Position())
	return nil
}

// Close releases the file
func (d *VorbisDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.file.Close()
}
