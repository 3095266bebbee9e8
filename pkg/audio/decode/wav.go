// ABOUTME: WAV and AIFF file decoders
// ABOUTME: Read integer PCM through go-audio and rescale it to 16-bit
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	intChunkSamples = 4096
	wavFormatPCM    = 1
)

var errNoPCMFormat = errors.New("decode: missing PCM format")

// pcmBufferReader is the part of the go-audio decoders used here
type pcmBufferReader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// IntPCMDecoder decodes WAV or AIFF files holding integer PCM
type IntPCMDecoder struct {
	file     *os.File
	dec      pcmBufferReader
	format   audio.Format
	bitDepth int
	unsigned bool // 8-bit WAV samples are unsigned

	buf     *goaudio.IntBuffer
	samples []int16
	out     []byte
	filler  pcmFiller
	closed  bool
}

// ProbeWAV reports whether path holds a RIFF WAVE file
func ProbeWAV(path string) bool {
	return probeFile(path, func(f *os.File) bool {
		return wav.NewDecoder(f).IsValidFile()
	})
}

// OpenWAV opens a WAV file for decoding
func OpenWAV(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}
	dec.ReadInfo()
	if dec.WavAudioFormat != wavFormatPCM {
		f.Close()
		return nil, fmt.Errorf("unsupported wav audio format: %d", dec.WavAudioFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to find wav data chunk: %w", err)
	}

	d, err := newIntPCM(f, dec, dec.Format(), int(dec.BitDepth), "wav")
	if err != nil {
		f.Close()
		return nil, err
	}
	d.unsigned = dec.BitDepth == 8
	return d, nil
}

// ProbeAIFF reports whether path holds an AIFF file
func ProbeAIFF(path string) bool {
	return probeFile(path, func(f *os.File) bool {
		return aiff.NewDecoder(f).IsValidFile()
	})
}

// OpenAIFF opens an AIFF file for decoding
func OpenAIFF(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open aiff file: %w", err)
	}

	dec := aiff.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid aiff file: %s", path)
	}
	dec.ReadInfo()

	d, err := newIntPCM(f, dec, dec.Format(), int(dec.BitDepth), "aiff")
	if err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

func newIntPCM(f *os.File, dec pcmBufferReader, src *goaudio.Format, bitDepth int, codec string) (*IntPCMDecoder, error) {
	if src == nil {
		return nil, errNoPCMFormat
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported %s bit depth: %d", codec, bitDepth)
	}

	format := audio.Format{
		Codec:      codec,
		SampleRate: src.SampleRate,
		Channels:   src.NumChannels,
		BitDepth:   16,
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s format: %w", codec, err)
	}

	// Whole frames per chunk
	chunk := intChunkSamples / format.Channels * format.Channels
	d := &IntPCMDecoder{
		file:     f,
		dec:      dec,
		format:   format,
		bitDepth: bitDepth,
		buf: &goaudio.IntBuffer{
			Format:         src,
			Data:           make([]int, chunk),
			SourceBitDepth: bitDepth,
		},
		samples: make([]int16, chunk),
		out:     make([]byte, chunk*2),
	}
	d.filler = newFiller(d.nextChunk, d.format)
	return d, nil
}

// Format returns the PCM output format
func (d *IntPCMDecoder) Format() audio.Format {
	return d.format
}

// DecodeInto fills p with decoded PCM
func (d *IntPCMDecoder) DecodeInto(p []byte) (Result, error) {
	if d.closed {
		return Result{}, ErrClosed
	}
	return d.filler.fill(p)
}

func (d *IntPCMDecoder) nextChunk() ([]byte, error) {
	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%s decode error: %w", d.format.Codec, err)
	}
	if n == 0 {
		return nil, io.EOF
	}

	for i := 0; i < n; i++ {
		v := d.buf.Data[i]
		if d.unsigned {
			v -= 128
		}
		d.samples[i] = audio.ScaleToInt16(int32(v), d.bitDepth)
	}
	written := audio.PutInt16(d.out, d.samples[:n])
	return d.out[:written], nil
}

// Seek is not supported for go-audio streams
func (d *IntPCMDecoder) Seek(position float64) error {
	if d.closed {
		return ErrClosed
	}
	return ErrSeekUnsupported
}

// Close releases the file
func (d *IntPCMDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.file.Close()
}
