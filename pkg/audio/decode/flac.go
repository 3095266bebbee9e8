// ABOUTME: FLAC file decoder
// ABOUTME: Parses frames with mewkiz/flac and interleaves them as 16-bit PCM
package decode

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes a FLAC file
type FLACDecoder struct {
	file     *os.File
	stream   *flac.Stream
	format   audio.Format
	bitDepth int
	samples  []int16
	out      []byte
	filler   pcmFiller
	closed   bool
}

// ProbeFLAC reports whether path holds a FLAC stream
func ProbeFLAC(path string) bool {
	return probeFile(path, func(f *os.File) bool {
		_, err := flac.New(f)
		return err == nil
	})
}

// OpenFLAC opens a FLAC file for decoding
func OpenFLAC(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	d := &FLACDecoder{
		file:     f,
		stream:   stream,
		bitDepth: int(info.BitsPerSample),
		format: audio.Format{
			Codec:      "flac",
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
			BitDepth:   16,
		},
	}
	d.filler = newFiller(d.nextChunk, d.format)
	return d, nil
}

// Format returns the PCM output format
func (d *FLACDecoder) Format() audio.Format {
	return d.format
}

// DecodeInto fills p with decoded PCM
func (d *FLACDecoder) DecodeInto(p []byte) (Result, error) {
	if d.closed {
		return Result{}, ErrClosed
	}
	return d.filler.fill(p)
}

func (d *FLACDecoder) nextChunk() ([]byte, error) {
	frame, err := d.stream.ParseNext()
	if err != nil {
		return nil, err
	}

	channels := d.format.Channels
	count := int(frame.BlockSize) * channels
	if cap(d.samples) < count {
		d.samples = make([]int16, count)
		d.out = make([]byte, count*2)
	}
	d.samples = d.samples[:count]

	for i := 0; i < int(frame.BlockSize); i++ {
		for ch := 0; ch < channels; ch++ {
			d.samples[i*channels+ch] = audio.ScaleToInt16(frame.Subframes[ch].Samples[i], d.bitDepth)
		}
	}

	n := audio.PutInt16(d.out, d.samples)
	return d.out[:n], nil
}

// Seek moves to the frame containing position
func (d *FLACDecoder) Seek(position float64) error {
	if d.closed {
		return ErrClosed
	}

	total := d.stream.Info.NSamples
	if total == 0 {
		return ErrSeekUnsupported
	}

	target := uint64(clampPosition(position) * float64(total))
	if target >= total {
		target = total - 1
	}
	got, err := d.stream.Seek(target)
	if err != nil {
		return fmt.Errorf("flac seek failed: %w", err)
	}
	d.filler.reset(int64(got))
	return nil
}

// Close releases the file
func (d *FLACDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.file.Close()
}
