// ABOUTME: Ogg Opus file decoder
// ABOUTME: Reads Ogg pages with pion's oggreader and decodes packets with libopus
package decode

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
	"gopkg.in/hraban/opus.v2"
)

const (
	// Opus granule positions always count 48kHz samples
	opusGranuleRate = 48000

	// Largest Opus frame (120ms at 48kHz), per channel
	opusMaxFrameSamples = 5760
)

var opusTagsMagic = []byte("OpusTags")

// OpusDecoder decodes an Ogg Opus file
type OpusDecoder struct {
	file    *os.File
	reader  *oggreader.OggReader
	decoder *opus.Decoder
	format  audio.Format

	pcm     []int16
	out     []byte
	preSkip int // frames still to drop from the start of the stream
	total   int64
	filler  pcmFiller
	closed  bool
}

// ProbeOpus reports whether path holds an Ogg Opus stream
func ProbeOpus(path string) bool {
	return probeFile(path, func(f *os.File) bool {
		_, _, err := oggreader.NewWith(f)
		return err == nil
	})
}

// OpenOpus opens an Ogg Opus file for decoding
func OpenOpus(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open opus file: %w", err)
	}

	reader, header, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read ogg opus header: %w", err)
	}

	rate := opusDecodeRate(int(header.SampleRate))
	channels := int(header.Channels)
	if channels < 1 || channels > 2 {
		f.Close()
		return nil, fmt.Errorf("unsupported opus channel count: %d", channels)
	}

	dec, err := opus.NewDecoder(rate, channels)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	d := &OpusDecoder{
		file:    f,
		reader:  reader,
		decoder: dec,
		format: audio.Format{
			Codec:      "opus",
			SampleRate: rate,
			Channels:   channels,
			BitDepth:   16,
		},
		pcm:     make([]int16, opusMaxFrameSamples*channels),
		out:     make([]byte, opusMaxFrameSamples*channels*2),
		preSkip: int(header.PreSkip) * rate / opusGranuleRate,
		total:   -1,
	}
	d.filler = newFiller(d.nextChunk, d.format)
	return d, nil
}

// opusDecodeRate picks the output rate. libopus decodes at any of its
// supported rates; the header rate is only the original input rate.
func opusDecodeRate(headerRate int) int {
	switch headerRate {
	case 8000, 12000, 16000, 24000, 48000:
		return headerRate
	default:
		return opusGranuleRate
	}
}

// Format returns the PCM output format
func (d *OpusDecoder) Format() audio.Format {
	return d.format
}

// DecodeInto fills p with decoded PCM
func (d *OpusDecoder) DecodeInto(p []byte) (Result, error) {
	if d.closed {
		return Result{}, ErrClosed
	}
	return d.filler.fill(p)
}

func (d *OpusDecoder) nextChunk() ([]byte, error) {
	for {
		payload, _, err := d.reader.ParseNextPage()
		if err != nil {
			return nil, err
		}
		if len(payload) == 0 || bytes.HasPrefix(payload, opusTagsMagic) {
			continue
		}

		n, err := d.decoder.Decode(payload, d.pcm)
		if err != nil {
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}

		samples := d.pcm[:n*d.format.Channels]
		if d.preSkip > 0 {
			skip := d.preSkip
			if skip > n {
				skip = n
			}
			d.preSkip -= skip
			samples = samples[skip*d.format.Channels:]
		}
		if len(samples) == 0 {
			continue
		}

		written := audio.PutInt16(d.out, samples)
		return d.out[:written], nil
	}
}

// Seek repositions to the page containing position. Pages are scanned from
// the start of the file, so the cost is linear in the target offset.
func (d *OpusDecoder) Seek(position float64) error {
	if d.closed {
		return ErrClosed
	}

	total, err := d.totalGranule()
	if err != nil {
		return err
	}
	target := uint64(clampPosition(position) * float64(total))

	if err := d.rewind(); err != nil {
		return err
	}

	var reached uint64
	for reached < target {
		_, page, err := d.reader.ParseNextPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("opus seek failed: %w", err)
		}
		reached = page.GranulePosition
	}

	d.preSkip = 0
	d.filler.reset(int64(reached) * int64(d.format.SampleRate) / opusGranuleRate)
	return nil
}

// totalGranule returns the granule position of the last page
func (d *OpusDecoder) totalGranule() (uint64, error) {
	if d.total >= 0 {
		return uint64(d.total), nil
	}

	if err := d.rewind(); err != nil {
		return 0, err
	}
	var last uint64
	for {
		_, page, err := d.reader.ParseNextPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to scan opus pages: %w", err)
		}
		last = page.GranulePosition
	}
	d.total = int64(last)
	return last, nil
}

func (d *OpusDecoder) rewind() error {
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind opus file: %w", err)
	}
	reader, _, err := oggreader.NewWith(d.file)
	if err != nil {
		return fmt.Errorf("failed to reread ogg opus header: %w", err)
	}
	d.reader = reader
	return nil
}

// Close releases the file
func (d *OpusDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.file.Close()
}
