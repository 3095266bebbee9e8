// ABOUTME: MP3 file decoder
// ABOUTME: Wraps go-mp3, which always yields 16-bit stereo PCM
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

const mp3ChunkBytes = 4608 // one MPEG-1 layer III frame of stereo 16-bit PCM

// MP3Decoder decodes an MP3 file
type MP3Decoder struct {
	file    *os.File
	decoder *mp3.Decoder
	format  audio.Format
	buf     []byte
	filler  pcmFiller
	closed  bool
}

// ProbeMP3 reports whether path holds a decodable MP3 stream
func ProbeMP3(path string) bool {
	return probeFile(path, func(f *os.File) bool {
		_, err := mp3.NewDecoder(f)
		return err == nil
	})
}

// OpenMP3 opens an MP3 file for decoding
func OpenMP3(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mp3 file: %w", err)
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	d := &MP3Decoder{
		file:    f,
		decoder: dec,
		format: audio.Format{
			Codec:      "mp3",
			SampleRate: dec.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		},
		buf: make([]byte, mp3ChunkBytes),
	}
	d.filler = newFiller(d.nextChunk, d.format)
	return d, nil
}

// Format returns the PCM output format
func (d *MP3Decoder) Format() audio.Format {
	return d.format
}

// DecodeInto fills p with decoded PCM
func (d *MP3Decoder) DecodeInto(p []byte) (Result, error) {
	if d.closed {
		return Result{}, ErrClosed
	}
	return d.filler.fill(p)
}

func (d *MP3Decoder) nextChunk() ([]byte, error) {
	n, err := d.decoder.Read(d.buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}
	return d.buf[:n], err
}

// Seek moves to position using the decoder's byte-accurate seek
func (d *MP3Decoder) Seek(position float64) error {
	if d.closed {
		return ErrClosed
	}

	length := d.decoder.Length()
	if length <= 0 {
		return ErrSeekUnsupported
	}

	frameBytes := int64(d.format.FrameBytes())
	offset := int64(clampPosition(position)*float64(length)) / frameBytes * frameBytes
	if _, err := d.decoder.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek failed: %w", err)
	}
	d.filler.reset(offset / frameBytes)
	return nil
}

// Close releases the file
func (d *MP3Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.file.Close()
}
