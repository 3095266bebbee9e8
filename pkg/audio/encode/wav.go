// ABOUTME: WAV file encoder
// ABOUTME: Writes 16-bit PCM frames through go-audio's wav encoder
package encode

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WAVEncoder writes PCM to a RIFF WAVE file
type WAVEncoder struct {
	file    *os.File
	encoder *wav.Encoder

	frameBytes int
	samples    []int16
	buf        *goaudio.IntBuffer
	closed     bool
}

// CreateWAV creates path and prepares it for PCM frames
func CreateWAV(path string, format audio.Format) (Encoder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format for WAV encoder: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav file: %w", err)
	}

	frameBytes := format.BytesFor(FrameDuration)
	return &WAVEncoder{
		file:       f,
		encoder:    wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, wavFormatPCM),
		frameBytes: frameBytes,
		samples:    make([]int16, frameBytes/2),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				SampleRate:  format.SampleRate,
				NumChannels: format.Channels,
			},
			Data:           make([]int, 0, frameBytes/2),
			SourceBitDepth: format.BitDepth,
		},
	}, nil
}

// FrameBytes returns the PCM size of one 60ms frame
func (e *WAVEncoder) FrameBytes() int {
	return e.frameBytes
}

// EncodeFrame appends one frame. Short frames are written as-is.
func (e *WAVEncoder) EncodeFrame(frame []byte) error {
	if e.closed {
		return ErrClosed
	}
	if len(frame) > e.frameBytes {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), e.frameBytes)
	}

	n := audio.Int16s(e.samples, frame)
	e.buf.Data = e.buf.Data[:n]
	for i := 0; i < n; i++ {
		e.buf.Data[i] = int(e.samples[i])
	}
	if n == 0 {
		return nil
	}

	if err := e.encoder.Write(e.buf); err != nil {
		return fmt.Errorf("wav encode error: %w", err)
	}
	return nil
}

// Close writes the WAV header sizes and closes the file
func (e *WAVEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	if err := e.encoder.Close(); err != nil {
		e.file.Close()
		return fmt.Errorf("failed to finalize wav file: %w", err)
	}
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("failed to close wav file: %w", err)
	}
	return nil
}
