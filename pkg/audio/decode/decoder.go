// ABOUTME: Decoder interface definition
// ABOUTME: Common bounded-read contract for all file decoders
package decode

import (
	"errors"
	"io"
	"os"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
)

var (
	// ErrSeekUnsupported is returned by decoders that cannot reposition
	ErrSeekUnsupported = errors.New("decode: seek not supported")

	// ErrClosed is returned when a closed decoder is used
	ErrClosed = errors.New("decode: decoder closed")
)

// Result reports one bounded read
type Result struct {
	// N is the number of PCM bytes written
	N int
	// SampleOffset is the stream position of the first byte, in samples per channel
	SampleOffset int64
	// Final is set on the read that delivers the last bytes of the stream
	Final bool
}

// Decoder decodes a compressed file into 16-bit interleaved PCM
type Decoder interface {
	// Format returns the PCM format produced by DecodeInto
	Format() audio.Format

	// DecodeInto fills p with as much PCM as is available, up to len(p)
	DecodeInto(p []byte) (Result, error)

	// Seek moves to position, a fraction of the stream in [0,1]
	Seek(position float64) error

	// Close releases decoder resources
	Close() error
}

// chunkFunc yields the next block of PCM bytes, or io.EOF at end of stream.
// The returned slice only has to stay valid until the next call.
type chunkFunc func() ([]byte, error)

// pcmFiller turns variable-size decoded chunks into bounded reads with one
// chunk of lookahead, so the last non-empty read can carry the final flag
type pcmFiller struct {
	next       chunkFunc
	pending    []byte
	consumed   int64 // bytes delivered so far
	frameBytes int
	eof        bool
}

func newFiller(next chunkFunc, format audio.Format) pcmFiller {
	frameBytes := format.FrameBytes()
	if frameBytes <= 0 {
		frameBytes = 2
	}
	return pcmFiller{next: next, frameBytes: frameBytes}
}

func (f *pcmFiller) fill(p []byte) (Result, error) {
	res := Result{SampleOffset: f.consumed / int64(f.frameBytes)}

	for res.N < len(p) {
		if len(f.pending) == 0 {
			if f.eof {
				break
			}
			if err := f.pull(); err != nil {
				f.consumed += int64(res.N)
				return res, err
			}
			continue
		}
		n := copy(p[res.N:], f.pending)
		f.pending = f.pending[n:]
		res.N += n
	}
	f.consumed += int64(res.N)

	// Look ahead so the final flag lands on the last non-empty read
	if len(f.pending) == 0 && !f.eof {
		if err := f.pull(); err != nil {
			return res, err
		}
	}

	res.Final = f.eof && len(f.pending) == 0
	return res, nil
}

func (f *pcmFiller) pull() error {
	for {
		chunk, err := f.next()
		end := err == io.EOF || err == io.ErrUnexpectedEOF
		if len(chunk) > 0 {
			f.pending = chunk
			if end {
				// Data delivered with EOF; the next pull reports the end
				return nil
			}
			return err
		}
		if end {
			f.eof = true
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// reset repositions the filler at the given frame
func (f *pcmFiller) reset(frame int64) {
	f.pending = nil
	f.eof = false
	f.consumed = frame * int64(f.frameBytes)
}

func clampPosition(position float64) float64 {
	if position < 0 {
		return 0
	}
	if position > 1 {
		return 1
	}
	return position
}

// probeFile opens path and runs check against it
func probeFile(path string, check func(f *os.File) bool) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return check(f)
}
