// ABOUTME: In-memory decoder, encoder and codec registry for engine tests
// ABOUTME: Lets engines run without real files or codec libraries
package audiotest

import (
	"os"
	"sync"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/codec"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/decode"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/encode"
)

// FakeExt is the file extension handled by Codecs
const FakeExt = ".fake"

// Voice is 16kHz mono 16-bit PCM
var Voice = audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16}

// Decoder is an in-memory decode.Decoder
type Decoder struct {
	// ChunkLimit caps the bytes returned per call
	ChunkLimit int
	// EmptyReads lists call indexes (0-based) that return a transient empty read
	EmptyReads map[int]bool
	// FailAt is the call index that returns Err; negative disables it
	FailAt int
	Err    error

	mu     sync.Mutex
	format audio.Format
	data   []byte
	pos    int
	calls  int
	closed bool
	closes int
}

// NewDecoder creates a decoder serving data in format
func NewDecoder(format audio.Format, data []byte) *Decoder {
	return &Decoder{format: format, data: data, FailAt: -1}
}

// Format returns the configured format
func (d *Decoder) Format() audio.Format {
	return d.format
}

// DecodeInto copies the next part of the data into p
func (d *Decoder) DecodeInto(p []byte) (decode.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return decode.Result{}, decode.ErrClosed
	}
	call := d.calls
	d.calls++

	frameBytes := d.format.FrameBytes()
	res := decode.Result{SampleOffset: int64(d.pos / frameBytes)}
	if call == d.FailAt {
		return res, d.Err
	}
	if d.EmptyReads[call] {
		return res, nil
	}

	n := len(p)
	if d.ChunkLimit > 0 && n > d.ChunkLimit {
		n = d.ChunkLimit
	}
	if remaining := len(d.data) - d.pos; n > remaining {
		n = remaining
	}
	copy(p, d.data[d.pos:d.pos+n])
	d.pos += n

	res.N = n
	res.Final = d.pos >= len(d.data)
	return res, nil
}

// Seek moves to a fraction of the data
func (d *Decoder) Seek(position float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	frameBytes := d.format.FrameBytes()
	frames := len(d.data) / frameBytes
	d.pos = int(position*float64(frames)) * frameBytes
	return nil
}

// Close marks the decoder closed
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.closes++
	return nil
}

// Closes returns how many times Close was called
func (d *Decoder) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Encoder is an in-memory encode.Encoder
type Encoder struct {
	// Err is returned by EncodeFrame when set
	Err error

	mu         sync.Mutex
	format     audio.Format
	frameBytes int
	frames     [][]byte
	closed     bool
	closes     int
}

// NewEncoder creates an encoder taking frames of frameBytes
func NewEncoder(format audio.Format, frameBytes int) *Encoder {
	return &Encoder{format: format, frameBytes: frameBytes}
}

// FrameBytes returns the configured frame size
func (e *Encoder) FrameBytes() int {
	return e.frameBytes
}

// EncodeFrame records a copy of frame
func (e *Encoder) EncodeFrame(frame []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return encode.ErrClosed
	}
	if len(frame) > e.frameBytes {
		return encode.ErrFrameTooLarge
	}
	if e.Err != nil {
		return e.Err
	}
	e.frames = append(e.frames, append([]byte(nil), frame...))
	return nil
}

// Close marks the encoder closed
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.closes++
	return nil
}

// Frames returns the lengths of every encoded frame
func (e *Encoder) Frames() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	sizes := make([]int, len(e.frames))
	for i, f := range e.frames {
		sizes[i] = len(f)
	}
	return sizes
}

// Data returns the concatenation of every encoded frame
func (e *Encoder) Data() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []byte
	for _, f := range e.frames {
		out = append(out, f...)
	}
	return out
}

// Closes returns how many times Close was called
func (e *Encoder) Closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

// Codecs returns a registry serving FakeExt paths. Probe accepts any
// existing file; Open and Create hand out the given codec values. Either
// may be nil to leave that direction unregistered.
func Codecs(dec decode.Decoder, enc encode.Encoder) *codec.Registry {
	r := codec.NewRegistry()
	if dec != nil {
		r.RegisterReader(FakeExt, codec.Reader{
			Name:  "fake",
			Probe: fileExists,
			Open: func(string) (decode.Decoder, error) {
				return dec, nil
			},
		})
	}
	if enc != nil {
		r.RegisterWriter(FakeExt, codec.Writer{
			Name: "fake",
			Create: func(string, audio.Format) (encode.Encoder, error) {
				return enc, nil
			},
		})
	}
	return r
}

// TouchFile creates an empty file so Probe accepts it
func TouchFile(path string) error {
	return os.WriteFile(path, nil, 0o644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
