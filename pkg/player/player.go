// ABOUTME: Playback engine coordinating decode and playback queues
// ABOUTME: Streams decoded PCM through a fixed buffer pool into an output device
package player

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio/codec"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/decode"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/output"
	"github.com/Resonate-Protocol/audiopipe/pkg/bufpool"
	"github.com/Resonate-Protocol/audiopipe/pkg/dispatch"
	"github.com/google/uuid"
)

const (
	// DefaultBufferCount is the number of pool buffers
	DefaultBufferCount = 3
	// DefaultBufferSize is the capacity of each pool buffer in bytes
	DefaultBufferSize = 3840
	// DefaultRetryInterval is how long to wait before re-polling an empty decoder
	DefaultRetryInterval = 10 * time.Millisecond
)

var (
	// ErrEmptyPath is returned by Play for an empty path
	ErrEmptyPath = errors.New("player: empty path")

	// ErrBusy is returned by Play while a session is active
	ErrBusy = errors.New("player: already playing")

	// ErrClosed is returned by Play after Close
	ErrClosed = errors.New("player: closed")

	// ErrUnsupported is returned when no codec can read the file
	ErrUnsupported = codec.ErrUnsupported
)

// State is the playback state
type State int32

const (
	StateIdle State = iota
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Config holds player configuration
type Config struct {
	BufferCount   int
	BufferSize    int
	RetryInterval time.Duration

	// Codecs selects decoders; nil uses codec.Default()
	Codecs *codec.Registry
	// OpenOutput opens the playback device; nil uses output.NewMalgo
	OpenOutput output.Opener

	// OnFinish runs on an engine worker once per session that plays to the
	// end. It must not call Close.
	OnFinish func()
	// OnError reports decode and device errors that do not abort the session
	OnError func(error)

	// LockThreads pins both queue workers to their own OS threads
	LockThreads bool
}

// Stats holds cumulative counters across sessions
type Stats struct {
	BytesDecoded  int64
	BytesWritten  int64
	BuffersPlayed int64
	ShortWrites   int64
	Sessions      int64
}

// session is one Play call. Steps posted for a session become no-ops once
// it is ending, so stale tasks never touch a later session.
type session struct {
	id      string
	path    string
	device  output.Device
	decoder decode.Decoder

	decoded atomic.Bool
	ending  atomic.Bool
	done    chan struct{}
}

// Player plays one file at a time
type Player struct {
	config Config

	pool          *bufpool.Pool
	decodeQueue   *dispatch.Queue
	playbackQueue *dispatch.Queue

	mu       sync.Mutex
	state    State
	current  *session
	starting bool
	closed   bool

	bytesDecoded  atomic.Int64
	bytesWritten  atomic.Int64
	buffersPlayed atomic.Int64
	shortWrites   atomic.Int64
	sessions      atomic.Int64
}

// New creates a player and starts its queues
func New(config Config) (*Player, error) {
	if config.BufferCount == 0 {
		config.BufferCount = DefaultBufferCount
	}
	if config.BufferSize == 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = DefaultRetryInterval
	}
	if config.BufferCount < 0 || config.BufferSize < 0 || config.RetryInterval < 0 {
		return nil, fmt.Errorf("invalid player config: count=%d size=%d retry=%s",
			config.BufferCount, config.BufferSize, config.RetryInterval)
	}
	if config.Codecs == nil {
		config.Codecs = codec.Default()
	}
	if config.OpenOutput == nil {
		config.OpenOutput = output.NewMalgo
	}

	var opts []dispatch.Option
	if config.LockThreads {
		opts = append(opts, dispatch.WithLockedThread())
	}

	return &Player{
		config:        config,
		pool:          bufpool.New(config.BufferCount, config.BufferSize),
		decodeQueue:   dispatch.New("decode", opts...),
		playbackQueue: dispatch.New("playback", opts...),
	}, nil
}

// Play starts playing path from the beginning
func (p *Player) Play(path string) error {
	return p.PlayAt(path, 0)
}

// PlayAt starts playing path from a fraction of its length
func (p *Player) PlayAt(path string, position float64) error {
	if path == "" {
		return ErrEmptyPath
	}

	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return ErrClosed
	case p.current != nil || p.starting:
		p.mu.Unlock()
		return ErrBusy
	}
	p.starting = true
	p.mu.Unlock()

	s, err := p.open(path, position)

	p.mu.Lock()
	p.starting = false
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.current = s
	p.state = StatePlaying
	p.mu.Unlock()

	p.sessions.Add(1)
	log.Printf("player: session %s playing %s (%s)", s.id, path, s.decoder.Format())

	if err := p.decodeQueue.Post(func() {
		p.pool.Reset()
		p.decodeStep(s)
	}); err != nil {
		p.finish(s, false)
		return ErrClosed
	}
	return nil
}

// open acquires the decoder and a started device, releasing both on failure
func (p *Player) open(path string, position float64) (*session, error) {
	if !p.config.Codecs.Probe(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}

	dec, err := p.config.Codecs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open decoder: %w", err)
	}
	if position > 0 {
		if err := dec.Seek(position); err != nil {
			closeDecoder(dec)
			return nil, fmt.Errorf("failed to seek %s: %w", path, err)
		}
	}

	format := dec.Format()
	dev, err := p.config.OpenOutput(format, p.config.BufferSize*p.config.BufferCount)
	if err != nil {
		closeDecoder(dec)
		return nil, fmt.Errorf("failed to open output: %w", err)
	}
	if err := dev.Start(); err != nil {
		releaseDevice(dev)
		closeDecoder(dec)
		return nil, fmt.Errorf("failed to start output: %w", err)
	}

	return &session{
		id:      uuid.New().String(),
		path:    path,
		device:  dev,
		decoder: dec,
		done:    make(chan struct{}),
	}, nil
}

// decodeStep fills free buffers until the pool runs dry, the decoder has
// nothing yet, or the stream ends. Runs on the decode queue.
func (p *Player) decodeStep(s *session) {
	if s.ending.Load() || s.decoded.Load() {
		return
	}

	produced := false
	for !s.decoded.Load() {
		b, ok := p.pool.AcquireFree()
		if !ok {
			break
		}

		res, err := decodeInto(s.decoder, b.Data())
		if err != nil {
			log.Printf("player: decode error on %s: %v", s.path, err)
			p.reportError(fmt.Errorf("decode %s: %w", s.path, err))
			res.Final = true
		}
		if res.N < 0 || res.N > b.Cap() {
			res.N = 0
		}

		if res.N == 0 && !res.Final {
			p.release(b)
			if p.pool.InFlight() == 0 {
				time.AfterFunc(p.config.RetryInterval, func() { p.postDecode(s) })
			}
			break
		}

		b.Size = res.N
		b.Offset = res.SampleOffset
		b.Final = res.Final
		if res.Final {
			s.decoded.Store(true)
		}
		p.bytesDecoded.Add(int64(res.N))

		if err := p.pool.Publish(b); err != nil {
			log.Printf("player: publish failed: %v", err)
			break
		}
		produced = true
	}

	if produced {
		p.postPlayback(s)
	}
}

// playbackStep writes the oldest published buffer to the device. Runs on
// the playback queue.
func (p *Player) playbackStep(s *session) {
	if s.ending.Load() || !s.device.Playing() {
		return
	}

	b, ok := p.pool.TakeInFlight()
	if !ok {
		if !s.decoded.Load() {
			p.postDecode(s)
		}
		return
	}

	final := b.Final
	p.writeAll(s, b.Bytes())
	p.buffersPlayed.Add(1)
	p.release(b)

	if final {
		s.device.NotifyDrained(func() { p.postFinish(s) })
		return
	}

	p.postPlayback(s)
	if !s.decoded.Load() {
		p.postDecode(s)
	}
}

// writeAll retries the remainder of short writes until the device takes
// everything, returns zero bytes, or fails
func (p *Player) writeAll(s *session, data []byte) {
	for len(data) > 0 {
		n, err := writeDevice(s.device, data)
		if n > 0 {
			p.bytesWritten.Add(int64(n))
			data = data[n:]
		}
		if err != nil {
			if !s.ending.Load() && !errors.Is(err, output.ErrStopped) && !errors.Is(err, output.ErrReleased) {
				log.Printf("player: device write error: %v", err)
				p.reportError(fmt.Errorf("write: %w", err))
			}
			return
		}
		if n == 0 {
			log.Printf("player: device accepted no bytes, dropping %d", len(data))
			return
		}
		if len(data) > 0 {
			p.shortWrites.Add(1)
		}
	}
}

// finish ends s once. It runs on the playback queue (or inline once the
// queues are stopped); the decoder is closed on the decode queue so it is
// never touched by two workers.
func (p *Player) finish(s *session, completed bool) {
	if !s.ending.CompareAndSwap(false, true) {
		return
	}

	if err := s.device.Stop(); err != nil {
		log.Printf("player: device stop error: %v", err)
	}
	releaseDevice(s.device)

	teardown := func() {
		closeDecoder(s.decoder)

		p.mu.Lock()
		if p.current == s {
			p.current = nil
			p.state = StateIdle
		}
		p.mu.Unlock()
		close(s.done)

		if completed {
			log.Printf("player: session %s finished", s.id)
			if p.config.OnFinish != nil {
				p.config.OnFinish()
			}
		} else {
			log.Printf("player: session %s stopped", s.id)
		}
	}
	if err := p.decodeQueue.Post(teardown); err != nil {
		teardown()
	}
}

// Stop ends the current session early without calling OnFinish. It
// returns once the device and decoder have been released.
func (p *Player) Stop() {
	p.mu.Lock()
	s := p.current
	p.mu.Unlock()
	if s == nil {
		return
	}

	// Unblock a pending write so the finish task can run
	if err := s.device.Stop(); err != nil {
		log.Printf("player: device stop error: %v", err)
	}
	if err := p.playbackQueue.Post(func() { p.finish(s, false) }); err != nil {
		p.finish(s, false)
	}
	<-s.done
}

// Close stops the current session and both queues
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.Stop()

	p.decodeQueue.Stop(true)
	p.playbackQueue.Stop(true)
	p.decodeQueue.Wait()
	p.playbackQueue.Wait()
	return nil
}

// State returns the current playback state
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats returns cumulative counters
func (p *Player) Stats() Stats {
	return Stats{
		BytesDecoded:  p.bytesDecoded.Load(),
		BytesWritten:  p.bytesWritten.Load(),
		BuffersPlayed: p.buffersPlayed.Load(),
		ShortWrites:   p.shortWrites.Load(),
		Sessions:      p.sessions.Load(),
	}
}

// Pool exposes buffer occupancy for status displays
func (p *Player) Pool() bufpool.Stats {
	return p.pool.Stats()
}

func (p *Player) postDecode(s *session) {
	_ = p.decodeQueue.Post(func() { p.decodeStep(s) })
}

func (p *Player) postPlayback(s *session) {
	_ = p.playbackQueue.Post(func() { p.playbackStep(s) })
}

// postFinish is called from the device's drain goroutine
func (p *Player) postFinish(s *session) {
	if err := p.playbackQueue.Post(func() { p.finish(s, true) }); err != nil {
		p.finish(s, true)
	}
}

func (p *Player) release(b *bufpool.Buffer) {
	if err := p.pool.Release(b); err != nil {
		log.Printf("player: release buffer %d: %v", b.ID(), err)
	}
}

func (p *Player) reportError(err error) {
	if p.config.OnError != nil {
		p.config.OnError(err)
	}
}

// decodeInto turns a decoder panic into an error
func decodeInto(dec decode.Decoder, p []byte) (res decode.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panicked: %v", r)
		}
	}()
	return dec.DecodeInto(p)
}

// writeDevice turns a device panic into an error
func writeDevice(dev output.Device, p []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("device panicked: %v", r)
		}
	}()
	return dev.Write(p)
}

func closeDecoder(dec decode.Decoder) {
	if err := dec.Close(); err != nil {
		log.Printf("player: decoder close error: %v", err)
	}
}

func releaseDevice(dev output.Device) {
	if err := dev.Release(); err != nil {
		log.Printf("player: device release error: %v", err)
	}
}
