// ABOUTME: Capture engine coordinating capture and encode queues
// ABOUTME: Reads PCM from an input device and encodes it frame by frame to a file
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/codec"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/encode"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/input"
	"github.com/Resonate-Protocol/audiopipe/pkg/bufpool"
	"github.com/Resonate-Protocol/audiopipe/pkg/dispatch"
	"github.com/google/uuid"
)

const (
	// DefaultReadBufferSize is the capture read size (40ms at 16kHz mono)
	DefaultReadBufferSize = 1280
	// DefaultDeviceBufferMultiplier sizes the device buffer in read buffers
	DefaultDeviceBufferMultiplier = 10
	// DefaultDrainTimeout bounds a Stop that has no deadline of its own
	DefaultDrainTimeout = 5 * time.Second
)

// DefaultFormat is 16kHz mono 16-bit PCM
var DefaultFormat = audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16}

var (
	// ErrNotIdle is returned by Start once a recording has started or finished
	ErrNotIdle = errors.New("recorder: not idle")

	// ErrEmptyPath is returned by Start for an empty path
	ErrEmptyPath = errors.New("recorder: empty path")
)

// State is the recorder lifecycle state
type State int32

const (
	StateIdle State = iota
	StateRecording
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Config holds recorder configuration
type Config struct {
	Format                 audio.Format
	ReadBufferSize         int
	DeviceBufferMultiplier int
	DrainTimeout           time.Duration

	// Codecs selects the encoder; nil uses codec.Default()
	Codecs *codec.Registry
	// OpenInput opens the capture device; nil uses input.NewMalgo
	OpenInput input.Opener

	// OnError reports capture and encode errors that do not end the recording
	OnError func(error)

	// LockThreads pins both queue workers to their own OS threads
	LockThreads bool
}

// Stats holds recording counters
type Stats struct {
	BytesCaptured    int64
	BytesEncoded     int64
	FramesEncoded    int64
	Flushes          int64
	BuffersAllocated int
}

// Recorder captures one recording. It is not reusable once stopped.
type Recorder struct {
	config Config

	pool         *bufpool.Pool
	captureQueue *dispatch.Queue
	encodeQueue  *dispatch.Queue

	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex
	state     atomic.Int32
	recording atomic.Bool

	id      string
	path    string
	device  input.Device
	encoder encode.Encoder

	// staging is touched only by the encode queue
	staging       []byte
	staged        int
	encoderClosed bool

	bytesCaptured atomic.Int64
	bytesEncoded  atomic.Int64
	framesEncoded atomic.Int64
	flushes       atomic.Int64
}

// New creates an idle recorder and starts its queues. Stop must be called
// to release them, even if Start never succeeds.
func New(config Config) (*Recorder, error) {
	if config.Format == (audio.Format{}) {
		config.Format = DefaultFormat
	}
	if config.ReadBufferSize == 0 {
		config.ReadBufferSize = DefaultReadBufferSize
	}
	if config.DeviceBufferMultiplier == 0 {
		config.DeviceBufferMultiplier = DefaultDeviceBufferMultiplier
	}
	if config.DrainTimeout == 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	if err := config.Format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recorder format: %w", err)
	}
	if config.ReadBufferSize < 0 || config.DeviceBufferMultiplier < 0 {
		return nil, fmt.Errorf("invalid recorder config: read=%d multiplier=%d",
			config.ReadBufferSize, config.DeviceBufferMultiplier)
	}
	if frame := config.Format.FrameBytes(); config.ReadBufferSize%frame != 0 {
		return nil, fmt.Errorf("read buffer size %d is not a multiple of %d-byte frames",
			config.ReadBufferSize, frame)
	}
	if config.Codecs == nil {
		config.Codecs = codec.Default()
	}
	if config.OpenInput == nil {
		config.OpenInput = input.NewMalgo
	}

	var opts []dispatch.Option
	if config.LockThreads {
		opts = append(opts, dispatch.WithLockedThread())
	}

	return &Recorder{
		config:       config,
		pool:         bufpool.NewGrowable(1, config.ReadBufferSize),
		captureQueue: dispatch.New("capture", opts...),
		encodeQueue:  dispatch.New("encode", opts...),
	}, nil
}

// Start opens the encoder for path and the input device, then begins
// capturing. On failure nothing stays open and the recorder remains idle.
func (r *Recorder) Start(path string) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.State() != StateIdle {
		return ErrNotIdle
	}
	if path == "" {
		return ErrEmptyPath
	}

	enc, err := r.config.Codecs.Create(path, r.config.Format)
	if err != nil {
		return fmt.Errorf("failed to open encoder: %w", err)
	}
	if enc.FrameBytes() <= 0 {
		closeEncoder(enc)
		return fmt.Errorf("encoder for %s reports frame size %d", path, enc.FrameBytes())
	}

	dev, err := r.config.OpenInput(r.config.Format, r.config.ReadBufferSize*r.config.DeviceBufferMultiplier)
	if err != nil {
		closeEncoder(enc)
		return fmt.Errorf("failed to open input: %w", err)
	}
	if err := dev.Start(); err != nil {
		releaseDevice(dev)
		closeEncoder(enc)
		return fmt.Errorf("failed to start input: %w", err)
	}

	r.id = uuid.New().String()
	r.path = path
	r.device = dev
	r.encoder = enc
	r.staging = make([]byte, enc.FrameBytes())
	r.staged = 0

	r.recording.Store(true)
	r.state.Store(int32(StateRecording))
	log.Printf("recorder: session %s recording %s (%s, frame %d bytes)",
		r.id, path, r.config.Format, enc.FrameBytes())

	r.postCapture()
	return nil
}

// Stop ends the recording and finalizes the file. Every captured byte is
// encoded before the encoder closes. Stop is idempotent. If ctx has no
// deadline, DrainTimeout applies; when it expires Stop returns the ctx error
// while the workers still release the device and close the encoder.
func (r *Recorder) Stop(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	switch r.State() {
	case StateFinished:
		return nil
	case StateIdle:
		r.state.Store(int32(StateFinished))
		r.shutdownQueues(true)
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.DrainTimeout)
		defer cancel()
	}

	r.state.Store(int32(StateFinished))
	r.recording.Store(false)

	// Unblocks the pending read with a short count
	if err := r.device.Stop(); err != nil {
		log.Printf("recorder: device stop error: %v", err)
	}

	dev := r.device
	enc := r.encoder
	closed := make(chan struct{})

	// finalize runs on the encode queue behind every buffer the capture side
	// handed over, then lets both workers exit
	finalize := func() {
		if r.staged > 0 {
			r.flushes.Add(1)
			r.submit()
		}
		closeEncoder(enc)
		r.encoderClosed = true
		r.shutdownQueues(false)
		close(closed)
	}

	// teardown runs on the capture queue once the pending read returns, so the
	// device is only ever touched by the capture worker
	teardown := func() {
		for r.captureOnce() > 0 {
		}
		releaseDevice(dev)
		if err := r.encodeQueue.Post(finalize); err != nil {
			finalize()
		}
	}
	if err := r.captureQueue.Post(teardown); err != nil {
		teardown()
	}

	select {
	case <-closed:
	case <-ctx.Done():
		log.Printf("recorder: session %s stop timed out, finishing in background", r.id)
		return ctx.Err()
	}
	r.captureQueue.Wait()
	r.encodeQueue.Wait()

	stats := r.Stats()
	log.Printf("recorder: session %s finished: %s captured, %d frames",
		r.id, r.config.Format.Duration(int(stats.BytesCaptured)), stats.FramesEncoded)
	return nil
}

// shutdownQueues stops both queues after pending tasks run. It must not wait
// when called from a task on either queue.
func (r *Recorder) shutdownQueues(wait bool) {
	r.captureQueue.Stop(true)
	r.encodeQueue.Stop(true)
	if wait {
		r.captureQueue.Wait()
		r.encodeQueue.Wait()
	}
}

// captureStep reads one buffer and hands it to the encode queue. Once the
// recording is stopping it keeps reading in the same task until the device
// is empty. Runs on the capture queue.
func (r *Recorder) captureStep() {
	for {
		if r.captureOnce() == 0 {
			return
		}
		if r.recording.Load() {
			r.postCapture()
			return
		}
	}
}

func (r *Recorder) captureOnce() int {
	b := r.pool.AcquireOrGrow()
	if b == nil {
		return 0
	}

	n, err := readDevice(r.device, b.Data())
	if err != nil {
		if !errors.Is(err, input.ErrReleased) {
			log.Printf("recorder: device read error: %v", err)
			r.reportError(fmt.Errorf("read: %w", err))
		}
	}
	if n <= 0 || n > b.Cap() {
		// Nothing read: keep the buffer for reuse
		r.release(b)
		return 0
	}

	b.Size = n
	b.Final = n < b.Cap()
	r.bytesCaptured.Add(int64(n))

	if err := r.pool.Publish(b); err != nil {
		log.Printf("recorder: publish failed: %v", err)
		return 0
	}
	if err := r.encodeQueue.Post(r.encodeStep); err != nil {
		log.Printf("recorder: encode queue stopped, dropping %d bytes", n)
	}
	return n
}

// encodeStep stages the oldest captured buffer into codec frames. Runs on
// the encode queue.
func (r *Recorder) encodeStep() {
	b, ok := r.pool.TakeInFlight()
	if !ok {
		return
	}
	if r.encoderClosed {
		r.recycle(b)
		return
	}

	data := b.Bytes()
	for len(data) > 0 {
		n := copy(r.staging[r.staged:], data)
		r.staged += n
		data = data[n:]
		if r.staged == len(r.staging) {
			r.submit()
		}
	}
	if b.Final && r.staged > 0 {
		r.flushes.Add(1)
		r.submit()
	}

	r.recycle(b)
}

// recycle hands b back to the capture queue, which owns recycling
func (r *Recorder) recycle(b *bufpool.Buffer) {
	if err := r.captureQueue.Post(func() { r.release(b) }); err != nil {
		r.release(b)
	}
}

// submit encodes the staged bytes and empties the staging region
func (r *Recorder) submit() {
	frame := r.staging[:r.staged]
	r.staged = 0

	if err := encodeFrame(r.encoder, frame); err != nil {
		log.Printf("recorder: encode error: %v", err)
		r.reportError(fmt.Errorf("encode: %w", err))
		return
	}
	r.framesEncoded.Add(1)
	r.bytesEncoded.Add(int64(len(frame)))
}

// State returns the lifecycle state
func (r *Recorder) State() State {
	return State(r.state.Load())
}

// Path returns the file being recorded
func (r *Recorder) Path() string {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	return r.path
}

// Elapsed returns the duration of audio captured so far
func (r *Recorder) Elapsed() time.Duration {
	return r.config.Format.Duration(int(r.bytesCaptured.Load()))
}

// Stats returns recording counters
func (r *Recorder) Stats() Stats {
	return Stats{
		BytesCaptured:    r.bytesCaptured.Load(),
		BytesEncoded:     r.bytesEncoded.Load(),
		FramesEncoded:    r.framesEncoded.Load(),
		Flushes:          r.flushes.Load(),
		BuffersAllocated: r.pool.Stats().Total,
	}
}

func (r *Recorder) postCapture() {
	_ = r.captureQueue.Post(r.captureStep)
}

func (r *Recorder) release(b *bufpool.Buffer) {
	if err := r.pool.Release(b); err != nil {
		log.Printf("recorder: release buffer %d: %v", b.ID(), err)
	}
}

func (r *Recorder) reportError(err error) {
	if r.config.OnError != nil {
		r.config.OnError(err)
	}
}

// readDevice turns a device panic into an error
func readDevice(dev input.Device, p []byte) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			n, err = 0, fmt.Errorf("device panicked: %v", rec)
		}
	}()
	return dev.Read(p)
}

// encodeFrame turns an encoder panic into an error
func encodeFrame(enc encode.Encoder, frame []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("encoder panicked: %v", rec)
		}
	}()
	return enc.EncodeFrame(frame)
}

func closeEncoder(enc encode.Encoder) {
	if err := enc.Close(); err != nil {
		log.Printf("recorder: encoder close error: %v", err)
	}
}

func releaseDevice(dev input.Device) {
	if err := dev.Release(); err != nil {
		log.Printf("recorder: device release error: %v", err)
	}
}
