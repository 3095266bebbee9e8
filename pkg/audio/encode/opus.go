// ABOUTME: Ogg Opus file encoder
// ABOUTME: Encodes PCM frames with libopus and writes them through pion's oggwriter
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

const (
	maxOpusPacket = 4000

	// RTP timestamps for Opus always run at 48kHz, which keeps the
	// oggwriter granule positions in the units Ogg Opus requires
	opusClockRate = 48000

	// oggwriter always advertises this pre-skip in 48kHz samples
	oggPreSkip = 3840
	// libopus delay (2.5ms lookahead plus 4ms compensation) in 48kHz samples
	opusEncoderDelay = 312
)

// OpusEncoder encodes PCM to an Ogg Opus file
type OpusEncoder struct {
	encoder *opus.Encoder
	writer  *oggwriter.OggWriter
	format  audio.Format

	frameBytes int
	pcm        []int16 // pending samples, encoded once full
	pending    int
	in         []int16
	packet     []byte
	tsStep     uint32
	seq        uint16
	timestamp  uint32
	closed     bool
}

// CreateOpus creates path and prepares it for Opus frames
func CreateOpus(path string, format audio.Format) (Encoder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format for Opus encoder: %w", err)
	}
	if format.Channels > 2 {
		return nil, fmt.Errorf("unsupported opus channel count: %d", format.Channels)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	writer, err := oggwriter.New(path, uint32(format.SampleRate), uint16(format.Channels))
	if err != nil {
		return nil, fmt.Errorf("failed to create ogg writer: %w", err)
	}

	frameBytes := format.BytesFor(FrameDuration)
	e := &OpusEncoder{
		encoder:    encoder,
		writer:     writer,
		format:     format,
		frameBytes: frameBytes,
		pcm:        make([]int16, frameBytes/2),
		in:         make([]int16, frameBytes/2),
		packet:     make([]byte, maxOpusPacket),
		tsStep:     uint32(opusClockRate * FrameDuration.Milliseconds() / 1000),
	}

	// Decoders drop the advertised pre-skip. Lead with silence so only that
	// silence and the encoder delay are dropped, never captured audio.
	lead := leadingSilence(format.SampleRate) * format.Channels
	if err := e.push(make([]int16, lead)); err != nil {
		_ = writer.Close()
		return nil, err
	}
	return e, nil
}

// leadingSilence is the number of frames of silence that, together with the
// encoder delay, fill the pre-skip that oggwriter writes into the header
func leadingSilence(rate int) int {
	return (oggPreSkip - opusEncoderDelay) * rate / opusClockRate
}

// FrameBytes returns the PCM size of one 60ms frame
func (e *OpusEncoder) FrameBytes() int {
	return e.frameBytes
}

// EncodeFrame queues one frame of PCM and encodes every full Opus frame.
// A short tail is padded with silence on Close.
func (e *OpusEncoder) EncodeFrame(frame []byte) error {
	if e.closed {
		return ErrClosed
	}
	if len(frame) > e.frameBytes {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), e.frameBytes)
	}
	if len(frame) == 0 {
		return nil
	}

	n := audio.Int16s(e.in, frame)
	return e.push(e.in[:n])
}

// push appends samples to the pending frame, encoding it each time it fills
func (e *OpusEncoder) push(samples []int16) error {
	for len(samples) > 0 {
		n := copy(e.pcm[e.pending:], samples)
		e.pending += n
		samples = samples[n:]
		if e.pending == len(e.pcm) {
			if err := e.encodePending(); err != nil {
				return err
			}
		}
	}
	return nil
}

// encodePending pads the pending frame with silence and writes it as one page
func (e *OpusEncoder) encodePending() error {
	for i := e.pending; i < len(e.pcm); i++ {
		e.pcm[i] = 0
	}
	e.pending = 0

	size, err := e.encoder.Encode(e.pcm, e.packet)
	if err != nil {
		return fmt.Errorf("opus encode error: %w", err)
	}

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: e.seq,
			Timestamp:      e.timestamp,
		},
		Payload: e.packet[:size],
	}
	if err := e.writer.WriteRTP(pkt); err != nil {
		return fmt.Errorf("failed to write opus page: %w", err)
	}

	e.seq++
	e.timestamp += e.tsStep
	return nil
}

// Close finalizes the Ogg stream, marking the last page
func (e *OpusEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	var flushErr error
	if e.pending > 0 {
		flushErr = e.encodePending()
	}
	if err := e.writer.Close(); err != nil {
		return fmt.Errorf("failed to close ogg writer: %w", err)
	}
	return flushErr
}
