// ABOUTME: Output wrapper that runs a device at a fixed sample rate
// ABOUTME: Converts each write from the stream rate before it reaches the device
package output

import (
	"io"

	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/resample"
)

// Resampled returns an opener whose devices always run at rate. Streams at
// another rate are converted on Write. A rate of zero disables conversion.
func Resampled(open Opener, rate int) Opener {
	return func(format audio.Format, bufferSize int) (Device, error) {
		if rate <= 0 || format.SampleRate == rate {
			return open(format, bufferSize)
		}

		deviceFormat := format
		deviceFormat.SampleRate = rate
		dev, err := open(deviceFormat, bufferSize*rate/format.SampleRate)
		if err != nil {
			return nil, err
		}
		return &resampledDevice{
			Device:     dev,
			conv:       resample.New(format.SampleRate, rate, format.Channels),
			frameBytes: format.FrameBytes(),
		}, nil
	}
}

// resampledDevice is written from one goroutine at a time
type resampledDevice struct {
	Device
	conv       *resample.Resampler
	frameBytes int

	carry []byte // partial frame from the previous write
	in    []byte
	out   []byte
}

func (d *resampledDevice) Start() error {
	d.conv.Reset()
	d.carry = d.carry[:0]
	return d.Device.Start()
}

// Write converts p and writes all of it. The count is in stream bytes.
func (d *resampledDevice) Write(p []byte) (int, error) {
	d.in = append(d.in[:0], d.carry...)
	d.in = append(d.in, p...)
	whole := len(d.in) - len(d.in)%d.frameBytes
	d.carry = append(d.carry[:0], d.in[whole:]...)

	d.out = d.conv.Resample(d.out[:0], d.in[:whole])
	for data := d.out; len(data) > 0; {
		n, err := d.Device.Write(data)
		data = data[n:]
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.ErrShortWrite
		}
	}
	return len(p), nil
}
