// ABOUTME: Streaming linear resampler for interleaved 16-bit PCM
// ABOUTME: Carries the last input frame across chunks so output is seamless
package resample

import (
	"encoding/binary"
	"math"
)

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64

	// position is measured from the carried frame in units of
	// 1/outputRate input frames, so chunk seams add no rounding error
	position  int64
	lastFrame []int16 // one sample per channel
	primed    bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]int16, channels),
	}
}

// Resample converts src (interleaved little-endian 16-bit PCM, whole frames)
// and appends the result to dst. Output for consecutive chunks is identical
// to converting their concatenation.
func (r *Resampler) Resample(dst, src []byte) []byte {
	frameBytes := r.channels * 2
	srcFrames := len(src) / frameBytes
	if r.inputRate == r.outputRate {
		return append(dst, src[:srcFrames*frameBytes]...)
	}
	if srcFrames == 0 {
		return dst
	}

	// The virtual input is the carried frame (once primed) followed by src
	offset := 0
	if r.primed {
		offset = 1
	}
	total := srcFrames + offset

	sample := func(frame, ch int) float64 {
		if frame < offset {
			return float64(r.lastFrame[ch])
		}
		i := (frame-offset)*frameBytes + ch*2
		return float64(int16(binary.LittleEndian.Uint16(src[i:])))
	}

	step := int64(r.inputRate)
	unit := int64(r.outputRate)

	var out [2]byte
	for {
		idx := int(r.position / unit)
		if idx >= total-1 {
			break
		}

		// Linear interpolation factor
		frac := float64(r.position%unit) / float64(unit)

		for ch := 0; ch < r.channels; ch++ {
			v := sample(idx, ch)*(1.0-frac) + sample(idx+1, ch)*frac
			binary.LittleEndian.PutUint16(out[:], uint16(clamp16(v)))
			dst = append(dst, out[:]...)
		}
		r.position += step
	}

	// Keep the final frame so the next chunk interpolates across the seam
	for ch := 0; ch < r.channels; ch++ {
		r.lastFrame[ch] = int16(sample(total-1, ch))
	}
	r.position -= int64(total-1) * unit
	r.primed = true

	return dst
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// OutputFramesFor estimates how many output frames inputFrames produce
func (r *Resampler) OutputFramesFor(inputFrames int) int {
	return int(math.Ceil(float64(inputFrames) / r.ratio))
}

func clamp16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
