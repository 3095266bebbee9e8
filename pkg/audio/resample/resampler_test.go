// ABOUTME: Tests for the streaming resampler
// ABOUTME: Checks passthrough, rate ratios and chunk seam continuity
package resample

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func ramp(frames, channels int) []byte {
	out := make([]byte, frames*channels*2)
	for i := 0; i < frames*channels; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(i*10)))
	}
	return out
}

func TestResamplePassthrough(t *testing.T) {
	r := New(16000, 16000, 1)
	src := ramp(100, 1)

	got := r.Resample(nil, src)
	if !bytes.Equal(got, src) {
		t.Error("equal rates should copy input unchanged")
	}
}

func TestResampleRatios(t *testing.T) {
	tests := []struct {
		name     string
		in, out  int
		channels int
		frames   int
	}{
		{"upsample 16k to 48k mono", 16000, 48000, 1, 1600},
		{"downsample 48k to 16k stereo", 48000, 16000, 2, 4800},
		{"upsample 44.1k to 48k stereo", 44100, 48000, 2, 4410},
	}

	for _, tt := range tests {
		r := New(tt.in, tt.out, tt.channels)
		got := r.Resample(nil, ramp(tt.frames, tt.channels))

		gotFrames := len(got) / (tt.channels * 2)
		want := r.OutputFramesFor(tt.frames)
		// The last input frame is held back for the next chunk
		if gotFrames < want-8 || gotFrames > want {
			t.Errorf("%s: expected about %d frames, got %d", tt.name, want, gotFrames)
		}
	}
}

func TestResampleChunksMatchWhole(t *testing.T) {
	src := ramp(3000, 2)

	whole := New(44100, 48000, 2).Resample(nil, src)

	r := New(44100, 48000, 2)
	var chunked []byte
	for _, size := range []int{1, 37, 512, 1000, 1450} {
		n := size * 4
		chunked = r.Resample(chunked, src[:n])
		src = src[n:]
	}

	if !bytes.Equal(whole, chunked) {
		t.Errorf("chunked output differs: %d bytes vs %d", len(chunked), len(whole))
	}
}

func TestResampleInterpolates(t *testing.T) {
	// 0, 1000 upsampled 2x should put 500 between them
	src := make([]byte, 4)
	binary.LittleEndian.PutUint16(src[2:], 1000)

	got := New(8000, 16000, 1).Resample(nil, src)
	if len(got) < 4 {
		t.Fatalf("expected at least two samples, got %d bytes", len(got))
	}
	if v := int16(binary.LittleEndian.Uint16(got[2:])); v != 500 {
		t.Errorf("expected interpolated 500, got %d", v)
	}
}

func TestResampleReset(t *testing.T) {
	r := New(16000, 48000, 1)
	first := r.Resample(nil, ramp(10, 1))
	r.Reset()
	second := r.Resample(nil, ramp(10, 1))

	if !bytes.Equal(first, second) {
		t.Error("output after Reset should match a fresh resampler")
	}
}

func TestClamp16(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{40000, 32767},
		{-40000, -32768},
		{12.4, 12},
		{-12.6, -13},
	}
	for _, tt := range tests {
		if got := clamp16(tt.in); got != tt.want {
			t.Errorf("clamp16(%v) = %d, expected %d", tt.in, got, tt.want)
		}
	}
}
