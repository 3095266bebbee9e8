// ABOUTME: Tests for audio types
// ABOUTME: Tests format math and sample conversion functions
package audio

import (
	"testing"
	"time"
)

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"mono 16k", Format{SampleRate: 16000, Channels: 1, BitDepth: 16}, false},
		{"stereo 48k", Format{SampleRate: 48000, Channels: 2, BitDepth: 16}, false},
		{"zero rate", Format{SampleRate: 0, Channels: 1, BitDepth: 16}, true},
		{"zero channels", Format{SampleRate: 16000, Channels: 0, BitDepth: 16}, true},
		{"24 bit", Format{SampleRate: 48000, Channels: 2, BitDepth: 24}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormatMath(t *testing.T) {
	f := Format{Codec: "opus", SampleRate: 16000, Channels: 1, BitDepth: 16}

	if got := f.FrameBytes(); got != 2 {
		t.Errorf("FrameBytes() = %d, want 2", got)
	}
	if got := f.BytesPerSecond(); got != 32000 {
		t.Errorf("BytesPerSecond() = %d, want 32000", got)
	}
	if got := f.BytesFor(2 * time.Second); got != 64000 {
		t.Errorf("BytesFor(2s) = %d, want 64000", got)
	}
	if got := f.Duration(1920); got != 60*time.Millisecond {
		t.Errorf("Duration(1920) = %v, want 60ms", got)
	}
	if got := f.String(); got != "opus 16000Hz 1ch 16bit" {
		t.Errorf("String() = %q", got)
	}

	stereo := Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
	if got := stereo.BytesFor(10 * time.Millisecond); got != 1920 {
		t.Errorf("BytesFor(10ms) = %d, want 1920", got)
	}
}

func TestInt16RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 1000, -1000, MaxInt16, MinInt16}
	buf := make([]byte, len(samples)*2)

	if n := PutInt16(buf, samples); n != len(buf) {
		t.Fatalf("PutInt16() = %d, want %d", n, len(buf))
	}

	out := make([]int16, len(samples))
	if n := Int16s(out, buf); n != len(samples) {
		t.Fatalf("Int16s() = %d, want %d", n, len(samples))
	}
	for i := range samples {
		if out[i] != samples[i] {
			t.Errorf("sample %d: got %d, want %d", i, out[i], samples[i])
		}
	}
}

func TestInt16sLittleEndian(t *testing.T) {
	out := make([]int16, 2)
	n := Int16s(out, []byte{0x00, 0x01, 0x02, 0x03, 0xFF})
	if n != 2 {
		t.Fatalf("expected 2 samples, got %d", n)
	}
	if out[0] != 256 || out[1] != 770 {
		t.Errorf("got %v, want [256 770]", out)
	}
}

func TestScaleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		sample   int32
		bitDepth int
		expected int16
	}{
		{"16 bit passthrough", -1234, 16, -1234},
		{"24 bit max", 8388607, 24, 32767},
		{"24 bit min", -8388608, 24, -32768},
		{"8 bit", 127, 8, 127 << 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaleToInt16(tt.sample, tt.bitDepth); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestFloatToInt16(t *testing.T) {
	tests := []struct {
		input    float32
		expected int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2, MaxInt16},
		{-2, MinInt16},
	}

	for _, tt := range tests {
		if got := FloatToInt16(tt.input); got != tt.expected {
			t.Errorf("FloatToInt16(%v) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}
