// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and 16-bit PCM conversion helpers
// Package audio provides the stream format type shared by codecs, devices
// and engines.
//
// All PCM moved through the pipeline is interleaved signed 16-bit
// little-endian. Helpers convert between that byte layout, int16 samples,
// and wider integer samples from lossless decoders.
//
// Example:
//
//	format := audio.Format{
//	    Codec:      "opus",
//	    SampleRate: 16000,
//	    Channels:   1,
//	    BitDepth:   16,
//	}
//
//	frame := format.FrameBytes() // 2 bytes per mono 16-bit frame
package audio
