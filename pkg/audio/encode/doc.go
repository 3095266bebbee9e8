// ABOUTME: Audio file encoder package
// ABOUTME: Provides the Encoder contract and Ogg Opus and WAV writers
// Package encode writes 16-bit interleaved PCM to audio files.
//
// Supports: Ogg Opus, WAV
//
// Encoders consume fixed-size frames of FrameBytes bytes. A shorter frame is
// only allowed as the last one before Close.
//
// Example:
//
//	enc, err := encode.CreateOpus("voice.opus", format)
//	err = enc.EncodeFrame(frame)
//	err = enc.Close()
package encode
