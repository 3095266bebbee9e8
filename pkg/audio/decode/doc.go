// ABOUTME: Audio file decoder package
// ABOUTME: Provides the Decoder contract and Opus, Vorbis, MP3, FLAC, WAV and AIFF readers
// Package decode reads compressed audio files as 16-bit interleaved PCM.
//
// Supports: Ogg Opus, Ogg Vorbis, MP3, FLAC, WAV, AIFF
//
// Every decoder fills caller-owned buffers through DecodeInto. The read that
// delivers the last bytes of the stream has Result.Final set, so a consumer
// never needs an extra empty read to learn that the stream ended.
//
// Example:
//
//	dec, err := decode.OpenOpus("voice.opus")
//	buf := make([]byte, 3840)
//	res, err := dec.DecodeInto(buf)
package decode
