// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts 16-bit PCM streams between sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates.
// Handles both upsampling and downsampling, one chunk at a time.
//
// Example:
//
//	r := resample.New(16000, 48000, 1)
//	out = r.Resample(out[:0], pcm)
package resample
