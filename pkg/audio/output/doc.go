// ABOUTME: Audio output package for playing PCM
// ABOUTME: Provides the Device contract with malgo and oto backends
// Package output provides audio playback devices.
//
// Supports: malgo (miniaudio) and oto. Both accept 16-bit interleaved PCM.
//
// A Device reports through NotifyDrained once every byte written so far has
// been handed to the hardware, which is how callers learn that playback of a
// stream has really finished.
//
// Example:
//
//	dev, err := output.NewMalgo(format, 3840)
//	err = dev.Start()
//	n, err := dev.Write(pcm)
//	dev.NotifyDrained(func() { log.Printf("done") })
package output
