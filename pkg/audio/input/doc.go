// ABOUTME: Audio input package for capturing PCM
// ABOUTME: Provides the Device contract and a malgo capture backend
// Package input provides audio capture devices.
//
// Example:
//
//	dev, err := input.NewMalgo(format, 12800)
//	err = dev.Start()
//	n, err := dev.Read(buf)
package input
