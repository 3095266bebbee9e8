// ABOUTME: Serial task queue package
// ABOUTME: Provides single-worker FIFO executors owned by the audio engines
// Package dispatch provides serial task queues.
//
// A Queue owns one worker goroutine and runs posted tasks one at a time in
// posting order. Post never blocks. Queues coordinate only by posting tasks
// to each other.
//
// Example:
//
//	q := dispatch.New("decode", dispatch.WithLockedThread())
//	_ = q.Post(func() { decodeNext() })
//	q.Stop(true)
//	q.Wait()
package dispatch
