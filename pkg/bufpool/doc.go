// ABOUTME: Audio buffer pool package
// ABOUTME: Hands fixed-capacity buffers between producer and consumer queues
// Package bufpool provides a pool of reusable audio buffers.
//
// Every buffer is always in exactly one place: the free list, the in-flight
// list, or the hands of the one caller that acquired or took it. Producers
// acquire a free buffer, fill it and publish it; consumers take published
// buffers in publish order and release them back to the free list.
//
// Example:
//
//	pool := bufpool.New(3, 3840)
//	if b, ok := pool.AcquireFree(); ok {
//		b.Size = copy(b.Data(), pcm)
//		_ = pool.Publish(b)
//	}
//	if b, ok := pool.TakeInFlight(); ok {
//		play(b.Bytes())
//		_ = pool.Release(b)
//	}
package bufpool
