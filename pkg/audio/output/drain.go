// ABOUTME: Drain marker bookkeeping shared by output backends
// ABOUTME: Fires callbacks once the played byte position passes their target
package output

import "sync"

type drainMarker struct {
	target int64
	fn     func()
}

// drainTracker holds pending drain markers in target order
type drainTracker struct {
	mu      sync.Mutex
	pending []drainMarker
}

// add registers fn to fire once position reaches target. If played is
// already past target, fn fires right away.
func (d *drainTracker) add(target, played int64, fn func()) {
	if fn == nil {
		return
	}
	if played >= target {
		go fn()
		return
	}

	d.mu.Lock()
	d.pending = append(d.pending, drainMarker{target: target, fn: fn})
	d.mu.Unlock()
}

// advance fires every marker whose target is at or below played
func (d *drainTracker) advance(played int64) {
	d.mu.Lock()
	if len(d.pending) == 0 || d.pending[0].target > played {
		d.mu.Unlock()
		return
	}

	var due []drainMarker
	i := 0
	for ; i < len(d.pending) && d.pending[i].target <= played; i++ {
		due = append(due, d.pending[i])
	}
	d.pending = append(d.pending[:0], d.pending[i:]...)
	d.mu.Unlock()

	for _, m := range due {
		go m.fn()
	}
}

// waiting reports whether any marker is pending
func (d *drainTracker) waiting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending) > 0
}

// clear drops pending markers without firing them
func (d *drainTracker) clear() {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
}
