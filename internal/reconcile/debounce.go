package reconcile

import (
	"sync"
	"time"
)

// debouncer coalesces rapid scheduling into a single deferred call: each
// Schedule replaces any pending timer, so only the last call within the
// window actually fires. A window of zero runs the function synchronously,
// which keeps tests deterministic.
type debouncer struct {
	mu     sync.Mutex
	window time.Duration
	timer  *time.Timer
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window}
}

// Schedule arranges for fn to run after the window elapses, superseding any
// previously scheduled call that has not fired yet.
func (d *debouncer) Schedule(fn func()) {
	if d.window <= 0 {
		fn()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, fn)
}

// Stop cancels any pending call.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
