package viewport

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last update before the
// visible range is recomputed.
const DefaultDebounce = 150 * time.Millisecond

// Debouncer coalesces bursts of updates. Only the last value of a burst is
// delivered, once no update has arrived for the delay.
type Debouncer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(T)
	timer   *time.Timer
	pending T
	armed   bool
	stopped bool
	// gen identifies the latest timer so a stale one that already fired
	// cannot deliver early.
	gen uint64
}

// NewDebouncer creates a Debouncer that calls fn on its own goroutine.
// A delay of zero uses DefaultDebounce.
func NewDebouncer[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Update records v and restarts the quiet period.
func (d *Debouncer[T]) Update(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = v
	d.armed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush delivers a pending value immediately.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	v, ok := d.take()
	d.mu.Unlock()
	if ok {
		d.fn(v)
	}
}

// Stop drops any pending value. Later updates are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.armed = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	v, ok := d.take()
	d.mu.Unlock()
	if ok {
		d.fn(v)
	}
}

// take must be called with mu held.
func (d *Debouncer[T]) take() (T, bool) {
	var zero T
	if !d.armed || d.stopped {
		return zero, false
	}
	v := d.pending
	d.pending = zero
	d.armed = false
	return v, true
}
