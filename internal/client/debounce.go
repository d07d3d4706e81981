package client

import (
	"sync"
	"time"
)

// Debouncer coalesces a burst of values into a single callback invocation
// carrying the last value of the burst. Every Trigger restarts the window;
// the callback fires once per quiet period, with intermediate values never
// observed. The timer handle is explicit and owned by the debouncer.
type Debouncer struct {
	delay time.Duration
	fire  func(value string)

	mu         sync.Mutex
	timer      *time.Timer
	pending    string
	hasPending bool
	generation uint64
	stopped    bool
}

// NewDebouncer constructs a debouncer with the given quiet window. The fire
// callback runs on the timer goroutine.
func NewDebouncer(delay time.Duration, fire func(value string)) *Debouncer {
	return &Debouncer{delay: delay, fire: fire}
}

// Trigger records a new value and restarts the debounce window.
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = value
	d.hasPending = true
	d.generation++
	generation := d.generation
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.fireGeneration(generation)
	})
	d.mu.Unlock()
}

// Flush fires the pending value immediately, cancelling the scheduled timer.
// It is a no-op when nothing is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stopped || !d.hasPending {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation++
	value := d.pending
	d.hasPending = false
	d.mu.Unlock()

	d.fire(value)
}

// Stop cancels any scheduled fire and refuses further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.hasPending = false
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
}

func (d *Debouncer) fireGeneration(generation uint64) {
	d.mu.Lock()
	// A newer Trigger, Flush, or Stop supersedes this scheduled fire.
	if d.stopped || generation != d.generation || !d.hasPending {
		d.mu.Unlock()
		return
	}
	value := d.pending
	d.hasPending = false
	d.mu.Unlock()

	d.fire(value)
}
