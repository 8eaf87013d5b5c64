package form

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock schedules on real time
var SystemClock Clock = systemClock{}

type scheduled struct {
	timer Timer
	seq   uint64
}

// Debouncer keeps at most one pending callback per key. Scheduling a key
// cancels the callback already pending for it; a callback runs at most once,
// and never after Cancel or Stop.
type Debouncer struct {
	clock Clock
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*scheduled
	seq     uint64
	stopped bool
}

// NewDebouncer creates a debouncer that runs callbacks delay after the last Schedule
func NewDebouncer(clock Clock, delay time.Duration) *Debouncer {
	if clock == nil {
		clock = SystemClock
	}
	return &Debouncer{
		clock:   clock,
		delay:   delay,
		pending: make(map[string]*scheduled),
	}
}

// Schedule replaces any pending callback for key with fn
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if p := d.pending[key]; p != nil {
		p.timer.Stop()
	}
	d.seq++
	p := &scheduled{seq: d.seq}
	d.pending[key] = p
	seq := p.seq
	p.timer = d.clock.AfterFunc(d.delay, func() { d.fire(key, seq, fn) })
}

// fire runs fn unless it was superseded or cancelled while the timer was in flight
func (d *Debouncer) fire(key string, seq uint64, fn func()) {
	d.mu.Lock()
	p := d.pending[key]
	if d.stopped || p == nil || p.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	fn()
}

// Cancel drops the pending callback for key, if any
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.pending[key]; p != nil {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending reports whether a callback is scheduled for key
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending[key] != nil
}

// Stop cancels everything and refuses further scheduling. Used on teardown.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}
