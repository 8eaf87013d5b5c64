// Package gesture decides whether a tap on a navigation tab navigates or
// refreshes the screen already showing.
package gesture

import (
	"sync"
	"time"
)

// RefreshTab is the only tab whose double tap triggers a refresh
const RefreshTab = "Tasks"

// DoubleTapWindow is the exclusive upper bound between two taps of a double tap
const DoubleTapWindow = 300 * time.Millisecond

// Tap is the last tap seen
type Tap struct {
	Time time.Time
	Tab  string
}

// Decision is what a tap should do
type Decision int

const (
	// Navigate switches to the tab unless it is already focused
	Navigate Decision = iota
	// Refresh asks the active screen of the tab to reload
	Refresh
)

func (d Decision) String() string {
	if d == Refresh {
		return "refresh"
	}
	return "navigate"
}

// Detector classifies taps. The zero value is ready to use.
type Detector struct {
	last Tap
}

// Classify records the tap and reports what it means. The stored tap advances
// on every call, whichever decision is returned.
func (d *Detector) Classify(tab string, now time.Time) Decision {
	prev := d.last
	d.last = Tap{Time: now, Tab: tab}

	if tab == RefreshTab && prev.Tab == tab && now.Sub(prev.Time) < DoubleTapWindow {
		return Refresh
	}
	return Navigate
}

// Last returns the recorded tap
func (d *Detector) Last() Tap { return d.last }

// Navigator is the tab bar the router drives
type Navigator interface {
	Focused(tab string) bool
	Navigate(tab string)
}

// Router applies Detector decisions to a Navigator and to the refresh
// callbacks registered by the screens.
type Router struct {
	nav Navigator

	mu         sync.Mutex
	detector   Detector
	refreshers map[string]func()
}

// NewRouter creates a router over nav
func NewRouter(nav Navigator) *Router {
	return &Router{nav: nav, refreshers: make(map[string]func())}
}

// SetRefresher registers fn as the refresh of the screen showing tab; nil removes it
func (r *Router) SetRefresher(tab string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		delete(r.refreshers, tab)
		return
	}
	r.refreshers[tab] = fn
}

// Tap handles a tap on tab at now and returns the decision taken
func (r *Router) Tap(tab string, now time.Time) Decision {
	r.mu.Lock()
	decision := r.detector.Classify(tab, now)
	refresh := r.refreshers[tab]
	r.mu.Unlock()

	switch {
	case decision == Refresh:
		if refresh != nil {
			refresh()
		}
	case !r.nav.Focused(tab):
		r.nav.Navigate(tab)
	}
	return decision
}
