package ticker

import "time"

// Ticker is the interface code that wants periodic wakeups depends
// on, so tests can substitute Mock for a real clock.
type Ticker interface {
	// Ticks returns the channel on which ticks are delivered.
	Ticks() <-chan time.Time

	// Resume starts the ticker delivering ticks at its interval.
	Resume()

	// Pause stops ticks from being delivered without releasing the
	// ticker's resources.
	Pause()

	// Stop releases the ticker's resources. The ticker may not be
	// restarted after Stop.
	Stop()
}

// DefaultTicker wraps time.Ticker to satisfy Ticker.
type DefaultTicker struct {
	t      *time.Ticker
	paused chan struct{}
}

// New returns a Ticker backed by a real time.Ticker, which starts
// ticking immediately; Resume and Pause have no effect on it.
func New(interval time.Duration) *DefaultTicker {
	return &DefaultTicker{
		t:      time.NewTicker(interval),
		paused: make(chan struct{}),
	}
}

// Ticks implements Ticker.
func (d *DefaultTicker) Ticks() <-chan time.Time {
	return d.t.C
}

// Resume implements Ticker. time.Ticker has no pause primitive, so
// this is a no-op; callers that need pause/resume semantics in tests
// should use Mock instead.
func (d *DefaultTicker) Resume() {}

// Pause implements Ticker. See Resume.
func (d *DefaultTicker) Pause() {}

// Stop implements Ticker.
func (d *DefaultTicker) Stop() {
	d.t.Stop()
}
