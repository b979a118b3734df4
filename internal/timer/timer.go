// Package timer implements the countdown collaborator used by the game
// engine on top of time.AfterFunc.
//
// A Countdown fires its callback at most once per Schedule. Each Schedule or
// Cancel starts a new generation; callbacks from older generations are
// dropped, even when they were already waiting to run.
package timer

import (
	"sync"
	"time"
)

// Countdown is a reschedulable one-shot timer.
type Countdown struct {
	locker sync.Locker
	now    func() time.Time

	mu  sync.Mutex
	t   *time.Timer
	gen uint64
}

// New returns a Countdown whose callbacks run while holding locker, so they
// serialise with whatever else the owner does under the same lock. locker
// may be nil. Schedule and Cancel may be called with locker held.
func New(locker sync.Locker) *Countdown {
	return &Countdown{locker: locker, now: time.Now}
}

// Schedule arms the countdown for deadline, replacing any pending one.
// A deadline in the past fires as soon as possible.
func (c *Countdown) Schedule(deadline time.Time, onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	gen := c.gen
	d := max(deadline.Sub(c.now()), 0)
	c.t = time.AfterFunc(d, func() { c.fire(gen, onExpire) })
}

// Cancel disarms the countdown. Pending callbacks will not run.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Pending reports whether a callback is armed and has not fired.
func (c *Countdown) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t != nil
}

func (c *Countdown) stopLocked() {
	if c.t != nil {
		c.t.Stop()
		c.t = nil
	}
	c.gen++
}

func (c *Countdown) fire(gen uint64, onExpire func()) {
	// Lock order is locker then mu, the same as Schedule called under locker.
	if c.locker != nil {
		c.locker.Lock()
		defer c.locker.Unlock()
	}
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.t = nil
	c.gen++
	c.mu.Unlock()

	onExpire()
}
