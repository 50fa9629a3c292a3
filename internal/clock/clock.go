// Package clock implements the Virtual Clock (spec.md §4.1): a rate-
// adjustable, pausable monotonic clock over bag timestamps.
//
// The "any state change wakes all sleepers" requirement is implemented with
// sync.Cond, the same primitive the retrieval pack reaches for whenever a
// waiter needs to be woken by an unrelated mutator goroutine (see
// vitess's messager.messageManager and surgemq's Session, both of which
// guard a wait loop with a *sync.Cond rather than a channel — the natural
// fit here too, since an arbitrary number of mutators (pause/resume/
// set_rate/jump) must each be able to wake an arbitrary number of sleepers
// without a dedicated channel per caller).
package clock

import (
	"sync"
	"time"
)

// Clock is a rate-controlled, pausable virtual clock over bag time
// (nanoseconds since epoch).
type Clock struct {
	mu   sync.Mutex
	cond *sync.Cond

	baseBagTime  int64
	baseWallTime time.Time
	rate         float64
	paused       bool
	pausedAt     int64

	// generation increments on every mutator call so SleepUntil can detect
	// "something changed while I was waiting" even if now() happens to
	// return the same value (e.g. pause() followed immediately by resume()).
	generation uint64

	nowFn func() time.Time // overridable for tests
}

// New creates a clock based at startingTime, running at rate 1.0.
func New(startingTime int64) *Clock {
	c := &Clock{
		baseBagTime: startingTime,
		rate:        1.0,
		nowFn:       time.Now,
	}
	c.baseWallTime = c.nowFn()
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Now returns the current bag time.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowLocked()
}

func (c *Clock) nowLocked() int64 {
	if c.paused {
		return c.pausedAt
	}
	elapsed := c.nowFn().Sub(c.baseWallTime)
	return c.baseBagTime + int64(float64(elapsed)*c.rate)
}

// SleepUntil blocks until Now() >= target. It returns true once that holds.
// It returns false if a mutator (SetRate/Pause/Resume/Jump) changed clock
// state before the target was reached; callers must treat false as "retry
// with the current target" rather than as an error — this is what lets a
// rate change or pause take effect mid-sleep instead of only between
// messages.
func (c *Clock) SleepUntil(target int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	startGen := c.generation
	for {
		if c.paused {
			// Parked indefinitely; any mutator (including resume) bumps the
			// generation and wakes us, at which point the caller re-evaluates.
			c.waitOnceLocked(0)
			if c.generation != startGen {
				return false
			}
			continue
		}
		now := c.nowLocked()
		if now >= target {
			return true
		}
		wait := time.Duration(float64(target-now) / c.rate)
		c.waitOnceLocked(wait)
		if c.generation != startGen {
			return false
		}
		// Otherwise this was a genuine timeout (or a spurious cond wakeup);
		// loop around and re-check now() against target.
	}
}

// waitOnceLocked parks on the condition variable until either a mutator
// calls bumpLocked (Signal/Broadcast) or d elapses, whichever is first. If
// d <= 0 it parks until a mutator wakes it (used for the paused tail-wait).
// c.mu must be held on entry and is held again on return.
func (c *Clock) waitOnceLocked(d time.Duration) {
	var timer *time.Timer
	if d > 0 {
		timer = time.AfterFunc(d, func() {
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		})
		defer timer.Stop()
	}
	c.cond.Wait()
}

// SetRate accepts r > 0 only; returns whether it was accepted. On
// acceptance, rebase base_bag_time = now(), base_wall_time = wall_now, and
// wake all sleepers.
func (c *Clock) SetRate(r float64) bool {
	if r <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowLocked()
	c.baseBagTime = now
	c.baseWallTime = c.nowFn()
	c.rate = r
	c.bumpLocked()
	return true
}

// Rate returns the current rate multiplier.
func (c *Clock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Pause snapshots the current bag time and stops advancing it.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.pausedAt = c.nowLocked()
	c.paused = true
	c.bumpLocked()
}

// Resume rebases both bases from the paused snapshot and resumes advancing.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.baseBagTime = c.pausedAt
	c.baseWallTime = c.nowFn()
	c.paused = false
	c.bumpLocked()
}

// IsPaused reports the current pause state.
func (c *Clock) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Jump sets the clock's bag time directly (used by seek()). base_wall_time
// is rebased to now; if paused, paused_at is updated too so Now() reflects
// the jump immediately.
func (c *Clock) Jump(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseBagTime = t
	c.baseWallTime = c.nowFn()
	if c.paused {
		c.pausedAt = t
	}
	c.bumpLocked()
}

func (c *Clock) bumpLocked() {
	c.generation++
	c.cond.Broadcast()
}
