// Package event provides the simulated time source consumed by the syscall
// handler: a clock that only moves when the simulation advances it, and
// one-shot timers scheduled against that clock.
//
// Nothing in this package spawns goroutines. Timers fire synchronously from
// Advance, in deadline order, on the caller's goroutine; the surrounding
// scheduler decides when to advance.
package event

import (
	"time"
)

// Clock is a simulated clock. The zero time is a fixed date so simulations
// are reproducible run to run.
type Clock struct {
	now  int64 // unix nsec
	heap timerHeap
}

func NewClock() *Clock {
	return &Clock{
		now: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano(),
	}
}

// Now returns the current simulated time in unix nanoseconds.
func (c *Clock) Now() int64 {
	return c.now
}

// AfterFunc schedules fn to run when the simulated clock reaches now+d. The
// returned timer is armed; stopping it before it fires discards fn.
func (c *Clock) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{
		clock: c,
		when:  c.now + int64(d),
		fn:    fn,
		pos:   -1,
	}
	c.heap.add(t)
	return t
}

// NextDeadline returns the deadline of the earliest armed timer.
func (c *Clock) NextDeadline() (int64, bool) {
	if c.heap.len() == 0 {
		return 0, false
	}
	return c.heap.peek().when, true
}

// Advance moves the clock forward by d, firing every timer whose deadline is
// reached in deadline order. A timer callback may arm new timers; those fire
// in the same call if they fall within the advance window.
func (c *Clock) Advance(d time.Duration) {
	c.AdvanceTo(c.now + int64(d))
}

// AdvanceTo moves the clock to the absolute time when, firing due timers.
// Moving backwards panics.
func (c *Clock) AdvanceTo(when int64) {
	if when < c.now {
		panic("clock moving backwards")
	}
	for c.heap.len() > 0 && c.heap.peek().when <= when {
		t := c.heap.pop()
		c.now = t.when
		t.fn()
	}
	c.now = when
}

// A Timer is a one-shot deadline on a Clock. It fires at most once; Stop
// disarms it if it has not fired yet.
type Timer struct {
	clock *Clock
	when  int64
	pos   int
	fn    func()
}

// Armed reports whether the timer is still scheduled to fire.
func (t *Timer) Armed() bool {
	return t.pos != -1
}

// When returns the timer's deadline.
func (t *Timer) When() int64 {
	return t.when
}

// Stop disarms the timer. It reports whether the timer was still armed; false
// means the timer already fired or was already stopped.
func (t *Timer) Stop() bool {
	if t.pos == -1 {
		return false
	}
	t.clock.heap.remove(t)
	return true
}

// Reset re-arms the timer for now+d. The timer must not be armed.
func (t *Timer) Reset(d time.Duration) {
	if t.pos != -1 {
		panic("resetting armed timer")
	}
	t.when = t.clock.now + int64(d)
	t.clock.heap.add(t)
}
