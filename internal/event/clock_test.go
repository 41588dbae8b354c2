package event

import (
	"testing"
	"time"
)

func TestAdvanceFiresInOrder(t *testing.T) {
	c := NewClock()

	var fired []int
	c.AfterFunc(3*time.Second, func() { fired = append(fired, 3) })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, 1) })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, 2) })

	c.Advance(90 * time.Second)

	if len(fired) != 3 || fired[0] != 1 || fired[1] != 2 || fired[2] != 3 {
		t.Errorf("timers fired in order %v", fired)
	}
}

func TestTimerSeesOwnDeadlineAsNow(t *testing.T) {
	c := NewClock()
	start := c.Now()

	var at int64
	c.AfterFunc(5*time.Second, func() { at = c.Now() })
	c.Advance(10 * time.Second)

	if want := start + int64(5*time.Second); at != want {
		t.Errorf("timer fired at %d, want %d", at, want)
	}
	if want := start + int64(10*time.Second); c.Now() != want {
		t.Errorf("clock at %d after advance, want %d", c.Now(), want)
	}
}

func TestStop(t *testing.T) {
	c := NewClock()

	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	if !tm.Stop() {
		t.Error("Stop on armed timer should report true")
	}
	if tm.Stop() {
		t.Error("second Stop should report false")
	}

	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestReset(t *testing.T) {
	c := NewClock()

	count := 0
	tm := c.AfterFunc(time.Second, func() { count++ })

	c.Advance(2 * time.Second)
	if count != 1 {
		t.Fatalf("timer fired %d times, want 1", count)
	}
	if tm.Armed() {
		t.Error("fired timer should not be armed")
	}

	tm.Reset(time.Second)
	c.Advance(2 * time.Second)
	if count != 2 {
		t.Errorf("reset timer fired %d times total, want 2", count)
	}
}

func TestNestedTimers(t *testing.T) {
	c := NewClock()

	var fired []string
	c.AfterFunc(time.Second, func() {
		fired = append(fired, "outer")
		c.AfterFunc(time.Second, func() {
			fired = append(fired, "inner")
		})
	})

	c.Advance(5 * time.Second)
	if len(fired) != 2 || fired[0] != "outer" || fired[1] != "inner" {
		t.Errorf("nested timers fired %v", fired)
	}

	if _, ok := c.NextDeadline(); ok {
		t.Error("no timers should remain armed")
	}
}
