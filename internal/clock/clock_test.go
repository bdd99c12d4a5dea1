package clock

import (
	"testing"
	"time"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	c := NewFake()
	var got []string
	c.AfterFunc(300*time.Millisecond, func() { got = append(got, "c") })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, "a") })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, "b") })

	c.Advance(200 * time.Millisecond)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("after 200ms fired %v, want [a b]", got)
	}
	if c.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", c.Pending())
	}

	c.Advance(100 * time.Millisecond)
	if len(got) != 3 || got[2] != "c" {
		t.Errorf("fired %v, want [a b c]", got)
	}
}

func TestFakeNowDuringCallback(t *testing.T) {
	c := NewFake()
	start := c.Now()
	var at time.Duration
	c.AfterFunc(100*time.Millisecond, func() { at = c.Now().Sub(start) })

	c.Advance(time.Second)
	if at != 100*time.Millisecond {
		t.Errorf("callback saw %v, want 100ms", at)
	}
	if got := c.Now().Sub(start); got != time.Second {
		t.Errorf("Now after Advance = %v, want 1s", got)
	}
}

func TestFakeChainedTimers(t *testing.T) {
	c := NewFake()
	var fired []time.Duration
	start := c.Now()
	c.AfterFunc(100*time.Millisecond, func() {
		fired = append(fired, c.Now().Sub(start))
		c.AfterFunc(1200*time.Millisecond, func() {
			fired = append(fired, c.Now().Sub(start))
		})
	})

	c.Advance(2 * time.Second)
	if len(fired) != 2 || fired[1] != 1300*time.Millisecond {
		t.Errorf("fired at %v, want [100ms 1.3s]", fired)
	}
}

func TestFakeStop(t *testing.T) {
	c := NewFake()
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	if !tm.Stop() {
		t.Error("first Stop should report true")
	}
	if tm.Stop() {
		t.Error("second Stop should report false")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestSchedulePostsThroughWrapper(t *testing.T) {
	c := NewFake()
	var posted []func()
	schedule := Schedule(c, func(fn func()) { posted = append(posted, fn) })

	ran := false
	schedule(50*time.Millisecond, func() { ran = true })
	cancel := schedule(50*time.Millisecond, func() { t.Error("cancelled callback ran") })
	cancel()

	c.Advance(50 * time.Millisecond)
	if ran {
		t.Fatal("callback ran before the posted func was invoked")
	}
	if len(posted) != 1 {
		t.Fatalf("posted %d funcs, want 1", len(posted))
	}
	posted[0]()
	if !ran {
		t.Error("posted func did not run the callback")
	}
}
