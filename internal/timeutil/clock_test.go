package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	c := NewRealClock()
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestMockClock_SleepRecordsAndAdvances(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Sleep(200 * time.Millisecond)
	c.Sleep(200 * time.Millisecond)

	sleeps := c.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("Sleeps() returned %d entries, want 2", len(sleeps))
	}
	for i, d := range sleeps {
		if d != 200*time.Millisecond {
			t.Errorf("sleep %d = %v, want 200ms", i, d)
		}
	}
	if got, want := c.Now(), start.Add(400*time.Millisecond); !got.Equal(want) {
		t.Errorf("Now() after sleeps = %v, want %v", got, want)
	}
}

func TestMockClock_Since(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	c.Advance(3 * time.Second)
	if got := c.Since(start); got != 3*time.Second {
		t.Errorf("Since(start) = %v, want 3s", got)
	}
}

func TestMockClock_AfterFiresOnAdvance(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ch := c.After(50 * time.Millisecond)

	select {
	case <-ch:
		t.Fatal("After fired before the clock advanced")
	default:
	}

	c.Advance(49 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	c.Advance(1 * time.Millisecond)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("After did not fire once the deadline passed")
	}
}

func TestMockClock_AfterImmediateForZero(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	select {
	case <-c.After(0):
	case <-time.After(time.Second):
		t.Fatal("After(0) did not fire immediately")
	}
}
