package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	now := c.Now()
	if now.Before(before) {
		t.Errorf("RealClock.Now() = %v, before %v", now, before)
	}
	if c.Since(before) < 0 {
		t.Error("RealClock.Since returned negative duration")
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}
	c.Advance(5 * time.Second)
	if got := c.Since(start); got != 5*time.Second {
		t.Errorf("Since() = %v, want 5s", got)
	}
}

func TestSteppingClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewSteppingClock(start, time.Second)

	first := c.Now()
	second := c.Now()
	if second.Sub(first) != time.Second {
		t.Errorf("expected 1s step, got %v", second.Sub(first))
	}
}

func TestStopwatch(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	sw := StartStopwatch(c)
	c.Advance(250 * time.Millisecond)

	if sw.Elapsed() != 250*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 250ms", sw.Elapsed())
	}
	if !sw.Started().Equal(start) {
		t.Errorf("Started() = %v, want %v", sw.Started(), start)
	}

	// nil falls back to the real clock
	if StartStopwatch(nil).Elapsed() < 0 {
		t.Error("real stopwatch returned negative elapsed time")
	}
}
