package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now().UTC()
	got := RealClock{}.Now()
	after := time.Now().UTC()

	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v, want between %v and %v", got, before, after)
	}
	if got.Location() != time.UTC {
		t.Errorf("RealClock.Now() location = %v, want UTC", got.Location())
	}
}

func TestFixedClock_Now(t *testing.T) {
	fixedTime := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	clock := FixedClock{Time: fixedTime}

	got := clock.Now()

	if !got.Equal(fixedTime) {
		t.Errorf("FixedClock.Now() = %v, want %v", got, fixedTime)
	}

	// Should return same time on multiple calls
	got2 := clock.Now()
	if !got2.Equal(fixedTime) {
		t.Errorf("FixedClock.Now() second call = %v, want %v", got2, fixedTime)
	}
}

func TestManualClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("ManualClock initial Now() = %v, want %v", clock.Now(), start)
	}

	clock.Advance(61 * time.Second)
	want := start.Add(61 * time.Second)
	if !clock.Now().Equal(want) {
		t.Errorf("ManualClock.Now() after Advance = %v, want %v", clock.Now(), want)
	}

	later := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("ManualClock.Now() after Set = %v, want %v", clock.Now(), later)
	}
}
