package recall

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNextStateCorrectRecall(t *testing.T) {
	// Perfect recall on a mature item: interval multiplies by prior ease.
	got := NextState(5, State{IntervalDays: 6, EaseFactor: 2.5, ReviewCount: 2})
	if got.IntervalDays != 15 {
		t.Errorf("interval = %d, want 15", got.IntervalDays)
	}
	if !almostEqual(got.EaseFactor, 2.6) {
		t.Errorf("ease = %v, want 2.6", got.EaseFactor)
	}
	if got.ReviewCount != 3 {
		t.Errorf("review count = %d, want 3", got.ReviewCount)
	}
}

func TestNextStateFailedRecall(t *testing.T) {
	// Quality below 3 resets interval and count; ease still drops.
	got := NextState(2, State{IntervalDays: 6, EaseFactor: 2.5, ReviewCount: 2})
	if got.IntervalDays != 1 {
		t.Errorf("interval = %d, want 1", got.IntervalDays)
	}
	if !almostEqual(got.EaseFactor, 2.18) {
		t.Errorf("ease = %v, want 2.18", got.EaseFactor)
	}
	if got.ReviewCount != 0 {
		t.Errorf("review count = %d, want 0", got.ReviewCount)
	}
}

func TestNextStateFirstReview(t *testing.T) {
	// Barely-correct first review: 1-day interval, small ease penalty.
	got := NextState(3, State{IntervalDays: 0, EaseFactor: 2.5, ReviewCount: 0})
	if got.IntervalDays != 1 {
		t.Errorf("interval = %d, want 1", got.IntervalDays)
	}
	if !almostEqual(got.EaseFactor, 2.36) {
		t.Errorf("ease = %v, want 2.36", got.EaseFactor)
	}
	if got.ReviewCount != 1 {
		t.Errorf("review count = %d, want 1", got.ReviewCount)
	}
}

func TestNextStateSecondReview(t *testing.T) {
	got := NextState(4, State{IntervalDays: 1, EaseFactor: 2.5, ReviewCount: 1})
	if got.IntervalDays != 6 {
		t.Errorf("interval = %d, want 6", got.IntervalDays)
	}
	if got.ReviewCount != 2 {
		t.Errorf("review count = %d, want 2", got.ReviewCount)
	}
}

func TestNextStateEaseFloor(t *testing.T) {
	// Repeated failures cannot push ease below the floor.
	s := State{IntervalDays: 1, EaseFactor: MinEaseFactor, ReviewCount: 0}
	for i := 0; i < 10; i++ {
		s = NextState(0, s)
		if s.EaseFactor < MinEaseFactor {
			t.Fatalf("ease %v fell below floor after %d failures", s.EaseFactor, i+1)
		}
	}
}

func TestNextStateQualityClamped(t *testing.T) {
	base := State{IntervalDays: 6, EaseFactor: 2.5, ReviewCount: 2}

	if got, want := NextState(9, base), NextState(5, base); got != want {
		t.Errorf("quality 9 = %+v, want same as 5 = %+v", got, want)
	}
	if got, want := NextState(-1, base), NextState(0, base); got != want {
		t.Errorf("quality -1 = %+v, want same as 0 = %+v", got, want)
	}
}

func TestNextStateIntervalNeverBelowOne(t *testing.T) {
	// A degenerate zero-interval state still schedules at least a day out.
	got := NextState(4, State{IntervalDays: 0, EaseFactor: 1.3, ReviewCount: 5})
	if got.IntervalDays < 1 {
		t.Errorf("interval = %d, want >= 1", got.IntervalDays)
	}
}
