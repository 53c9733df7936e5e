// Package recall implements the SM-2 spaced-repetition scheduler.
package recall

import "math"

// State is the memory-strength triple attached to a recall item.
type State struct {
	IntervalDays int
	EaseFactor   float64
	ReviewCount  int
}

// MinEaseFactor is the SM-2 ease floor. Ease never drops below it.
const MinEaseFactor = 1.3

// NextState computes the post-review state from a quality score. Quality
// is clamped to [0,5]; the function always produces a valid state — a
// review submission can never fail.
//
// quality >= 3 counts as a correct recall: the interval grows (1 day, then
// 6, then previous interval times previous ease, rounded) and the review
// count increments. Below 3 the item resets to a 1-day interval and a zero
// count. Ease updates on both branches and is floored at 1.3.
func NextState(quality int, prev State) State {
	if quality < 0 {
		quality = 0
	}
	if quality > 5 {
		quality = 5
	}

	q := float64(quality)
	ease := prev.EaseFactor + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	if ease < MinEaseFactor {
		ease = MinEaseFactor
	}

	next := State{EaseFactor: ease}

	if quality >= 3 {
		switch prev.ReviewCount {
		case 0:
			next.IntervalDays = 1
		case 1:
			next.IntervalDays = 6
		default:
			next.IntervalDays = int(math.Round(float64(prev.IntervalDays) * prev.EaseFactor))
		}
		next.ReviewCount = prev.ReviewCount + 1
	} else {
		next.IntervalDays = 1
		next.ReviewCount = 0
	}

	if next.IntervalDays < 1 {
		next.IntervalDays = 1
	}
	return next
}
