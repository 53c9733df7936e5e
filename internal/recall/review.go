package recall

import (
	"fmt"
	"time"

	"github.com/engram-memory/engram/internal/store"
)

// ApplyReview runs the scheduler for a submitted review and persists the
// updated memory strength. Returns the item with its new state.
func ApplyReview(db *store.DB, itemID string, quality int, now time.Time) (*store.RecallItem, error) {
	item, err := db.GetRecallItem(itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("recall item %s not found", itemID)
	}

	next := NextState(quality, State{
		IntervalDays: item.IntervalDays,
		EaseFactor:   item.EaseFactor,
		ReviewCount:  item.ReviewCount,
	})

	reviewedAt := now.UnixMilli()
	nextReview := now.Add(time.Duration(next.IntervalDays) * 24 * time.Hour).UnixMilli()

	if err := db.UpdateRecallState(itemID, next.IntervalDays, next.EaseFactor, next.ReviewCount, reviewedAt, nextReview); err != nil {
		return nil, err
	}

	item.IntervalDays = next.IntervalDays
	item.EaseFactor = next.EaseFactor
	item.ReviewCount = next.ReviewCount
	item.LastReview = &reviewedAt
	item.NextReview = nextReview
	return item, nil
}
