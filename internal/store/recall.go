package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecallItem is a spaced-repetition unit referencing exactly one of a chunk
// or a concept, with its SM-2 memory strength inlined.
type RecallItem struct {
	ID        string
	OwnerID   string
	ChunkID   string
	ConceptID string
	Note      string

	IntervalDays int
	EaseFactor   float64
	ReviewCount  int
	LastReview   *int64
	NextReview   int64

	CreatedAt int64
}

// DefaultEaseFactor is the SM-2 starting ease.
const DefaultEaseFactor = 2.5

// CreateRecallItem inserts a recall item with fresh SM-2 state:
// interval 1 day, ease 2.5, zero reviews, first review due in one day.
func (db *DB) CreateRecallItem(item *RecallItem) error {
	if item.OwnerID == "" {
		return fmt.Errorf("recall item owner required")
	}
	if (item.ChunkID == "") == (item.ConceptID == "") {
		return fmt.Errorf("recall item needs exactly one of chunk or concept")
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	item.IntervalDays = 1
	item.EaseFactor = DefaultEaseFactor
	item.ReviewCount = 0
	item.NextReview = now.Add(24 * time.Hour).UnixMilli()
	item.CreatedAt = now.UnixMilli()

	_, err := db.Exec(`
		INSERT INTO recall_items (id, owner_id, chunk_id, concept_id, note, interval_days, ease_factor, review_count, last_review, next_review, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		item.ID, item.OwnerID, nullable(item.ChunkID), nullable(item.ConceptID), item.Note,
		item.IntervalDays, item.EaseFactor, item.ReviewCount, item.NextReview, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recall item: %w", err)
	}
	return nil
}

const recallColumns = `id, owner_id, COALESCE(chunk_id, ''), COALESCE(concept_id, ''), COALESCE(note, ''), interval_days, ease_factor, review_count, last_review, next_review, created_at`

func scanRecallItem(scanner interface{ Scan(...any) error }) (RecallItem, error) {
	var item RecallItem
	var lastReview sql.NullInt64
	err := scanner.Scan(&item.ID, &item.OwnerID, &item.ChunkID, &item.ConceptID, &item.Note,
		&item.IntervalDays, &item.EaseFactor, &item.ReviewCount, &lastReview,
		&item.NextReview, &item.CreatedAt)
	if err != nil {
		return item, err
	}
	if lastReview.Valid {
		item.LastReview = &lastReview.Int64
	}
	return item, nil
}

// GetRecallItem returns a recall item by id, or nil if not found.
func (db *DB) GetRecallItem(id string) (*RecallItem, error) {
	row := db.QueryRow(`SELECT `+recallColumns+` FROM recall_items WHERE id = ?`, id)
	item, err := scanRecallItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recall item: %w", err)
	}
	return &item, nil
}

// UpdateRecallState persists the SM-2 triple and review timestamps after a
// submitted review.
func (db *DB) UpdateRecallState(id string, intervalDays int, easeFactor float64, reviewCount int, reviewedAt, nextReview int64) error {
	res, err := db.Exec(`
		UPDATE recall_items
		SET interval_days = ?, ease_factor = ?, review_count = ?, last_review = ?, next_review = ?
		WHERE id = ?`,
		intervalDays, easeFactor, reviewCount, reviewedAt, nextReview, id)
	if err != nil {
		return fmt.Errorf("update recall state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recall item %s not found", id)
	}
	return nil
}

// ListDueRecallItems returns the owner's items due at or before now,
// soonest first.
func (db *DB) ListDueRecallItems(ownerID string, now int64, limit int) ([]RecallItem, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT `+recallColumns+` FROM recall_items
		WHERE owner_id = ? AND next_review <= ?
		ORDER BY next_review LIMIT ?`, ownerID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due recall items: %w", err)
	}
	defer rows.Close()

	var out []RecallItem
	for rows.Next() {
		item, err := scanRecallItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recall item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteRecallItem removes a recall item and its memory strength.
func (db *DB) DeleteRecallItem(id string) error {
	_, err := db.Exec(`DELETE FROM recall_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recall item: %w", err)
	}
	return nil
}
