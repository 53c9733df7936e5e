package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Capture statuses. A capture transitions from processing to exactly one of
// completed or failed.
const (
	CaptureProcessing = "processing"
	CaptureCompleted  = "completed"
	CaptureFailed     = "failed"
)

// Capture types.
const (
	CaptureText     = "text"
	CaptureURL      = "url"
	CapturePDF      = "pdf"
	CaptureDocument = "document"
	CaptureImage    = "image"
)

// Capture is one ingested content unit: a URL fetch, an uploaded file,
// or a clipped selection.
type Capture struct {
	ID        string
	OwnerID   string
	ContextID string
	Type      string
	Title     string
	Source    string
	RawText   string
	Status    string
	Error     string
	PageCount int
	CreatedAt int64
	UpdatedAt int64
}

// CreateCapture inserts a new capture in processing state. A missing ID is
// assigned.
func (db *DB) CreateCapture(c *Capture) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.OwnerID == "" {
		return fmt.Errorf("capture owner required")
	}
	if c.Status == "" {
		c.Status = CaptureProcessing
	}
	now := time.Now().UnixMilli()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := db.Exec(`
		INSERT INTO captures (id, owner_id, context_id, type, title, source, raw_text, status, error, page_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, nullable(c.ContextID), c.Type, c.Title, c.Source, c.RawText,
		c.Status, c.Error, c.PageCount, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}
	return nil
}

// GetCapture returns a capture by id, or nil if not found.
func (db *DB) GetCapture(id string) (*Capture, error) {
	row := db.QueryRow(`
		SELECT id, owner_id, COALESCE(context_id, ''), type, title, source, raw_text, status, error, page_count, created_at, updated_at
		FROM captures WHERE id = ?`, id)

	var c Capture
	err := row.Scan(&c.ID, &c.OwnerID, &c.ContextID, &c.Type, &c.Title, &c.Source,
		&c.RawText, &c.Status, &c.Error, &c.PageCount, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get capture: %w", err)
	}
	return &c, nil
}

// ListCaptures returns the owner's captures, newest first.
func (db *DB) ListCaptures(ownerID string, limit int) ([]Capture, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, owner_id, COALESCE(context_id, ''), type, title, source, raw_text, status, error, page_count, created_at, updated_at
		FROM captures WHERE owner_id = ?
		ORDER BY created_at DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	var out []Capture
	for rows.Next() {
		var c Capture
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.ContextID, &c.Type, &c.Title, &c.Source,
			&c.RawText, &c.Status, &c.Error, &c.PageCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkCaptureCompleted finalizes a capture after successful ingestion,
// storing the normalized text and page count.
func (db *DB) MarkCaptureCompleted(id, rawText string, pageCount int) error {
	_, err := db.Exec(`
		UPDATE captures SET status = ?, raw_text = ?, page_count = ?, error = '', updated_at = ?
		WHERE id = ?`,
		CaptureCompleted, rawText, pageCount, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("complete capture: %w", err)
	}
	return nil
}

// MarkCaptureFailed records a terminal ingestion failure with a
// human-readable message.
func (db *DB) MarkCaptureFailed(id, message string) error {
	_, err := db.Exec(`
		UPDATE captures SET status = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		CaptureFailed, message, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("fail capture: %w", err)
	}
	return nil
}

// MarkCaptureProcessing resets a capture to processing for a corrective
// re-run.
func (db *DB) MarkCaptureProcessing(id string) error {
	_, err := db.Exec(`
		UPDATE captures SET status = ?, error = '', updated_at = ?
		WHERE id = ?`,
		CaptureProcessing, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("reset capture: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
