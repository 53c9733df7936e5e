package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Summary is a derived artifact produced by the summarizer worker.
type Summary struct {
	ID        string
	OwnerID   string
	ContextID string
	Content   string
	Source    string
	CreatedAt int64
}

// Task is an actionable item produced by the task-extractor worker.
type Task struct {
	ID          string
	OwnerID     string
	ContextID   string
	ChunkID     string
	Description string
	Done        bool
	Source      string
	CreatedAt   int64
}

// CreateSummary inserts a summary record.
func (db *DB) CreateSummary(s *Summary) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO summaries (id, owner_id, context_id, content, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, nullable(s.ContextID), s.Content, s.Source, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// ListSummaries returns the owner's summaries, newest first.
func (db *DB) ListSummaries(ownerID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, owner_id, COALESCE(context_id, ''), content, COALESCE(source, ''), created_at
		FROM summaries WHERE owner_id = ? ORDER BY created_at DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.ContextID, &s.Content, &s.Source, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateTask inserts a task record.
func (db *DB) CreateTask(t *Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now().UnixMilli()
	done := 0
	if t.Done {
		done = 1
	}
	_, err := db.Exec(`
		INSERT INTO tasks (id, owner_id, context_id, chunk_id, description, done, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, nullable(t.ContextID), nullable(t.ChunkID), t.Description, done, t.Source, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// ListTasks returns the owner's tasks, newest first.
func (db *DB) ListTasks(ownerID string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, owner_id, COALESCE(context_id, ''), COALESCE(chunk_id, ''), description, done, COALESCE(source, ''), created_at
		FROM tasks WHERE owner_id = ? ORDER BY created_at DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var done int
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.ContextID, &t.ChunkID, &t.Description, &done, &t.Source, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Done = done != 0
		out = append(out, t)
	}
	return out, rows.Err()
}
