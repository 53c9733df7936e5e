package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Context is a user-defined workspace grouping captures and chunks.
type Context struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt int64
}

// CreateContext inserts a workspace context.
func (db *DB) CreateContext(c *Context) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.OwnerID == "" || c.Name == "" {
		return fmt.Errorf("context requires owner and name")
	}
	c.CreatedAt = time.Now().UnixMilli()
	_, err := db.Exec(`INSERT INTO contexts (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert context: %w", err)
	}
	return nil
}

// GetContext returns a context by id, or nil if not found.
func (db *DB) GetContext(id string) (*Context, error) {
	row := db.QueryRow(`SELECT id, owner_id, name, created_at FROM contexts WHERE id = ?`, id)
	var c Context
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get context: %w", err)
	}
	return &c, nil
}
