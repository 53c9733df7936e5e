package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Concept is a named entity or topic node in the knowledge graph.
type Concept struct {
	ID          string
	OwnerID     string
	Name        string
	Category    string
	Description string
	CreatedAt   int64
	UpdatedAt   int64
}

// ConceptRelation is a directed, labelled edge between two concepts of the
// same owner.
type ConceptRelation struct {
	ID        string
	OwnerID   string
	SourceID  string
	TargetID  string
	Relation  string
	CreatedAt int64
}

// NormalizeConceptName produces the dedup key for a concept name:
// trimmed, lowercased, inner whitespace collapsed.
func NormalizeConceptName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// UpsertConcept inserts a concept or updates the existing row with the same
// normalized name for the owner. Returns the canonical concept row either
// way, so concurrent graph builds converge on one concept per name.
func (db *DB) UpsertConcept(c *Concept) (*Concept, error) {
	if c.OwnerID == "" {
		return nil, fmt.Errorf("concept owner required")
	}
	normalized := NormalizeConceptName(c.Name)
	if normalized == "" {
		return nil, fmt.Errorf("concept name empty")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()

	_, err := db.Exec(`
		INSERT INTO concepts (id, owner_id, name, normalized, category, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, normalized) DO UPDATE SET
			category    = CASE WHEN excluded.category != '' THEN excluded.category ELSE concepts.category END,
			description = CASE WHEN excluded.description != '' THEN excluded.description ELSE concepts.description END,
			updated_at  = excluded.updated_at`,
		c.ID, c.OwnerID, strings.TrimSpace(c.Name), normalized, c.Category, c.Description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert concept: %w", err)
	}

	return db.GetConceptByName(c.OwnerID, c.Name)
}

// GetConceptByName looks a concept up by normalized name.
func (db *DB) GetConceptByName(ownerID, name string) (*Concept, error) {
	row := db.QueryRow(`
		SELECT id, owner_id, name, COALESCE(category, ''), COALESCE(description, ''), created_at, updated_at
		FROM concepts WHERE owner_id = ? AND normalized = ?`,
		ownerID, NormalizeConceptName(name))

	var c Concept
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Category, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get concept: %w", err)
	}
	return &c, nil
}

// GetConcept returns a concept by id, or nil if not found.
func (db *DB) GetConcept(id string) (*Concept, error) {
	row := db.QueryRow(`
		SELECT id, owner_id, name, COALESCE(category, ''), COALESCE(description, ''), created_at, updated_at
		FROM concepts WHERE id = ?`, id)

	var c Concept
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Category, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get concept: %w", err)
	}
	return &c, nil
}

// ListConcepts returns all of the owner's concepts, alphabetical.
func (db *DB) ListConcepts(ownerID string) ([]Concept, error) {
	rows, err := db.Query(`
		SELECT id, owner_id, name, COALESCE(category, ''), COALESCE(description, ''), created_at, updated_at
		FROM concepts WHERE owner_id = ? ORDER BY normalized`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	defer rows.Close()

	var out []Concept
	for rows.Next() {
		var c Concept
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Category, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertRelation inserts a directed edge between two same-owner concepts.
// Both endpoints must exist and belong to ownerID. Duplicate edges
// (same source/target/relation) are not duplicated.
func (db *DB) UpsertRelation(ownerID, sourceID, targetID, relation string) error {
	relation = strings.TrimSpace(relation)
	if relation == "" {
		return fmt.Errorf("relation label empty")
	}

	// Both endpoints must exist for this owner.
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM concepts WHERE owner_id = ? AND id IN (?, ?)`,
		ownerID, sourceID, targetID).Scan(&n)
	if err != nil {
		return fmt.Errorf("check relation endpoints: %w", err)
	}
	want := 2
	if sourceID == targetID {
		want = 1
	}
	if n != want {
		return fmt.Errorf("relation endpoints missing for owner %s", ownerID)
	}

	_, err = db.Exec(`
		INSERT INTO concept_relations (id, owner_id, source_id, target_id, relation, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, target_id, relation) DO NOTHING`,
		uuid.New().String(), ownerID, sourceID, targetID, relation, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert relation: %w", err)
	}
	return nil
}

// ListRelations returns all of the owner's concept edges.
func (db *DB) ListRelations(ownerID string) ([]ConceptRelation, error) {
	rows, err := db.Query(`
		SELECT id, owner_id, source_id, target_id, relation, created_at
		FROM concept_relations WHERE owner_id = ? ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer rows.Close()

	var out []ConceptRelation
	for rows.Next() {
		var r ConceptRelation
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.SourceID, &r.TargetID, &r.Relation, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
