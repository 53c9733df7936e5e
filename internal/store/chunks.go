package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Chunk is a bounded span of a capture's text, the unit of embedding
// and similarity search.
type Chunk struct {
	ID             string
	CaptureID      string
	OwnerID        string
	Position       int
	Content        string
	SourceType     string
	Topics         []string
	Embedding      []float64
	EmbeddingModel string
	Dimensions     int
	CanonicalID    string // non-empty when superseded by dedup
	CreatedAt      int64
	UpdatedAt      int64
}

// Embedded reports whether the chunk has a stored vector.
func (c *Chunk) Embedded() bool { return len(c.Embedding) > 0 }

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

func encodeTopics(topics []string) string {
	if len(topics) == 0 {
		return "[]"
	}
	b, err := json.Marshal(topics)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeTopics(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var topics []string
	if err := json.Unmarshal([]byte(s), &topics); err != nil {
		return nil
	}
	return topics
}

// CreateChunk inserts a chunk row. A missing ID is assigned.
func (db *DB) CreateChunk(c *Chunk) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CaptureID == "" || c.OwnerID == "" {
		return fmt.Errorf("chunk requires capture and owner")
	}
	if strings.TrimSpace(c.Content) == "" {
		return fmt.Errorf("chunk content empty")
	}
	now := time.Now().UnixMilli()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := db.Exec(`
		INSERT INTO chunks (id, capture_id, owner_id, position, content, source_type, topics, embedding, embedding_model, dimensions, canonical_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CaptureID, c.OwnerID, c.Position, c.Content, c.SourceType,
		encodeTopics(c.Topics), encodeBlobOrNil(c.Embedding), c.EmbeddingModel,
		len(c.Embedding), nullable(c.CanonicalID), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

func encodeBlobOrNil(vec []float64) any {
	if len(vec) == 0 {
		return nil
	}
	return encodeEmbedding(vec)
}

const chunkColumns = `id, capture_id, owner_id, position, content, COALESCE(source_type, ''), COALESCE(topics, '[]'), embedding, COALESCE(embedding_model, ''), dimensions, COALESCE(canonical_id, ''), created_at, updated_at`

func scanChunk(scanner interface{ Scan(...any) error }) (Chunk, error) {
	var c Chunk
	var topics string
	var blob []byte
	err := scanner.Scan(&c.ID, &c.CaptureID, &c.OwnerID, &c.Position, &c.Content,
		&c.SourceType, &topics, &blob, &c.EmbeddingModel, &c.Dimensions,
		&c.CanonicalID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.Topics = decodeTopics(topics)
	if len(blob) > 0 {
		c.Embedding = decodeEmbedding(blob)
	}
	return c, nil
}

// GetChunk returns a chunk by id, or nil if not found.
func (db *DB) GetChunk(id string) (*Chunk, error) {
	row := db.QueryRow(`SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk: %w", err)
	}
	return &c, nil
}

// GetChunks returns chunks for the given ids, in creation order.
func (db *DB) GetChunks(ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.Query(`SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders+`) ORDER BY created_at, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// ListCaptureChunks returns all chunks of a capture in position order.
func (db *DB) ListCaptureChunks(captureID string) ([]Chunk, error) {
	rows, err := db.Query(`SELECT `+chunkColumns+` FROM chunks WHERE capture_id = ? ORDER BY position`, captureID)
	if err != nil {
		return nil, fmt.Errorf("list capture chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// DedupCandidates returns embedded, non-superseded chunks within a dedup
// scope, ordered by creation time then position for a deterministic pass.
// An empty captureID means global scope: all of the owner's chunks.
func (db *DB) DedupCandidates(ownerID, captureID string) ([]Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks
		WHERE owner_id = ? AND canonical_id IS NULL AND embedding IS NOT NULL`
	args := []any{ownerID}
	if captureID != "" {
		query += ` AND capture_id = ?`
		args = append(args, captureID)
	}
	query += ` ORDER BY created_at, position, id`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("dedup candidates: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

func collectChunks(rows *sql.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveChunkEmbedding upserts the vector on a chunk row. Safe to re-run.
func (db *DB) SaveChunkEmbedding(chunkID string, vec []float64, model string) error {
	res, err := db.Exec(`
		UPDATE chunks SET embedding = ?, embedding_model = ?, dimensions = ?, updated_at = ?
		WHERE id = ?`,
		encodeEmbedding(vec), model, len(vec), time.Now().UnixMilli(), chunkID)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("save embedding: chunk %s not found", chunkID)
	}
	return nil
}

// CountPendingEmbeddings returns how many of a capture's chunks still lack
// a vector.
func (db *DB) CountPendingEmbeddings(captureID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE capture_id = ? AND embedding IS NULL`, captureID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending embeddings: %w", err)
	}
	return n, nil
}

// SupersedeChunk marks a chunk as merged into a canonical chunk and
// re-points its tag and context links at the survivor. Idempotent: a chunk
// already superseded by the same canonical is left untouched.
func (db *DB) SupersedeChunk(chunkID, canonicalID string) error {
	if chunkID == canonicalID {
		return fmt.Errorf("chunk cannot supersede itself")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin supersede: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE chunks SET canonical_id = ?, updated_at = ?
		WHERE id = ? AND canonical_id IS NULL`,
		canonicalID, time.Now().UnixMilli(), chunkID)
	if err != nil {
		return fmt.Errorf("supersede chunk: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already superseded — nothing to move.
		return nil
	}

	// Move tag links, dropping ones the canonical already has.
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO chunk_tags (chunk_id, tag)
		SELECT ?, tag FROM chunk_tags WHERE chunk_id = ?`, canonicalID, chunkID); err != nil {
		return fmt.Errorf("move tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chunk_tags WHERE chunk_id = ?`, chunkID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}

	// Move context links the same way.
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO chunk_contexts (chunk_id, context_id)
		SELECT ?, context_id FROM chunk_contexts WHERE chunk_id = ?`, canonicalID, chunkID); err != nil {
		return fmt.Errorf("move contexts: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chunk_contexts WHERE chunk_id = ?`, chunkID); err != nil {
		return fmt.Errorf("clear contexts: %w", err)
	}

	return tx.Commit()
}

// DeleteCaptureChunks removes all chunks of a capture along with their tag
// and context links. Used when a capture is re-ingested from scratch.
func (db *DB) DeleteCaptureChunks(captureID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete chunks: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunk_tags WHERE chunk_id IN (SELECT id FROM chunks WHERE capture_id = ?)`, captureID); err != nil {
		return fmt.Errorf("delete chunk tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chunk_contexts WHERE chunk_id IN (SELECT id FROM chunks WHERE capture_id = ?)`, captureID); err != nil {
		return fmt.Errorf("delete chunk contexts: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chunks WHERE capture_id = ?`, captureID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return tx.Commit()
}

// EmbeddedChunks returns every live chunk that carries a vector, used to
// rebuild the in-memory vector index at startup.
func (db *DB) EmbeddedChunks() ([]Chunk, error) {
	rows, err := db.Query(`SELECT ` + chunkColumns + ` FROM chunks WHERE canonical_id IS NULL AND embedding IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("embedded chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// AllChunkContents returns the content of every live chunk, used to build
// the TF-IDF vocabulary when no embedding provider is available.
func (db *DB) AllChunkContents() ([]string, error) {
	rows, err := db.Query(`SELECT content FROM chunks WHERE canonical_id IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("chunk contents: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TagChunk attaches a tag to a chunk.
func (db *DB) TagChunk(chunkID, tag string) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO chunk_tags (chunk_id, tag) VALUES (?, ?)`, chunkID, tag)
	if err != nil {
		return fmt.Errorf("tag chunk: %w", err)
	}
	return nil
}

// ChunkTags returns the tags attached to a chunk.
func (db *DB) ChunkTags(chunkID string) ([]string, error) {
	rows, err := db.Query(`SELECT tag FROM chunk_tags WHERE chunk_id = ? ORDER BY tag`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("chunk tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// LinkChunkContext attaches a chunk to a workspace context.
func (db *DB) LinkChunkContext(chunkID, contextID string) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO chunk_contexts (chunk_id, context_id) VALUES (?, ?)`, chunkID, contextID)
	if err != nil {
		return fmt.Errorf("link context: %w", err)
	}
	return nil
}

// ContextChunkIDs returns the ids of live (non-superseded) chunks linked to
// a context.
func (db *DB) ContextChunkIDs(ownerID, contextID string) ([]string, error) {
	rows, err := db.Query(`
		SELECT c.id FROM chunks c
		JOIN chunk_contexts cc ON cc.chunk_id = c.id
		WHERE c.owner_id = ? AND cc.context_id = ? AND c.canonical_id IS NULL
		ORDER BY c.created_at, c.position`, ownerID, contextID)
	if err != nil {
		return nil, fmt.Errorf("context chunks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
