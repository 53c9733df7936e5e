// Package vecindex maintains an in-process vector index over chunk
// embeddings using chromem-go, an embedded pure-Go vector database.
// One collection per owner keeps similarity queries namespace-isolated.
// The sqlite store stays the system of record; the index is rebuilt from
// it at startup.
package vecindex

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// Match is one similarity-query hit.
type Match struct {
	ChunkID    string
	Similarity float64
}

// Index wraps chromem-go with per-owner collections.
type Index struct {
	db          *chromem.DB
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates an empty index.
func New() *Index {
	return &Index{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

func (ix *Index) collection(ownerID string) (*chromem.Collection, error) {
	ix.mu.RLock()
	col, ok := ix.collections[ownerID]
	ix.mu.RUnlock()
	if ok {
		return col, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if col, ok := ix.collections[ownerID]; ok {
		return col, nil
	}

	col, err := ix.db.CreateCollection("owner_"+ownerID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	ix.collections[ownerID] = col
	return col, nil
}

// Upsert adds or replaces a chunk's vector in the owner's collection.
func (ix *Index) Upsert(ctx context.Context, ownerID, chunkID string, vec []float64, captureID string) error {
	col, err := ix.collection(ownerID)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        chunkID,
		Content:   chunkID, // content is unused; the store holds the text
		Embedding: toFloat32(vec),
		Metadata: map[string]string{
			"capture_id": captureID,
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("index chunk %s: %w", chunkID, err)
	}
	return nil
}

// Remove drops a chunk from the owner's collection. Removing an unknown
// chunk is not an error.
func (ix *Index) Remove(ctx context.Context, ownerID, chunkID string) error {
	ix.mu.RLock()
	col, ok := ix.collections[ownerID]
	ix.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, chunkID); err != nil {
		return fmt.Errorf("unindex chunk %s: %w", chunkID, err)
	}
	return nil
}

// Query returns up to limit chunks of the owner ranked by cosine
// similarity to the query vector, filtered to similarity >= threshold.
// An optional captureID restricts the search to one capture.
func (ix *Index) Query(ctx context.Context, ownerID string, vec []float64, limit int, threshold float64, captureID string) ([]Match, error) {
	ix.mu.RLock()
	col, ok := ix.collections[ownerID]
	ix.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if n := col.Count(); n < limit {
		limit = n
	}
	if limit <= 0 {
		return nil, nil
	}

	var where map[string]string
	if captureID != "" {
		where = map[string]string{"capture_id": captureID}
	}

	results, err := col.QueryEmbedding(ctx, toFloat32(vec), limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	var matches []Match
	for _, r := range results {
		sim := float64(r.Similarity)
		if sim < threshold {
			continue
		}
		matches = append(matches, Match{ChunkID: r.ID, Similarity: sim})
	}
	return matches, nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
