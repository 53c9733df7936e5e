package pipeline

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/engram-memory/engram/internal/queue"
	"github.com/engram-memory/engram/internal/store"
)

// handleEmbeddings generates vectors for a batch of chunks. Chunks that
// already carry a vector are skipped, so a retried batch only redoes the
// part that failed. Any failure fails the whole job: the queue retries it
// and the skip makes the rerun cheap.
func (p *Pipeline) handleEmbeddings(ctx context.Context, payload *queue.EmbeddingsPayload) error {
	if p.Embedder == nil {
		return fmt.Errorf("no embedder configured")
	}
	chunks, err := p.DB.GetChunks(payload.ChunkIDs)
	if err != nil {
		return err
	}

	pending := make([]store.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !c.Embedded() {
			pending = append(pending, c)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.embedParallel)
	for _, c := range pending {
		g.Go(func() error {
			vec, err := p.Embedder.Embed(gctx, c.Content)
			if err != nil {
				return err
			}
			if err := p.DB.SaveChunkEmbedding(c.ID, vec, p.Embedder.Model()); err != nil {
				return err
			}
			return p.Index.Upsert(gctx, c.OwnerID, c.ID, vec, c.CaptureID)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(pending) > 0 {
		log.Printf("embed: %d chunks embedded with %s", len(pending), p.Embedder.Model())
	}

	// When a capture's last chunk lands, kick off its dedup pass.
	captures := make(map[string]bool)
	for _, c := range chunks {
		captures[c.CaptureID] = true
	}
	for captureID := range captures {
		n, err := p.DB.CountPendingEmbeddings(captureID)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		_, err = p.Broker.Enqueue(queue.QueueDedup, queue.DedupPayload{
			OwnerID:   payload.OwnerID,
			Scope:     queue.ScopeCapture,
			CaptureID: captureID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
