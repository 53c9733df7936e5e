package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/engram-memory/engram/internal/queue"
	"github.com/engram-memory/engram/internal/store"
)

// lockTTL bounds how long a crashed dedup run can block its scope before
// another worker steals the lock.
const lockTTL = 2 * time.Minute

// handleDedup merges near-duplicate chunks within a scope. Candidates are
// walked in creation order; each either matches an earlier canonical (and
// is superseded into it) or becomes a canonical itself. Earliest wins, so
// repeat runs over the same data are no-ops.
func (p *Pipeline) handleDedup(ctx context.Context, payload *queue.DedupPayload) error {
	holder := uuid.New().String()
	key := payload.LockKey()
	if err := p.DB.AcquireScopeLock(key, holder, lockTTL); err != nil {
		return err // store.ErrLockHeld: the worker requeues without consuming an attempt
	}
	defer func() {
		if err := p.DB.ReleaseScopeLock(key, holder); err != nil {
			log.Printf("dedup: release lock %s: %v", key, err)
		}
	}()

	settings, err := p.DB.LoadPipelineSettings()
	if err != nil {
		return err
	}

	captureID := ""
	if payload.Scope == queue.ScopeCapture {
		captureID = payload.CaptureID
	}
	candidates, err := p.DB.DedupCandidates(payload.OwnerID, captureID)
	if err != nil {
		return err
	}

	var canonicals []store.Chunk
	merged := 0
	for _, c := range candidates {
		target := ""
		best := 0.0
		for _, canon := range canonicals {
			sim := CosineSimilarity(c.Embedding, canon.Embedding)
			if sim >= settings.SimilarityThreshold && sim > best {
				best = sim
				target = canon.ID
			}
		}
		if target == "" {
			canonicals = append(canonicals, c)
			continue
		}
		if err := p.DB.SupersedeChunk(c.ID, target); err != nil {
			return err
		}
		if err := p.Index.Remove(ctx, c.OwnerID, c.ID); err != nil {
			return err
		}
		merged++
	}

	log.Printf("dedup: scope %s: %d candidates, %d merged, %d canonical", key, len(candidates), merged, len(canonicals))
	if len(canonicals) == 0 {
		return nil
	}

	ids := make([]string, len(canonicals))
	for i, c := range canonicals {
		ids[i] = c.ID
	}
	_, err = p.Broker.Enqueue(queue.QueueGraph, queue.GraphPayload{
		OwnerID:  payload.OwnerID,
		ChunkIDs: ids,
	})
	return err
}
