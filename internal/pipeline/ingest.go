package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/engram-memory/engram/internal/chunker"
	"github.com/engram-memory/engram/internal/extract"
	"github.com/engram-memory/engram/internal/queue"
	"github.com/engram-memory/engram/internal/store"
)

// handleIngest extracts text from a capture, chunks it, and hands the
// chunks to the embeddings queue. Re-running replaces any chunks from a
// previous attempt, so a retried job cannot duplicate content.
func (p *Pipeline) handleIngest(ctx context.Context, payload *queue.IngestPayload) error {
	capture, err := p.DB.GetCapture(payload.CaptureID)
	if err != nil {
		return err
	}
	if capture == nil {
		return &queue.ValidationError{Queue: queue.QueueIngest, Reason: fmt.Sprintf("capture %s not found", payload.CaptureID)}
	}
	if err := p.DB.MarkCaptureProcessing(capture.ID); err != nil {
		return err
	}

	text := payload.Text
	pageCount := 0
	if text == "" {
		data, err := os.ReadFile(payload.RawRef)
		if err != nil {
			return fmt.Errorf("read raw capture: %w", err)
		}
		result, err := extract.Text(data, payload.Filename)
		if err != nil {
			// Extraction failures are terminal: the bytes won't get
			// better on retry. Record on the capture and ack.
			var exErr *extract.Error
			if errors.As(err, &exErr) || errors.Is(err, extract.ErrUnsupportedFormat) {
				log.Printf("ingest: capture %s extraction failed: %v", capture.ID, err)
				return p.DB.MarkCaptureFailed(capture.ID, err.Error())
			}
			return err
		}
		text = result.Text
		pageCount = result.PageCount
	}

	settings, err := p.DB.LoadPipelineSettings()
	if err != nil {
		return err
	}
	spans := chunker.Split(text, chunker.Parse(settings.ChunkStrategy))
	if len(spans) == 0 {
		log.Printf("ingest: capture %s produced no text", capture.ID)
		return p.DB.MarkCaptureFailed(capture.ID, "no text content")
	}

	if err := p.DB.DeleteCaptureChunks(capture.ID); err != nil {
		return err
	}

	chunkIDs := make([]string, 0, len(spans))
	for i, span := range spans {
		c := &store.Chunk{
			CaptureID:  capture.ID,
			OwnerID:    capture.OwnerID,
			Position:   i,
			Content:    span,
			SourceType: capture.Type,
		}
		if err := p.DB.CreateChunk(c); err != nil {
			return err
		}
		if capture.ContextID != "" {
			if err := p.DB.LinkChunkContext(c.ID, capture.ContextID); err != nil {
				return err
			}
		}
		chunkIDs = append(chunkIDs, c.ID)
	}

	if err := p.DB.MarkCaptureCompleted(capture.ID, text, pageCount); err != nil {
		return err
	}
	log.Printf("ingest: capture %s split into %d chunks", capture.ID, len(chunkIDs))

	batch := settings.EmbedBatchSize
	if batch <= 0 {
		batch = len(chunkIDs)
	}
	for start := 0; start < len(chunkIDs); start += batch {
		end := start + batch
		if end > len(chunkIDs) {
			end = len(chunkIDs)
		}
		_, err := p.Broker.Enqueue(queue.QueueEmbeddings, queue.EmbeddingsPayload{
			ChunkIDs: chunkIDs[start:end],
			OwnerID:  capture.OwnerID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
