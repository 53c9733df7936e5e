package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/engram-memory/engram/internal/llm"
	"github.com/engram-memory/engram/internal/queue"
	"github.com/engram-memory/engram/internal/store"
)

// maxDeriveChars caps how much chunk text a single derivation prompt
// carries. Oversized contexts are truncated, not split.
const maxDeriveChars = 24000

// deriveContent resolves a derive payload to the concatenated text of its
// live chunks.
func (p *Pipeline) deriveContent(payload *queue.DerivePayload) (string, error) {
	ids := payload.ChunkIDs
	if len(ids) == 0 {
		var err error
		ids, err = p.DB.ContextChunkIDs(payload.OwnerID, payload.ContextID)
		if err != nil {
			return "", err
		}
	}
	chunks, err := p.DB.GetChunks(ids)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range chunks {
		if c.CanonicalID != "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.Content)
		if b.Len() >= maxDeriveChars {
			break
		}
	}
	content := b.String()
	if len(content) > maxDeriveChars {
		content = content[:maxDeriveChars]
	}
	return content, nil
}

var errNoLLM = errors.New("no LLM configured")

func (p *Pipeline) complete(ctx context.Context, prompt string) (*llm.Response, error) {
	if p.LLM == nil {
		return nil, errNoLLM
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.LLM.Complete(ctx, prompt)
}

// handleSummarize produces a summary artifact for a context or chunk set.
func (p *Pipeline) handleSummarize(ctx context.Context, payload *queue.DerivePayload) error {
	content, err := p.deriveContent(payload)
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}

	resp, err := p.complete(ctx, llm.SummaryPrompt(content))
	if err != nil {
		return err
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return nil
	}

	return p.DB.CreateSummary(&store.Summary{
		OwnerID:   payload.OwnerID,
		ContextID: payload.ContextID,
		Content:   summary,
		Source:    payload.Source,
	})
}

// handleTasks extracts actionable items from a context or chunk set.
func (p *Pipeline) handleTasks(ctx context.Context, payload *queue.DerivePayload) error {
	content, err := p.deriveContent(payload)
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}

	resp, err := p.complete(ctx, llm.TaskExtractionPrompt(content))
	if err != nil {
		return err
	}

	var items []struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(jsonBlock(resp.Content, '[', ']'), &items); err != nil {
		return fmt.Errorf("parse task extraction: %w", err)
	}

	created := 0
	for _, item := range items {
		desc := strings.TrimSpace(item.Description)
		if desc == "" {
			continue
		}
		err := p.DB.CreateTask(&store.Task{
			OwnerID:     payload.OwnerID,
			ContextID:   payload.ContextID,
			Description: desc,
			Source:      payload.Source,
		})
		if err != nil {
			return err
		}
		created++
	}
	if created > 0 {
		log.Printf("tasks: %d extracted", created)
	}
	return nil
}

// handleTopics extracts topic concepts from a context or chunk set and
// adds them to the knowledge graph.
func (p *Pipeline) handleTopics(ctx context.Context, payload *queue.DerivePayload) error {
	content, err := p.deriveContent(payload)
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}

	resp, err := p.complete(ctx, llm.TopicExtractionPrompt(content))
	if err != nil {
		return err
	}

	var topics []struct {
		Name        string `json:"name"`
		Category    string `json:"category"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(jsonBlock(resp.Content, '[', ']'), &topics); err != nil {
		return fmt.Errorf("parse topic extraction: %w", err)
	}

	for _, t := range topics {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		_, err := p.DB.UpsertConcept(&store.Concept{
			OwnerID:     payload.OwnerID,
			Name:        t.Name,
			Category:    t.Category,
			Description: t.Description,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
