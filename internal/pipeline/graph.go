package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/engram-memory/engram/internal/llm"
	"github.com/engram-memory/engram/internal/queue"
	"github.com/engram-memory/engram/internal/store"
)

type graphExtraction struct {
	Concepts []struct {
		Name        string `json:"name"`
		Category    string `json:"category"`
		Description string `json:"description"`
	} `json:"concepts"`
	Relations []struct {
		Source   string `json:"source"`
		Target   string `json:"target"`
		Relation string `json:"relation"`
	} `json:"relations"`
}

// handleGraph runs concept and relation extraction over a chunk set.
// A malformed model response for one chunk is logged and skipped rather
// than failing the job: concept upserts are idempotent, so retrying the
// whole set for one bad response would only repeat work.
func (p *Pipeline) handleGraph(ctx context.Context, payload *queue.GraphPayload) error {
	if p.LLM == nil {
		log.Printf("graph: no LLM configured, skipping %d chunks", len(payload.ChunkIDs))
		return nil
	}
	chunks, err := p.DB.GetChunks(payload.ChunkIDs)
	if err != nil {
		return err
	}

	concepts := 0
	relations := 0
	for _, c := range chunks {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		resp, err := p.LLM.Complete(ctx, llm.GraphExtractionPrompt(c.Content))
		if err != nil {
			return err
		}

		var extraction graphExtraction
		if err := json.Unmarshal(jsonBlock(resp.Content, '{', '}'), &extraction); err != nil {
			log.Printf("graph: chunk %s: unparseable extraction, skipping: %v", c.ID, err)
			continue
		}

		// Name → canonical id, for resolving relation endpoints.
		byName := make(map[string]string)
		for _, spec := range extraction.Concepts {
			if strings.TrimSpace(spec.Name) == "" {
				continue
			}
			concept, err := p.DB.UpsertConcept(&store.Concept{
				OwnerID:     payload.OwnerID,
				Name:        spec.Name,
				Category:    spec.Category,
				Description: spec.Description,
			})
			if err != nil {
				return err
			}
			byName[store.NormalizeConceptName(spec.Name)] = concept.ID
			concepts++
		}

		for _, rel := range extraction.Relations {
			sourceID := byName[store.NormalizeConceptName(rel.Source)]
			targetID := byName[store.NormalizeConceptName(rel.Target)]
			if sourceID == "" || targetID == "" || rel.Relation == "" {
				continue
			}
			if err := p.DB.UpsertRelation(payload.OwnerID, sourceID, targetID, rel.Relation); err != nil {
				return err
			}
			relations++
		}
	}

	log.Printf("graph: %d chunks -> %d concepts, %d relations", len(chunks), concepts, relations)
	return nil
}

// jsonBlock pulls the JSON value out of a model response that may wrap it
// in markdown fences or prose. Returns the span from the first open to the
// last close delimiter, or the trimmed input if no pair is found.
func jsonBlock(s string, open, close byte) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start >= 0 && end > start {
		return []byte(s[start : end+1])
	}
	return []byte(strings.TrimSpace(s))
}
