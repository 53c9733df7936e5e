package queue

import (
	"encoding/json"
	"fmt"
)

// Queue names. One queue per pipeline stage.
const (
	QueueIngest     = "ingest"
	QueueEmbeddings = "embeddings"
	QueueDedup      = "dedup"
	QueueGraph      = "graph"
	QueueSummarizer = "summarizer"
	QueueTasks      = "task-extractor"
	QueueTopics     = "topicer"
)

// Dedup scopes.
const (
	ScopeCapture = "capture"
	ScopeGlobal  = "global"
)

// ValidationError marks a malformed job payload. The worker dead-letters
// the job immediately instead of retrying.
type ValidationError struct {
	Queue  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.Queue, e.Reason)
}

func invalid(queue, format string, args ...any) *ValidationError {
	return &ValidationError{Queue: queue, Reason: fmt.Sprintf(format, args...)}
}

// IngestPayload starts the pipeline for one capture. Either Text (already
// extracted) or RawRef (path to the stored binary) must be set.
type IngestPayload struct {
	CaptureID string `json:"capture_id"`
	OwnerID   string `json:"owner_id"`
	Text      string `json:"text,omitempty"`
	RawRef    string `json:"raw_ref,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

func (p IngestPayload) Validate() error {
	if p.CaptureID == "" {
		return invalid(QueueIngest, "capture_id required")
	}
	if p.OwnerID == "" {
		return invalid(QueueIngest, "owner_id required")
	}
	if p.Text == "" && p.RawRef == "" {
		return invalid(QueueIngest, "one of text or raw_ref required")
	}
	return nil
}

// EmbeddingsPayload carries a batch of chunk ids to embed.
type EmbeddingsPayload struct {
	ChunkIDs []string `json:"chunk_ids"`
	OwnerID  string   `json:"owner_id"`
}

func (p EmbeddingsPayload) Validate() error {
	if len(p.ChunkIDs) == 0 {
		return invalid(QueueEmbeddings, "chunk_ids required")
	}
	if p.OwnerID == "" {
		return invalid(QueueEmbeddings, "owner_id required")
	}
	return nil
}

// DedupPayload scopes a deduplication run.
type DedupPayload struct {
	OwnerID   string `json:"owner_id"`
	Scope     string `json:"scope"`
	CaptureID string `json:"capture_id,omitempty"`
}

func (p DedupPayload) Validate() error {
	if p.OwnerID == "" {
		return invalid(QueueDedup, "owner_id required")
	}
	switch p.Scope {
	case ScopeCapture:
		if p.CaptureID == "" {
			return invalid(QueueDedup, "capture_id required for capture scope")
		}
	case ScopeGlobal:
	default:
		return invalid(QueueDedup, "unknown scope %q", p.Scope)
	}
	return nil
}

// LockKey is the mutual-exclusion key for this dedup scope.
func (p DedupPayload) LockKey() string {
	if p.Scope == ScopeCapture {
		return fmt.Sprintf("dedup:%s:capture:%s", p.OwnerID, p.CaptureID)
	}
	return fmt.Sprintf("dedup:%s:global", p.OwnerID)
}

// GraphPayload carries the chunk set for a graph build.
type GraphPayload struct {
	OwnerID  string   `json:"owner_id"`
	ChunkIDs []string `json:"chunk_ids"`
}

func (p GraphPayload) Validate() error {
	if p.OwnerID == "" {
		return invalid(QueueGraph, "owner_id required")
	}
	if len(p.ChunkIDs) == 0 {
		return invalid(QueueGraph, "chunk_ids required")
	}
	return nil
}

// DerivePayload is shared by the summarizer, task-extractor, and topicer
// queues: a context or explicit chunk set to derive artifacts from.
type DerivePayload struct {
	OwnerID   string   `json:"owner_id"`
	ContextID string   `json:"context_id,omitempty"`
	ChunkIDs  []string `json:"chunk_ids,omitempty"`
	Source    string   `json:"source,omitempty"`
}

func (p DerivePayload) validate(queue string) error {
	if p.OwnerID == "" {
		return invalid(queue, "owner_id required")
	}
	if p.ContextID == "" && len(p.ChunkIDs) == 0 {
		return invalid(queue, "one of context_id or chunk_ids required")
	}
	return nil
}

// DecodePayload parses and validates the payload for a queue. Unknown
// queues and malformed shapes come back as *ValidationError.
func DecodePayload(queue string, raw []byte) (any, error) {
	decode := func(v interface{ Validate() error }) (any, error) {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, invalid(queue, "bad json: %v", err)
		}
		if err := v.Validate(); err != nil {
			return nil, err
		}
		return v, nil
	}

	switch queue {
	case QueueIngest:
		return decode(&IngestPayload{})
	case QueueEmbeddings:
		return decode(&EmbeddingsPayload{})
	case QueueDedup:
		return decode(&DedupPayload{})
	case QueueGraph:
		return decode(&GraphPayload{})
	case QueueSummarizer, QueueTasks, QueueTopics:
		var p DerivePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, invalid(queue, "bad json: %v", err)
		}
		if err := p.validate(queue); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, invalid(queue, "unknown queue")
	}
}
