// Package pipeline implements the staged background jobs that turn raw
// captures into structured memory: ingest → embed → dedup → graph, plus
// the independently-triggered summarizer, task-extractor, and topicer
// workers.
package pipeline

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/engram-memory/engram/internal/llm"
	"github.com/engram-memory/engram/internal/queue"
	"github.com/engram-memory/engram/internal/store"
	"github.com/engram-memory/engram/internal/vecindex"
)

// Pipeline holds the shared dependencies of all stage handlers. Tunable
// knobs (similarity threshold, chunk strategy, batch size) are NOT stored
// here — each handler reads the persisted settings snapshot at job start.
type Pipeline struct {
	DB       *store.DB
	Broker   *queue.Broker
	Index    *vecindex.Index
	LLM      llm.Client
	Embedder Embedder

	// limiter bounds LLM call rate across the graph builder and the
	// derived-artifact workers, shared per provider credential.
	limiter *rate.Limiter

	embedParallel int
}

// Options tunes process-level concurrency.
type Options struct {
	LLMRatePerSecond float64
	EmbedParallel    int
}

// New creates a pipeline over the given collaborators.
func New(db *store.DB, broker *queue.Broker, index *vecindex.Index, client llm.Client, embedder Embedder, opts Options) *Pipeline {
	if opts.LLMRatePerSecond <= 0 {
		opts.LLMRatePerSecond = 2
	}
	if opts.EmbedParallel <= 0 {
		opts.EmbedParallel = 4
	}
	return &Pipeline{
		DB:            db,
		Broker:        broker,
		Index:         index,
		LLM:           client,
		Embedder:      embedder,
		limiter:       rate.NewLimiter(rate.Limit(opts.LLMRatePerSecond), 1),
		embedParallel: opts.EmbedParallel,
	}
}

// Register binds every pipeline stage to its queue on the worker.
func (p *Pipeline) Register(w *queue.Worker) {
	w.Handle(queue.QueueIngest, asHandler(p.handleIngest))
	w.Handle(queue.QueueEmbeddings, asHandler(p.handleEmbeddings))
	w.Handle(queue.QueueDedup, asHandler(p.handleDedup))
	w.Handle(queue.QueueGraph, asHandler(p.handleGraph))
	w.Handle(queue.QueueSummarizer, asHandler(p.handleSummarize))
	w.Handle(queue.QueueTasks, asHandler(p.handleTasks))
	w.Handle(queue.QueueTopics, asHandler(p.handleTopics))
}

// asHandler adapts a typed handler to the queue's any-payload signature.
// The payload type is guaranteed by queue.DecodePayload; a mismatch is a
// programming error worth the panic the assertion produces.
func asHandler[T any](fn func(ctx context.Context, payload T) error) queue.Handler {
	return func(ctx context.Context, payload any) error {
		return fn(ctx, payload.(T))
	}
}
