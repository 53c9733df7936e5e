package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/engram-memory/engram/internal/pipeline"
	"github.com/engram-memory/engram/internal/queue"
	"github.com/engram-memory/engram/internal/store"
	"github.com/engram-memory/engram/internal/vecindex"
)

// Server is the engram HTTP API server.
type Server struct {
	db       *store.DB
	broker   *queue.Broker
	index    *vecindex.Index
	embedder pipeline.Embedder
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a new Server over the given collaborators. embedder may be
// nil, in which case semantic search returns 503.
func New(db *store.DB, broker *queue.Broker, index *vecindex.Index, embedder pipeline.Embedder, version string) *Server {
	s := &Server{
		db:       db,
		broker:   broker,
		index:    index,
		embedder: embedder,
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/captures", s.handleCreateCapture)
		r.Get("/captures", s.handleListCaptures)
		r.Get("/captures/{captureID}", s.handleGetCapture)
		r.Get("/captures/{captureID}/chunks", s.handleCaptureChunks)

		r.Get("/search", s.handleSearch)

		r.Get("/graph/concepts", s.handleListConcepts)
		r.Get("/graph/relations", s.handleListRelations)

		r.Post("/recall/items", s.handleCreateRecallItem)
		r.Get("/recall/due", s.handleDueRecallItems)
		r.Post("/recall/items/{itemID}/review", s.handleReview)
		r.Delete("/recall/items/{itemID}", s.handleDeleteRecallItem)

		r.Post("/contexts", s.handleCreateContext)

		r.Post("/dedup", s.handleTriggerDedup)
		r.Post("/derive/{kind}", s.handleDerive)
		r.Get("/summaries", s.handleListSummaries)
		r.Get("/tasks", s.handleListTasks)

		r.Get("/queue/stats", s.handleQueueStats)
		r.Get("/queue/dead", s.handleDeadLetters)
		r.Post("/queue/dead/{jobID}/requeue", s.handleRequeueDead)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
	})
}
