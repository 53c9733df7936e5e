package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/engram-memory/engram/internal/queue"
	"github.com/engram-memory/engram/internal/recall"
	"github.com/engram-memory/engram/internal/store"
)

func (s *Server) handleCreateCapture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID   string `json:"owner_id"`
		ContextID string `json:"context_id"`
		Type      string `json:"type"`
		Title     string `json:"title"`
		Source    string `json:"source"`
		Text      string `json:"text"`
		RawRef    string `json:"raw_ref"`
		Filename  string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.OwnerID == "" {
		http.Error(w, `{"error":"owner_id required"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" && req.RawRef == "" {
		http.Error(w, `{"error":"one of text or raw_ref required"}`, http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		req.Type = store.CaptureText
	}

	capture := &store.Capture{
		OwnerID:   req.OwnerID,
		ContextID: req.ContextID,
		Type:      req.Type,
		Title:     req.Title,
		Source:    req.Source,
	}
	if err := s.db.CreateCapture(capture); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	jobID, err := s.broker.Enqueue(queue.QueueIngest, queue.IngestPayload{
		CaptureID: capture.ID,
		OwnerID:   capture.OwnerID,
		Text:      req.Text,
		RawRef:    req.RawRef,
		Filename:  req.Filename,
	})
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"capture_id": capture.ID,
		"job_id":     jobID,
		"status":     capture.Status,
	})
}

func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, `{"error":"owner_id required"}`, http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 50)

	captures, err := s.db.ListCaptures(ownerID, limit)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(captures))
	for _, c := range captures {
		out = append(out, captureJSON(&c))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"captures": out})
}

func (s *Server) handleGetCapture(w http.ResponseWriter, r *http.Request) {
	capture, err := s.db.GetCapture(chi.URLParam(r, "captureID"))
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if capture == nil {
		http.Error(w, `{"error":"capture not found"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(captureJSON(capture))
}

func (s *Server) handleCaptureChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.db.ListCaptureChunks(chi.URLParam(r, "captureID"))
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, chunkJSON(&c))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"chunks": out})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	q := r.URL.Query().Get("q")
	if ownerID == "" || q == "" {
		http.Error(w, `{"error":"owner_id and q required"}`, http.StatusBadRequest)
		return
	}
	if s.embedder == nil {
		http.Error(w, `{"error":"search unavailable: no embedder configured"}`, http.StatusServiceUnavailable)
		return
	}
	limit := queryInt(r, "limit", 10)
	threshold := queryFloat(r, "threshold", 0.3)

	vec, err := s.embedder.Embed(r.Context(), q)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	matches, err := s.index.Query(r.Context(), ownerID, vec, limit, threshold, "")
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	results := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		chunk, err := s.db.GetChunk(m.ChunkID)
		if err != nil || chunk == nil {
			continue
		}
		entry := chunkJSON(chunk)
		entry["similarity"] = m.Similarity
		results = append(results, entry)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": results})
}

func (s *Server) handleListConcepts(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, `{"error":"owner_id required"}`, http.StatusBadRequest)
		return
	}

	concepts, err := s.db.ListConcepts(ownerID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, map[string]any{
			"id":          c.ID,
			"name":        c.Name,
			"category":    c.Category,
			"description": c.Description,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"concepts": out})
}

func (s *Server) handleListRelations(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, `{"error":"owner_id required"}`, http.StatusBadRequest)
		return
	}

	relations, err := s.db.ListRelations(ownerID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(relations))
	for _, rel := range relations {
		out = append(out, map[string]any{
			"id":       rel.ID,
			"source":   rel.SourceID,
			"target":   rel.TargetID,
			"relation": rel.Relation,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"relations": out})
}

func (s *Server) handleCreateRecallItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID   string `json:"owner_id"`
		ChunkID   string `json:"chunk_id"`
		ConceptID string `json:"concept_id"`
		Note      string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	item := &store.RecallItem{
		OwnerID:   req.OwnerID,
		ChunkID:   req.ChunkID,
		ConceptID: req.ConceptID,
		Note:      req.Note,
	}
	if err := s.db.CreateRecallItem(item); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(recallJSON(item))
}

func (s *Server) handleDueRecallItems(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, `{"error":"owner_id required"}`, http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 20)

	items, err := s.db.ListDueRecallItems(ownerID, time.Now().UnixMilli(), limit)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, recallJSON(&item))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"items": out})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quality int `json:"quality"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	item, err := recall.ApplyReview(s.db, chi.URLParam(r, "itemID"), req.Quality, time.Now())
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recallJSON(item))
}

func (s *Server) handleDeleteRecallItem(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteRecallItem(chi.URLParam(r, "itemID")); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

func (s *Server) handleCreateContext(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID string `json:"owner_id"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	c := &store.Context{OwnerID: req.OwnerID, Name: req.Name}
	if err := s.db.CreateContext(c); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": c.ID, "name": c.Name})
}

func (s *Server) handleTriggerDedup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID   string `json:"owner_id"`
		Scope     string `json:"scope"`
		CaptureID string `json:"capture_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Scope == "" {
		req.Scope = queue.ScopeGlobal
	}

	jobID, err := s.broker.Enqueue(queue.QueueDedup, queue.DedupPayload{
		OwnerID:   req.OwnerID,
		Scope:     req.Scope,
		CaptureID: req.CaptureID,
	})
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
}

func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	var queueName string
	switch kind {
	case "summary":
		queueName = queue.QueueSummarizer
	case "tasks":
		queueName = queue.QueueTasks
	case "topics":
		queueName = queue.QueueTopics
	default:
		http.Error(w, `{"error":"unknown derivation kind"}`, http.StatusNotFound)
		return
	}

	var req struct {
		OwnerID   string   `json:"owner_id"`
		ContextID string   `json:"context_id"`
		ChunkIDs  []string `json:"chunk_ids"`
		Source    string   `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	jobID, err := s.broker.Enqueue(queueName, queue.DerivePayload{
		OwnerID:   req.OwnerID,
		ContextID: req.ContextID,
		ChunkIDs:  req.ChunkIDs,
		Source:    req.Source,
	})
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, `{"error":"owner_id required"}`, http.StatusBadRequest)
		return
	}

	summaries, err := s.db.ListSummaries(ownerID, queryInt(r, "limit", 20))
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, map[string]any{
			"id":         sum.ID,
			"context_id": sum.ContextID,
			"content":    sum.Content,
			"source":     sum.Source,
			"created_at": sum.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"summaries": out})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, `{"error":"owner_id required"}`, http.StatusBadRequest)
		return
	}

	tasks, err := s.db.ListTasks(ownerID, queryInt(r, "limit", 50))
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, map[string]any{
			"id":          t.ID,
			"context_id":  t.ContextID,
			"description": t.Description,
			"done":        t.Done,
			"source":      t.Source,
			"created_at":  t.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"tasks": out})
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.broker.Stats()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"queues": stats})
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.broker.DeadLetters(queryInt(r, "limit", 50))
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, map[string]any{
			"id":         j.ID,
			"queue":      j.Queue,
			"attempts":   j.Attempts,
			"last_error": j.LastError,
			"payload":    json.RawMessage(j.Payload),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"jobs": out})
}

func (s *Server) handleRequeueDead(w http.ResponseWriter, r *http.Request) {
	if err := s.broker.RequeueDead(chi.URLParam(r, "jobID")); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "requeued"})
}

func captureJSON(c *store.Capture) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"owner_id":   c.OwnerID,
		"context_id": c.ContextID,
		"type":       c.Type,
		"title":      c.Title,
		"source":     c.Source,
		"status":     c.Status,
		"error":      c.Error,
		"page_count": c.PageCount,
		"created_at": c.CreatedAt,
	}
}

func chunkJSON(c *store.Chunk) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"capture_id":   c.CaptureID,
		"position":     c.Position,
		"content":      c.Content,
		"topics":       c.Topics,
		"embedded":     c.Embedded(),
		"canonical_id": c.CanonicalID,
	}
}

func recallJSON(item *store.RecallItem) map[string]any {
	return map[string]any{
		"id":            item.ID,
		"owner_id":      item.OwnerID,
		"chunk_id":      item.ChunkID,
		"concept_id":    item.ConceptID,
		"note":          item.Note,
		"interval_days": item.IntervalDays,
		"ease_factor":   item.EaseFactor,
		"review_count":  item.ReviewCount,
		"next_review":   item.NextReview,
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
