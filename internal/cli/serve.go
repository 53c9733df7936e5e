package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/engram-memory/engram/internal/config"
	"github.com/engram-memory/engram/internal/llm"
	"github.com/engram-memory/engram/internal/pipeline"
	"github.com/engram-memory/engram/internal/queue"
	"github.com/engram-memory/engram/internal/server"
	"github.com/engram-memory/engram/internal/store"
	"github.com/engram-memory/engram/internal/vecindex"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and pipeline workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, err := config.DefaultPath()
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	broker := queue.NewBroker(db, queue.DefaultPolicy())

	// Rebuild the vector index from stored embeddings.
	index := vecindex.New()
	chunks, err := db.EmbeddedChunks()
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}
	for _, c := range chunks {
		if err := index.Upsert(context.Background(), c.OwnerID, c.ID, c.Embedding, c.CaptureID); err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
	}
	if len(chunks) > 0 {
		fmt.Fprintf(os.Stderr, "  index: %d vectors loaded\n", len(chunks))
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), graph and derivation disabled\n", err)
		llmClient = nil
	} else {
		fmt.Fprintf(os.Stderr, "  llm: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	}

	embedder := detectEmbedder(cfg, db)

	pl := pipeline.New(db, broker, index, llmClient, embedder, pipeline.Options{
		LLMRatePerSecond: cfg.LLM.RatePerSecond,
		EmbedParallel:    cfg.Workers.EmbedParallel,
	})

	worker := queue.NewWorker(broker, time.Duration(cfg.Workers.PollIntervalMS)*time.Millisecond)
	pl.Register(worker)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	worker.Start(workerCtx)

	srv := server.New(db, broker, index, embedder, VersionString())
	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "engram serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}

	// Let in-flight jobs finish; unfinished ones are reclaimed on restart.
	stopWorkers()
	worker.Wait()
	return nil
}

// detectEmbedder probes for a local Ollama instance and falls back to the
// corpus-derived TF-IDF embedder when none is reachable.
func detectEmbedder(cfg config.Config, db *store.DB) pipeline.Embedder {
	ollamaURL := cfg.LLM.OllamaURL
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	embeddingModel := cfg.LLM.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "nomic-embed-text"
	}

	if pipeline.ProbeOllama(ollamaURL, embeddingModel) {
		fmt.Fprintf(os.Stderr, "  embedder: ollama (%s)\n", embeddingModel)
		return pipeline.NewOllamaEmbedder(ollamaURL, embeddingModel, 768)
	}

	emb, err := pipeline.NewTFIDFEmbedder(db, 512)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tfidf embedder init failed: %v\n", err)
		return nil
	}
	fmt.Fprintf(os.Stderr, "  embedder: tfidf (fallback)\n")
	return emb
}
