package pipeline

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/engram-memory/engram/internal/store"
)

func TestTokenize(t *testing.T) {
	got := tokenize("Hello, World! re-use under_score x 42")
	want := []string{"hello", "world", "re-use", "under_score", "42"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenize = %v, want %v", got, want)
	}
}

func TestNormalize(t *testing.T) {
	vec := []float64{3, 4}
	normalize(vec)
	if math.Abs(vec[0]-0.6) > 1e-9 || math.Abs(vec[1]-0.8) > 1e-9 {
		t.Errorf("normalized = %v, want [0.6 0.8]", vec)
	}

	zero := []float64{0, 0}
	normalize(zero) // must not divide by zero
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func tfidfFixture(t *testing.T, docs []string) *TFIDFEmbedder {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	capture := &store.Capture{OwnerID: "u1", Type: store.CaptureText}
	if err := db.CreateCapture(capture); err != nil {
		t.Fatalf("CreateCapture: %v", err)
	}
	for i, doc := range docs {
		c := &store.Chunk{CaptureID: capture.ID, OwnerID: "u1", Position: i, Content: doc}
		if err := db.CreateChunk(c); err != nil {
			t.Fatalf("CreateChunk: %v", err)
		}
	}

	emb, err := NewTFIDFEmbedder(db, 64)
	if err != nil {
		t.Fatalf("NewTFIDFEmbedder: %v", err)
	}
	return emb
}

func TestTFIDFSimilarityOrdering(t *testing.T) {
	emb := tfidfFixture(t, []string{
		"the database stores rows in pages",
		"the cache evicts entries under pressure",
		"indexes speed up database queries",
	})

	ctx := context.Background()
	dbVec, err := emb.Embed(ctx, "database pages and rows")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	sameVec, _ := emb.Embed(ctx, "database pages and rows")
	cacheVec, _ := emb.Embed(ctx, "cache eviction under pressure")

	if sim := CosineSimilarity(dbVec, sameVec); math.Abs(sim-1) > 1e-9 {
		t.Errorf("self similarity = %v, want 1", sim)
	}
	crossSim := CosineSimilarity(dbVec, cacheVec)
	if crossSim >= 0.99 {
		t.Errorf("unrelated texts too similar: %v", crossSim)
	}
}

func TestTFIDFEmptyCorpus(t *testing.T) {
	emb := tfidfFixture(t, nil)

	vec, err := emb.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != emb.Dimensions() {
		t.Errorf("len = %d, want %d", len(vec), emb.Dimensions())
	}
}

func TestTFIDFEmptyText(t *testing.T) {
	emb := tfidfFixture(t, []string{"one single document"})

	vec, err := emb.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("vec[%d] = %v, want all zeros for empty text", i, v)
		}
	}
}
