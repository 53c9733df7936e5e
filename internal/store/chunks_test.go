package store

import (
	"math"
	"testing"
)

func testCapture(t *testing.T, db *DB, owner string) *Capture {
	t.Helper()
	c := &Capture{OwnerID: owner, Type: CaptureText}
	if err := db.CreateCapture(c); err != nil {
		t.Fatalf("CreateCapture: %v", err)
	}
	return c
}

func testChunk(t *testing.T, db *DB, captureID, owner, content string, pos int) *Chunk {
	t.Helper()
	c := &Chunk{CaptureID: captureID, OwnerID: owner, Position: pos, Content: content}
	if err := db.CreateChunk(c); err != nil {
		t.Fatalf("CreateChunk: %v", err)
	}
	return c
}

func TestEmbeddingRoundTrip(t *testing.T) {
	db := testDB(t)
	cap := testCapture(t, db, "u1")
	chunk := testChunk(t, db, cap.ID, "u1", "some content", 0)

	vec := []float64{0.1, -0.5, 0.99999, math.Pi}
	if err := db.SaveChunkEmbedding(chunk.ID, vec, "test-model"); err != nil {
		t.Fatalf("SaveChunkEmbedding: %v", err)
	}

	got, err := db.GetChunk(chunk.ID)
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if !got.Embedded() {
		t.Fatal("chunk not embedded after save")
	}
	if len(got.Embedding) != len(vec) {
		t.Fatalf("embedding len = %d, want %d", len(got.Embedding), len(vec))
	}
	for i := range vec {
		if got.Embedding[i] != vec[i] {
			t.Errorf("embedding[%d] = %v, want %v", i, got.Embedding[i], vec[i])
		}
	}
	if got.EmbeddingModel != "test-model" {
		t.Errorf("model = %q", got.EmbeddingModel)
	}
	if got.Dimensions != 4 {
		t.Errorf("dimensions = %d, want 4", got.Dimensions)
	}
}

func TestCountPendingEmbeddings(t *testing.T) {
	db := testDB(t)
	cap := testCapture(t, db, "u1")
	c1 := testChunk(t, db, cap.ID, "u1", "first", 0)
	testChunk(t, db, cap.ID, "u1", "second", 1)

	n, err := db.CountPendingEmbeddings(cap.ID)
	if err != nil {
		t.Fatalf("CountPendingEmbeddings: %v", err)
	}
	if n != 2 {
		t.Errorf("pending = %d, want 2", n)
	}

	if err := db.SaveChunkEmbedding(c1.ID, []float64{1, 0}, "m"); err != nil {
		t.Fatalf("SaveChunkEmbedding: %v", err)
	}
	n, _ = db.CountPendingEmbeddings(cap.ID)
	if n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
}

func TestSupersedeChunk(t *testing.T) {
	db := testDB(t)
	cap := testCapture(t, db, "u1")
	canon := testChunk(t, db, cap.ID, "u1", "canonical", 0)
	dup := testChunk(t, db, cap.ID, "u1", "duplicate", 1)

	if err := db.TagChunk(dup.ID, "golang"); err != nil {
		t.Fatalf("TagChunk: %v", err)
	}
	if err := db.TagChunk(canon.ID, "golang"); err != nil {
		t.Fatalf("TagChunk: %v", err)
	}
	if err := db.TagChunk(dup.ID, "sqlite"); err != nil {
		t.Fatalf("TagChunk: %v", err)
	}

	if err := db.SupersedeChunk(dup.ID, canon.ID); err != nil {
		t.Fatalf("SupersedeChunk: %v", err)
	}

	got, _ := db.GetChunk(dup.ID)
	if got.CanonicalID != canon.ID {
		t.Errorf("canonical_id = %q, want %q", got.CanonicalID, canon.ID)
	}

	// Tags moved to the canonical, duplicates collapsed.
	tags, err := db.ChunkTags(canon.ID)
	if err != nil {
		t.Fatalf("ChunkTags: %v", err)
	}
	if len(tags) != 2 || tags[0] != "golang" || tags[1] != "sqlite" {
		t.Errorf("canonical tags = %v, want [golang sqlite]", tags)
	}
	dupTags, _ := db.ChunkTags(dup.ID)
	if len(dupTags) != 0 {
		t.Errorf("superseded chunk kept tags: %v", dupTags)
	}
}

func TestSupersedeChunkIdempotent(t *testing.T) {
	db := testDB(t)
	cap := testCapture(t, db, "u1")
	canon := testChunk(t, db, cap.ID, "u1", "canonical", 0)
	other := testChunk(t, db, cap.ID, "u1", "other canonical", 1)
	dup := testChunk(t, db, cap.ID, "u1", "duplicate", 2)

	if err := db.SupersedeChunk(dup.ID, canon.ID); err != nil {
		t.Fatalf("first supersede: %v", err)
	}
	// Second supersede, even at a different target, must not re-point.
	if err := db.SupersedeChunk(dup.ID, other.ID); err != nil {
		t.Fatalf("second supersede: %v", err)
	}

	got, _ := db.GetChunk(dup.ID)
	if got.CanonicalID != canon.ID {
		t.Errorf("canonical_id = %q, want %q (first target wins)", got.CanonicalID, canon.ID)
	}
}

func TestSupersedeChunkSelf(t *testing.T) {
	db := testDB(t)
	cap := testCapture(t, db, "u1")
	c := testChunk(t, db, cap.ID, "u1", "content", 0)

	if err := db.SupersedeChunk(c.ID, c.ID); err == nil {
		t.Error("expected error superseding a chunk with itself")
	}
}

func TestDedupCandidates(t *testing.T) {
	db := testDB(t)
	cap1 := testCapture(t, db, "u1")
	cap2 := testCapture(t, db, "u1")

	embedded := testChunk(t, db, cap1.ID, "u1", "embedded", 0)
	db.SaveChunkEmbedding(embedded.ID, []float64{1, 0}, "m")

	testChunk(t, db, cap1.ID, "u1", "not embedded", 1)

	superseded := testChunk(t, db, cap1.ID, "u1", "superseded", 2)
	db.SaveChunkEmbedding(superseded.ID, []float64{1, 0}, "m")
	db.SupersedeChunk(superseded.ID, embedded.ID)

	otherCap := testChunk(t, db, cap2.ID, "u1", "other capture", 0)
	db.SaveChunkEmbedding(otherCap.ID, []float64{0, 1}, "m")

	// Capture scope: only the live embedded chunk of cap1.
	got, err := db.DedupCandidates("u1", cap1.ID)
	if err != nil {
		t.Fatalf("DedupCandidates: %v", err)
	}
	if len(got) != 1 || got[0].ID != embedded.ID {
		t.Errorf("capture-scope candidates = %d, want just %s", len(got), embedded.ID)
	}

	// Global scope: both captures' live embedded chunks.
	got, err = db.DedupCandidates("u1", "")
	if err != nil {
		t.Fatalf("DedupCandidates global: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("global candidates = %d, want 2", len(got))
	}
}

func TestDeleteCaptureChunks(t *testing.T) {
	db := testDB(t)
	cap := testCapture(t, db, "u1")
	c := testChunk(t, db, cap.ID, "u1", "content", 0)
	db.TagChunk(c.ID, "tag")

	if err := db.DeleteCaptureChunks(cap.ID); err != nil {
		t.Fatalf("DeleteCaptureChunks: %v", err)
	}

	chunks, _ := db.ListCaptureChunks(cap.ID)
	if len(chunks) != 0 {
		t.Errorf("chunks remain: %d", len(chunks))
	}
	tags, _ := db.ChunkTags(c.ID)
	if len(tags) != 0 {
		t.Errorf("tags remain: %v", tags)
	}
}

func TestContextChunkIDs(t *testing.T) {
	db := testDB(t)
	cap := testCapture(t, db, "u1")

	ctx := &Context{OwnerID: "u1", Name: "work"}
	if err := db.CreateContext(ctx); err != nil {
		t.Fatalf("CreateContext: %v", err)
	}

	c1 := testChunk(t, db, cap.ID, "u1", "linked", 0)
	c2 := testChunk(t, db, cap.ID, "u1", "linked superseded", 1)
	db.LinkChunkContext(c1.ID, ctx.ID)
	db.LinkChunkContext(c2.ID, ctx.ID)
	db.SupersedeChunk(c2.ID, c1.ID)

	ids, err := db.ContextChunkIDs("u1", ctx.ID)
	if err != nil {
		t.Fatalf("ContextChunkIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != c1.ID {
		t.Errorf("ids = %v, want [%s]", ids, c1.ID)
	}
}
