package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/engram-memory/engram/internal/store"
)

func testBroker(t *testing.T) *Broker {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	// Fast retries so tests never sleep across a backoff window.
	return NewBroker(db, Policy{
		MaxAttempts:  3,
		RetryBase:    time.Millisecond,
		StaleRunning: time.Minute,
	})
}

func ingestPayload() IngestPayload {
	return IngestPayload{CaptureID: "cap-1", OwnerID: "u1", Text: "hello"}
}

func TestEnqueueClaimAck(t *testing.T) {
	b := testBroker(t)

	id, err := b.Enqueue(QueueIngest, ingestPayload())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job, err := b.ClaimNext(QueueIngest)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if job == nil || job.ID != id {
		t.Fatalf("claimed %+v, want job %s", job, id)
	}
	if job.Status != StatusRunning {
		t.Errorf("status = %q, want running", job.Status)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}

	// Claimed jobs are invisible to other claimers.
	if other, _ := b.ClaimNext(QueueIngest); other != nil {
		t.Errorf("second claim returned %s", other.ID)
	}

	if err := b.Ack(job.ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if again, _ := b.ClaimNext(QueueIngest); again != nil {
		t.Errorf("acked job reclaimed: %s", again.ID)
	}
}

func TestEnqueueRejectsInvalidPayload(t *testing.T) {
	b := testBroker(t)

	_, err := b.Enqueue(QueueIngest, IngestPayload{OwnerID: "u1", Text: "x"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	_, err = b.Enqueue("no-such-queue", ingestPayload())
	if !errors.As(err, &ve) {
		t.Fatalf("unknown queue err = %v, want ValidationError", err)
	}
}

func TestClaimEmptyQueue(t *testing.T) {
	b := testBroker(t)

	job, err := b.ClaimNext(QueueIngest)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if job != nil {
		t.Errorf("claimed %+v from empty queue", job)
	}
}

func TestFailRetriesThenDeadLetters(t *testing.T) {
	b := testBroker(t)
	b.Enqueue(QueueIngest, ingestPayload())

	cause := fmt.Errorf("provider down")
	for attempt := 1; attempt <= 3; attempt++ {
		var job *Job
		// Backoff is a millisecond per test policy; spin until runnable.
		deadline := time.Now().Add(time.Second)
		for job == nil && time.Now().Before(deadline) {
			var err error
			job, err = b.ClaimNext(QueueIngest)
			if err != nil {
				t.Fatalf("ClaimNext: %v", err)
			}
			if job == nil {
				time.Sleep(time.Millisecond)
			}
		}
		if job == nil {
			t.Fatalf("attempt %d never became runnable", attempt)
		}
		if job.Attempts != attempt {
			t.Errorf("attempts = %d, want %d", job.Attempts, attempt)
		}
		if err := b.Fail(job, cause); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	// Attempts exhausted: the job is dead, not runnable.
	time.Sleep(5 * time.Millisecond)
	if job, _ := b.ClaimNext(QueueIngest); job != nil {
		t.Errorf("dead job claimed: %+v", job)
	}

	dead, err := b.DeadLetters(10)
	if err != nil {
		t.Fatalf("DeadLetters: %v", err)
	}
	if len(dead) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(dead))
	}
	if dead[0].LastError != "provider down" {
		t.Errorf("last_error = %q", dead[0].LastError)
	}
}

func TestRequeueDoesNotConsumeAttempt(t *testing.T) {
	b := testBroker(t)
	b.Enqueue(QueueDedup, DedupPayload{OwnerID: "u1", Scope: ScopeGlobal})

	job, err := b.ClaimNext(QueueDedup)
	if err != nil || job == nil {
		t.Fatalf("ClaimNext: %v, %v", job, err)
	}
	if err := b.Requeue(job, 0); err != nil {
		t.Fatalf("Requeue: %v", err)
	}

	again, err := b.ClaimNext(QueueDedup)
	if err != nil || again == nil {
		t.Fatalf("reclaim: %v, %v", again, err)
	}
	if again.Attempts != 1 {
		t.Errorf("attempts = %d after requeue+claim, want 1", again.Attempts)
	}
}

func TestEnqueueAfterDelays(t *testing.T) {
	b := testBroker(t)

	if _, err := b.EnqueueAfter(QueueIngest, ingestPayload(), time.Hour); err != nil {
		t.Fatalf("EnqueueAfter: %v", err)
	}
	if job, _ := b.ClaimNext(QueueIngest); job != nil {
		t.Errorf("delayed job claimed early: %+v", job)
	}
}

func TestStaleRunningReclaimed(t *testing.T) {
	b := testBroker(t)
	id, _ := b.Enqueue(QueueIngest, ingestPayload())

	job, _ := b.ClaimNext(QueueIngest)
	if job == nil {
		t.Fatal("no job claimed")
	}

	// Backdate the claim past the stale threshold, simulating a dead worker.
	stale := time.Now().Add(-2 * time.Minute).UnixMilli()
	if _, err := b.db.Exec(`UPDATE jobs SET claimed_at = ? WHERE id = ?`, stale, id); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	reclaimed, err := b.ClaimNext(QueueIngest)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != id {
		t.Fatalf("stale job not reclaimed: %+v", reclaimed)
	}
	if reclaimed.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", reclaimed.Attempts)
	}
}

func TestDeadLetterAndRequeueDead(t *testing.T) {
	b := testBroker(t)
	id, _ := b.Enqueue(QueueIngest, ingestPayload())

	job, _ := b.ClaimNext(QueueIngest)
	if err := b.DeadLetter(job.ID, fmt.Errorf("bad payload")); err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}

	if err := b.RequeueDead(id); err != nil {
		t.Fatalf("RequeueDead: %v", err)
	}
	revived, _ := b.ClaimNext(QueueIngest)
	if revived == nil || revived.ID != id {
		t.Fatal("revived job not claimable")
	}
	if revived.Attempts != 1 {
		t.Errorf("attempts = %d, want fresh count 1", revived.Attempts)
	}

	if err := b.RequeueDead("missing"); err == nil {
		t.Error("expected error requeueing unknown job")
	}
}

func TestStats(t *testing.T) {
	b := testBroker(t)
	b.Enqueue(QueueIngest, ingestPayload())
	b.Enqueue(QueueIngest, ingestPayload())
	id, _ := b.Enqueue(QueueDedup, DedupPayload{OwnerID: "u1", Scope: ScopeGlobal})
	b.DeadLetter(id, fmt.Errorf("x"))

	stats, err := b.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[QueueIngest][StatusPending] != 2 {
		t.Errorf("ingest pending = %d, want 2", stats[QueueIngest][StatusPending])
	}
	if stats[QueueDedup][StatusDead] != 1 {
		t.Errorf("dedup dead = %d, want 1", stats[QueueDedup][StatusDead])
	}
}
