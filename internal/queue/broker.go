package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/engram-memory/engram/internal/store"
)

// Job statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusDead    = "dead"
)

// Job is one durable queue entry.
type Job struct {
	ID          string
	Queue       string
	Payload     json.RawMessage
	Status      string
	Attempts    int
	MaxAttempts int
	RunAt       int64
	ClaimedAt   *int64
	LastError   string
	CreatedAt   int64
	UpdatedAt   int64
}

// Policy controls claiming and retry behavior.
type Policy struct {
	MaxAttempts  int
	RetryBase    time.Duration // first retry delay, doubled per attempt
	StaleRunning time.Duration // reclaim running jobs older than this
}

// DefaultPolicy matches the delivery contract: at-least-once, three
// attempts with exponential backoff, then dead-letter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		RetryBase:    30 * time.Second,
		StaleRunning: 5 * time.Minute,
	}
}

// Broker is the durable job queue, backed by the sqlite store.
type Broker struct {
	db     *store.DB
	policy Policy
}

// NewBroker creates a broker over the given store.
func NewBroker(db *store.DB, policy Policy) *Broker {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	return &Broker{db: db, policy: policy}
}

// Enqueue validates the payload for its queue and inserts a pending job.
// Returns the job id.
func (b *Broker) Enqueue(queue string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	if _, err := DecodePayload(queue, raw); err != nil {
		return "", err
	}

	id := uuid.New().String()
	now := time.Now().UnixMilli()
	_, err = b.db.Exec(`
		INSERT INTO jobs (id, queue, payload, status, attempts, max_attempts, run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		id, queue, string(raw), StatusPending, b.policy.MaxAttempts, now, now, now)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", queue, err)
	}
	return id, nil
}

// EnqueueAfter inserts a pending job that becomes runnable after the delay.
func (b *Broker) EnqueueAfter(queue string, payload any, delay time.Duration) (string, error) {
	id, err := b.Enqueue(queue, payload)
	if err != nil {
		return "", err
	}
	_, err = b.db.Exec(`UPDATE jobs SET run_at = ? WHERE id = ?`,
		time.Now().Add(delay).UnixMilli(), id)
	if err != nil {
		return "", fmt.Errorf("delay job: %w", err)
	}
	return id, nil
}

// ClaimNext picks the oldest runnable job on a queue and marks it running.
// Stale running jobs (a worker died mid-job) are reclaimed first — this is
// where at-least-once delivery comes from. Returns nil when the queue is
// empty.
func (b *Broker) ClaimNext(queue string) (*Job, error) {
	now := time.Now().UnixMilli()
	staleBefore := now - b.policy.StaleRunning.Milliseconds()

	tx, err := b.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		SELECT id, queue, payload, status, attempts, max_attempts, run_at, claimed_at, COALESCE(last_error, ''), created_at, updated_at
		FROM jobs
		WHERE queue = ?
		  AND (
		    (status = 'pending' AND run_at <= ?)
		    OR (status = 'running' AND claimed_at <= ?)
		  )
		ORDER BY run_at, created_at
		LIMIT 1`, queue, now, staleBefore)

	var j Job
	var payload string
	var claimedAt sql.NullInt64
	err = row.Scan(&j.ID, &j.Queue, &payload, &j.Status, &j.Attempts, &j.MaxAttempts,
		&j.RunAt, &claimedAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", queue, err)
	}
	j.Payload = json.RawMessage(payload)
	if claimedAt.Valid {
		j.ClaimedAt = &claimedAt.Int64
	}

	if _, err := tx.Exec(`
		UPDATE jobs SET status = 'running', claimed_at = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ?`, now, now, j.ID); err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	j.Status = StatusRunning
	j.Attempts++
	return &j, nil
}

// Ack marks a job done.
func (b *Broker) Ack(jobID string) error {
	_, err := b.db.Exec(`UPDATE jobs SET status = 'done', updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), jobID)
	if err != nil {
		return fmt.Errorf("ack job: %w", err)
	}
	return nil
}

// Fail records a failed attempt. Below the attempt cap, the job goes back
// to pending with exponential backoff; at the cap it is dead-lettered.
func (b *Broker) Fail(job *Job, cause error) error {
	now := time.Now()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if job.Attempts >= job.MaxAttempts {
		_, err := b.db.Exec(`
			UPDATE jobs SET status = 'dead', last_error = ?, updated_at = ? WHERE id = ?`,
			msg, now.UnixMilli(), job.ID)
		if err != nil {
			return fmt.Errorf("dead-letter job: %w", err)
		}
		return nil
	}

	delay := b.policy.RetryBase << uint(job.Attempts-1)
	_, err := b.db.Exec(`
		UPDATE jobs SET status = 'pending', last_error = ?, run_at = ?, updated_at = ? WHERE id = ?`,
		msg, now.Add(delay).UnixMilli(), now.UnixMilli(), job.ID)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	return nil
}

// DeadLetter moves a job straight to the dead queue, bypassing retries.
// Used for validation failures, which no retry can fix.
func (b *Broker) DeadLetter(jobID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := b.db.Exec(`UPDATE jobs SET status = 'dead', last_error = ?, updated_at = ? WHERE id = ?`,
		msg, time.Now().UnixMilli(), jobID)
	if err != nil {
		return fmt.Errorf("dead-letter job: %w", err)
	}
	return nil
}

// Requeue puts a job back to pending after a delay without consuming an
// attempt. Used when a scope lock is held: contention is not a failure.
func (b *Broker) Requeue(job *Job, delay time.Duration) error {
	now := time.Now()
	_, err := b.db.Exec(`
		UPDATE jobs SET status = 'pending', attempts = attempts - 1, run_at = ?, updated_at = ?
		WHERE id = ?`,
		now.Add(delay).UnixMilli(), now.UnixMilli(), job.ID)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

// DeadLetters lists dead jobs for the operations view, newest first.
func (b *Broker) DeadLetters(limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := b.db.Query(`
		SELECT id, queue, payload, status, attempts, max_attempts, run_at, claimed_at, COALESCE(last_error, ''), created_at, updated_at
		FROM jobs WHERE status = 'dead' ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// RequeueDead resets a dead job for a fresh round of attempts.
func (b *Broker) RequeueDead(jobID string) error {
	now := time.Now().UnixMilli()
	res, err := b.db.Exec(`
		UPDATE jobs SET status = 'pending', attempts = 0, last_error = '', run_at = ?, updated_at = ?
		WHERE id = ? AND status = 'dead'`, now, now, jobID)
	if err != nil {
		return fmt.Errorf("requeue dead job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dead job %s not found", jobID)
	}
	return nil
}

// Stats returns per-queue counts by status.
func (b *Broker) Stats() (map[string]map[string]int, error) {
	rows, err := b.db.Query(`SELECT queue, status, COUNT(*) FROM jobs GROUP BY queue, status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]map[string]int)
	for rows.Next() {
		var queue, status string
		var n int
		if err := rows.Scan(&queue, &status, &n); err != nil {
			return nil, err
		}
		if stats[queue] == nil {
			stats[queue] = make(map[string]int)
		}
		stats[queue][status] = n
	}
	return stats, rows.Err()
}

func collectJobs(rows *sql.Rows) ([]Job, error) {
	var out []Job
	for rows.Next() {
		var j Job
		var payload string
		var claimedAt sql.NullInt64
		if err := rows.Scan(&j.ID, &j.Queue, &payload, &j.Status, &j.Attempts, &j.MaxAttempts,
			&j.RunAt, &claimedAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Payload = json.RawMessage(payload)
		if claimedAt.Valid {
			j.ClaimedAt = &claimedAt.Int64
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
