package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/engram-memory/engram/internal/store"
)

// Handler processes one decoded job payload. Returning nil acks the job.
// Handlers must be idempotent: delivery is at-least-once.
type Handler func(ctx context.Context, payload any) error

// conflictDelay is how long a job waits before re-running when the scope
// lock it needs is held.
const conflictDelay = 15 * time.Second

// Worker binds queues to handlers and pulls jobs to completion, one job at
// a time per queue.
type Worker struct {
	broker   *Broker
	handlers map[string]Handler
	interval time.Duration
	wg       sync.WaitGroup
}

// NewWorker creates a worker over the broker. interval is the poll period.
func NewWorker(broker *Broker, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{
		broker:   broker,
		handlers: make(map[string]Handler),
		interval: interval,
	}
}

// Handle registers the handler for a queue.
func (w *Worker) Handle(queue string, h Handler) {
	w.handlers[queue] = h
}

// Start launches one polling goroutine per registered queue. Cancel the
// context to stop; Wait blocks until in-flight jobs finish.
func (w *Worker) Start(ctx context.Context) {
	for queue := range w.handlers {
		w.wg.Add(1)
		go w.run(ctx, queue)
	}
}

// Wait blocks until all queue loops have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, queue string) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before going back to sleep.
			for {
				job, err := w.broker.ClaimNext(queue)
				if err != nil {
					log.Printf("queue %s: claim: %v", queue, err)
					break
				}
				if job == nil {
					break
				}
				w.process(ctx, job)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// process dispatches one claimed job and settles it according to the error
// taxonomy: validation failures dead-letter, lock contention re-queues
// without consuming an attempt, anything else retries with backoff.
func (w *Worker) process(ctx context.Context, job *Job) {
	payload, err := DecodePayload(job.Queue, job.Payload)
	if err != nil {
		log.Printf("queue %s: job %s: %v — dead-lettering", job.Queue, job.ID, err)
		if dlErr := w.broker.DeadLetter(job.ID, err); dlErr != nil {
			log.Printf("queue %s: dead-letter %s: %v", job.Queue, job.ID, dlErr)
		}
		return
	}

	handler := w.handlers[job.Queue]

	err = func() (handlerErr error) {
		defer func() {
			if r := recover(); r != nil {
				handlerErr = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return handler(ctx, payload)
	}()

	switch {
	case err == nil:
		if ackErr := w.broker.Ack(job.ID); ackErr != nil {
			log.Printf("queue %s: ack %s: %v", job.Queue, job.ID, ackErr)
		}

	case errors.Is(err, store.ErrLockHeld):
		log.Printf("queue %s: job %s: scope lock held, re-queueing", job.Queue, job.ID)
		if rqErr := w.broker.Requeue(job, conflictDelay); rqErr != nil {
			log.Printf("queue %s: requeue %s: %v", job.Queue, job.ID, rqErr)
		}

	case isValidation(err):
		log.Printf("queue %s: job %s: %v — dead-lettering", job.Queue, job.ID, err)
		if dlErr := w.broker.DeadLetter(job.ID, err); dlErr != nil {
			log.Printf("queue %s: dead-letter %s: %v", job.Queue, job.ID, dlErr)
		}

	default:
		log.Printf("queue %s: job %s attempt %d/%d failed: %v",
			job.Queue, job.ID, job.Attempts, job.MaxAttempts, err)
		if failErr := w.broker.Fail(job, err); failErr != nil {
			log.Printf("queue %s: fail %s: %v", job.Queue, job.ID, failErr)
		}
	}
}

func isValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
