// Package queue carries extraction jobs from the gateway to the workers
// that run them.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nugget-extractor/internal/retry"
)

// Job is one queued extraction run. RunID names the persisted run the
// worker reports into; the remaining fields are everything the pipeline
// needs so the worker never calls back into the gateway.
type Job struct {
	ID                uuid.UUID `json:"id"`
	RunID             uuid.UUID `json:"run_id"`
	Provider          string    `json:"provider"`
	SourceText        string    `json:"source_text"`
	InstructionPrompt string    `json:"instruction_prompt"`

	// Requeue bookkeeping, managed by the queue itself.
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	NotBefore   time.Time `json:"not_before"`
}

type Handler func(context.Context, Job) error

// Queue moves extraction jobs between services.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Worker(ctx context.Context, handler Handler) error
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, job Job, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := q.Enqueue(ctx, job); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return nil
}
