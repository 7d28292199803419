package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"nugget-extractor/internal/retry"
)

const (
	subject    = "extractions"
	queueGroup = "extraction-workers"

	defaultMaxRequeues = 5
)

// NewNATS constructs a NATS-backed extraction job queue.
func NewNATS(log *slog.Logger, nc *nats.Conn) Queue {
	return &natsQueue{log: log, nc: nc}
}

type natsQueue struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (q *natsQueue) Enqueue(_ context.Context, job Job) error {
	if job.RunID == uuid.Nil {
		return errors.New("extraction job requires a run id")
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.nc.Publish(subject, body)
}

// Worker joins the extraction queue group and runs handler for each job
// until ctx is done. A failing handler gets the job requeued with backoff.
func (q *natsQueue) Worker(ctx context.Context, handler Handler) error {
	sub, err := q.nc.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		q.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (q *natsQueue) handleMessage(ctx context.Context, msg *nats.Msg, handler Handler) {
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		q.log.Error("failed to decode extraction job", "err", err)
		return
	}

	if job.NotBefore.After(time.Now()) {
		time.Sleep(time.Until(job.NotBefore))
	}

	if err := handler(ctx, job); err != nil {
		q.requeue(ctx, job, err)
	}
}

func (q *natsQueue) requeue(ctx context.Context, job Job, handlerErr error) {
	job.Attempts++
	if job.MaxAttempts == 0 {
		job.MaxAttempts = defaultMaxRequeues
	}

	if job.Attempts < job.MaxAttempts {
		job.NotBefore = time.Now().Add(retry.ExponentialBackoff(job.Attempts, time.Second))
		if err := q.Enqueue(ctx, job); err != nil {
			q.log.Error("failed to requeue job after failure",
				"id", job.ID, "run_id", job.RunID, "original_err", handlerErr, "enqueue_err", err)
		}
	} else {
		q.log.Error("extraction job permanently failed",
			"id", job.ID, "run_id", job.RunID, "original_err", handlerErr)
	}
}
