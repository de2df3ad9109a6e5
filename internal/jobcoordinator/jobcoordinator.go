// Package jobcoordinator implements the Job/Progress Coordinator (C10):
// CrawlJob lifecycle management (pending → running → completed/failed/
// cancelled) plus progress broadcast over Redis Pub/Sub on each job's
// dedicated channel.
//
// Grounded on the teacher's internal/crawl/jobs.go (Manager, Status
// enum, uuidv7-with-v4-fallback minting) and internal/jobs/status.go
// (centralized status constants).
package jobcoordinator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mywi/internal/model"
)

// Store is the persistence seam for CrawlJob lifecycle transitions.
type Store interface {
	CreateCrawlJob(ctx context.Context, job model.CrawlJob) error
	UpdateCrawlJobStatus(ctx context.Context, id string, status model.CrawlJobStatus, errMsg *string) error
	CompleteCrawlJob(ctx context.Context, id string, result map[string]interface{}) error
}

// Coordinator owns CrawlJob creation, state transitions, and progress
// broadcast for a single Redis connection.
type Coordinator struct {
	store Store
	rdb   *redis.Client
}

func New(store Store, rdb *redis.Client) *Coordinator {
	return &Coordinator{store: store, rdb: rdb}
}

// CreateJob mints a new CrawlJob (uuidv7, falling back to v4) in
// pending status for jobType with the given parameters, and persists it.
func (c *Coordinator) CreateJob(ctx context.Context, jobType string, parameters map[string]interface{}) (model.CrawlJob, error) {
	id := mintID().String()
	job := model.CrawlJob{
		ID:         id,
		JobType:    jobType,
		Status:     model.JobPending,
		Parameters: parameters,
		CreatedAt:  time.Now().UTC(),
	}
	job.BroadcastChannel = job.ProgressChannel()

	if err := c.store.CreateCrawlJob(ctx, job); err != nil {
		return model.CrawlJob{}, err
	}
	return job, nil
}

// MarkRunning transitions job to running.
func (c *Coordinator) MarkRunning(ctx context.Context, jobID string) error {
	return c.store.UpdateCrawlJobStatus(ctx, jobID, model.JobRunning, nil)
}

// MarkFailed transitions job to failed, recording errMsg.
func (c *Coordinator) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	msg := errMsg
	return c.store.UpdateCrawlJobStatus(ctx, jobID, model.JobFailed, &msg)
}

// MarkCancelled transitions job to cancelled.
func (c *Coordinator) MarkCancelled(ctx context.Context, jobID string) error {
	return c.store.UpdateCrawlJobStatus(ctx, jobID, model.JobCancelled, nil)
}

// Complete transitions job to completed and records result.
func (c *Coordinator) Complete(ctx context.Context, jobID string, result map[string]interface{}) error {
	return c.store.CompleteCrawlJob(ctx, jobID, result)
}

// Publish broadcasts a progress envelope on its job's dedicated
// channel (crawl_progress_{job_id}). A nil Redis client makes this a
// no-op, so the coordinator degrades gracefully when Redis isn't
// configured.
func (c *Coordinator) Publish(ctx context.Context, envelope model.ProgressEnvelope) error {
	if c.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	channel := "crawl_progress_" + envelope.JobID
	return c.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe returns a channel of decoded progress envelopes for jobID.
// Callers must drain it until ctx is cancelled or the subscription is
// closed.
func (c *Coordinator) Subscribe(ctx context.Context, jobID string) (<-chan model.ProgressEnvelope, func() error) {
	out := make(chan model.ProgressEnvelope)
	if c.rdb == nil {
		close(out)
		return out, func() error { return nil }
	}

	channel := "crawl_progress_" + jobID
	sub := c.rdb.Subscribe(ctx, channel)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var envelope model.ProgressEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
					continue
				}
				select {
				case out <- envelope:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, sub.Close
}

// mintID generates a uuidv7 identifier, falling back to v4 when v7
// generation is unavailable or fails — mirrors the teacher's
// uuidMustV7 helper.
func mintID() uuid.UUID {
	if id, err := uuid.NewV7(); err == nil {
		return id
	}
	return uuid.New()
}
