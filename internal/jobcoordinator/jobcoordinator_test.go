package jobcoordinator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mywi/internal/model"
)

type fakeJobStore struct {
	mu      sync.Mutex
	created []model.CrawlJob
	status  map[string]model.CrawlJobStatus
	errMsgs map[string]*string
	results map[string]map[string]interface{}
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		status:  make(map[string]model.CrawlJobStatus),
		errMsgs: make(map[string]*string),
		results: make(map[string]map[string]interface{}),
	}
}

func (s *fakeJobStore) CreateCrawlJob(ctx context.Context, job model.CrawlJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, job)
	s.status[job.ID] = job.Status
	return nil
}

func (s *fakeJobStore) UpdateCrawlJobStatus(ctx context.Context, id string, status model.CrawlJobStatus, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.status[id]; !ok {
		return errors.New("unknown job")
	}
	s.status[id] = status
	s.errMsgs[id] = errMsg
	return nil
}

func (s *fakeJobStore) CompleteCrawlJob(ctx context.Context, id string, result map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = model.JobCompleted
	s.results[id] = result
	return nil
}

func TestCreateJob_MintsIDAndStartsPending(t *testing.T) {
	store := newFakeJobStore()
	c := New(store, nil)

	job, err := c.CreateJob(context.Background(), "crawl_land", map[string]interface{}{"land_id": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID == "" {
		t.Fatalf("expected a minted job ID")
	}
	if job.Status != model.JobPending {
		t.Fatalf("expected pending status, got %q", job.Status)
	}
	if job.BroadcastChannel != "crawl_progress_"+job.ID {
		t.Fatalf("unexpected broadcast channel: %q", job.BroadcastChannel)
	}
}

func TestLifecycleTransitions_UpdateStoreStatus(t *testing.T) {
	store := newFakeJobStore()
	c := New(store, nil)

	job, err := c.CreateJob(context.Background(), "crawl_land", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.MarkRunning(context.Background(), job.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if store.status[job.ID] != model.JobRunning {
		t.Fatalf("expected running, got %q", store.status[job.ID])
	}

	if err := c.Complete(context.Background(), job.ID, map[string]interface{}{"processed": 5}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if store.status[job.ID] != model.JobCompleted {
		t.Fatalf("expected completed, got %q", store.status[job.ID])
	}
	if store.results[job.ID]["processed"] != 5 {
		t.Fatalf("expected result to be recorded, got %+v", store.results[job.ID])
	}
}

func TestMarkFailed_RecordsErrorMessage(t *testing.T) {
	store := newFakeJobStore()
	c := New(store, nil)

	job, err := c.CreateJob(context.Background(), "crawl_land", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.MarkFailed(context.Background(), job.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if store.status[job.ID] != model.JobFailed {
		t.Fatalf("expected failed, got %q", store.status[job.ID])
	}
	if store.errMsgs[job.ID] == nil || *store.errMsgs[job.ID] != "boom" {
		t.Fatalf("expected error message to be recorded")
	}
}

func TestPublish_NoOpsWithoutRedisClient(t *testing.T) {
	store := newFakeJobStore()
	c := New(store, nil)

	err := c.Publish(context.Background(), model.ProgressEnvelope{JobID: "job-1", Current: 1, Total: 10})
	if err != nil {
		t.Fatalf("expected no-op publish to succeed, got %v", err)
	}
}

func TestSubscribe_ClosesImmediatelyWithoutRedisClient(t *testing.T) {
	store := newFakeJobStore()
	c := New(store, nil)

	ch, closeFn := c.Subscribe(context.Background(), "job-1")
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed immediately without a redis client")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("unexpected error from no-op close: %v", err)
	}
}
