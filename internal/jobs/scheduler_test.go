package jobs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediagen/internal/domain"
	"mediagen/internal/providers"
)

// stubAdapter replays a scripted sequence of status responses; once the
// script runs out, the last entry repeats.
type stubAdapter struct {
	mu    sync.Mutex
	seq   []stubResult
	calls int
}

type stubResult struct {
	status *providers.Status
	err    error
}

func (a *stubAdapter) TaskStatus(ctx context.Context, taskID string) (*providers.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := a.calls
	a.calls++
	if idx >= len(a.seq) {
		idx = len(a.seq) - 1
	}
	r := a.seq[idx]
	return r.status, r.err
}

func (a *stubAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// blockingAdapter parks every status request until released, to simulate a
// response that arrives after the job was cancelled.
type blockingAdapter struct {
	entered chan struct{}
	release chan struct{}
	result  *providers.Status
}

func (a *blockingAdapter) TaskStatus(ctx context.Context, taskID string) (*providers.Status, error) {
	a.entered <- struct{}{}
	<-a.release
	return a.result, nil
}

type fakeHistory struct {
	mu   sync.Mutex
	jobs []*domain.Job
	keys []string
	err  error
}

func (f *fakeHistory) RecordCompletion(ctx context.Context, job *domain.Job, storageKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job.Clone())
	f.keys = append(f.keys, storageKey)
	return f.err
}

func (f *fakeHistory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func (f *fakeHistory) last() *domain.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		return nil
	}
	return f.jobs[len(f.jobs)-1]
}

type fakeMirror struct {
	mu    sync.Mutex
	calls int
	key   string
	err   error
}

func (f *fakeMirror) Mirror(ctx context.Context, job *domain.Job) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.key, f.err
}

func (f *fakeMirror) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() Config {
	return Config{
		InitialDelay:           time.Millisecond,
		BaseInterval:           time.Millisecond,
		MaxInterval:            5 * time.Millisecond,
		Deadline:               time.Second,
		MaxConsecutiveFailures: 3,
		MaxInFlight:            2,
		RecentLimit:            10,
		DispatchTimeout:        time.Second,
		SweepRetention:         time.Hour,
	}
}

func newTestScheduler(t *testing.T, cfg Config, adapter providers.StatusAdapter) (*Scheduler, *Store, *fakeHistory) {
	t.Helper()
	logger := zerolog.Nop()
	store := NewStore(cfg.RecentLimit, logger, nil)
	history := &fakeHistory{}
	dispatcher := NewDispatcher(store, history, nil, logger, cfg.DispatchTimeout)
	registry := providers.NewRegistry()
	registry.Register(domain.ProviderKling, adapter)
	sched := NewScheduler(cfg, store, registry, dispatcher, logger)
	t.Cleanup(func() {
		sched.Close()
		dispatcher.Wait()
	})
	return sched, store, history
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", d)
}

func TestSchedulerPollsToSuccess(t *testing.T) {
	adapter := &stubAdapter{seq: []stubResult{
		{status: &providers.Status{State: domain.StatusProcessing, Progress: intPtr(10)}},
		{status: &providers.Status{State: domain.StatusProcessing, Progress: intPtr(55)}},
		{status: &providers.Status{
			State:    domain.StatusSucceeded,
			Progress: intPtr(100),
			VideoURL: "https://cdn.example.com/video.mp4",
			CoverURL: "https://cdn.example.com/cover.jpg",
		}},
	}}
	sched, store, history := newTestScheduler(t, testConfig(), adapter)
	store.Create("task-1", domain.ProviderKling, domain.KindImageToVideo, domain.Metadata{Prompt: "a fox"})

	if err := sched.Watch("task-1"); err != nil {
		t.Fatalf("watch: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		job, _ := store.Get("task-1")
		return job.Status == domain.StatusSucceeded
	})

	job, _ := store.Get("task-1")
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want 100", job.Progress)
	}
	if job.Result == nil || job.Result.VideoURL != "https://cdn.example.com/video.mp4" {
		t.Fatalf("result = %+v, want video url", job.Result)
	}

	// Polling must stop after the terminal status.
	calls := adapter.callCount()
	time.Sleep(20 * time.Millisecond)
	if adapter.callCount() != calls {
		t.Fatalf("polling continued after success: %d -> %d", calls, adapter.callCount())
	}

	waitFor(t, time.Second, func() bool { return history.count() == 1 })
	if got := history.last(); got.Metadata.Prompt != "a fox" {
		t.Fatalf("history prompt = %q, want %q", got.Metadata.Prompt, "a fox")
	}
}

func TestSchedulerTransientFailuresExhausted(t *testing.T) {
	adapter := &stubAdapter{seq: []stubResult{
		{err: &providers.TransientError{Op: "kling", Err: context.DeadlineExceeded}},
	}}
	sched, store, history := newTestScheduler(t, testConfig(), adapter)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})

	if err := sched.Watch("task-1"); err != nil {
		t.Fatalf("watch: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		job, _ := store.Get("task-1")
		return job.Status == domain.StatusFailed
	})

	job, _ := store.Get("task-1")
	if job.Error != "status check failing repeatedly" {
		t.Fatalf("error = %q", job.Error)
	}
	if calls := adapter.callCount(); calls != 3 {
		t.Fatalf("calls = %d, want exactly MaxConsecutiveFailures", calls)
	}
	waitFor(t, time.Second, func() bool { return history.count() == 1 })
}

func TestSchedulerPermanentErrorFailsImmediately(t *testing.T) {
	adapter := &stubAdapter{seq: []stubResult{
		{err: &providers.PermanentError{Op: "kling", StatusCode: 404, Message: "task not found"}},
	}}
	sched, store, _ := newTestScheduler(t, testConfig(), adapter)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})

	if err := sched.Watch("task-1"); err != nil {
		t.Fatalf("watch: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		job, _ := store.Get("task-1")
		return job.Status == domain.StatusFailed
	})

	job, _ := store.Get("task-1")
	if !strings.Contains(job.Error, "task not found") {
		t.Fatalf("error = %q, want provider message surfaced", job.Error)
	}
	if calls := adapter.callCount(); calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on permanent errors)", calls)
	}
}

func TestSchedulerDeadlineTimesOut(t *testing.T) {
	adapter := &stubAdapter{seq: []stubResult{
		{status: &providers.Status{State: domain.StatusProcessing}},
	}}
	cfg := testConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.BaseInterval = 100 * time.Millisecond
	cfg.Deadline = 30 * time.Millisecond
	sched, store, history := newTestScheduler(t, cfg, adapter)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})

	if err := sched.Watch("task-1"); err != nil {
		t.Fatalf("watch: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		job, _ := store.Get("task-1")
		return job.Status == domain.StatusTimedOut
	})

	job, _ := store.Get("task-1")
	if job.Error != "generation did not finish before the deadline" {
		t.Fatalf("error = %q", job.Error)
	}
	calls := adapter.callCount()
	time.Sleep(120 * time.Millisecond)
	if adapter.callCount() != calls {
		t.Fatalf("polling continued after timeout")
	}
	// timed_out is not a completion; nothing is dispatched.
	if history.count() != 0 {
		t.Fatalf("history recorded %d entries for a timed_out job", history.count())
	}
}

func TestSchedulerCancelDiscardsLateResponse(t *testing.T) {
	adapter := &blockingAdapter{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		result: &providers.Status{
			State:    domain.StatusSucceeded,
			VideoURL: "https://cdn.example.com/late.mp4",
		},
	}
	sched, store, history := newTestScheduler(t, testConfig(), adapter)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})

	if err := sched.Watch("task-1"); err != nil {
		t.Fatalf("watch: %v", err)
	}
	<-adapter.entered

	sched.Cancel("task-1")
	status := domain.StatusCancelled
	if _, err := store.Update("task-1", Patch{Status: &status}); err != nil {
		t.Fatalf("cancel update: %v", err)
	}
	close(adapter.release)

	time.Sleep(20 * time.Millisecond)
	job, _ := store.Get("task-1")
	if job.Status != domain.StatusCancelled {
		t.Fatalf("status = %q, late response overwrote the cancellation", job.Status)
	}
	if job.Result != nil {
		t.Fatalf("result leaked into a cancelled job")
	}
	if history.count() != 0 {
		t.Fatalf("completion dispatched for a cancelled job")
	}
}

func TestSchedulerRefreshAdoptsCompletion(t *testing.T) {
	adapter := &stubAdapter{seq: []stubResult{
		{status: &providers.Status{
			State:    domain.StatusSucceeded,
			Progress: intPtr(100),
			VideoURL: "https://cdn.example.com/adopted.mp4",
		}},
	}}
	sched, store, history := newTestScheduler(t, testConfig(), adapter)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})
	store.Update("task-1", Patch{Status: statusPtr(domain.StatusTimedOut), Error: strPtr("deadline")})

	if err := sched.Refresh(context.Background(), "task-1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	job, _ := store.Get("task-1")
	if job.Status != domain.StatusSucceeded {
		t.Fatalf("status = %q, want adopted success", job.Status)
	}
	if job.Result == nil || job.Result.VideoURL != "https://cdn.example.com/adopted.mp4" {
		t.Fatalf("result = %+v", job.Result)
	}
	waitFor(t, time.Second, func() bool { return history.count() == 1 })
}

func TestSchedulerRefreshTransientIsInconclusive(t *testing.T) {
	adapter := &stubAdapter{seq: []stubResult{
		{err: &providers.TransientError{Op: "kling", Err: context.DeadlineExceeded}},
	}}
	sched, store, _ := newTestScheduler(t, testConfig(), adapter)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})
	store.Update("task-1", Patch{Status: statusPtr(domain.StatusTimedOut), Error: strPtr("deadline")})

	if err := sched.Refresh(context.Background(), "task-1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	job, _ := store.Get("task-1")
	if job.Status != domain.StatusTimedOut {
		t.Fatalf("status = %q, a single transient refresh error must not fail the job", job.Status)
	}
}

func TestSchedulerWatchErrors(t *testing.T) {
	adapter := &stubAdapter{seq: []stubResult{{status: &providers.Status{State: domain.StatusProcessing}}}}
	sched, store, _ := newTestScheduler(t, testConfig(), adapter)

	if err := sched.Watch("missing"); err != domain.ErrUnknownJob {
		t.Fatalf("err = %v, want ErrUnknownJob", err)
	}

	store.Create("task-veo", domain.ProviderVeo, domain.KindTextToVideo, domain.Metadata{})
	if err := sched.Watch("task-veo"); err == nil {
		t.Fatalf("expected unknown-provider error for an unregistered adapter")
	}
}

func TestSchedulerCloseRejectsNewWatches(t *testing.T) {
	adapter := &stubAdapter{seq: []stubResult{{status: &providers.Status{State: domain.StatusProcessing}}}}
	sched, store, _ := newTestScheduler(t, testConfig(), adapter)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})

	sched.Close()
	if err := sched.Watch("task-1"); err != domain.ErrOrchestratorClosed {
		t.Fatalf("err = %v, want ErrOrchestratorClosed", err)
	}
}
