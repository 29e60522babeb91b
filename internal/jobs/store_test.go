package jobs

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"mediagen/internal/domain"
)

func newTestStore(limit int, onChange func(*domain.Job)) *Store {
	return NewStore(limit, zerolog.Nop(), onChange)
}

func statusPtr(s domain.Status) *domain.Status { return &s }

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func TestStoreCreateDuplicate(t *testing.T) {
	store := newTestStore(10, nil)
	if _, err := store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create("task-1", domain.ProviderVeo, domain.KindExtend, domain.Metadata{}); err != domain.ErrDuplicateJob {
		t.Fatalf("err = %v, want ErrDuplicateJob", err)
	}
}

func TestStoreUpdateUnknownJob(t *testing.T) {
	store := newTestStore(10, nil)
	if _, err := store.Update("missing", Patch{Status: statusPtr(domain.StatusProcessing)}); err != domain.ErrUnknownJob {
		t.Fatalf("err = %v, want ErrUnknownJob", err)
	}
}

func TestStoreIllegalTransitionIgnored(t *testing.T) {
	store := newTestStore(10, nil)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})
	store.Update("task-1", Patch{Status: statusPtr(domain.StatusCancelled)})

	// A late poll response must not resurrect a cancelled job or leak its
	// result into the record.
	job, err := store.Update("task-1", Patch{
		Status: statusPtr(domain.StatusSucceeded),
		Result: &domain.Result{VideoURL: "https://cdn.example.com/video.mp4"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if job.Status != domain.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", job.Status)
	}
	if job.Result != nil {
		t.Fatalf("result should not leak into a cancelled job")
	}
}

func TestStoreProgressMonotonic(t *testing.T) {
	store := newTestStore(10, nil)
	store.Create("task-1", domain.ProviderRunway, domain.KindImageToVideo, domain.Metadata{})
	store.Update("task-1", Patch{Status: statusPtr(domain.StatusProcessing), Progress: intPtr(55)})

	job, err := store.Update("task-1", Patch{Progress: intPtr(10)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if job.Progress != 55 {
		t.Fatalf("progress = %d, want 55 (must not move backwards)", job.Progress)
	}

	job, _ = store.Update("task-1", Patch{Progress: intPtr(80)})
	if job.Progress != 80 {
		t.Fatalf("progress = %d, want 80", job.Progress)
	}
}

func TestStoreResultOnlyOnSuccess(t *testing.T) {
	store := newTestStore(10, nil)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})

	job, _ := store.Update("task-1", Patch{
		Status: statusPtr(domain.StatusProcessing),
		Result: &domain.Result{VideoURL: "https://cdn.example.com/early.mp4"},
	})
	if job.Result != nil {
		t.Fatalf("result must only be set on a succeeded job")
	}

	job, _ = store.Update("task-1", Patch{
		Status: statusPtr(domain.StatusSucceeded),
		Result: &domain.Result{VideoURL: "https://cdn.example.com/video.mp4"},
	})
	if job.Result == nil || job.Result.VideoURL != "https://cdn.example.com/video.mp4" {
		t.Fatalf("result = %+v, want video url set", job.Result)
	}
}

func TestStoreRecentEviction(t *testing.T) {
	store := newTestStore(2, nil)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("task-%d", i)
		store.Create(id, domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})
		store.Update(id, Patch{Status: statusPtr(domain.StatusFailed), Error: strPtr("boom")})
	}

	recent := store.ListRecentlyCompleted()
	if len(recent) != 2 {
		t.Fatalf("recent = %d entries, want 2", len(recent))
	}
	if recent[0].ID != "task-2" || recent[1].ID != "task-1" {
		t.Fatalf("recent order = %s, %s; want task-2, task-1", recent[0].ID, recent[1].ID)
	}
	if _, ok := store.Get("task-0"); ok {
		t.Fatalf("task-0 should have been evicted")
	}
}

func TestStoreMarkDispatchedOnce(t *testing.T) {
	store := newTestStore(10, nil)
	store.Create("task-1", domain.ProviderVeo, domain.KindTextToVideo, domain.Metadata{})
	store.Update("task-1", Patch{Status: statusPtr(domain.StatusSucceeded)})

	if !store.MarkDispatched("task-1") {
		t.Fatalf("first MarkDispatched should win")
	}
	if store.MarkDispatched("task-1") {
		t.Fatalf("second MarkDispatched should lose")
	}
	if store.MarkDispatched("missing") {
		t.Fatalf("unknown job should not be dispatchable")
	}
}

func TestStoreAdoptTimedOut(t *testing.T) {
	store := newTestStore(10, nil)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})
	store.Update("task-1", Patch{Status: statusPtr(domain.StatusTimedOut), Error: strPtr("deadline")})

	// Plain Update must keep timed_out frozen.
	job, _ := store.Update("task-1", Patch{Status: statusPtr(domain.StatusSucceeded)})
	if job.Status != domain.StatusTimedOut {
		t.Fatalf("update moved a timed_out job to %q", job.Status)
	}

	// Adopt may pick up a late completion, and success clears the error.
	job, err := store.Adopt("task-1", Patch{
		Status: statusPtr(domain.StatusSucceeded),
		Result: &domain.Result{VideoURL: "https://cdn.example.com/late.mp4"},
	})
	if err != nil {
		t.Fatalf("adopt: %v", err)
	}
	if job.Status != domain.StatusSucceeded {
		t.Fatalf("status = %q, want succeeded", job.Status)
	}
	if job.Error != "" {
		t.Fatalf("error = %q, want cleared on adoption", job.Error)
	}
	if job.Result == nil || job.Result.VideoURL != "https://cdn.example.com/late.mp4" {
		t.Fatalf("result = %+v, want adopted video url", job.Result)
	}

	// Adoption does not unfreeze other terminal states.
	job, _ = store.Adopt("task-1", Patch{Status: statusPtr(domain.StatusFailed)})
	if job.Status != domain.StatusSucceeded {
		t.Fatalf("adopt moved a succeeded job to %q", job.Status)
	}
}

func TestStoreNotificationOrder(t *testing.T) {
	var seen []domain.Status
	store := newTestStore(10, func(job *domain.Job) {
		if job.ID == "task-1" {
			seen = append(seen, job.Status)
		}
	})
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})
	store.Update("task-1", Patch{Status: statusPtr(domain.StatusProcessing)})
	store.Update("task-1", Patch{Progress: intPtr(40)})
	store.Update("task-1", Patch{Status: statusPtr(domain.StatusSucceeded)})

	want := []domain.Status{
		domain.StatusPending,
		domain.StatusProcessing,
		domain.StatusProcessing,
		domain.StatusSucceeded,
	}
	if len(seen) != len(want) {
		t.Fatalf("notifications = %d, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("notification %d = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestStoreListActive(t *testing.T) {
	store := newTestStore(10, nil)
	store.Create("task-1", domain.ProviderKling, domain.KindTextToVideo, domain.Metadata{})
	store.Create("task-2", domain.ProviderVeo, domain.KindTextToVideo, domain.Metadata{})
	store.Update("task-2", Patch{Status: statusPtr(domain.StatusCancelled)})

	active := store.ListActive()
	if len(active) != 1 || active[0].ID != "task-1" {
		t.Fatalf("active = %+v, want only task-1", active)
	}
}
