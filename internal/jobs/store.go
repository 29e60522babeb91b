package jobs

import (
	"sync"
	"time"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
)

// Patch describes a partial job mutation. Nil fields are left untouched.
type Patch struct {
	Status   *domain.Status
	Progress *int
	Result   *domain.Result
	Error    *string
}

// Store is the authoritative in-memory map of job id to job state. It is the
// only shared mutable resource in the orchestrator: the scheduler and
// dispatcher mutate it, everything else reads snapshots.
//
// Change notifications fire synchronously under the store lock so that, per
// job, subscribers observe transitions in the order they were written. The
// notification callback must not call back into the Store.
type Store struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	dispatched  map[string]bool
	recent      []string
	recentLimit int
	onChange    func(*domain.Job)
	logger      infra.Logger
}

// NewStore creates a store retaining at most recentLimit terminal jobs.
// onChange may be nil.
func NewStore(recentLimit int, logger infra.Logger, onChange func(*domain.Job)) *Store {
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &Store{
		jobs:        make(map[string]*domain.Job),
		dispatched:  make(map[string]bool),
		recentLimit: recentLimit,
		onChange:    onChange,
		logger:      logger,
	}
}

// Create registers a new pending job. The id is the provider-assigned task
// identifier; reusing one is an integration bug.
func (s *Store) Create(id string, provider domain.Provider, kind domain.Kind, meta domain.Metadata) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; ok {
		return nil, domain.ErrDuplicateJob
	}
	now := time.Now()
	job := &domain.Job{
		ID:          id,
		Provider:    provider,
		Kind:        kind,
		SubmittedAt: now,
		UpdatedAt:   now,
		Status:      domain.StatusPending,
		Metadata:    meta,
	}
	s.jobs[id] = job
	s.emit(job)
	return job.Clone(), nil
}

// Get returns a snapshot of the job, if present.
func (s *Store) Get(id string) (*domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Update merges the patch into the job. Status changes that do not follow the
// lifecycle state machine are logged and ignored; the rest of the patch is
// dropped with them so a late poll response cannot leak a result into a
// cancelled job. Progress only ever moves forward.
func (s *Store) Update(id string, patch Patch) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(id, patch, false)
}

// Adopt is Update for the orphaned-completion sweep: it additionally permits
// a timed_out job to move to succeeded or failed when a manual or scheduled
// re-check discovers the remote task finished after we stopped waiting.
func (s *Store) Adopt(id string, patch Patch) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(id, patch, true)
}

func (s *Store) apply(id string, patch Patch, adopt bool) (*domain.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrUnknownJob
	}
	if patch.Status != nil && *patch.Status != job.Status {
		next := *patch.Status
		allowed := domain.CanTransition(job.Status, next)
		if !allowed && adopt && job.Status == domain.StatusTimedOut {
			allowed = next == domain.StatusSucceeded || next == domain.StatusFailed
		}
		if !allowed {
			s.logger.Warn().
				Str("job_id", id).
				Str("from", string(job.Status)).
				Str("to", string(next)).
				Msg("store: rejected illegal status transition")
			return job.Clone(), nil
		}
		wasTerminal := job.Status.Terminal()
		job.Status = next
		if next == domain.StatusSucceeded {
			job.Error = ""
		}
		if job.Status.Terminal() && !wasTerminal {
			s.retain(id)
		}
	}
	if patch.Progress != nil {
		if p := *patch.Progress; p > job.Progress {
			job.Progress = p
		}
	}
	if patch.Result != nil && job.Status == domain.StatusSucceeded {
		r := *patch.Result
		job.Result = &r
	}
	if patch.Error != nil && (job.Status == domain.StatusFailed || job.Status == domain.StatusTimedOut) {
		job.Error = *patch.Error
	}
	job.UpdatedAt = time.Now()
	s.emit(job)
	return job.Clone(), nil
}

// MarkDispatched flips the dispatch guard for a job and reports whether the
// caller won the flip. The check-then-set is atomic under the store lock, so
// completion side effects run at most once even when several poll ticks
// observe the same terminal status.
func (s *Store) MarkDispatched(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	if s.dispatched[id] {
		return false
	}
	s.dispatched[id] = true
	return true
}

// ListActive returns snapshots of all non-terminal jobs.
func (s *Store) ListActive() []*domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Job
	for _, job := range s.jobs {
		if !job.Status.Terminal() {
			out = append(out, job.Clone())
		}
	}
	return out
}

// ListRecentlyCompleted returns snapshots of retained terminal jobs, newest
// first.
func (s *Store) ListRecentlyCompleted() []*domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Job, 0, len(s.recent))
	for i := len(s.recent) - 1; i >= 0; i-- {
		if job, ok := s.jobs[s.recent[i]]; ok {
			out = append(out, job.Clone())
		}
	}
	return out
}

// retain moves a job into the bounded recent-completed set, evicting the
// oldest entry beyond the limit. Caller holds the lock.
func (s *Store) retain(id string) {
	s.recent = append(s.recent, id)
	for len(s.recent) > s.recentLimit {
		evicted := s.recent[0]
		s.recent = s.recent[1:]
		delete(s.jobs, evicted)
		delete(s.dispatched, evicted)
	}
}

// emit publishes a snapshot to the change listener. Caller holds the lock.
func (s *Store) emit(job *domain.Job) {
	if s.onChange != nil {
		s.onChange(job.Clone())
	}
}
