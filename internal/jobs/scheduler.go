package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/providers"
)

// Config tunes the orchestrator. Zero values fall back to defaults suited to
// video generation, which routinely takes minutes.
type Config struct {
	// InitialDelay is the wait before the first poll of a new job, so we do
	// not hammer providers that have not accepted the task yet.
	InitialDelay time.Duration
	// BaseInterval is the first poll interval; it doubles after every poll
	// up to MaxInterval. Each job backs off independently.
	BaseInterval time.Duration
	MaxInterval  time.Duration
	// Deadline is the per-job wall clock budget before the job is marked
	// timed_out and polling stops.
	Deadline time.Duration
	// MaxConsecutiveFailures bounds transient status-check failures before
	// the job is failed outright.
	MaxConsecutiveFailures int
	// MaxInFlight caps concurrent status requests across all jobs.
	MaxInFlight int
	// RecentLimit bounds the retained recently-completed set.
	RecentLimit int
	// DispatchTimeout bounds completion side effects per job.
	DispatchTimeout time.Duration
	// SweepEvery schedules the orphaned-completion sweep; zero disables it.
	SweepEvery time.Duration
	// SweepRetention bounds how long a timed_out job stays eligible for
	// adoption by the sweep.
	SweepRetention time.Duration
}

// DefaultConfig returns production tuning.
func DefaultConfig() Config {
	return Config{
		InitialDelay:           2 * time.Second,
		BaseInterval:           3 * time.Second,
		MaxInterval:            30 * time.Second,
		Deadline:               6 * time.Minute,
		MaxConsecutiveFailures: 5,
		MaxInFlight:            4,
		RecentLimit:            50,
		DispatchTimeout:        2 * time.Minute,
		SweepEvery:             2 * time.Minute,
		SweepRetention:         time.Hour,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.BaseInterval <= 0 {
		c.BaseInterval = def.BaseInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.Deadline <= 0 {
		c.Deadline = def.Deadline
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = def.MaxInFlight
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = def.RecentLimit
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = def.DispatchTimeout
	}
	if c.SweepRetention <= 0 {
		c.SweepRetention = def.SweepRetention
	}
	return c
}

// Scheduler drives periodic status checks for every active job. Each job is
// watched by its own goroutine holding one poll timer and one deadline
// timer; a global semaphore caps in-flight status requests.
type Scheduler struct {
	cfg        Config
	store      *Store
	registry   *providers.Registry
	dispatcher *Dispatcher
	logger     infra.Logger
	sem        chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. cfg is normalized through defaults.
func NewScheduler(cfg Config, store *Store, registry *providers.Registry, dispatcher *Dispatcher, logger infra.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
		sem:        make(chan struct{}, cfg.MaxInFlight),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Watch starts polling a registered job. Watching an already-watched or
// already-terminal job is a no-op.
func (s *Scheduler) Watch(id string) error {
	job, ok := s.store.Get(id)
	if !ok {
		return domain.ErrUnknownJob
	}
	if job.Status.Terminal() {
		return nil
	}
	adapter, ok := s.registry.Adapter(job.Provider)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownProvider, job.Provider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrOrchestratorClosed
	}
	if _, watching := s.cancels[id]; watching {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancels[id] = cancel
	s.wg.Add(1)
	go s.run(ctx, id, adapter)
	return nil
}

// Cancel stops polling for a job and clears its timers. Idempotent: a UI
// unmount and an explicit new-generation action may both request it.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
}

// Close cancels all watches and waits for their goroutines to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for id, cancel := range s.cancels {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
}

func (s *Scheduler) run(ctx context.Context, id string, adapter providers.StatusAdapter) {
	defer s.wg.Done()
	defer s.forget(id)

	deadline := time.NewTimer(s.cfg.Deadline)
	defer deadline.Stop()
	poll := time.NewTimer(s.cfg.InitialDelay)
	defer poll.Stop()

	backoff := s.cfg.BaseInterval
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			s.timeout(id)
			return
		case <-poll.C:
		}
		if done := s.pollOnce(ctx, id, adapter, &failures, refreshMode{}); done {
			return
		}
		poll.Reset(backoff)
		if backoff *= 2; backoff > s.cfg.MaxInterval {
			backoff = s.cfg.MaxInterval
		}
	}
}

// timeout marks the job timed_out. The remote task may still finish; the
// sweep or a manual refresh can adopt that result later.
func (s *Scheduler) timeout(id string) {
	status := domain.StatusTimedOut
	msg := "generation did not finish before the deadline"
	if _, err := s.store.Update(id, Patch{Status: &status, Error: &msg}); err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("scheduler: timeout update failed")
		return
	}
	s.logger.Info().Str("job_id", id).Msg("scheduler: job timed out, polling stopped")
}

// Refresh performs a single out-of-band status check. It backs the manual
// "check again" action and the orphan sweep, and may adopt a completion for
// a timed_out job.
func (s *Scheduler) Refresh(ctx context.Context, id string) error {
	job, ok := s.store.Get(id)
	if !ok {
		return domain.ErrUnknownJob
	}
	switch job.Status {
	case domain.StatusPending, domain.StatusProcessing, domain.StatusTimedOut:
	default:
		return nil
	}
	adapter, ok := s.registry.Adapter(job.Provider)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownProvider, job.Provider)
	}
	failures := 0
	s.pollOnce(ctx, id, adapter, &failures, refreshMode{adopt: job.Status == domain.StatusTimedOut, oneShot: true})
	return nil
}

type refreshMode struct {
	// adopt permits a timed_out job to take a late completion.
	adopt bool
	// oneShot suppresses consecutive-failure escalation; a transient error
	// during a manual re-check is simply inconclusive.
	oneShot bool
}

// pollOnce performs one status request and applies the outcome. It returns
// true when polling for the job should stop.
func (s *Scheduler) pollOnce(ctx context.Context, id string, adapter providers.StatusAdapter, failures *int, mode refreshMode) bool {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return true
	}
	st, err := adapter.TaskStatus(ctx, id)
	<-s.sem

	if ctx.Err() != nil {
		// Cancelled while the request was in flight; whatever came back
		// must not overwrite the cancellation.
		return true
	}
	if err != nil {
		var perm *providers.PermanentError
		if errors.As(err, &perm) {
			s.fail(id, perm.Error())
			return true
		}
		if mode.oneShot {
			s.logger.Debug().Err(err).Str("job_id", id).Msg("scheduler: refresh inconclusive")
			return true
		}
		*failures++
		if *failures >= s.cfg.MaxConsecutiveFailures {
			s.fail(id, "status check failing repeatedly")
			return true
		}
		s.logger.Debug().Err(err).
			Str("job_id", id).
			Int("consecutive_failures", *failures).
			Msg("scheduler: transient status check failure")
		return false
	}
	*failures = 0

	patch := Patch{Progress: st.Progress}
	if st.State != "" {
		state := st.State
		patch.Status = &state
	}
	if st.State == domain.StatusSucceeded {
		patch.Result = &domain.Result{VideoURL: st.VideoURL, CoverURL: st.CoverURL}
	}
	if st.State == domain.StatusFailed && st.Message != "" {
		msg := st.Message
		patch.Error = &msg
	}

	apply := s.store.Update
	if mode.adopt {
		apply = s.store.Adopt
	}
	job, err := apply(id, patch)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("scheduler: applying poll result failed")
		return true
	}
	if job.Status == domain.StatusSucceeded || job.Status == domain.StatusFailed {
		s.dispatcher.Dispatch(job)
	}
	return job.Status.Terminal()
}

func (s *Scheduler) fail(id, reason string) {
	status := domain.StatusFailed
	job, err := s.store.Update(id, Patch{Status: &status, Error: &reason})
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("scheduler: failure update failed")
		return
	}
	if job.Status == domain.StatusFailed {
		s.dispatcher.Dispatch(job)
	}
}
