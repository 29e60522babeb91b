package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/providers"
)

// Orchestrator is the composition root of the job subsystem: one instance is
// constructed per process and injected wherever job tracking is needed. It
// owns the store, the poll scheduler, the completion dispatcher, the
// subscription hub and the orphaned-completion sweep, and tears them all
// down on Close.
type Orchestrator struct {
	cfg        Config
	store      *Store
	hub        *Hub
	scheduler  *Scheduler
	dispatcher *Dispatcher
	cron       *cron.Cron
	logger     infra.Logger
}

// NewOrchestrator wires the job subsystem. history and mirror may be nil in
// tests or reduced deployments.
func NewOrchestrator(cfg Config, registry *providers.Registry, history HistoryRecorder, mirror ResultMirror, logger infra.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	hub := NewHub()
	store := NewStore(cfg.RecentLimit, logger, hub.Publish)
	dispatcher := NewDispatcher(store, history, mirror, logger, cfg.DispatchTimeout)
	scheduler := NewScheduler(cfg, store, registry, dispatcher, logger)

	o := &Orchestrator{
		cfg:        cfg,
		store:      store,
		hub:        hub,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		logger:     logger,
	}
	if cfg.SweepEvery > 0 {
		o.cron = cron.New()
		spec := fmt.Sprintf("@every %s", cfg.SweepEvery)
		if _, err := o.cron.AddFunc(spec, o.sweep); err != nil {
			logger.Error().Err(err).Str("schedule", spec).Msg("orchestrator: sweep schedule rejected")
			o.cron = nil
		} else {
			o.cron.Start()
		}
	}
	return o
}

// Register creates a job for an already-submitted provider task and starts
// polling it. The returned job id equals the provider task id.
func (o *Orchestrator) Register(provider domain.Provider, kind domain.Kind, taskID string, meta domain.Metadata) (string, error) {
	job, err := o.store.Create(taskID, provider, kind, meta)
	if err != nil {
		return "", err
	}
	if err := o.scheduler.Watch(job.ID); err != nil {
		status := domain.StatusCancelled
		if _, uerr := o.store.Update(job.ID, Patch{Status: &status}); uerr != nil {
			o.logger.Warn().Err(uerr).Str("job_id", job.ID).Msg("orchestrator: rollback of unwatched job failed")
		}
		return "", err
	}
	o.logger.Info().
		Str("job_id", job.ID).
		Str("provider", string(provider)).
		Str("kind", string(kind)).
		Msg("orchestrator: job registered")
	return job.ID, nil
}

// Job returns a snapshot of the job, if tracked.
func (o *Orchestrator) Job(id string) (*domain.Job, bool) {
	return o.store.Get(id)
}

// Cancel stops polling and marks the job cancelled. Cancelling a terminal
// job only clears any leftover timers; it is not an error. No remote cancel
// is attempted, the providers in scope offer no such endpoint.
func (o *Orchestrator) Cancel(id string) error {
	job, ok := o.store.Get(id)
	if !ok {
		return domain.ErrUnknownJob
	}
	o.scheduler.Cancel(id)
	if job.Status.Terminal() {
		return nil
	}
	status := domain.StatusCancelled
	if _, err := o.store.Update(id, Patch{Status: &status}); err != nil {
		return err
	}
	o.logger.Info().Str("job_id", id).Msg("orchestrator: job cancelled")
	return nil
}

// ForceRefresh performs one out-of-band status check, usable from the UI's
// manual "check again" action on timed_out jobs.
func (o *Orchestrator) ForceRefresh(ctx context.Context, id string) error {
	return o.scheduler.Refresh(ctx, id)
}

// ListActive returns snapshots of all non-terminal jobs.
func (o *Orchestrator) ListActive() []*domain.Job {
	return o.store.ListActive()
}

// ListRecentlyCompleted returns snapshots of retained terminal jobs.
func (o *Orchestrator) ListRecentlyCompleted() []*domain.Job {
	return o.store.ListRecentlyCompleted()
}

// Subscribe registers a callback for one job's status changes and returns an
// unsubscribe function. If the job exists, the current snapshot is delivered
// synchronously before Subscribe returns, so a subscriber attaching after
// completion still receives the terminal record.
func (o *Orchestrator) Subscribe(jobID string, fn Callback) func() {
	unsubscribe := o.hub.Subscribe(jobID, fn)
	if job, ok := o.store.Get(jobID); ok {
		fn(job)
	}
	return unsubscribe
}

// Close stops the sweep and all polling and waits for in-flight completion
// side effects.
func (o *Orchestrator) Close() {
	if o.cron != nil {
		o.cron.Stop()
	}
	o.scheduler.Close()
	o.dispatcher.Wait()
}

// sweep re-checks timed_out jobs once per run so completions that arrived
// after we stopped waiting are adopted instead of stranded.
func (o *Orchestrator) sweep() {
	now := time.Now()
	for _, job := range o.store.ListRecentlyCompleted() {
		if job.Status != domain.StatusTimedOut {
			continue
		}
		if now.Sub(job.SubmittedAt) > o.cfg.SweepRetention {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := o.scheduler.Refresh(ctx, job.ID); err != nil {
			o.logger.Debug().Err(err).Str("job_id", job.ID).Msg("orchestrator: sweep refresh failed")
		}
		cancel()
	}
}
