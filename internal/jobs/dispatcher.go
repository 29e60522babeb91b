package jobs

import (
	"context"
	"sync"
	"time"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
)

// HistoryRecorder persists one generation-history record per completed job.
// The orchestrator does not own the library database; it hands results off
// here keyed by the job's immutable metadata snapshot.
type HistoryRecorder interface {
	RecordCompletion(ctx context.Context, job *domain.Job, storageKey string) error
}

// ResultMirror copies a succeeded job's media from the provider's (expiring)
// result URL into durable object storage and returns the storage key.
type ResultMirror interface {
	Mirror(ctx context.Context, job *domain.Job) (string, error)
}

// Dispatcher fires completion side effects exactly once per job. The
// at-most-once guarantee lives in Store.MarkDispatched: the flag flips
// synchronously before any asynchronous work starts, so a second poll tick
// reporting the same terminal status cannot double-fire.
type Dispatcher struct {
	store   *Store
	history HistoryRecorder
	mirror  ResultMirror
	logger  infra.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. history and mirror may be nil; timeout
// bounds the side-effect work per job.
func NewDispatcher(store *Store, history HistoryRecorder, mirror ResultMirror, logger infra.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Dispatcher{
		store:   store,
		history: history,
		mirror:  mirror,
		logger:  logger,
		timeout: timeout,
	}
}

// Dispatch runs completion side effects for a job that reached succeeded or
// failed. Safe to call repeatedly; only the first caller per job proceeds.
func (d *Dispatcher) Dispatch(job *domain.Job) {
	if job == nil {
		return
	}
	if job.Status != domain.StatusSucceeded && job.Status != domain.StatusFailed {
		return
	}
	if !d.store.MarkDispatched(job.ID) {
		return
	}
	d.wg.Add(1)
	go d.run(job)
}

// Wait blocks until all in-flight side effects finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(job *domain.Job) {
	defer d.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	storageKey := ""
	if job.Status == domain.StatusSucceeded && d.mirror != nil && job.Result != nil && job.Result.VideoURL != "" {
		key, err := d.mirror.Mirror(ctx, job)
		// A partial mirror still returns the video's key; record it even
		// when a secondary write failed.
		storageKey = key
		if err != nil {
			// The media is not lost either way: the provider result URL
			// stays on the job record. Surface a warning and move on.
			d.logger.Warn().Err(err).
				Str("job_id", job.ID).
				Str("provider", string(job.Provider)).
				Msg("dispatcher: mirroring result media failed")
		}
	}

	if d.history != nil {
		if err := d.history.RecordCompletion(ctx, job, storageKey); err != nil {
			// Persistence failure never reverts the dispatch guard and never
			// changes job status; the generation is still reported as
			// completed to the user.
			d.logger.Warn().Err(err).
				Str("job_id", job.ID).
				Str("status", string(job.Status)).
				Msg("dispatcher: recording generation history failed")
			return
		}
	}
	d.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Msg("dispatcher: completion effects done")
}
