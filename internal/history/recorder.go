// Package history hands completed generations off to the content library
// database. It is the persistence collaborator of the completion dispatcher:
// everything it writes comes from the job's immutable metadata snapshot, not
// from live UI state.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mediagen/internal/domain"
	"mediagen/internal/infra"
	"mediagen/internal/sqlinline"
)

// Entry is one persisted generation record.
type Entry struct {
	JobID       string
	Provider    string
	Kind        string
	Status      string
	Prompt      string
	Model       string
	VideoURL    string
	CoverURL    string
	StorageKey  string
	Error       string
	SubmittedAt time.Time
	CompletedAt time.Time
}

// Recorder persists generation history rows through the shared SQL runner.
type Recorder struct {
	sql    infra.SQLExecutor
	logger infra.Logger
}

func NewRecorder(sql infra.SQLExecutor, logger infra.Logger) *Recorder {
	return &Recorder{sql: sql, logger: logger}
}

// RecordCompletion inserts one history row for a job that reached succeeded
// or failed. Inserting the same job twice is a no-op at the database level,
// backing up the dispatcher's in-memory once-only guard.
func (r *Recorder) RecordCompletion(ctx context.Context, job *domain.Job, storageKey string) error {
	if job == nil {
		return fmt.Errorf("history: job is required")
	}
	configJSON, err := json.Marshal(job.Metadata.Config)
	if err != nil {
		return fmt.Errorf("history: encode config: %w", err)
	}
	videoURL, coverURL := "", ""
	if job.Result != nil {
		videoURL = job.Result.VideoURL
		coverURL = job.Result.CoverURL
	}
	_, err = r.sql.Exec(
		ctx,
		sqlinline.QInsertGenerationHistory,
		job.ID,
		string(job.Provider),
		string(job.Kind),
		string(job.Status),
		job.Metadata.Prompt,
		job.Metadata.Model,
		configJSON,
		videoURL,
		coverURL,
		storageKey,
		job.Error,
		job.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert record: %w", err)
	}
	return nil
}

// List returns the most recent history entries, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.sql.Query(ctx, sqlinline.QRecentGenerationHistory, limit)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: list records: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.JobID, &e.Provider, &e.Kind, &e.Status,
			&e.Prompt, &e.Model, &e.VideoURL, &e.CoverURL,
			&e.StorageKey, &e.Error, &e.SubmittedAt, &e.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("history: scan record: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate records: %w", err)
	}
	return out, nil
}
