package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mediagen/internal/domain"
	"mediagen/internal/middleware"
)

type registerJobRequest struct {
	Provider string            `json:"provider"`
	Kind     string            `json:"kind"`
	TaskID   string            `json:"task_id"`
	Prompt   string            `json:"prompt"`
	Model    string            `json:"model"`
	Config   map[string]string `json:"config"`
}

type jobResponse struct {
	ID          string         `json:"id"`
	Provider    string         `json:"provider"`
	Kind        string         `json:"kind"`
	Status      string         `json:"status"`
	StatusLine  string         `json:"status_line"`
	Progress    int            `json:"progress"`
	Result      *resultPayload `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type resultPayload struct {
	VideoURL string `json:"video_url"`
	CoverURL string `json:"cover_url,omitempty"`
}

func toJobResponse(job *domain.Job, locale string) jobResponse {
	resp := jobResponse{
		ID:          job.ID,
		Provider:    string(job.Provider),
		Kind:        string(job.Kind),
		Status:      string(job.Status),
		StatusLine:  statusLine(locale, job.Status),
		Progress:    job.Progress,
		Error:       job.Error,
		SubmittedAt: job.SubmittedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	if job.Result != nil {
		resp.Result = &resultPayload{VideoURL: job.Result.VideoURL, CoverURL: job.Result.CoverURL}
	}
	return resp
}

// JobsRegister starts tracking an already-submitted provider task.
func (a *App) JobsRegister(w http.ResponseWriter, r *http.Request) {
	var req registerJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.TaskID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "task_id required")
		return
	}
	id, err := a.Orchestrator.Register(
		domain.Provider(req.Provider),
		domain.Kind(req.Kind),
		req.TaskID,
		domain.Metadata{Prompt: req.Prompt, Model: req.Model, Config: req.Config},
	)
	switch {
	case errors.Is(err, domain.ErrDuplicateJob):
		a.error(w, http.StatusConflict, "conflict", "task already registered")
		return
	case errors.Is(err, domain.ErrUnknownProvider):
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported provider")
		return
	case err != nil:
		a.Logger.Error().Err(err).Str("task_id", req.TaskID).Msg("handlers: register job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to register job")
		return
	}
	a.Logger.Debug().
		Str("job_id", id).
		Str("country", middleware.CountryFromContext(r.Context())).
		Msg("handlers: job registered")
	job, _ := a.Orchestrator.Job(id)
	a.json(w, http.StatusAccepted, toJobResponse(job, middleware.LocaleFromContext(r.Context())))
}

// JobsGet returns a synchronous snapshot of one job.
func (a *App) JobsGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, ok := a.Orchestrator.Job(id)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job, middleware.LocaleFromContext(r.Context())))
}

// JobsList returns active jobs by default, or the recently completed set
// with ?filter=recent.
func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	var list []*domain.Job
	switch r.URL.Query().Get("filter") {
	case "recent":
		list = a.Orchestrator.ListRecentlyCompleted()
	case "", "active":
		list = a.Orchestrator.ListActive()
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "filter must be active or recent")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	out := make([]jobResponse, 0, len(list))
	for _, job := range list {
		out = append(out, toJobResponse(job, locale))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": out})
}

// JobsCancel stops polling and marks the job cancelled.
func (a *App) JobsCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	if err := a.Orchestrator.Cancel(id); err != nil {
		if errors.Is(err, domain.ErrUnknownJob) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("handlers: cancel job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JobsRefresh performs one out-of-band status check, backing the UI's
// "check again" action on timed_out jobs.
func (a *App) JobsRefresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	if err := a.Orchestrator.ForceRefresh(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrUnknownJob) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("handlers: refresh job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to refresh job")
		return
	}
	job, ok := a.Orchestrator.Job(id)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job, middleware.LocaleFromContext(r.Context())))
}

// HistoryList returns persisted generation history, newest first.
func (a *App) HistoryList(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		a.json(w, http.StatusOK, map[string]any{"entries": []any{}})
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	entries, err := a.History.List(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list history failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list history")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"entries": entries})
}
