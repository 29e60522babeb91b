package handlers

import (
	"encoding/json"
	"net/http"

	"mediagen/internal/history"
	"mediagen/internal/infra"
	"mediagen/internal/jobs"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Orchestrator *jobs.Orchestrator
	History      *history.Recorder
	Logger       infra.Logger
}

func NewApp(orchestrator *jobs.Orchestrator, hist *history.Recorder, logger infra.Logger) *App {
	return &App{Orchestrator: orchestrator, History: hist, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}
