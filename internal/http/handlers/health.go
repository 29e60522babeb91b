package handlers

import (
	"net/http"
)

// Health reports process liveness. It deliberately skips the database:
// history persistence is optional and polling keeps working without it.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
