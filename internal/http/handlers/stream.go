package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"mediagen/internal/domain"
	"mediagen/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware allowlist;
	// the websocket handshake reuses the same origins via the router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const streamWriteTimeout = 10 * time.Second

// JobsStream upgrades to a websocket and forwards every status change of one
// job until it reaches a terminal state. Subscribing after completion still
// delivers the terminal snapshot immediately.
func (a *App) JobsStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	if _, ok := a.Orchestrator.Job(id); !ok {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Str("job_id", id).Msg("handlers: websocket upgrade failed")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())

	// Subscription callbacks run on the store's mutating goroutine and must
	// not block; hand snapshots to a writer goroutine through a buffered
	// channel and drop to a closing state if the client cannot keep up.
	updates := make(chan *domain.Job, 16)
	unsubscribe := a.Orchestrator.Subscribe(id, func(job *domain.Job) {
		select {
		case updates <- job:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		// Drain control frames so close/ping handling works.
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case job := <-updates:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(toJobResponse(job, locale)); err != nil {
				return
			}
			if job.Status.Terminal() {
				conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)))
				return
			}
		}
	}
}
