package jobs

import (
	"sync"

	"mediagen/internal/domain"
)

// Callback receives job snapshots. Callbacks run synchronously on the
// mutating goroutine and must return quickly; they must not call back into
// the store or orchestrator.
type Callback func(*domain.Job)

// Hub fans store change notifications out to per-job subscribers so UI
// panels can follow a job without re-implementing polling.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]Callback
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]Callback)}
}

// Subscribe registers a callback for one job id and returns an idempotent
// unsubscribe function.
func (h *Hub) Subscribe(jobID string, fn Callback) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[uint64]Callback)
	}
	h.subs[jobID][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[jobID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(h.subs, jobID)
			}
		}
	}
}

// Publish delivers a snapshot to every subscriber of the job. Each callback
// receives its own copy.
func (h *Hub) Publish(job *domain.Job) {
	if job == nil {
		return
	}
	h.mu.Lock()
	callbacks := make([]Callback, 0, len(h.subs[job.ID]))
	for _, fn := range h.subs[job.ID] {
		callbacks = append(callbacks, fn)
	}
	h.mu.Unlock()
	for _, fn := range callbacks {
		fn(job.Clone())
	}
}
