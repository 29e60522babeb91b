package providers

import (
	"context"
	"fmt"
	"sync"

	"mediagen/internal/domain"
)

// Status is the normalized shape every provider-specific task-status response
// is translated into. Progress is nil when the provider reported none and the
// adapter chose not to synthesize a value.
type Status struct {
	State    domain.Status
	Progress *int
	VideoURL string
	CoverURL string
	Message  string
}

// StatusAdapter queries a provider's task-status endpoint for one task and
// normalizes the response. New providers are added by implementing this
// single contract; the scheduler never sees raw provider vocabularies.
type StatusAdapter interface {
	TaskStatus(ctx context.Context, taskID string) (*Status, error)
}

// TransientError marks a status check that should be retried on the next
// tick: network failures and provider 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient status check failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a status check that will never succeed, typically a
// 4xx telling us the task id is invalid or expired. The job moves straight
// to failed.
type PermanentError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

// ClassifyHTTP maps an HTTP response code from a status endpoint onto the
// transient/permanent split.
func ClassifyHTTP(op string, statusCode int, message string) error {
	if statusCode >= 500 {
		return &TransientError{Op: op, Err: fmt.Errorf("status %d: %s", statusCode, message)}
	}
	return &PermanentError{Op: op, StatusCode: statusCode, Message: message}
}

// ClampProgress bounds a provider-reported progress value to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// IntPtr is a small helper for building Status values.
func IntPtr(v int) *int { return &v }

// Registry maps provider identifiers to their status adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Provider]StatusAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.Provider]StatusAdapter)}
}

// Register installs or replaces the adapter for a provider.
func (r *Registry) Register(p domain.Provider, a StatusAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[p] = a
}

// Adapter returns the adapter for a provider, if one is registered.
func (r *Registry) Adapter(p domain.Provider) (StatusAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[p]
	return a, ok
}
