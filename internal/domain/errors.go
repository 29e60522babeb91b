package domain

import "errors"

var (
	ErrDuplicateJob       = errors.New("duplicate job id")
	ErrUnknownJob         = errors.New("unknown job id")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrOrchestratorClosed = errors.New("orchestrator closed")
)
