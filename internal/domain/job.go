package domain

import "time"

// Provider identifies the external generation service a job belongs to.
type Provider string

const (
	ProviderKling  Provider = "kling"
	ProviderVeo    Provider = "veo"
	ProviderRunway Provider = "runway"
)

// Kind enumerates the semantic generation operations the panels submit.
type Kind string

const (
	KindTextToVideo   Kind = "text_to_video"
	KindImageToVideo  Kind = "image_to_video"
	KindExtend        Kind = "extend"
	KindAvatar        Kind = "avatar"
	KindLipSync       Kind = "lip_sync"
	KindMotionControl Kind = "motion_control"
	KindMultiImage    Kind = "multi_image"
)

// Status enumerates job lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusTimedOut   Status = "timed_out"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving between the two statuses follows the
// lifecycle state machine. Terminal states accept no outgoing edge and a job
// never revisits pending after leaving it.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusSucceeded || to == StatusFailed ||
			to == StatusTimedOut || to == StatusCancelled
	case StatusProcessing:
		return to == StatusSucceeded || to == StatusFailed ||
			to == StatusTimedOut || to == StatusCancelled
	}
	return false
}

// Result holds the provider-reported output of a succeeded job.
type Result struct {
	VideoURL string
	CoverURL string
}

// Metadata is the immutable snapshot of the request context captured at
// submission time, so result persistence never depends on live UI state.
type Metadata struct {
	Prompt string
	Model  string
	Config map[string]string
}

// Job is one tracked asynchronous generation request. ID is the
// provider-assigned task identifier and is never reused across submissions;
// a retry creates a new Job.
type Job struct {
	ID          string
	Provider    Provider
	Kind        Kind
	SubmittedAt time.Time
	UpdatedAt   time.Time
	Status      Status
	Progress    int
	Result      *Result
	Error       string
	Metadata    Metadata
}

// Clone returns a deep copy safe to hand to subscribers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	if j.Metadata.Config != nil {
		cfg := make(map[string]string, len(j.Metadata.Config))
		for k, v := range j.Metadata.Config {
			cfg[k] = v
		}
		c.Metadata.Config = cfg
	}
	return &c
}
