package jobx

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// Job is a unit of work to enqueue.
type Job struct {
	Type    string          `json:"type"`
	Queue   string          `json:"queue"`
	Payload json.RawMessage `json:"payload"`

	// MaxAttempts bounds how often the job runs in total. Defaults to 3.
	MaxAttempts int `json:"max_attempts"`
}

// NewJob marshals payload into a job of the given type.
func NewJob(jobType, queue string, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, ErrRegistry.NewWithCause(CodeInvalidPayload, err).WithDetail("type", jobType)
	}
	return Job{Type: jobType, Queue: queue, Payload: raw}, nil
}

// Info is a job as stored by the backend.
type Info struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Error       string          `json:"error,omitempty"`
	MaxAttempts int             `json:"max_attempts"`
	Attempts    int             `json:"attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Decode unmarshals the payload of a job into T.
func Decode[T any](info *Info) (T, error) {
	var v T
	if err := json.Unmarshal(info.Payload, &v); err != nil {
		return v, ErrRegistry.NewWithCause(CodeInvalidPayload, err).
			WithDetail("job_id", info.ID).
			WithDetail("type", info.Type)
	}
	return v, nil
}

// Exhausted reports whether a failed job has used all of its attempts.
func (i *Info) Exhausted() bool {
	return i.Attempts >= i.MaxAttempts
}
