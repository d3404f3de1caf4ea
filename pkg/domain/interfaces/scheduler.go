package interfaces

import "context"

// Job is a unit of background work. Returning an error asks the scheduler to retry it
// according to its backoff policy.
type Job struct {
	Name string
	Key  string // Jobs sharing a key never run concurrently
	Run  func(ctx context.Context) error

	// MaxRetries overrides the scheduler default when non-zero; a negative value disables retry
	MaxRetries int
}

// Scheduler runs jobs outside of the request/response cycle with at-least-once semantics
type Scheduler interface {
	Schedule(ctx context.Context, job *Job) error
}
