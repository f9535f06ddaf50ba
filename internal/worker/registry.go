// Package worker implements the background job processing loop: polling the
// queue, claiming jobs with a worker lock, dispatching them to registered
// handlers, and applying the retry policy. It also hosts the nudge scheduler
// that promotes due proposal nudges into jobs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/models"
)

// HandlerFunc executes one job. The returned raw message is stored as the
// job's result on success. A returned error counts against the job's retry
// budget.
type HandlerFunc func(ctx context.Context, job *models.Job) (json.RawMessage, error)

// Registry maps job types to their handlers. Registration happens once at
// startup; lookups are read-only after that, so no locking is needed.
type Registry struct {
	handlers map[models.JobType]HandlerFunc
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.JobType]HandlerFunc)}
}

// Register binds a handler to a job type, replacing any previous binding.
func (r *Registry) Register(jobType models.JobType, h HandlerFunc) {
	r.handlers[jobType] = h
}

// Resolve returns the handler for a job type. A job whose type has no handler
// is permanently unprocessable and must fail without consuming retries.
func (r *Registry) Resolve(jobType models.JobType) (HandlerFunc, error) {
	h, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}
	return h, nil
}

// Types returns the registered job types, for startup logging.
func (r *Registry) Types() []models.JobType {
	types := make([]models.JobType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
