package cron

import "context"

// Job is one scheduled sweep run by the worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker instance runs each cycle. Jobs are
// deduplicated by name; the first registration wins.
type Registry struct {
	order []Job
	seen  map[string]struct{}
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{seen: map[string]struct{}{}}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register adds a job unless one with the same name is already present.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if _, dup := r.seen[job.Name()]; dup {
		return
	}
	r.seen[job.Name()] = struct{}{}
	r.order = append(r.order, job)
}

// Jobs returns the jobs in registration order.
func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.order))
	copy(out, r.order)
	return out
}
