package cron

import (
	"context"
	"testing"
)

type namedJob struct {
	name string
	err  error
	runs int
}

func (j *namedJob) Name() string { return j.name }

func (j *namedJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	first := &namedJob{name: "auto-confirm"}
	second := &namedJob{name: "reconcile"}
	registry := NewRegistry(first)
	registry.Register(second)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs got %d", len(jobs))
	}
	if jobs[0].Name() != "auto-confirm" || jobs[1].Name() != "reconcile" {
		t.Fatalf("jobs out of order: %s, %s", jobs[0].Name(), jobs[1].Name())
	}

	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("internal slice leaked to caller")
	}
}

func TestRegistryDeduplicatesByName(t *testing.T) {
	registry := NewRegistry(&namedJob{name: "auto-confirm"})
	registry.Register(&namedJob{name: "auto-confirm"})
	registry.Register(nil)

	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected 1 job got %d", got)
	}
}
