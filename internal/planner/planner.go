package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sourceplane/litejob/internal/counter"
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/tags"
	"github.com/sourceplane/litejob/internal/trigger"
)

// ErrJobNotFound is returned when a job name is not part of the planner's set
var ErrJobNotFound = errors.New("job not found")

// JobPlanner evaluates push events against normalized job definitions
type JobPlanner struct {
	jobs      []*boundJob
	byName    map[string]*boundJob
	counter   counter.Store
	variables map[string]string
}

// boundJob pairs a job with its compiled trigger filter
type boundJob struct {
	job    *model.NormalizedJob
	filter *trigger.Filter
}

// Option configures a JobPlanner
type Option func(*JobPlanner)

// WithCounter allocates execution numbers for events that carry none
func WithCounter(store counter.Store) Option {
	return func(jp *JobPlanner) {
		jp.counter = store
	}
}

// WithVariables adds variables available to tag templates and build args
func WithVariables(vars map[string]string) Option {
	return func(jp *JobPlanner) {
		for k, v := range vars {
			jp.variables[k] = v
		}
	}
}

// NewJobPlanner compiles the trigger filter of every job
func NewJobPlanner(jobs []*model.NormalizedJob, opts ...Option) (*JobPlanner, error) {
	jp := &JobPlanner{
		jobs:      make([]*boundJob, 0, len(jobs)),
		byName:    make(map[string]*boundJob, len(jobs)),
		variables: make(map[string]string),
	}
	for _, opt := range opts {
		opt(jp)
	}

	for _, job := range jobs {
		if _, exists := jp.byName[job.Name()]; exists {
			return nil, fmt.Errorf("duplicate job name: %s", job.Name())
		}
		filter, err := trigger.New(job.Definition.Spec.Trigger.GitPush)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", job.Name(), err)
		}
		bound := &boundJob{job: job, filter: filter}
		jp.jobs = append(jp.jobs, bound)
		jp.byName[job.Name()] = bound
	}

	sort.Slice(jp.jobs, func(i, j int) bool {
		return jp.jobs[i].job.Name() < jp.jobs[j].job.Name()
	})
	return jp, nil
}

// Jobs returns the planner's jobs sorted by name
func (jp *JobPlanner) Jobs() []*model.NormalizedJob {
	out := make([]*model.NormalizedJob, 0, len(jp.jobs))
	for _, b := range jp.jobs {
		out = append(out, b.job)
	}
	return out
}

// Job returns a single job by name
func (jp *JobPlanner) Job(name string) (*model.NormalizedJob, error) {
	b, ok := jp.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return b.job, nil
}

// Evaluate runs one job's trigger against an event without planning anything
func (jp *JobPlanner) Evaluate(name string, event model.PushEvent) (trigger.Result, error) {
	b, ok := jp.byName[name]
	if !ok {
		return trigger.Result{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return b.filter.Evaluate(event), nil
}

// Plan evaluates every job against the event and materializes the fired ones
func (jp *JobPlanner) Plan(ctx context.Context, event model.PushEvent) (*model.Plan, error) {
	plan := &model.Plan{
		APIVersion: model.APIVersion,
		Kind:       model.KindPlan,
		Metadata: model.Metadata{
			Name: fmt.Sprintf("push-%s", tags.Sanitize(event.BranchName())),
		},
		Spec: model.PlanSpec{Event: event},
		Jobs: make([]model.PlanJob, 0),
	}

	for _, b := range jp.jobs {
		result := b.filter.Evaluate(event)
		if !result.Fired {
			plan.Spec.Skipped = append(plan.Spec.Skipped, model.SkippedJob{
				Job:    b.job.Name(),
				Reason: result.Reason,
			})
			continue
		}

		number, err := jp.executionNumber(ctx, b.job.Name(), event.ExecutionNumber)
		if err != nil {
			return nil, err
		}

		jobEvent := event
		jobEvent.ExecutionNumber = number
		planJob, err := jp.PlanJob(b.job, jobEvent)
		if err != nil {
			return nil, fmt.Errorf("failed to plan job %s: %w", b.job.Name(), err)
		}
		planJob.MatchedPaths = result.MatchedPaths

		plan.Jobs = append(plan.Jobs, *planJob)
	}

	return plan, nil
}

// PlanJob materializes one job for an event whose execution number is already known.
// The trigger is not consulted.
func (jp *JobPlanner) PlanJob(job *model.NormalizedJob, event model.PushEvent) (*model.PlanJob, error) {
	if event.ExecutionNumber <= 0 {
		return nil, fmt.Errorf("execution number must be positive, got %d", event.ExecutionNumber)
	}

	spec := job.Definition.Spec
	vars := tags.Variables(job.Name(), event, jp.variables, event.Variables)

	resolved, images, err := tags.ImageRefs(spec.Push.Repository, spec.Push.Tags, vars)
	if err != nil {
		return nil, err
	}

	build := spec.Build
	build.Args, err = expandArgs(spec.Build.Args, vars)
	if err != nil {
		return nil, err
	}

	planJob := &model.PlanJob{
		ID:              fmt.Sprintf("%s@%d", job.Name(), event.ExecutionNumber),
		Name:            job.Name(),
		ExecutionNumber: event.ExecutionNumber,
		Branch:          event.BranchName(),
		Commit:          event.Commit,
		MatchedPaths:    []string{},
		Repository:      spec.Push.Repository,
		Tags:            resolved,
		Images:          images,
		Build:           build,
		Limits:          job.Limits,
	}
	planJob.Steps = renderSteps(planJob)

	return planJob, nil
}

func (jp *JobPlanner) executionNumber(ctx context.Context, job string, given int64) (int64, error) {
	if given > 0 {
		return given, nil
	}
	if jp.counter == nil {
		return 0, fmt.Errorf("job %s: event has no execution number and no counter is configured", job)
	}
	n, err := jp.counter.Next(ctx, job)
	if err != nil {
		return 0, fmt.Errorf("job %s: %w", job, err)
	}
	return n, nil
}

func expandArgs(args map[string]string, vars map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for k, v := range args {
		expanded, err := tags.Expand(v, vars)
		if err != nil {
			return nil, fmt.Errorf("build arg %s: %w", k, err)
		}
		out[k] = expanded
	}
	return out, nil
}
