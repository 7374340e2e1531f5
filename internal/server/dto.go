package server

import (
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/render"
)

// PushEventRequest is the webhook body for a push notification
type PushEventRequest struct {
	Repository      string            `json:"repository"`
	Branch          string            `json:"branch" binding:"required"`
	Commit          string            `json:"commit"`
	ChangedPaths    []string          `json:"changedPaths"`
	ExecutionNumber int64             `json:"executionNumber" binding:"gte=0"`
	Variables       map[string]string `json:"variables"`
}

// Event converts the request into the planner's event type
func (r *PushEventRequest) Event() model.PushEvent {
	return model.PushEvent{
		Repository:      r.Repository,
		Branch:          r.Branch,
		Commit:          r.Commit,
		ChangedPaths:    r.ChangedPaths,
		ExecutionNumber: r.ExecutionNumber,
		Variables:       r.Variables,
	}
}

// JobSummary describes a loaded job definition
type JobSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Repository  string   `json:"repository"`
	Tags        []string `json:"tags"`
	Branches    []string `json:"branches,omitempty"`
	Include     []string `json:"include"`
	Exclude     []string `json:"exclude"`
	Limits      string   `json:"limits"`
}

func newJobSummary(job *model.NormalizedJob) JobSummary {
	spec := job.Definition.Spec
	return JobSummary{
		Name:        job.Name(),
		Description: job.Definition.Metadata.Description,
		Repository:  spec.Push.Repository,
		Tags:        spec.Push.Tags,
		Branches:    spec.Trigger.GitPush.Branches.Include,
		Include:     nonNil(spec.Trigger.GitPush.PathFilter.Include),
		Exclude:     nonNil(spec.Trigger.GitPush.PathFilter.Exclude),
		Limits:      render.FormatLimits(job.Limits),
	}
}

// DispatchedJob is one fired job in a push response
type DispatchedJob struct {
	ID     string   `json:"id"`
	Images []string `json:"images"`
}

// PushEventResponse summarizes the plan computed for a push
type PushEventResponse struct {
	Plan       string             `json:"plan"`
	Jobs       []DispatchedJob    `json:"jobs"`
	Skipped    []model.SkippedJob `json:"skipped"`
	Dispatched int                `json:"dispatched"`
	Error      string             `json:"error,omitempty"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
