package model

import "time"

// Step kinds
const (
	StepBuild = "build"
	StepPush  = "push"
)

// Plan is the execution-ready result of evaluating job definitions against one push event
type Plan struct {
	APIVersion string    `yaml:"apiVersion" json:"apiVersion"`
	Kind       string    `yaml:"kind" json:"kind"`
	Metadata   Metadata  `yaml:"metadata" json:"metadata"`
	Spec       PlanSpec  `yaml:"spec" json:"spec"`
	Jobs       []PlanJob `yaml:"jobs" json:"jobs"`
}

// PlanSpec holds the event the plan was computed for and the jobs that did not fire
type PlanSpec struct {
	Event   PushEvent    `yaml:"event" json:"event"`
	Skipped []SkippedJob `yaml:"skipped,omitempty" json:"skipped,omitempty"`
}

// SkippedJob records why a definition did not fire
type SkippedJob struct {
	Job    string `yaml:"job" json:"job"`
	Reason string `yaml:"reason" json:"reason"`
}

// PlanJob is the execution unit in the final plan
type PlanJob struct {
	ID              string     `yaml:"id" json:"id"`
	Name            string     `yaml:"name" json:"name"`
	ExecutionNumber int64      `yaml:"executionNumber" json:"executionNumber"`
	Branch          string     `yaml:"branch" json:"branch"`
	Commit          string     `yaml:"commit,omitempty" json:"commit,omitempty"`
	MatchedPaths    []string   `yaml:"matchedPaths" json:"matchedPaths"`
	Repository      string     `yaml:"repository" json:"repository"`
	Tags            []string   `yaml:"tags" json:"tags"`
	Images          []string   `yaml:"images" json:"images"`
	Build           BuildSpec  `yaml:"build" json:"build"`
	Limits          Limits     `yaml:"limits" json:"limits"`
	Steps           []PlanStep `yaml:"steps" json:"steps"`
}

// PlanStep is a step in the final plan. Args is executed; Run is its shell rendering.
type PlanStep struct {
	Name  string   `yaml:"name" json:"name"`
	Kind  string   `yaml:"kind" json:"kind"`
	Image string   `yaml:"image,omitempty" json:"image,omitempty"`
	Args  []string `yaml:"args" json:"args"`
	Run   string   `yaml:"run" json:"run"`
}

// BuildRequest is the message handed to a dispatcher for one fired job
type BuildRequest struct {
	ID          string    `json:"id"`
	Job         PlanJob   `json:"job"`
	RequestedAt time.Time `json:"requestedAt"`
}
