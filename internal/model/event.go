package model

import "strings"

const branchRefPrefix = "refs/heads/"

// PushEvent is a source-control notification that code was pushed to a branch
type PushEvent struct {
	Repository      string            `yaml:"repository,omitempty" json:"repository,omitempty"`
	Branch          string            `yaml:"branch" json:"branch"`
	Commit          string            `yaml:"commit,omitempty" json:"commit,omitempty"`
	ChangedPaths    []string          `yaml:"changedPaths" json:"changedPaths"`
	ExecutionNumber int64             `yaml:"executionNumber,omitempty" json:"executionNumber,omitempty"`
	Variables       map[string]string `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// BranchName returns the short branch name, without the refs/heads/ prefix
func (e *PushEvent) BranchName() string {
	return strings.TrimPrefix(e.Branch, branchRefPrefix)
}

// ShortCommit returns the first 7 characters of the commit hash
func (e *PushEvent) ShortCommit() string {
	if len(e.Commit) > 7 {
		return e.Commit[:7]
	}
	return e.Commit
}
