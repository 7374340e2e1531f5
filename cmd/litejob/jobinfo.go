package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/render"
)

// JobInfo holds the displayable facts about a job definition
type JobInfo struct {
	Name        string
	Description string
	Source      string
	Branches    model.PatternSet
	Include     []string
	Exclude     []string
	Context     string
	Dockerfile  string
	Labels      map[string]string
	Args        map[string]string
	Limits      string
	Repository  string
	Tags        []string
}

// ExtractJobInfo flattens a normalized job for display
func ExtractJobInfo(job *model.NormalizedJob) *JobInfo {
	spec := job.Definition.Spec
	return &JobInfo{
		Name:        job.Name(),
		Description: job.Definition.Metadata.Description,
		Source:      job.Definition.Source,
		Branches:    spec.Trigger.GitPush.Branches,
		Include:     spec.Trigger.GitPush.PathFilter.Include,
		Exclude:     spec.Trigger.GitPush.PathFilter.Exclude,
		Context:     spec.Build.Context,
		Dockerfile:  spec.Build.File,
		Labels:      spec.Build.Labels,
		Args:        spec.Build.Args,
		Limits:      render.FormatLimits(job.Limits),
		Repository:  spec.Push.Repository,
		Tags:        spec.Push.Tags,
	}
}

// PrintShortFormat prints one line per job
func PrintShortFormat(info *JobInfo) {
	if info.Description != "" {
		fmt.Printf("  %-30s %s\n", info.Name, info.Description)
		return
	}
	fmt.Printf("  %s\n", info.Name)
}

// PrintLongFormat prints every field of a job
func PrintLongFormat(info *JobInfo) {
	fmt.Printf("\n[Job] %s\n", info.Name)
	if info.Description != "" {
		fmt.Printf("  Description: %s\n", info.Description)
	}
	if info.Source != "" {
		fmt.Printf("  Source:      %s\n", info.Source)
	}

	fmt.Println("  Trigger:")
	if len(info.Branches.Include) > 0 || len(info.Branches.Exclude) > 0 {
		fmt.Printf("    branches:  +%v -%v\n", info.Branches.Include, info.Branches.Exclude)
	}
	for _, p := range info.Exclude {
		fmt.Printf("    - %s\n", p)
	}
	if len(info.Include) == 0 {
		fmt.Println("    + (every path)")
	}
	for _, p := range info.Include {
		fmt.Printf("    + %s\n", p)
	}

	fmt.Println("  Build:")
	fmt.Printf("    context:    %s\n", info.Context)
	fmt.Printf("    dockerfile: %s\n", info.Dockerfile)
	fmt.Printf("    resources:  %s\n", info.Limits)
	printMap("    label", info.Labels)
	printMap("    arg", info.Args)

	fmt.Println("  Push:")
	fmt.Printf("    repository: %s\n", info.Repository)
	fmt.Printf("    tags:       %s\n", strings.Join(info.Tags, ", "))
}

func printMap(prefix string, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s %s=%s\n", prefix, k, m[k])
	}
}
