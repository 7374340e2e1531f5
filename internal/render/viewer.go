package render

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/sourceplane/litejob/internal/model"
)

const rule = "═══════════════════════════════════════════════════════════\n"

// PlanViewer provides human-readable views of a plan
type PlanViewer struct {
	plan *model.Plan
}

// NewPlanViewer creates a new plan viewer
func NewPlanViewer(plan *model.Plan) *PlanViewer {
	return &PlanViewer{plan: plan}
}

// ViewTree returns a tree of jobs and their steps, followed by skipped jobs
func (pv *PlanViewer) ViewTree() string {
	var sb strings.Builder

	if len(pv.plan.Jobs) == 0 {
		sb.WriteString("No jobs in plan\n")
	}

	for i, job := range pv.plan.Jobs {
		isLastJob := i == len(pv.plan.Jobs)-1

		jobPrefix := "├─ "
		connector := "│  "
		if isLastJob {
			jobPrefix = "└─ "
			connector = "   "
		}

		sb.WriteString(fmt.Sprintf("%s%s [%s]\n", jobPrefix, job.ID, job.Branch))
		sb.WriteString(fmt.Sprintf("%s  limits: %s\n", connector, FormatLimits(job.Limits)))

		for j, step := range job.Steps {
			stepPrefix := connector + "├─ "
			if j == len(job.Steps)-1 {
				stepPrefix = connector + "└─ "
			}

			runCmd := step.Run
			if len(runCmd) > 60 {
				runCmd = runCmd[:57] + "..."
			}
			sb.WriteString(fmt.Sprintf("%s%s | %s\n", stepPrefix, step.Name, runCmd))
		}
	}

	if len(pv.plan.Spec.Skipped) > 0 {
		sb.WriteString("\nSkipped:\n")
		for _, skipped := range pv.plan.Spec.Skipped {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", skipped.Job, skipped.Reason))
		}
	}

	sb.WriteString(rule)
	sb.WriteString(fmt.Sprintf("Summary: %d jobs, %d skipped\n", len(pv.plan.Jobs), len(pv.plan.Spec.Skipped)))

	return sb.String()
}

// ViewImages lists every image reference the plan will push
func (pv *PlanViewer) ViewImages() string {
	if len(pv.plan.Jobs) == 0 {
		return "No images in plan"
	}

	var sb strings.Builder
	sb.WriteString("Images\n")
	sb.WriteString(rule)
	for _, job := range pv.plan.Jobs {
		for _, image := range job.Images {
			sb.WriteString(fmt.Sprintf("%-30s %s\n", job.ID, image))
		}
	}
	return sb.String()
}

// ViewJob shows a single job in detail
func (pv *PlanViewer) ViewJob(name string) string {
	for _, job := range pv.plan.Jobs {
		if job.Name != name && job.ID != name {
			continue
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%s (execution %d)\n", job.Name, job.ExecutionNumber))
		sb.WriteString(rule)
		sb.WriteString(fmt.Sprintf("Branch:     %s\n", job.Branch))
		if job.Commit != "" {
			sb.WriteString(fmt.Sprintf("Commit:     %s\n", job.Commit))
		}
		sb.WriteString(fmt.Sprintf("Repository: %s\n", job.Repository))
		sb.WriteString(fmt.Sprintf("Tags:       %s\n", strings.Join(job.Tags, ", ")))
		sb.WriteString(fmt.Sprintf("Context:    %s\n", job.Build.Context))
		sb.WriteString(fmt.Sprintf("Dockerfile: %s\n", job.Build.File))
		sb.WriteString(fmt.Sprintf("Limits:     %s\n", FormatLimits(job.Limits)))
		if len(job.MatchedPaths) > 0 {
			sb.WriteString("Matched paths:\n")
			for _, p := range job.MatchedPaths {
				sb.WriteString(fmt.Sprintf("  • %s\n", p))
			}
		}
		sb.WriteString("Steps:\n")
		for i, step := range job.Steps {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step.Name))
			sb.WriteString(fmt.Sprintf("     %s\n", step.Run))
		}
		return sb.String()
	}

	for _, skipped := range pv.plan.Spec.Skipped {
		if skipped.Job == name {
			return fmt.Sprintf("%s was skipped: %s", name, skipped.Reason)
		}
	}
	return fmt.Sprintf("No job found: %s", name)
}

// FormatLimits renders a resource ceiling for humans
func FormatLimits(l model.Limits) string {
	cpu := "unlimited"
	if l.MilliCPU > 0 {
		cpu = fmt.Sprintf("%g cpu", float64(l.MilliCPU)/1000)
	}
	mem := "unlimited"
	if l.MemoryBytes > 0 {
		mem = units.BytesSize(float64(l.MemoryBytes))
	}
	return fmt.Sprintf("%s, %s memory", cpu, mem)
}
