package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourceplane/litejob/internal/model"
	"gopkg.in/yaml.v3"
)

// Renderer serializes plans
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON renders plan as JSON
func (r *Renderer) RenderJSON(plan *model.Plan) ([]byte, error) {
	return json.MarshalIndent(plan, "", "  ")
}

// RenderYAML renders plan as YAML
func (r *Renderer) RenderYAML(plan *model.Plan) ([]byte, error) {
	return yaml.Marshal(plan)
}

// Render renders plan in the given format (json or yaml)
func (r *Renderer) Render(plan *model.Plan, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return r.RenderYAML(plan)
	case "json", "":
		return r.RenderJSON(plan)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WritePlan writes plan to file (JSON or YAML based on extension)
func (r *Renderer) WritePlan(plan *model.Plan, path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	format := "json"
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	data, err := r.Render(plan, format)
	if err != nil {
		return fmt.Errorf("failed to render plan: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write plan to %s: %w", path, err)
	}

	return nil
}

// DebugDump outputs debug information about the plan
func (r *Renderer) DebugDump(plan *model.Plan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Plan: %s\n", plan.Metadata.Name))
	sb.WriteString(fmt.Sprintf("Event: branch=%s commit=%s paths=%d\n",
		plan.Spec.Event.BranchName(), plan.Spec.Event.ShortCommit(), len(plan.Spec.Event.ChangedPaths)))
	sb.WriteString(fmt.Sprintf("Jobs: %d, skipped: %d\n\n", len(plan.Jobs), len(plan.Spec.Skipped)))

	for _, job := range plan.Jobs {
		sb.WriteString(fmt.Sprintf("Job: %s\n", job.ID))
		sb.WriteString(fmt.Sprintf("  Repository: %s\n", job.Repository))
		sb.WriteString(fmt.Sprintf("  Tags: %v\n", job.Tags))
		sb.WriteString(fmt.Sprintf("  Matched: %v\n", job.MatchedPaths))
		sb.WriteString(fmt.Sprintf("  Steps: %d\n", len(job.Steps)))
		sb.WriteString("\n")
	}

	for _, skipped := range plan.Spec.Skipped {
		sb.WriteString(fmt.Sprintf("Skipped: %s (%s)\n", skipped.Job, skipped.Reason))
	}

	return sb.String()
}
