package normalize

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/tags"
	"github.com/sourceplane/litejob/internal/trigger"
)

// DefaultTagTemplate is used when a job declares no tags
const DefaultTagTemplate = "$" + tags.VarExecutionNumber

// NormalizeJob transforms a raw definition into canonical form
func NormalizeJob(def *model.JobDefinition) (*model.NormalizedJob, error) {
	if def == nil {
		return nil, fmt.Errorf("job definition cannot be nil")
	}

	normalized := *def
	name := strings.TrimSpace(normalized.Metadata.Name)
	if name == "" {
		return nil, fmt.Errorf("job definition must have a name")
	}
	normalized.Metadata.Name = name

	if normalized.APIVersion == "" {
		normalized.APIVersion = model.APIVersion
	}
	if normalized.Kind == "" {
		normalized.Kind = model.KindJobDefinition
	}

	spec := &normalized.Spec

	if err := trigger.ValidatePatterns(spec.Trigger.GitPush.PathFilter); err != nil {
		return nil, fmt.Errorf("job %s: path filter: %w", name, err)
	}
	if err := trigger.ValidatePatterns(spec.Trigger.GitPush.Branches); err != nil {
		return nil, fmt.Errorf("job %s: branch filter: %w", name, err)
	}

	// Build defaults
	if spec.Build.Context == "" {
		spec.Build.Context = "."
	}
	if spec.Build.File == "" {
		spec.Build.File = path.Join(spec.Build.Context, "Dockerfile")
	}
	if spec.Build.Labels == nil {
		spec.Build.Labels = make(map[string]string)
	}
	if spec.Build.Args == nil {
		spec.Build.Args = make(map[string]string)
	}

	limits, err := ParseResources(spec.Resources)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", name, err)
	}

	// Push
	spec.Push.Repository = strings.TrimSpace(spec.Push.Repository)
	if spec.Push.Repository == "" {
		return nil, fmt.Errorf("job %s: push repository is required", name)
	}
	if err := tags.ValidateRepository(spec.Push.Repository); err != nil {
		return nil, fmt.Errorf("job %s: %w", name, err)
	}

	if len(spec.Push.Tags) == 0 {
		spec.Push.Tags = []string{DefaultTagTemplate}
	}
	seen := make(map[string]bool, len(spec.Push.Tags))
	for _, tmpl := range spec.Push.Tags {
		if strings.TrimSpace(tmpl) == "" {
			return nil, fmt.Errorf("job %s: empty tag template", name)
		}
		if seen[tmpl] {
			return nil, fmt.Errorf("job %s: duplicate tag template %q", name, tmpl)
		}
		seen[tmpl] = true
		if err := tags.Validate(tmpl); err != nil {
			return nil, fmt.Errorf("job %s: tag template: %w", name, err)
		}
	}
	for key, value := range spec.Build.Args {
		if err := tags.Validate(value); err != nil {
			return nil, fmt.Errorf("job %s: build arg %s: %w", name, key, err)
		}
	}

	return &model.NormalizedJob{
		Definition: normalized,
		Limits:     limits,
	}, nil
}

// NormalizeAll normalizes a set of definitions and rejects duplicate names
func NormalizeAll(defs []*model.JobDefinition) ([]*model.NormalizedJob, error) {
	jobs := make([]*model.NormalizedJob, 0, len(defs))
	sources := make(map[string]string, len(defs))

	for _, def := range defs {
		job, err := NormalizeJob(def)
		if err != nil {
			return nil, err
		}
		if prev, exists := sources[job.Name()]; exists {
			return nil, fmt.Errorf("duplicate job name %s (defined in %s and %s)", job.Name(), prev, def.Source)
		}
		sources[job.Name()] = def.Source
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// ParseResources parses the CPU and memory quantities. Empty quantities mean no limit.
func ParseResources(r model.Resources) (model.Limits, error) {
	var limits model.Limits

	if cpu := strings.TrimSpace(r.CPU); cpu != "" {
		milli, err := ParseCPU(cpu)
		if err != nil {
			return limits, err
		}
		limits.MilliCPU = milli
	}

	if mem := strings.TrimSpace(r.Memory); mem != "" {
		bytes, err := ParseMemory(mem)
		if err != nil {
			return limits, err
		}
		limits.MemoryBytes = bytes
	}

	return limits, nil
}

// ParseCPU accepts "4", "4cpu", "1.5" and millicores "500m"
func ParseCPU(s string) (int64, error) {
	q := strings.ToLower(strings.TrimSpace(s))
	q = strings.TrimSpace(strings.TrimSuffix(q, "cpu"))

	if strings.HasSuffix(q, "m") {
		milli, err := strconv.ParseInt(strings.TrimSuffix(q, "m"), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid cpu quantity %q: %w", s, err)
		}
		if milli <= 0 {
			return 0, fmt.Errorf("cpu quantity must be positive: %q", s)
		}
		return milli, nil
	}

	cores, err := strconv.ParseFloat(q, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cpu quantity %q: %w", s, err)
	}
	milli := int64(cores * 1000)
	if milli <= 0 {
		return 0, fmt.Errorf("cpu quantity must be positive: %q", s)
	}
	return milli, nil
}

// ParseMemory accepts human sizes such as "3000mb", "3g" or "512MiB" (binary units)
func ParseMemory(s string) (int64, error) {
	bytes, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid memory quantity %q: %w", s, err)
	}
	if bytes <= 0 {
		return 0, fmt.Errorf("memory quantity must be positive: %q", s)
	}
	return bytes, nil
}
