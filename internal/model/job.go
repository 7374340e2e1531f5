package model

// APIVersion is the apiVersion every litejob document carries
const APIVersion = "litejob.sourceplane.io/v1"

// Document kinds
const (
	KindJobDefinition = "JobDefinition"
	KindPlan          = "Plan"
)

// Metadata holds standard object metadata
type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// JobDefinition is a declarative build-and-push job triggered by source pushes (k8s-style document)
type JobDefinition struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       string   `yaml:"kind" json:"kind"`
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
	Spec       JobSpec  `yaml:"spec" json:"spec"`

	// Source is the file the definition was loaded from, if any
	Source string `yaml:"-" json:"-"`
}

// Name returns the job identifier
func (d *JobDefinition) Name() string {
	return d.Metadata.Name
}

// JobSpec holds the trigger → action mapping of a job
type JobSpec struct {
	Trigger   Trigger   `yaml:"trigger" json:"trigger"`
	Resources Resources `yaml:"resources" json:"resources"`
	Build     BuildSpec `yaml:"build" json:"build"`
	Push      PushSpec  `yaml:"push" json:"push"`
}

// Trigger describes which push events start the job
type Trigger struct {
	GitPush GitPushTrigger `yaml:"gitPush" json:"gitPush"`
}

// GitPushTrigger filters push events by branch and by changed paths
type GitPushTrigger struct {
	Branches   PatternSet `yaml:"branches,omitempty" json:"branches,omitempty"`
	PathFilter PatternSet `yaml:"pathFilter" json:"pathFilter"`
}

// PatternSet is an include/exclude pair of glob lists. Excludes always win.
type PatternSet struct {
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// Resources is the CPU/memory ceiling of the build step.
// Quantities stay strings here; normalize parses them into Limits.
type Resources struct {
	CPU    string `yaml:"cpu" json:"cpu"`
	Memory string `yaml:"memory" json:"memory"`
}

// BuildSpec names the build context, recipe and static image metadata
type BuildSpec struct {
	Context string            `yaml:"context" json:"context"`
	File    string            `yaml:"file" json:"file"`
	Labels  map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Args    map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
}

// PushSpec names the destination repository and the tag templates
type PushSpec struct {
	Repository string   `yaml:"repository" json:"repository"`
	Tags       []string `yaml:"tags" json:"tags"`
}

// Limits is the parsed form of Resources
type Limits struct {
	MilliCPU    int64 `yaml:"milliCpu" json:"milliCpu"`
	MemoryBytes int64 `yaml:"memoryBytes" json:"memoryBytes"`
}

// NormalizedJob is the canonical internal representation of a JobDefinition
type NormalizedJob struct {
	Definition JobDefinition
	Limits     Limits
}

// Name returns the job identifier
func (n *NormalizedJob) Name() string {
	return n.Definition.Metadata.Name
}
