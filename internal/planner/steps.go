package planner

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sourceplane/litejob/internal/model"
)

// CPUPeriod is the CFS period (µs) the CPU ceiling is expressed against
const CPUPeriod = 100000

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// renderSteps produces one build step followed by one push step per image
func renderSteps(job *model.PlanJob) []model.PlanStep {
	steps := make([]model.PlanStep, 0, len(job.Images)+1)
	steps = append(steps, newStep("build", model.StepBuild, "", BuildArgs(job)))

	for i, image := range job.Images {
		name := fmt.Sprintf("push:%s", job.Tags[i])
		steps = append(steps, newStep(name, model.StepPush, image, []string{"docker", "push", image}))
	}
	return steps
}

// BuildArgs renders the docker CLI invocation for the build step
func BuildArgs(job *model.PlanJob) []string {
	args := []string{"docker", "build", "--file", job.Build.File}

	for _, k := range sortedKeys(job.Build.Labels) {
		args = append(args, "--label", k+"="+job.Build.Labels[k])
	}
	for _, k := range sortedKeys(job.Build.Args) {
		args = append(args, "--build-arg", k+"="+job.Build.Args[k])
	}

	if job.Limits.MilliCPU > 0 {
		args = append(args,
			"--cpu-period", strconv.Itoa(CPUPeriod),
			"--cpu-quota", strconv.FormatInt(CPUQuota(job.Limits.MilliCPU), 10),
		)
	}
	if job.Limits.MemoryBytes > 0 {
		args = append(args, "--memory", strconv.FormatInt(job.Limits.MemoryBytes, 10))
	}

	for _, image := range job.Images {
		args = append(args, "--tag", image)
	}
	return append(args, job.Build.Context)
}

// CPUQuota converts millicores into a CFS quota over CPUPeriod
func CPUQuota(milliCPU int64) int64 {
	return milliCPU * CPUPeriod / 1000
}

// ShellJoin renders argv as a copy-pasteable POSIX shell command
func ShellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func newStep(name, kind, image string, args []string) model.PlanStep {
	return model.PlanStep{
		Name:  name,
		Kind:  kind,
		Image: image,
		Args:  args,
		Run:   ShellJoin(args),
	}
}

func shellQuote(s string) string {
	if s != "" && shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
