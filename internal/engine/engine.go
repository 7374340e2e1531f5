// Package engine executes plan steps against the Docker Engine API instead of
// shelling out to the docker CLI.
package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/planner"
)

// API is the subset of the Docker client used by the executor.
type API interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImagePush(ctx context.Context, image string, options types.ImagePushOptions) (io.ReadCloser, error)
	Close() error
}

// ErrImageBuild indicates an error occurred while building a Docker image.
type ErrImageBuild struct {
	Image string
	Err   error
}

func (e ErrImageBuild) Error() string {
	return fmt.Sprintf("could not build docker image '%s': %s", e.Image, e.Err)
}

func (e ErrImageBuild) Unwrap() error { return e.Err }

// ErrImagePush indicates an error occurred while pushing a Docker image.
type ErrImagePush struct {
	Image string
	Err   error
}

func (e ErrImagePush) Error() string {
	return fmt.Sprintf("could not push docker image '%s': %s", e.Image, e.Err)
}

func (e ErrImagePush) Unwrap() error { return e.Err }

// Executor builds and pushes images through the Docker daemon.
type Executor struct {
	api     API
	workDir string
	out     io.Writer
	logger  *slog.Logger
}

// NewExecutor wraps an existing Docker API client.
func NewExecutor(api API, workDir string, out io.Writer, logger *slog.Logger) *Executor {
	if workDir == "" {
		workDir = "."
	}
	return &Executor{
		api:     api,
		workDir: workDir,
		out:     out,
		logger:  logger,
	}
}

// NewFromEnv connects to the daemon configured by DOCKER_HOST and friends.
func NewFromEnv(workDir string, out io.Writer, logger *slog.Logger) (*Executor, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewExecutor(c, workDir, out, logger), nil
}

// Close releases the underlying client.
func (e *Executor) Close() error {
	return e.api.Close()
}

// Execute dispatches on the step kind.
func (e *Executor) Execute(ctx context.Context, job model.PlanJob, step model.PlanStep) error {
	switch step.Kind {
	case model.StepBuild:
		return e.Build(ctx, job)
	case model.StepPush:
		return e.Push(ctx, step.Image)
	default:
		return fmt.Errorf("unsupported step kind %q", step.Kind)
	}
}

// Build tars the job's build context and builds it with every image tag,
// under the job's CPU and memory ceiling.
func (e *Executor) Build(ctx context.Context, job model.PlanJob) error {
	image := job.Repository
	if len(job.Images) > 0 {
		image = job.Images[0]
	}

	contextDir := e.resolve(job.Build.Context)
	opts, err := BuildOptions(job, contextDir, e.resolve(job.Build.File))
	if err != nil {
		return ErrImageBuild{Image: image, Err: err}
	}

	buildContext, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return ErrImageBuild{Image: image, Err: fmt.Errorf("failed to archive build context %s: %w", contextDir, err)}
	}
	defer buildContext.Close()

	e.logger.Info("building image",
		slog.String("job", job.ID),
		slog.String("context", contextDir),
		slog.String("dockerfile", opts.Dockerfile),
		slog.Int64("cpu_quota", opts.CPUQuota),
		slog.Int64("memory", opts.Memory),
	)

	resp, err := e.api.ImageBuild(ctx, buildContext, opts)
	if err != nil {
		return ErrImageBuild{Image: image, Err: err}
	}
	defer resp.Body.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, e.out, 0, false, nil); err != nil {
		return ErrImageBuild{Image: image, Err: err}
	}

	return nil
}

// Push pushes one already-built image reference. Credentials come from the daemon.
func (e *Executor) Push(ctx context.Context, image string) error {
	if image == "" {
		return ErrImagePush{Image: image, Err: fmt.Errorf("push step has no image")}
	}

	e.logger.Info("pushing image", slog.String("image", image))

	body, err := e.api.ImagePush(ctx, image, types.ImagePushOptions{RegistryAuth: anonymousAuth})
	if err != nil {
		return ErrImagePush{Image: image, Err: err}
	}
	defer body.Close()

	if err := jsonmessage.DisplayJSONMessagesStream(body, e.out, 0, false, nil); err != nil {
		return ErrImagePush{Image: image, Err: err}
	}

	return nil
}

// BuildOptions maps a plan job onto Docker build options. dockerfile must lie
// inside contextDir.
func BuildOptions(job model.PlanJob, contextDir, dockerfile string) (types.ImageBuildOptions, error) {
	rel, err := filepath.Rel(contextDir, dockerfile)
	if err != nil {
		return types.ImageBuildOptions{}, fmt.Errorf("failed to locate dockerfile: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return types.ImageBuildOptions{}, fmt.Errorf("dockerfile %s is outside build context %s", dockerfile, contextDir)
	}

	buildArgs := make(map[string]*string, len(job.Build.Args))
	for k, v := range job.Build.Args {
		buildArgs[k] = &v
	}

	labels := make(map[string]string, len(job.Build.Labels))
	for k, v := range job.Build.Labels {
		labels[k] = v
	}

	opts := types.ImageBuildOptions{
		Tags:        append([]string(nil), job.Images...),
		Dockerfile:  filepath.ToSlash(rel),
		Labels:      labels,
		BuildArgs:   buildArgs,
		Remove:      true,
		ForceRemove: true,
	}
	if job.Limits.MilliCPU > 0 {
		opts.CPUPeriod = planner.CPUPeriod
		opts.CPUQuota = planner.CPUQuota(job.Limits.MilliCPU)
	}
	if job.Limits.MemoryBytes > 0 {
		opts.Memory = job.Limits.MemoryBytes
	}

	return opts, nil
}

func (e *Executor) resolve(p string) string {
	if p == "" {
		return e.workDir
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(e.workDir, p)
}

// anonymousAuth is an empty X-Registry-Auth header. The daemon keeps no registry
// credentials, so engine pushes only succeed against registries that accept
// anonymous pushes; private registries need the shell executor, whose docker
// CLI reads ~/.docker/config.json.
var anonymousAuth = base64.URLEncoding.EncodeToString([]byte("{}"))
