package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"

	"github.com/sourceplane/litejob/internal/model"
)

// StepExecutor performs a single plan step.
type StepExecutor interface {
	Execute(ctx context.Context, job model.PlanJob, step model.PlanStep) error
}

// StepError reports which job and step failed.
type StepError struct {
	JobID string
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("job %s step %s failed: %v", e.JobID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner executes a compiled plan job by job, step by step. A zero Stdout
// discards progress output and a Runner built without NewRunner logs to slog.Default.
type Runner struct {
	Executor StepExecutor
	Stdout   io.Writer
	DryRun   bool

	logger *slog.Logger
}

func NewRunner(executor StepExecutor, stdout io.Writer, dryRun bool, logger *slog.Logger) *Runner {
	return &Runner{
		Executor: executor,
		Stdout:   stdout,
		DryRun:   dryRun,
		logger:   logger,
	}
}

// Run executes every job in plan order. Jobs after a failed job are not started.
func (r *Runner) Run(ctx context.Context, plan *model.Plan) error {
	if plan == nil {
		return fmt.Errorf("plan cannot be nil")
	}

	for _, job := range plan.Jobs {
		if err := r.RunJob(ctx, job); err != nil {
			return err
		}
	}

	return nil
}

// RunJob executes the steps of one job, stopping at the first failure.
func (r *Runner) RunJob(ctx context.Context, job model.PlanJob) error {
	if r.Executor == nil && !r.DryRun {
		return fmt.Errorf("no step executor configured")
	}

	log, out := r.logger, r.Stdout
	if log == nil {
		log = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}

	fmt.Fprintf(out, "→ Job %s (%s)\n", job.ID, job.Branch)
	log.Info("job started",
		slog.String("job", job.ID),
		slog.Int("steps", len(job.Steps)),
	)

	for _, step := range job.Steps {
		if err := ctx.Err(); err != nil {
			return &StepError{JobID: job.ID, Step: step.Name, Err: err}
		}

		fmt.Fprintf(out, "  - Step %s\n", step.Name)
		if r.DryRun {
			fmt.Fprintf(out, "    %s\n", step.Run)
			continue
		}

		if err := r.Executor.Execute(ctx, job, step); err != nil {
			log.Error("step failed",
				slog.String("job", job.ID),
				slog.String("step", step.Name),
				slog.Any("error", err),
			)
			return &StepError{JobID: job.ID, Step: step.Name, Err: err}
		}
	}

	log.Info("job finished", slog.String("job", job.ID))
	return nil
}

// ShellExecutor runs step argv directly with os/exec.
type ShellExecutor struct {
	WorkDir string
	Stdout  io.Writer
	Stderr  io.Writer
}

func NewShellExecutor(workDir string, stdout, stderr io.Writer) *ShellExecutor {
	return &ShellExecutor{
		WorkDir: workDir,
		Stdout:  stdout,
		Stderr:  stderr,
	}
}

func (s *ShellExecutor) Execute(ctx context.Context, job model.PlanJob, step model.PlanStep) error {
	if len(step.Args) == 0 {
		if step.Run == "" {
			return errors.New("step has no command")
		}
		return s.command(ctx, "sh", "-c", step.Run).Run()
	}
	return s.command(ctx, step.Args[0], step.Args[1:]...).Run()
}

func (s *ShellExecutor) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = ResolveWorkingDir(s.WorkDir, "")
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	return cmd
}

// ResolveWorkingDir joins a job-relative path onto the base working directory
func ResolveWorkingDir(workDir, path string) string {
	if workDir == "" {
		workDir = "."
	}
	if path == "" || path == "./" || path == "." {
		return workDir
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}
