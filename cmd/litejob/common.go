package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sourceplane/litejob/internal/config"
	"github.com/sourceplane/litejob/internal/counter"
	"github.com/sourceplane/litejob/internal/engine"
	"github.com/sourceplane/litejob/internal/git"
	"github.com/sourceplane/litejob/internal/loader"
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/normalize"
	"github.com/sourceplane/litejob/internal/planner"
	"github.com/sourceplane/litejob/internal/runner"
	"github.com/sourceplane/litejob/internal/schema"
	"github.com/spf13/cobra"
)

// Event flags shared by match, tags and plan
var (
	eventFile       string
	branchName      string
	commitSHA       string
	changedFiles    []string
	baseBranch      string
	headRef         string
	executionNumber int64
	extraVariables  map[string]string
)

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&eventFile, "event", "e", "", "Push event file (JSON or YAML); overrides the flags below")
	cmd.Flags().StringVar(&branchName, "branch", "", "Pushed branch (default: current git branch)")
	cmd.Flags().StringVar(&commitSHA, "commit", "", "Pushed commit (default: git rev-parse of --head)")
	cmd.Flags().StringSliceVar(&changedFiles, "files", nil, "Comma-separated changed files (overrides git diff calculation)")
	cmd.Flags().StringVar(&baseBranch, "base", "main", "Base branch for change detection")
	cmd.Flags().StringVar(&headRef, "head", "", "Head ref for change detection (default: HEAD)")
	cmd.Flags().Int64VarP(&executionNumber, "number", "n", 0, "Execution number (0 allocates one from the counter)")
	cmd.Flags().StringToStringVar(&extraVariables, "var", nil, "Extra template variables (KEY=VALUE)")
}

// loadEvent reads --event, or assembles an event from flags and the local git checkout
func loadEvent(ctx context.Context) (*model.PushEvent, error) {
	if eventFile != "" {
		event, err := loader.LoadEvent(eventFile)
		if err != nil {
			return nil, err
		}
		if executionNumber > 0 {
			event.ExecutionNumber = executionNumber
		}
		return event, nil
	}

	detector := git.NewChangeDetector("", baseBranch, headRef)
	event := &model.PushEvent{
		Branch:          branchName,
		Commit:          commitSHA,
		ChangedPaths:    changedFiles,
		ExecutionNumber: executionNumber,
		Variables:       extraVariables,
	}

	if event.Branch == "" {
		branch, err := detector.CurrentBranch(ctx)
		if err != nil {
			return nil, fmt.Errorf("no --branch given: %w", err)
		}
		event.Branch = branch
	}

	if event.Commit == "" {
		if commit, err := detector.HeadCommit(ctx); err == nil {
			event.Commit = commit
		}
	}

	if event.ChangedPaths == nil {
		files, err := detector.ChangedFiles(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to detect changed files: %w", err)
		}
		event.ChangedPaths = files
	}

	return event, nil
}

// loadJobs loads, validates and normalizes every job definition in the jobs dir
func loadJobs() ([]*model.NormalizedJob, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}

	defs, err := loader.LoadDefinitionsFromDir(cfg.Jobs.Dir, validator)
	if err != nil {
		return nil, fmt.Errorf("failed to load job definitions: %w", err)
	}

	jobs, err := normalize.NormalizeAll(defs)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize job definitions: %w", err)
	}
	return jobs, nil
}

// newPlanner loads the jobs and wires the configured counter and variables.
// The returned closer releases the counter store.
func newPlanner(ctx context.Context) (*planner.JobPlanner, io.Closer, error) {
	jobs, err := loadJobs()
	if err != nil {
		return nil, nil, err
	}

	store, closer, err := openCounter(ctx)
	if err != nil {
		return nil, nil, err
	}

	jp, err := planner.NewJobPlanner(jobs,
		planner.WithCounter(store),
		planner.WithVariables(envVariables),
		planner.WithVariables(cfg.Jobs.Variables),
	)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return jp, closer, nil
}

func openCounter(ctx context.Context) (counter.Store, io.Closer, error) {
	switch cfg.Counter.Backend {
	case config.CounterPostgres:
		store, err := counter.ConnectPostgres(ctx, &counter.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, appLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize counter database: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store, nil
	default:
		return counter.NewMemory(), nopCloser{}, nil
	}
}

// newExecutor builds the configured step executor
func newExecutor() (runner.StepExecutor, io.Closer, error) {
	switch cfg.Executor.Mode {
	case config.ExecutorEngine:
		executor, err := engine.NewFromEnv(cfg.Executor.WorkDir, os.Stdout, appLogger)
		if err != nil {
			return nil, nil, err
		}
		return executor, executor, nil
	default:
		return runner.NewShellExecutor(cfg.Executor.WorkDir, os.Stdout, os.Stderr), nopCloser{}, nil
	}
}

func findJob(jobs []*model.NormalizedJob, name string) (*model.NormalizedJob, error) {
	for _, job := range jobs {
		if job.Name() == name {
			return job, nil
		}
	}
	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name())
	}
	sort.Strings(names)
	return nil, fmt.Errorf("%w: %s (available: %v)", planner.ErrJobNotFound, name, names)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
