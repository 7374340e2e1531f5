package main

import (
	"fmt"
	"os"

	"github.com/sourceplane/litejob/internal/loader"
	"github.com/sourceplane/litejob/internal/runner"
	"github.com/sourceplane/litejob/internal/schema"
	"github.com/spf13/cobra"
)

var (
	runPlanFile string
	runExecute  bool
	runWorkDir  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a compiled plan",
	Long:  "Build and push the images of a generated plan file. Dry-run unless --execute is given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(cmd)
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runPlanFile, "plan", "p", "plan.json", "Path to plan file (json or yaml)")
	runCmd.Flags().BoolVarP(&runExecute, "execute", "x", false, "Actually execute commands (default is dry-run)")
	runCmd.Flags().StringVar(&runWorkDir, "workdir", "", "Working directory for build contexts (default: executor.workdir)")
}

func runPlan(cmd *cobra.Command) error {
	data, err := os.ReadFile(runPlanFile)
	if err != nil {
		return fmt.Errorf("failed to read plan file %s: %w", runPlanFile, err)
	}
	validator, err := schema.NewValidator()
	if err != nil {
		return err
	}
	if err := validator.ValidatePlan(data); err != nil {
		return fmt.Errorf("plan failed schema validation: %w", err)
	}

	plan, err := loader.LoadPlan(runPlanFile)
	if err != nil {
		return err
	}
	if len(plan.Jobs) == 0 {
		fmt.Println("✓ Plan contains no jobs, nothing to run")
		return nil
	}

	if runWorkDir != "" {
		cfg.Executor.WorkDir = runWorkDir
	}

	dryRun := !runExecute || cfg.Executor.DryRun
	if dryRun {
		fmt.Println("□ Dry-run mode enabled. Use --execute to run commands.")
	}

	var executor runner.StepExecutor
	if !dryRun {
		stepExecutor, closer, err := newExecutor()
		if err != nil {
			return err
		}
		defer closer.Close()
		executor = stepExecutor
	}

	r := runner.NewRunner(executor, os.Stdout, dryRun, appLogger)
	if err := r.Run(cmd.Context(), plan); err != nil {
		return err
	}

	if dryRun {
		fmt.Println("✓ Dry-run complete")
	} else {
		fmt.Println("✓ Run complete")
	}

	return nil
}
