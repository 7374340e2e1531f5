package main

import (
	"fmt"

	"github.com/sourceplane/litejob/internal/planner"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match <job-name>",
	Short: "Explain whether a push fires a job",
	Long:  "Evaluate one job's branch and path filters against a push event and show the decision for every changed path.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return matchJob(cmd, args[0])
	},
}

func registerMatchCommand(root *cobra.Command) {
	root.AddCommand(matchCmd)
	addEventFlags(matchCmd)
}

func matchJob(cmd *cobra.Command, name string) error {
	jobs, err := loadJobs()
	if err != nil {
		return err
	}
	job, err := findJob(jobs, name)
	if err != nil {
		return err
	}

	event, err := loadEvent(cmd.Context())
	if err != nil {
		return err
	}

	jp, err := planner.NewJobPlanner(jobs)
	if err != nil {
		return err
	}
	result, err := jp.Evaluate(job.Name(), *event)
	if err != nil {
		return err
	}

	fmt.Printf("Job %s on branch %s (%d changed paths)\n", job.Name(), event.BranchName(), len(event.ChangedPaths))
	for _, d := range result.Decisions {
		switch {
		case d.Excluded:
			fmt.Printf("  - %s (excluded by %s)\n", d.Path, d.Pattern)
		case d.Matched:
			fmt.Printf("  + %s (%s)\n", d.Path, d.Pattern)
		default:
			fmt.Printf("    %s\n", d.Path)
		}
	}

	if result.Fired {
		fmt.Printf("✓ %s fires (%d matching paths)\n", job.Name(), len(result.MatchedPaths))
	} else {
		fmt.Printf("✗ %s does not fire: %s\n", job.Name(), result.Reason)
	}
	return nil
}
