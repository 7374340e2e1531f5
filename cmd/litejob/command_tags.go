package main

import (
	"fmt"

	"github.com/sourceplane/litejob/internal/planner"
	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags <job-name>",
	Short: "Resolve a job's image tags for a push",
	Long:  "Resolve the tag templates of one job for the given execution number, branch and variables. The trigger is not evaluated.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveTags(cmd, args[0])
	},
}

func registerTagsCommand(root *cobra.Command) {
	root.AddCommand(tagsCmd)
	addEventFlags(tagsCmd)
}

func resolveTags(cmd *cobra.Command, name string) error {
	if eventFile == "" && len(changedFiles) == 0 {
		// Tags do not depend on changed paths; skip the git diff
		changedFiles = []string{}
	}

	event, err := loadEvent(cmd.Context())
	if err != nil {
		return err
	}
	if event.ExecutionNumber <= 0 {
		return fmt.Errorf("an execution number is required (--number or executionNumber in the event)")
	}

	jobs, err := loadJobs()
	if err != nil {
		return err
	}
	job, err := findJob(jobs, name)
	if err != nil {
		return err
	}

	jp, err := planner.NewJobPlanner(jobs,
		planner.WithVariables(envVariables),
		planner.WithVariables(cfg.Jobs.Variables),
	)
	if err != nil {
		return err
	}

	planJob, err := jp.PlanJob(job, *event)
	if err != nil {
		return err
	}

	for i, image := range planJob.Images {
		fmt.Printf("%-24s %s\n", planJob.Tags[i], image)
	}
	return nil
}
