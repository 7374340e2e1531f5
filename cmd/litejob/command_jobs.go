package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:     "jobs [job-name]",
	Aliases: []string{"job"},
	Short:   "List job definitions",
	Long:    "List all job definitions. Use 'litejob jobs <name>' for details.",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listJobs(args)
	},
}

func registerJobsCommand(root *cobra.Command) {
	root.AddCommand(jobsCmd)

	jobsCmd.Flags().BoolVarP(&longFormat, "long", "l", false, "Show detailed information")
}

func listJobs(args []string) error {
	jobs, err := loadJobs()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		job, err := findJob(jobs, args[0])
		if err != nil {
			return err
		}
		PrintLongFormat(ExtractJobInfo(job))
		return nil
	}

	fmt.Println("Available Jobs:")
	for _, job := range jobs {
		info := ExtractJobInfo(job)
		if longFormat {
			PrintLongFormat(info)
		} else {
			PrintShortFormat(info)
		}
	}

	if !longFormat {
		fmt.Println("\nRun 'litejob jobs <name>' for detailed information")
	}
	return nil
}
