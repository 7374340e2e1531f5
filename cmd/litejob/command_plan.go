package main

import (
	"fmt"
	"strings"

	"github.com/sourceplane/litejob/internal/render"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate an execution plan for a push",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generatePlan(cmd)
	},
}

func registerPlanCommand(root *cobra.Command) {
	root.AddCommand(planCmd)

	addEventFlags(planCmd)
	planCmd.Flags().StringVarP(&outputFile, "output", "o", "plan.json", "Output plan file path (.json or .yaml)")
	planCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Print the plan to stdout instead (json/yaml)")
	planCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug output")
	planCmd.Flags().StringVarP(&viewPlan, "view", "v", "", "View plan (tree/images/job=NAME)")
}

func generatePlan(cmd *cobra.Command) error {
	ctx := cmd.Context()

	fmt.Println("□ Loading job definitions...")
	jp, closer, err := newPlanner(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	fmt.Println("□ Reading push event...")
	event, err := loadEvent(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("□ Evaluating %d jobs against %s (%d changed paths)...\n",
		len(jp.Jobs()), event.BranchName(), len(event.ChangedPaths))
	plan, err := jp.Plan(ctx, *event)
	if err != nil {
		return fmt.Errorf("failed to plan: %w", err)
	}

	renderer := render.NewRenderer()
	if debugMode {
		fmt.Println("\n" + renderer.DebugDump(plan))
	}

	if outputFormat != "" {
		data, err := renderer.Render(plan, outputFormat)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		if err := renderer.WritePlan(plan, outputFile); err != nil {
			return fmt.Errorf("failed to write plan: %w", err)
		}
		fmt.Printf("✓ Plan generated with %d jobs (%d skipped)\n", len(plan.Jobs), len(plan.Spec.Skipped))
		fmt.Printf("✓ Saved to: %s\n", outputFile)
	}

	if viewPlan != "" {
		viewer := render.NewPlanViewer(plan)
		var output string

		switch {
		case viewPlan == "images":
			output = viewer.ViewImages()
		case strings.HasPrefix(viewPlan, "job="):
			output = viewer.ViewJob(strings.TrimPrefix(viewPlan, "job="))
		default:
			output = viewer.ViewTree()
		}

		fmt.Println("\n" + output)
	}

	return nil
}
