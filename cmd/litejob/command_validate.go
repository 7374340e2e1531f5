package main

import (
	"fmt"
	"os"

	"github.com/sourceplane/litejob/internal/schema"
	"github.com/spf13/cobra"
)

var validatePlanFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate job definitions (and optionally a plan file)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateFiles()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validatePlanFile, "plan", "p", "", "Also validate a plan file against the plan schema")
}

func validateFiles() error {
	fmt.Printf("□ Validating job definitions in %s...\n", cfg.Jobs.Dir)
	jobs, err := loadJobs()
	if err != nil {
		return err
	}

	for _, job := range jobs {
		fmt.Printf("  ✓ %s (%s)\n", job.Name(), job.Definition.Source)
	}
	fmt.Printf("✓ %d job definitions are valid\n", len(jobs))

	if validatePlanFile == "" {
		return nil
	}

	fmt.Printf("□ Validating plan %s...\n", validatePlanFile)
	data, err := os.ReadFile(validatePlanFile)
	if err != nil {
		return fmt.Errorf("failed to read plan file: %w", err)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return err
	}
	if err := validator.ValidatePlan(data); err != nil {
		return fmt.Errorf("plan failed schema validation: %w", err)
	}

	fmt.Println("✓ Plan is valid")
	return nil
}
