package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sourceplane/litejob/internal/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestPlanValidateAndDryRun(t *testing.T) {
	planPath := filepath.Join(t.TempDir(), "plan.json")

	require.NoError(t, execute(t,
		"plan",
		"-c", "../../examples/jobs",
		"--event", "../../examples/events/push-main.json",
		"-o", planPath,
		"--log-level", "error",
	))

	plan, err := loader.LoadPlan(planPath)
	require.NoError(t, err)
	require.Len(t, plan.Jobs, 2)

	assert.Equal(t, "identity-server-rs@42", plan.Jobs[0].ID)
	assert.Equal(t, []string{"version-0.42", "main"}, plan.Jobs[0].Tags)
	assert.Equal(t, "oracle-import@42", plan.Jobs[1].ID)
	assert.Equal(t, []string{"main-9f1c2b3", "latest"}, plan.Jobs[1].Tags)
	assert.Equal(t, "9f1c2b3", plan.Jobs[1].Build.Args["REVISION"])

	require.NoError(t, execute(t, "validate", "-c", "../../examples/jobs", "--plan", planPath))
	require.NoError(t, execute(t, "run", "-p", planPath))
}

func TestPlanReadmeOnlyPushFiresNothing(t *testing.T) {
	planPath := filepath.Join(t.TempDir(), "plan.yaml")

	require.NoError(t, execute(t,
		"plan",
		"-c", "../../examples/jobs",
		"--event", "../../examples/events/push-readme.yaml",
		"--number", "7",
		"-o", planPath,
	))

	plan, err := loader.LoadPlan(planPath)
	require.NoError(t, err)
	assert.Empty(t, plan.Jobs)
	assert.Len(t, plan.Spec.Skipped, 2)
}

func TestLoadEnvFile(t *testing.T) {
	t.Cleanup(func() {
		envFile = ""
		envVariables = nil
	})

	path := filepath.Join(t.TempDir(), "vars.env")
	require.NoError(t, os.WriteFile(path, []byte("LITEJOB_TEST_TEAM=backend\n"), 0644))
	t.Setenv("LITEJOB_TEST_TEAM", "")
	os.Unsetenv("LITEJOB_TEST_TEAM")

	envFile = path
	require.NoError(t, loadEnvFile(true))
	assert.Equal(t, "backend", envVariables["LITEJOB_TEST_TEAM"])
	assert.Equal(t, "backend", os.Getenv("LITEJOB_TEST_TEAM"))

	envFile = filepath.Join(t.TempDir(), "missing.env")
	assert.Error(t, loadEnvFile(true))

	envFile = ""
	assert.NoError(t, loadEnvFile(false), "a missing default .env is ignored")
}
