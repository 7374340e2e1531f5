package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/sourceplane/litejob/internal/config"
	"github.com/sourceplane/litejob/internal/logger"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

var (
	configDir    string
	configFile   string
	envFile      string
	logLevel     string
	logFormat    string
	outputFile   string
	outputFormat string
	debugMode    bool
	longFormat   bool
	viewPlan     string
)

// Populated by the root command before any subcommand runs
var (
	cfg          *config.Config
	appLogger    = logger.Discard()
	logCloser    io.Closer
	envVariables map[string]string
)

var rootCmd = &cobra.Command{
	Use:          "litejob",
	Short:        "Path-filtered container build-and-push jobs",
	Long:         "litejob decides which container build jobs a git push fires, resolves their image tags, and plans, runs or dispatches the builds",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "", "Directory of JobDefinition files (use * or ** for recursive scanning)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "litejob config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with extra variables (default: .env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console/json)")

	registerValidateCommand(rootCmd)
	registerJobsCommand(rootCmd)
	registerMatchCommand(rootCmd)
	registerTagsCommand(rootCmd)
	registerPlanCommand(rootCmd)
	registerRunCommand(rootCmd)
	registerServeCommand(rootCmd)
	registerWorkerCommand(rootCmd)
}

func initApp(cmd *cobra.Command) error {
	if err := loadEnvFile(cmd.Flags().Changed("env-file")); err != nil {
		return err
	}

	loaded, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	if configDir != "" {
		cfg.Jobs.Dir = configDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger, logCloser = log, closer

	appLogger.Debug("configuration loaded",
		slog.String("config", configFile),
		slog.String("jobs_dir", cfg.Jobs.Dir),
		slog.Int("env_variables", len(envVariables)),
	)
	return nil
}

// loadEnvFile exports the dotenv file into the process environment and keeps
// its entries as extra tag variables. A missing default .env is not an error.
func loadEnvFile(explicit bool) error {
	path := envFile
	if path == "" {
		path = defaultEnvFile
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	envVariables = vars
	return nil
}
