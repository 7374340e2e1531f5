package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/queue"
	"github.com/sourceplane/litejob/internal/runner"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume dispatched build requests from RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd.Context())
	},
}

func registerWorkerCommand(root *cobra.Command) {
	root.AddCommand(workerCmd)
}

func runWorker(ctx context.Context) error {
	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	executor, closer, err := newExecutor()
	if err != nil {
		return err
	}
	defer closer.Close()

	client, err := newRabbitClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	r := runner.NewRunner(executor, os.Stdout, cfg.Executor.DryRun, appLogger)
	handler := func(ctx context.Context, req model.BuildRequest) error {
		return r.RunJob(ctx, req.Job)
	}

	appLogger.Info("Worker started",
		slog.String("queue", cfg.RabbitMQ.Queue.Name),
		slog.String("executor", cfg.Executor.Mode),
		slog.Bool("dry_run", cfg.Executor.DryRun),
	)

	consumer := queue.NewConsumer(client, cfg.RabbitMQ.Consumer.Tag, handler, appLogger)
	if err := consumer.Run(ctx); err != nil {
		return err
	}

	appLogger.Info("Worker stopped")
	return nil
}
