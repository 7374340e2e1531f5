package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sourceplane/litejob/internal/config"
	"github.com/sourceplane/litejob/internal/queue"
	"github.com/sourceplane/litejob/internal/runner"
	"github.com/sourceplane/litejob/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the push webhook service",
	Long:  "Accept push events over HTTP, plan them and dispatch every fired job locally or to RabbitMQ.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func registerServeCommand(root *cobra.Command) {
	root.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default: server.port)")
}

func serve(ctx context.Context) error {
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if err := cfg.ValidateServeConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	jp, counterCloser, err := newPlanner(ctx)
	if err != nil {
		return err
	}
	defer counterCloser.Close()

	dispatcher, shutdownDispatch, err := newDispatcher(ctx)
	if err != nil {
		return err
	}
	defer shutdownDispatch()

	gin.SetMode(cfg.Server.Mode)
	router := server.SetupRouter(&server.Dependencies{
		Logger:     appLogger,
		Planner:    jp,
		Dispatcher: dispatcher,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server",
			slog.String("address", addr),
			slog.Int("jobs", len(jp.Jobs())),
			slog.String("dispatch", cfg.Dispatch.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// newDispatcher builds the configured dispatcher. The returned func waits for
// local jobs or closes the broker connection.
func newDispatcher(ctx context.Context) (server.Dispatcher, func(), error) {
	switch cfg.Dispatch.Mode {
	case config.DispatchRabbitMQ:
		client, err := newRabbitClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return queue.NewPublisher(client, appLogger), func() { client.Close() }, nil

	default:
		executor, closer, err := newExecutor()
		if err != nil {
			return nil, nil, err
		}
		r := runner.NewRunner(executor, os.Stdout, cfg.Executor.DryRun, appLogger)
		local := runner.NewLocalDispatcher(r, cfg.Dispatch.Concurrency, appLogger)
		return local, func() {
			appLogger.Info("Waiting for running jobs", slog.Duration("timeout", cfg.Server.ShutdownTimeout))
			waitWithTimeout(local.Wait, cfg.Server.ShutdownTimeout)
			closer.Close()
		}, nil
	}
}

func waitWithTimeout(wait func(), timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		appLogger.Warn("Jobs still running at shutdown")
	}
}

func newRabbitClient(ctx context.Context) (*queue.Client, error) {
	rc := cfg.RabbitMQ
	client, err := queue.NewClient(ctx, &queue.Config{
		Host:               rc.Host,
		Port:               rc.Port,
		User:               rc.User,
		Password:           rc.Password,
		VHost:              rc.VHost,
		ExchangeName:       rc.Exchange.Name,
		ExchangeType:       rc.Exchange.Type,
		ExchangeDurable:    rc.Exchange.Durable,
		ExchangeAutoDelete: rc.Exchange.AutoDelete,
		QueueName:          rc.Queue.Name,
		QueueDurable:       rc.Queue.Durable,
		QueueAutoDelete:    rc.Queue.AutoDelete,
		QueueExclusive:     rc.Queue.Exclusive,
		RoutingKey:         rc.RoutingKey,
		RetryAttempts:      rc.Connection.RetryAttempts,
		RetryInterval:      rc.Connection.RetryInterval,
		Heartbeat:          rc.Connection.Heartbeat,
		PublishRetries:     rc.Publish.RetryAttempts,
		PublishRetryDelay:  rc.Publish.RetryInterval,
		PublishBackoffMult: rc.Publish.BackoffMultiplier,
		PrefetchCount:      rc.Consumer.PrefetchCount,
	}, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	return client, nil
}
