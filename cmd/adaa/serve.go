package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/adaa/pkg/agent/query"
	"github.com/codeready-toolchain/adaa/pkg/api"
	"github.com/codeready-toolchain/adaa/pkg/blob"
	"github.com/codeready-toolchain/adaa/pkg/cleanup"
	"github.com/codeready-toolchain/adaa/pkg/config"
	"github.com/codeready-toolchain/adaa/pkg/database"
	"github.com/codeready-toolchain/adaa/pkg/events"
	"github.com/codeready-toolchain/adaa/pkg/llm"
	"github.com/codeready-toolchain/adaa/pkg/metrics"
	"github.com/codeready-toolchain/adaa/pkg/queue"
	"github.com/codeready-toolchain/adaa/pkg/services"
	"github.com/codeready-toolchain/adaa/pkg/slack"
	"github.com/codeready-toolchain/adaa/pkg/telemetry"
	"github.com/codeready-toolchain/adaa/pkg/version"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the analysis workers",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "HTTP listen address (overrides server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// 1. Load configuration
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	podID := resolvePodID()
	slog.Info("Starting "+version.AppName,
		"version", version.Full(),
		"pod_id", podID,
		"config_dir", cfg.ConfigDir())

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName, version.GitCommit, cfg.Telemetry.Insecure)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	// 2. Connect to the database (migrations run on connect)
	dbCfg, err := databaseConfig(cfg.Storage)
	if err != nil {
		return err
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()
	slog.Info("Connected to database", "driver", dbClient.Dialect())

	// 3. Core services
	jobService := services.NewJobService(dbClient, cfg.Storage.MaxResultBytes)
	warningsService := services.NewSystemWarningsService()
	blobs, err := blob.NewFileStore(cfg.Storage.BlobDir)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	m := metrics.MustNew(prometheus.DefaultRegisterer)

	// 4. Event delivery. Postgres fans out across processes through
	// LISTEN/NOTIFY; SQLite deployments are single-process.
	connManager := events.NewConnectionManager(cfg.Stream.SubscriberBuffer, cfg.Stream.WriteTimeout, m)
	var eventPublisher events.Publisher
	if dbClient.Dialect() == database.DialectPostgres {
		eventPublisher = events.NewPGPublisher(dbClient.DB())
		listener := events.NewNotifyListener(dbClient.ConnString(), connManager, cfg.Stream.ReconnectBackoff)
		if err := listener.Start(ctx); err != nil {
			slog.Error("Failed to start event listener", "error", err)
			warningsService.AddWarning(services.WarningCategoryEventStream,
				"Live event delivery unavailable", err.Error(), podID)
		} else {
			connManager.SetListener(listener)
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer stopCancel()
				listener.Stop(stopCtx)
			}()
			slog.Info("Event listener started")
		}
	} else {
		eventPublisher = events.NewMemoryBroker(connManager)
		slog.Info("Using in-process event broker")
	}

	// 5. Query agent
	var model query.Model
	if cfg.Query.LLM.Enabled() {
		client := llm.NewClient(cfg.Query.LLM)
		model = client
		slog.Info("Query model enabled", "model", client.Model())
	}
	queryAgent := query.New(cfg.Query, model, m)

	var slackService *slack.Service
	if cfg.Slack.Enabled {
		slackService = slack.NewService(slack.ServiceConfig{
			Token:        cfg.Slack.Token,
			Channel:      cfg.Slack.Channel,
			DashboardURL: cfg.Slack.DashboardURL,
			Metrics:      m,
		})
	}

	// 6. Recover jobs left running by a previous instance of this pod
	if err := queue.CleanupStartupOrphans(ctx, jobService, podID); err != nil {
		slog.Warn("Startup orphan cleanup failed", "error", err)
	}

	// 7. Start worker pool (before HTTP server)
	executor := queue.NewAnalysisExecutor(queue.ExecutorDeps{
		Analysis:  cfg.Analysis,
		Stream:    cfg.Stream,
		Store:     blobs,
		Publisher: eventPublisher,
		Metrics:   m,
	})
	workerPool := queue.NewWorkerPool(podID, cfg.Queue, queue.WorkerDeps{
		Store:     jobService,
		Executor:  executor,
		Publisher: eventPublisher,
		Slack:     slackService,
		Metrics:   m,
	}, warningsService)
	if err := workerPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	retention := cleanup.NewService(cfg.Retention, jobService, blobs)
	retention.Start(ctx)
	defer retention.Stop()

	// 8. Create HTTP server
	httpServer := api.NewServer(cfg, dbClient, jobService, workerPool, connManager, blobs)
	httpServer.SetQueryAgent(queryAgent)
	httpServer.SetWarningsService(warningsService)
	httpServer.SetEventPublisher(eventPublisher)
	httpServer.SetMetrics(m, prometheus.DefaultGatherer)

	// 9. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := httpServer.Start(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info(version.AppName+" started successfully",
		"pod_id", podID,
		"workers", cfg.Queue.WorkerCount)

	// 10. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var serveErr error
	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case serveErr = <-errCh:
		slog.Error("Server error triggered shutdown", "error", serveErr)
	}

	// 11. Graceful shutdown
	workerShutdownCtx, workerCancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer workerCancel()

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-workerShutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, unfinished analyses will be orphan-recovered")
	}

	httpShutdownCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
	return serveErr
}

// databaseConfig selects the SQL backend from the storage section.
// Postgres connection details always come from the environment.
func databaseConfig(storage *config.StorageConfig) (database.Config, error) {
	if storage.Driver == config.DriverSQLite {
		return database.Config{
			Driver:     string(database.DialectSQLite),
			SQLitePath: storage.SQLitePath,
		}, nil
	}
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return database.Config{}, fmt.Errorf("failed to load database config: %w", err)
	}
	return dbCfg, nil
}
