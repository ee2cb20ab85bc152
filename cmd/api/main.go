package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stretchops/studio-automation/cmd/mainconfig"
	"github.com/stretchops/studio-automation/internal/api/router"
	"github.com/stretchops/studio-automation/internal/automation"
	"github.com/stretchops/studio-automation/internal/bookings"
	"github.com/stretchops/studio-automation/internal/clubready/probe"
	appconfig "github.com/stretchops/studio-automation/internal/config"
	"github.com/stretchops/studio-automation/internal/http/handlers"
	"github.com/stretchops/studio-automation/internal/observability/metrics"
	"github.com/stretchops/studio-automation/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting studio-automation API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	jobStore := automation.NewJobStore(pool)
	registry := prometheus.NewRegistry()
	autoMetrics := metrics.NewAutomationMetrics(registry)

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Dev mode runs the worker in-process against a memory queue; otherwise
	// jobs go to SQS for the automation-worker binary.
	var publisher *automation.Publisher
	if cfg.UseMemoryQueue {
		memQueue := automation.NewMemoryQueue(256)
		publisher = automation.NewPublisher(memQueue, logger)

		processor, cleanupProcessor, err := mainconfig.BuildProcessor(ctx, cfg, awsCfg, pool, autoMetrics, logger)
		if err != nil {
			logger.Error("failed to build automation service", "error", err)
			os.Exit(1)
		}
		defer cleanupProcessor()

		worker := automation.NewWorker(processor, memQueue, jobStore, logger,
			automation.WithWorkerCount(cfg.WorkerCount),
			automation.WithJobTimeout(cfg.SubmissionJobTimeout),
			automation.WithMetrics(autoMetrics),
		)
		worker.Start(ctx)
		defer worker.Wait()
		logger.Info("embedded automation worker started", "workers", cfg.WorkerCount)
	} else {
		sqsQueue := automation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.AutomationQueueURL)
		publisher = automation.NewPublisher(sqsQueue, logger)
	}

	automationHandler := handlers.NewAutomationHandler(publisher, jobStore, logger)
	credentialsHandler := handlers.NewCredentialsHandler(
		bookings.NewRepository(pool),
		probe.New(probe.Config{
			BaseURL:   cfg.PortalBaseURL,
			LoginPath: cfg.PortalLoginPath,
			Logger:    logger,
		}),
		logger,
	)

	r := router.New(&router.Config{
		Logger:             logger,
		Automation:         automationHandler,
		Credentials:        credentialsHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SubmitRatePerSec:   2,
		SubmitBurst:        5,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
