package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stretchops/studio-automation/cmd/mainconfig"
	"github.com/stretchops/studio-automation/internal/automation"
	appconfig "github.com/stretchops/studio-automation/internal/config"
	"github.com/stretchops/studio-automation/internal/observability/metrics"
	"github.com/stretchops/studio-automation/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting automation worker",
		"env", cfg.Env,
		"workers", cfg.WorkerCount,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	autoMetrics := metrics.NewAutomationMetrics(prometheus.DefaultRegisterer)

	processor, cleanup, err := mainconfig.BuildProcessor(ctx, cfg, awsCfg, pool, autoMetrics, logger)
	if err != nil {
		logger.Error("failed to build automation service", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	queue := automation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.AutomationQueueURL)
	jobStore := automation.NewJobStore(pool)

	worker := automation.NewWorker(processor, queue, jobStore, logger,
		automation.WithWorkerCount(cfg.WorkerCount),
		automation.WithJobTimeout(cfg.SubmissionJobTimeout),
		automation.WithMetrics(autoMetrics),
	)
	worker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	cancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("worker stopped")
	case <-time.After(30 * time.Second):
		logger.Warn("worker shutdown timed out")
	}
}
