// Package mainconfig centralizes the wiring both binaries share: AWS SDK
// setup and the portal automation service graph.
package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/stretchops/studio-automation/internal/config"

	"github.com/stretchops/studio-automation/internal/aiextract"
	"github.com/stretchops/studio-automation/internal/automation"
	"github.com/stretchops/studio-automation/internal/bookings"
	"github.com/stretchops/studio-automation/internal/clubready/chromium"
	"github.com/stretchops/studio-automation/internal/clubready/extract"
	"github.com/stretchops/studio-automation/internal/clubready/locations"
	"github.com/stretchops/studio-automation/internal/clubready/notes"
	"github.com/stretchops/studio-automation/internal/clubready/portal"
	"github.com/stretchops/studio-automation/internal/diagnostics"
	"github.com/stretchops/studio-automation/internal/observability/metrics"
	"github.com/stretchops/studio-automation/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share
// the same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				switch service {
				case sqs.ServiceID, s3.ServiceID:
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				default:
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
			},
		)
	}

	return awsCfg, nil
}

// BuildProcessor wires the full portal automation graph: Chrome, the portal
// driver, extraction, note submission, the diagnostic screenshot store and
// the optional Redis location cache.
func BuildProcessor(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, pool *pgxpool.Pool, autoMetrics *metrics.AutomationMetrics, logger *logging.Logger) (*automation.Service, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var shots portal.ScreenshotSink
	if cfg.ScreenshotBucket != "" {
		shots = diagnostics.NewStore(s3.NewFromConfig(awsCfg), cfg.ScreenshotBucket, cfg.ScreenshotURLBase, logger).
			WithMetrics(autoMetrics)
	}

	browser, err := chromium.NewBrowser(ctx, chromium.Config{
		Headless: cfg.HeadlessChrome,
		ExecPath: cfg.ChromeExecPath,
		Logger:   logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("mainconfig: launch browser: %w", err)
	}
	cleanups = append(cleanups, func() { _ = browser.Close() })

	driver := portal.NewDriver(portal.DriverConfig{
		BaseURL:     cfg.PortalBaseURL,
		LoginPath:   cfg.PortalLoginPath,
		ElementWait: cfg.ElementWaitTimeout,
		ModalWait:   cfg.ModalWaitTimeout,
		Screenshots: shots,
		Logger:      logger,
	})

	var locationCache automation.LocationCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
		locationCache = locations.NewCache(redisClient, cfg.LocationCacheTTL, logger)
	}

	extractor := extract.New(driver, logger)
	if cfg.GeminiAPIKey != "" {
		aiClient, err := aiextract.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("mainconfig: gemini client: %w", err)
		}
		cleanups = append(cleanups, func() { _ = aiClient.Close() })
		extractor = extractor.WithFallback(aiClient)
	}

	repo := bookings.NewRepository(pool)
	service := automation.NewService(automation.ServiceConfig{
		Credentials: repo,
		Store:       repo,
		Browser:     browser,
		Driver:      driver,
		Extractor:   extractor,
		Submitter:   notes.NewSubmitter(driver, logger),
		Locations:   locationCache,
		Concurrency: cfg.FanOutConcurrency,
		Metrics:     autoMetrics,
		Logger:      logger,
	})

	return service, cleanup, nil
}
