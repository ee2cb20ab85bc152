package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	WorkerCount        int
	UseMemoryQueue     bool
	CORSAllowedOrigins []string

	// Portal automation
	PortalBaseURL        string
	PortalLoginPath      string
	HeadlessChrome       bool
	ChromeExecPath       string
	FanOutConcurrency    int
	ElementWaitTimeout   time.Duration
	ModalWaitTimeout     time.Duration
	SubmissionJobTimeout time.Duration

	// AWS / job queue / diagnostics
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	AutomationQueueURL  string
	ScreenshotBucket    string
	ScreenshotURLBase   string

	// Redis location cache
	RedisAddr        string
	RedisPassword    string
	LocationCacheTTL time.Duration

	// AI extraction collaborator
	GeminiAPIKey  string
	GeminiModelID string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 2),
		UseMemoryQueue:     getEnvAsBool("USE_MEMORY_QUEUE", false),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),

		PortalBaseURL:        getEnv("PORTAL_BASE_URL", "https://www.clubready.com"),
		PortalLoginPath:      getEnv("PORTAL_LOGIN_PATH", "/scheduling/login"),
		HeadlessChrome:       getEnvAsBool("HEADLESS_CHROME", true),
		ChromeExecPath:       getEnv("CHROME_EXEC_PATH", ""),
		FanOutConcurrency:    getEnvAsInt("FANOUT_CONCURRENCY", 3),
		ElementWaitTimeout:   getEnvAsDuration("ELEMENT_WAIT_TIMEOUT", 10*time.Second),
		ModalWaitTimeout:     getEnvAsDuration("MODAL_WAIT_TIMEOUT", 40*time.Second),
		SubmissionJobTimeout: getEnvAsDuration("SUBMISSION_JOB_TIMEOUT", 10*time.Minute),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		AutomationQueueURL:  getEnv("AUTOMATION_QUEUE_URL", ""),
		ScreenshotBucket:    getEnv("SCREENSHOT_BUCKET", ""),
		ScreenshotURLBase:   getEnv("SCREENSHOT_URL_BASE", ""),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		LocationCacheTTL: getEnvAsDuration("LOCATION_CACHE_TTL", 6*time.Hour),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated environment variable, dropping
// empty entries
func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
