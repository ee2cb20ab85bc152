// Package diagnostics uploads forensic screenshots captured on fatal
// automation failures to S3 and hands back a public URL for the raised
// error. Browser-driven flows are brittle against portal UI drift; every
// unexpected state must leave evidence behind.
package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/stretchops/studio-automation/internal/observability/metrics"
	"github.com/stretchops/studio-automation/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store writes screenshots to S3. If bucket is empty the store is disabled
// and uploads report an error the caller degrades on.
type Store struct {
	bucket   string
	urlBase  string
	s3Client S3API
	metrics  *metrics.AutomationMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("diagnostics: screenshot store not configured")

// NewStore creates a screenshot Store. urlBase is the public prefix under
// which uploaded keys are reachable (e.g. a CloudFront distribution); when
// empty, an S3 website-style URL is derived from the bucket.
func NewStore(s3Client S3API, bucket, urlBase string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		bucket:   bucket,
		urlBase:  strings.TrimRight(urlBase, "/"),
		s3Client: s3Client,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMetrics installs the metrics collector; captures are counted on
// successful upload only.
func (s *Store) WithMetrics(m *metrics.AutomationMetrics) *Store {
	s.metrics = m
	return s
}

// Enabled reports whether uploads are configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// Upload stores the PNG under a date-partitioned key and returns its public
// URL. Callers treat any error as "no evidence available" and proceed with
// the original failure.
func (s *Store) Upload(ctx context.Context, png []byte, name, contentType string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	if len(png) == 0 {
		return "", errors.New("diagnostics: empty screenshot")
	}
	if contentType == "" {
		contentType = "image/png"
	}

	now := s.now().UTC()
	key := fmt.Sprintf("screenshots/%d/%02d/%02d/%d-%s",
		now.Year(), now.Month(), now.Day(), now.UnixMilli(), sanitizeName(name))

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(png),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("diagnostics: s3 put %s: %w", key, err)
	}

	s.metrics.ObserveScreenshot()
	url := s.publicURL(key)
	s.logger.Info("diagnostic screenshot uploaded", "key", key, "url", url, "bytes", len(png))
	return url, nil
}

func (s *Store) publicURL(key string) string {
	if s.urlBase != "" {
		return s.urlBase + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "screenshot.png"
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	return name
}
