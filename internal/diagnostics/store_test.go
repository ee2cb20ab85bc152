package diagnostics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stretchops/studio-automation/internal/observability/metrics"
)

type fakeS3 struct {
	puts []s3.PutObjectInput
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, *params)
	return &s3.PutObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	client := &fakeS3{}
	store := NewStore(client, "diag-bucket", "https://evidence.example.com", nil)
	store.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }

	url, err := store.Upload(context.Background(), []byte("png-bytes"), "login unexpected", "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(url, "https://evidence.example.com/screenshots/2026/03/14/") {
		t.Errorf("url = %q", url)
	}
	if !strings.HasSuffix(url, "login-unexpected") {
		t.Errorf("url should end with sanitized name, got %q", url)
	}
	if len(client.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(client.puts))
	}
	if *client.puts[0].Bucket != "diag-bucket" {
		t.Errorf("bucket = %q", *client.puts[0].Bucket)
	}
	if *client.puts[0].ContentType != "image/png" {
		t.Errorf("content type = %q", *client.puts[0].ContentType)
	}
}

func TestUploadCountsScreenshots(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAutomationMetrics(reg)
	store := NewStore(&fakeS3{}, "diag-bucket", "", nil).WithMetrics(m)

	if _, err := store.Upload(context.Background(), []byte("x"), "shot.png", ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	// A failed upload must not count.
	if _, err := store.Upload(context.Background(), nil, "empty.png", ""); err == nil {
		t.Fatal("empty screenshot should be rejected")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "studio_automation_diagnostic_screenshots_total" {
			continue
		}
		if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
			t.Errorf("screenshots counter = %v, want 1", got)
		}
		return
	}
	t.Fatal("screenshots counter not registered")
}

func TestUploadDerivedURL(t *testing.T) {
	store := NewStore(&fakeS3{}, "diag-bucket", "", nil)
	url, err := store.Upload(context.Background(), []byte("x"), "shot.png", "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(url, "https://diag-bucket.s3.amazonaws.com/") {
		t.Errorf("url = %q", url)
	}
}

func TestUploadDisabled(t *testing.T) {
	store := NewStore(nil, "", "", nil)
	if store.Enabled() {
		t.Error("store without bucket should be disabled")
	}
	if _, err := store.Upload(context.Background(), []byte("x"), "n", ""); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestUploadS3Failure(t *testing.T) {
	store := NewStore(&fakeS3{err: errors.New("s3 down")}, "diag-bucket", "", nil)
	if _, err := store.Upload(context.Background(), []byte("x"), "n", ""); err == nil {
		t.Fatal("expected error when s3 is unreachable")
	}
}

func TestUploadEmptyPayload(t *testing.T) {
	store := NewStore(&fakeS3{}, "diag-bucket", "", nil)
	if _, err := store.Upload(context.Background(), nil, "n", ""); err == nil {
		t.Fatal("expected error for empty screenshot")
	}
}
