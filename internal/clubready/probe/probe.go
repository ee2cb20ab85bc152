// Package probe validates portal credentials with a plain HTTP form login,
// without paying for a browser session. The settings flow uses it to verify
// a credential pair before storing it.
package probe

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/stretchops/studio-automation/internal/clubready/portal"
	"github.com/stretchops/studio-automation/pkg/logging"
)

// Outcome classifies a probe result by the same URL markers the browser
// driver uses.
type Outcome string

const (
	OutcomeValid         Outcome = "valid"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeChain         Outcome = "chain"
	OutcomeIndeterminate Outcome = "indeterminate"
)

// Result carries the classification and the URL the login landed on.
type Result struct {
	Outcome  Outcome
	FinalURL string
}

// Valid reports whether the credential pair authenticated, regardless of
// which post-login surface the portal chose.
func (r *Result) Valid() bool {
	return r.Outcome == OutcomeValid || r.Outcome == OutcomeChain
}

// Prober performs form logins against the portal.
type Prober struct {
	baseURL   string
	loginPath string
	retryMax  int
	logger    *logging.Logger
}

// Config configures a Prober. BaseURL is required.
type Config struct {
	BaseURL   string
	LoginPath string
	RetryMax  int
	Logger    *logging.Logger
}

// New builds a Prober.
func New(cfg Config) *Prober {
	if cfg.BaseURL == "" {
		panic("probe: base URL required")
	}
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/scheduling/login"
	}
	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Prober{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		loginPath: loginPath,
		retryMax:  retryMax,
		logger:    logger,
	}
}

// Check posts the credentials and classifies the land-on URL. Transient
// HTTP failures are retried by the client; a still-failing request returns
// an error, not OutcomeInvalid.
func (p *Prober) Check(ctx context.Context, creds portal.Credentials) (*Result, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("probe: create cookie jar: %w", err)
	}

	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = p.retryMax
	client.HTTPClient.Jar = jar

	form := url.Values{}
	form.Set("uid", creds.Username)
	form.Set("pw", creds.Password)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+p.loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("probe: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe: login request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	finalURL := resp.Request.URL.String()
	result := &Result{Outcome: classify(finalURL), FinalURL: finalURL}
	p.logger.Debug("credential probe finished",
		"username", creds.Username, "outcome", result.Outcome)
	return result, nil
}

func classify(finalURL string) Outcome {
	switch {
	case strings.Contains(finalURL, portal.MarkerInvalidLogin):
		return OutcomeInvalid
	case strings.Contains(finalURL, portal.MarkerDashboard):
		return OutcomeValid
	case strings.Contains(finalURL, portal.MarkerChainPicker):
		return OutcomeChain
	default:
		// Store-select interstitials carry no URL marker; the probe
		// cannot tell them apart from drift without a DOM.
		return OutcomeIndeterminate
	}
}
