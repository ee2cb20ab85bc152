// Package portal drives authenticated sessions against the ClubReady
// scheduling site. ClubReady has no public API; every interaction goes
// through a headless-browser page modeled here as a small page-object
// interface so that portal redesigns stay localized to the selector table
// and the business logic stays testable against fakes.
package portal

import (
	"context"
	"fmt"
	"time"
)

// Browser owns a pool of isolated page contexts. Each page has its own
// cookies and session state; multi-location fan-out relies on that isolation.
type Browser interface {
	// NewPage opens a fresh, unauthenticated page context.
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one browser tab/context. Navigation-style calls block until the
// page's network activity has settled; bounded waits are explicit.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitSettled blocks until in-flight network activity quiesces, e.g.
	// after a click that triggers a form POST.
	WaitSettled(ctx context.Context) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	// SelectOption picks a <select> option by its visible text.
	SelectOption(ctx context.Context, selector, optionText string) error
	Text(ctx context.Context, selector string) (string, error)
	// HTML returns the outer HTML of the first element matching selector.
	HTML(ctx context.Context, selector string) (string, error)
	// FrameHTML returns the outer HTML of selector inside the iframe
	// located by frameSelector.
	FrameHTML(ctx context.Context, frameSelector, selector string) (string, error)
	Count(ctx context.Context, selector string) (int, error)
	Exists(ctx context.Context, selector string) (bool, error)
	URL(ctx context.Context) (string, error)
	// Screenshot captures the full page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}

// ScreenshotSink receives diagnostic screenshots from fatal automation
// failures and returns a public URL, or an error when the store is
// unreachable (callers degrade gracefully, they never fail on upload).
type ScreenshotSink interface {
	Upload(ctx context.Context, png []byte, name, contentType string) (string, error)
}

// Nth narrows a selector to the i-th (zero-based) matching sibling. It uses
// :nth-of-type, which counts same-tag siblings under one parent, not the
// i-th match document-wide; the card selectors all target such sibling runs.
func Nth(selector string, i int) string {
	return fmt.Sprintf("%s:nth-of-type(%d)", selector, i+1)
}
