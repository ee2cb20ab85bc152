// Package chromium implements the portal page-object interfaces on top of a
// headless Chrome instance driven through chromedp. Business logic never
// imports chromedp directly; everything goes through portal.Browser and
// portal.Page so tests can script fakes.
package chromium

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/stretchops/studio-automation/internal/clubready/portal"
	"github.com/stretchops/studio-automation/pkg/logging"
)

// Config controls how the Chrome process is launched.
type Config struct {
	Headless bool
	// ExecPath overrides the resolved Chrome binary; empty uses chromedp's
	// default lookup.
	ExecPath string
	// SettleDelay is the quiet period WaitSettled allows for late XHR
	// re-renders after document ready.
	SettleDelay time.Duration
	Logger      *logging.Logger
}

// Browser owns one Chrome process; each NewPage opens an isolated tab.
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	settleDelay time.Duration
	logger      *logging.Logger
}

var _ portal.Browser = (*Browser)(nil)

// NewBrowser launches the Chrome allocator. The process itself starts
// lazily with the first page.
func NewBrowser(ctx context.Context, cfg Config) (*Browser, error) {
	opts := append([]chromedp.ExecAllocatorOption{},
		chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1440, 1080),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Browser{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		settleDelay: settle,
		logger:      logger,
	}, nil
}

// NewPage opens a fresh tab with its own cookie-free context.
func (b *Browser) NewPage(ctx context.Context) (portal.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.allocCtx)

	// Force the tab (and on first call, the browser process) to start now
	// so failures surface here instead of on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("chromium: start tab: %w", err)
	}

	select {
	case <-ctx.Done():
		tabCancel()
		return nil, ctx.Err()
	default:
	}

	return &page{
		ctx:         tabCtx,
		cancel:      tabCancel,
		settleDelay: b.settleDelay,
	}, nil
}

// Close shuts the Chrome process down.
func (b *Browser) Close() error {
	b.allocCancel()
	return nil
}

type page struct {
	ctx         context.Context
	cancel      context.CancelFunc
	settleDelay time.Duration
}

var _ portal.Page = (*page)(nil)

func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel := context.WithDeadline(p.ctx, deadline)
		defer cancel()
		return chromedp.Run(runCtx, actions...)
	}
	return chromedp.Run(p.ctx, actions...)
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("chromium: navigate %s: %w", url, err)
	}
	return nil
}

// WaitSettled waits for document ready and then a quiet period, covering
// the portal's habit of re-rendering lists from late XHR responses.
func (p *page) WaitSettled(ctx context.Context) error {
	var ready bool
	err := p.run(ctx,
		chromedp.Poll(`document.readyState === "complete"`, &ready,
			chromedp.WithPollingTimeout(30*time.Second)),
		chromedp.Sleep(p.settleDelay),
	)
	if err != nil {
		return fmt.Errorf("chromium: wait settled: %w", err)
	}
	return nil
}

func (p *page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("chromium: wait visible %q: %w", selector, err)
	}
	return p.honorCaller(ctx)
}

func (p *page) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitNotVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("chromium: wait hidden %q: %w", selector, err)
	}
	return p.honorCaller(ctx)
}

func (p *page) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("chromium: click %q: %w", selector, err)
	}
	return nil
}

func (p *page) Fill(ctx context.Context, selector, value string) error {
	err := p.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("chromium: fill %q: %w", selector, err)
	}
	return nil
}

// SelectOption picks a <select> option by its visible text, which is how
// the portal labels stores, and fires the change event the page listens on.
func (p *page) SelectOption(ctx context.Context, selector, optionText string) error {
	script := fmt.Sprintf(`(() => {
		const sel = document.querySelector(%q);
		if (!sel) return false;
		for (const opt of sel.options) {
			if (opt.text.trim() === %q) {
				sel.value = opt.value;
				sel.dispatchEvent(new Event("change", { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, selector, optionText)

	var picked bool
	if err := p.run(ctx, chromedp.Evaluate(script, &picked)); err != nil {
		return fmt.Errorf("chromium: select option %q in %q: %w", optionText, selector, err)
	}
	if !picked {
		return fmt.Errorf("chromium: option %q not found in %q", optionText, selector)
	}
	return nil
}

func (p *page) Text(ctx context.Context, selector string) (string, error) {
	var out string
	if err := p.run(ctx, chromedp.Text(selector, &out, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromium: read text %q: %w", selector, err)
	}
	return out, nil
}

func (p *page) HTML(ctx context.Context, selector string) (string, error) {
	var out string
	if err := p.run(ctx, chromedp.OuterHTML(selector, &out, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromium: read html %q: %w", selector, err)
	}
	return out, nil
}

// FrameHTML reads markup from inside a same-origin iframe, which is where
// the portal renders group rosters.
func (p *page) FrameHTML(ctx context.Context, frameSelector, selector string) (string, error) {
	var frames []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(frameSelector, &frames, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromium: locate frame %q: %w", frameSelector, err)
	}
	if len(frames) == 0 {
		return "", fmt.Errorf("chromium: frame %q not present", frameSelector)
	}

	var out string
	err := p.run(ctx, chromedp.OuterHTML(selector, &out, chromedp.ByQuery, chromedp.FromNode(frames[0])))
	if err != nil {
		return "", fmt.Errorf("chromium: read frame html %q in %q: %w", selector, frameSelector, err)
	}
	return out, nil
}

func (p *page) Count(ctx context.Context, selector string) (int, error) {
	var count int
	script := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := p.run(ctx, chromedp.Evaluate(script, &count)); err != nil {
		return 0, fmt.Errorf("chromium: count %q: %w", selector, err)
	}
	return count, nil
}

func (p *page) Exists(ctx context.Context, selector string) (bool, error) {
	var exists bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := p.run(ctx, chromedp.Evaluate(script, &exists)); err != nil {
		return false, fmt.Errorf("chromium: probe %q: %w", selector, err)
	}
	return exists, nil
}

func (p *page) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("chromium: read location: %w", err)
	}
	return url, nil
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("chromium: capture screenshot: %w", err)
	}
	return buf, nil
}

func (p *page) Close(context.Context) error {
	p.cancel()
	return nil
}

// honorCaller surfaces caller-side cancellation after a wait that ran on
// the tab context.
func (p *page) honorCaller(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
