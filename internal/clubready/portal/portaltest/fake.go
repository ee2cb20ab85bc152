// Package portaltest provides scripted fakes for the portal page-object
// interfaces, used by driver, extractor, fan-out and note-submission tests.
package portaltest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchops/studio-automation/internal/clubready/portal"
)

// ErrTimeout is returned for selectors scripted as missing.
var ErrTimeout = errors.New("portaltest: wait timed out")

// FakePage is a scriptable portal.Page. Zero value is usable; populate the
// maps to script responses. All recorded state is safe for concurrent use.
type FakePage struct {
	mu sync.Mutex

	URLValue   string
	Texts      map[string]string
	HTMLs      map[string]string
	FrameHTMLs map[string]string // key: frameSelector + "|" + selector
	Counts     map[string]int
	Existing   map[string]bool
	Missing    map[string]bool // WaitVisible/WaitHidden fail for these
	PNG        []byte

	NavigateErr   error
	ScreenshotErr error

	// OnClick, when set, is consulted before recording the click.
	OnClick func(selector string) error

	NavigatedTo []string
	Clicked     []string
	Filled      map[string]string
	Selected    map[string]string
	CloseCount  int
}

var _ portal.Page = (*FakePage)(nil)

func (p *FakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.NavigatedTo = append(p.NavigatedTo, url)
	return nil
}

func (p *FakePage) WaitSettled(context.Context) error { return nil }

func (p *FakePage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Missing[selector] {
		return fmt.Errorf("%w: %s", ErrTimeout, selector)
	}
	return nil
}

func (p *FakePage) WaitHidden(_ context.Context, selector string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Missing[selector] {
		return fmt.Errorf("%w: %s", ErrTimeout, selector)
	}
	return nil
}

func (p *FakePage) Click(_ context.Context, selector string) error {
	if p.OnClick != nil {
		if err := p.OnClick(selector); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Clicked = append(p.Clicked, selector)
	return nil
}

func (p *FakePage) Fill(_ context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Filled == nil {
		p.Filled = map[string]string{}
	}
	p.Filled[selector] = value
	return nil
}

func (p *FakePage) SelectOption(_ context.Context, selector, optionText string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Selected == nil {
		p.Selected = map[string]string{}
	}
	p.Selected[selector] = optionText
	return nil
}

func (p *FakePage) Text(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	text, ok := p.Texts[selector]
	if !ok {
		return "", fmt.Errorf("portaltest: no text scripted for %q", selector)
	}
	return text, nil
}

func (p *FakePage) HTML(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	html, ok := p.HTMLs[selector]
	if !ok {
		return "", fmt.Errorf("portaltest: no html scripted for %q", selector)
	}
	return html, nil
}

func (p *FakePage) FrameHTML(_ context.Context, frameSelector, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	html, ok := p.FrameHTMLs[frameSelector+"|"+selector]
	if !ok {
		return "", fmt.Errorf("portaltest: no frame html scripted for %q in %q", selector, frameSelector)
	}
	return html, nil
}

func (p *FakePage) Count(_ context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Counts[selector], nil
}

func (p *FakePage) Exists(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Existing[selector], nil
}

func (p *FakePage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URLValue, nil
}

func (p *FakePage) Screenshot(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	if p.PNG != nil {
		return p.PNG, nil
	}
	return []byte("png"), nil
}

func (p *FakePage) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCount++
	return nil
}

// FakeBrowser hands out pages from a factory and records how many contexts
// were opened, for leak assertions.
type FakeBrowser struct {
	mu      sync.Mutex
	Factory func() portal.Page
	Opened  []portal.Page
	NewErr  error
	Closed  bool
}

var _ portal.Browser = (*FakeBrowser)(nil)

func (b *FakeBrowser) NewPage(context.Context) (portal.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.NewErr != nil {
		return nil, b.NewErr
	}
	var page portal.Page
	if b.Factory != nil {
		page = b.Factory()
	} else {
		page = &FakePage{}
	}
	b.Opened = append(b.Opened, page)
	return page, nil
}

func (b *FakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}

// UploadedShot records one diagnostic upload.
type UploadedShot struct {
	Name        string
	ContentType string
	Size        int
}

// FakeScreenshotSink records uploads; set Err to simulate an unreachable
// diagnostic store.
type FakeScreenshotSink struct {
	mu      sync.Mutex
	Err     error
	BaseURL string
	Uploads []UploadedShot
}

var _ portal.ScreenshotSink = (*FakeScreenshotSink)(nil)

func (s *FakeScreenshotSink) Upload(_ context.Context, png []byte, name, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.Uploads = append(s.Uploads, UploadedShot{Name: name, ContentType: contentType, Size: len(png)})
	base := s.BaseURL
	if base == "" {
		base = "https://diagnostics.test"
	}
	return base + "/" + name, nil
}
