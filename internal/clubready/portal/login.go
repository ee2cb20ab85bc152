package portal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/stretchops/studio-automation/pkg/logging"
)

// Credentials is a revealed (plaintext) portal credential pair.
type Credentials struct {
	Username string
	Password string
}

// Outcome classifies what the portal showed after a successful login.
type Outcome string

const (
	// OutcomeSingleLocation means the session landed directly on the
	// dashboard; exactly one location is implied by the account.
	OutcomeSingleLocation Outcome = "single_location"
	// OutcomeChainPicker means the account spans a chain and one club had
	// to be selected before locations became enumerable.
	OutcomeChainPicker Outcome = "chain_picker"
	// OutcomeStoreSelect means the portal presented a store dropdown; each
	// option needs its own login-and-select cycle to obtain a scoped
	// session.
	OutcomeStoreSelect Outcome = "store_select"
)

// LoginResult is the terminal state of a login attempt.
type LoginResult struct {
	Outcome   Outcome
	Locations []string
}

// MultiLocation reports whether per-location fan-out is required.
func (r *LoginResult) MultiLocation() bool {
	return r.Outcome == OutcomeStoreSelect && len(r.Locations) > 1
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	BaseURL     string
	LoginPath   string
	ElementWait time.Duration // spinners, inputs
	ModalWait   time.Duration // slow panels and modals
	Screenshots ScreenshotSink
	Logger      *logging.Logger
}

// Driver runs the portal's login state machine and the shared navigation
// primitives on top of a Page.
type Driver struct {
	baseURL     string
	loginPath   string
	elementWait time.Duration
	modalWait   time.Duration
	shots       ScreenshotSink
	logger      *logging.Logger
}

// NewDriver creates a Driver. Screenshots may be nil; failures then carry no
// screenshot URL but still fail with full context.
func NewDriver(cfg DriverConfig) *Driver {
	d := &Driver{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		loginPath:   cfg.LoginPath,
		elementWait: cfg.ElementWait,
		modalWait:   cfg.ModalWait,
		shots:       cfg.Screenshots,
		logger:      cfg.Logger,
	}
	if d.baseURL == "" {
		d.baseURL = "https://www.clubready.com"
	}
	if d.loginPath == "" {
		d.loginPath = "/scheduling/login"
	}
	if d.elementWait <= 0 {
		d.elementWait = 10 * time.Second
	}
	if d.modalWait <= 0 {
		d.modalWait = 40 * time.Second
	}
	if d.logger == nil {
		d.logger = logging.Default()
	}
	return d
}

// LoginURL is the absolute URL of the portal login form.
func (d *Driver) LoginURL() string { return d.baseURL + d.loginPath }

// ScheduleURL is the absolute URL of the day-view schedule.
func (d *Driver) ScheduleURL() string { return d.baseURL + SchedulePath }

// Login submits the login form and resolves the post-navigation state
// machine. Invalid credentials and unrecognized states are terminal; the
// caller decides retry policy for everything else.
func (d *Driver) Login(ctx context.Context, page Page, creds Credentials) (*LoginResult, error) {
	if err := page.Navigate(ctx, d.LoginURL()); err != nil {
		return nil, fmt.Errorf("portal: open login page: %w", err)
	}
	if err := page.WaitVisible(ctx, SelUsernameInput, d.elementWait); err != nil {
		return nil, d.elementErr(ctx, page, SelUsernameInput, "", err)
	}
	if err := page.Fill(ctx, SelUsernameInput, creds.Username); err != nil {
		return nil, fmt.Errorf("portal: fill username: %w", err)
	}
	if err := page.Fill(ctx, SelPasswordInput, creds.Password); err != nil {
		return nil, fmt.Errorf("portal: fill password: %w", err)
	}
	if err := page.Click(ctx, SelLoginSubmit); err != nil {
		return nil, fmt.Errorf("portal: submit login: %w", err)
	}
	if err := page.WaitSettled(ctx); err != nil {
		return nil, fmt.Errorf("portal: wait post-login navigation: %w", err)
	}

	url, err := page.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("portal: read post-login url: %w", err)
	}

	switch {
	case strings.Contains(url, MarkerInvalidLogin):
		return nil, ErrInvalidCredentials

	case strings.Contains(url, MarkerDashboard):
		d.logger.Debug("login resolved", "outcome", OutcomeSingleLocation, "username", creds.Username)
		return &LoginResult{Outcome: OutcomeSingleLocation}, nil

	case strings.Contains(url, MarkerChainPicker):
		locations, err := d.resolveChainPicker(ctx, page)
		if err != nil {
			return nil, err
		}
		d.logger.Debug("login resolved", "outcome", OutcomeChainPicker, "locations", len(locations))
		return &LoginResult{Outcome: OutcomeChainPicker, Locations: locations}, nil
	}

	// Some multi-store accounts land on an interstitial store dropdown
	// whose URL carries no stable marker; detect it by DOM shape.
	if ok, exErr := page.Exists(ctx, SelStoreSelect); exErr == nil && ok {
		locations, err := d.storeSelectLocations(ctx, page)
		if err != nil {
			return nil, err
		}
		d.logger.Debug("login resolved", "outcome", OutcomeStoreSelect, "locations", len(locations))
		return &LoginResult{Outcome: OutcomeStoreSelect, Locations: locations}, nil
	}

	shot := d.CaptureScreenshot(ctx, page, "login-unexpected-state")
	return nil, &UnexpectedStateError{URL: url, Detail: "post-login url matched no known outcome", ScreenshotURL: shot}
}

// LoginToLocation performs a full login and, for store-select accounts,
// scopes the session to the named location. For single-location accounts the
// location argument is ignored.
func (d *Driver) LoginToLocation(ctx context.Context, page Page, creds Credentials, location string) error {
	result, err := d.Login(ctx, page, creds)
	if err != nil {
		return err
	}
	if result.Outcome == OutcomeStoreSelect && location != "" {
		if err := d.SelectStoreLocation(ctx, page, location); err != nil {
			return err
		}
	}
	return d.OpenSchedule(ctx, page)
}

// SelectStoreLocation picks the named option from the store dropdown and
// waits for the portal to rebind the session to that store.
func (d *Driver) SelectStoreLocation(ctx context.Context, page Page, location string) error {
	if err := page.WaitVisible(ctx, SelStoreSelect, d.elementWait); err != nil {
		return d.elementErr(ctx, page, SelStoreSelect, location, err)
	}
	if err := page.SelectOption(ctx, SelStoreSelect, location); err != nil {
		return fmt.Errorf("portal: select store %q: %w", location, err)
	}
	if err := page.WaitSettled(ctx); err != nil {
		return fmt.Errorf("portal: wait store switch for %q: %w", location, err)
	}
	return nil
}

// OpenSchedule navigates to the day-view schedule and waits for the data
// spinner to clear.
func (d *Driver) OpenSchedule(ctx context.Context, page Page) error {
	if err := page.Navigate(ctx, d.ScheduleURL()); err != nil {
		return fmt.Errorf("portal: open schedule: %w", err)
	}
	if err := page.WaitHidden(ctx, SelLoadingSpinner, d.modalWait); err != nil {
		return d.elementErr(ctx, page, SelLoadingSpinner, "", err)
	}
	return nil
}

// ElementWait is the bounded wait used for inputs and card elements.
func (d *Driver) ElementWait() time.Duration { return d.elementWait }

// ModalWait is the bounded wait used for slow panels and modals.
func (d *Driver) ModalWait() time.Duration { return d.modalWait }

// CaptureScreenshot captures and uploads a diagnostic screenshot, returning
// its URL. Degrades to "" when capture or the diagnostic store fails; a
// broken evidence path must never mask the original failure.
func (d *Driver) CaptureScreenshot(ctx context.Context, page Page, name string) string {
	if d.shots == nil {
		return ""
	}
	png, err := page.Screenshot(ctx)
	if err != nil || len(png) == 0 {
		d.logger.Warn("screenshot capture failed", "name", name, "error", err)
		return ""
	}
	url, err := d.shots.Upload(ctx, png, name+".png", "image/png")
	if err != nil {
		d.logger.Warn("screenshot upload failed", "name", name, "error", err)
		return ""
	}
	return url
}

func (d *Driver) elementErr(ctx context.Context, page Page, selector, location string, err error) error {
	shot := d.CaptureScreenshot(ctx, page, "element-missing")
	return &ElementError{Selector: selector, Location: location, ScreenshotURL: shot, Err: err}
}

// resolveChainPicker selects the first club in the chain list, then
// enumerates the human-readable location names that become visible.
func (d *Driver) resolveChainPicker(ctx context.Context, page Page) ([]string, error) {
	if err := page.WaitVisible(ctx, SelChainClubLink, d.elementWait); err != nil {
		return nil, d.elementErr(ctx, page, SelChainClubLink, "", err)
	}
	if err := page.Click(ctx, SelChainClubLink); err != nil {
		return nil, fmt.Errorf("portal: select chain club: %w", err)
	}
	if err := page.WaitSettled(ctx); err != nil {
		return nil, fmt.Errorf("portal: wait chain club load: %w", err)
	}
	if err := page.WaitVisible(ctx, SelChainLocationsBox, d.elementWait); err != nil {
		return nil, d.elementErr(ctx, page, SelChainLocationsBox, "", err)
	}
	html, err := page.HTML(ctx, SelChainLocationsBox)
	if err != nil {
		return nil, fmt.Errorf("portal: read chain locations: %w", err)
	}
	names, err := elementTexts(html, SelChainLocationName)
	if err != nil {
		return nil, fmt.Errorf("portal: parse chain locations: %w", err)
	}
	return names, nil
}

// storeSelectLocations enumerates the option texts of the store dropdown,
// skipping the placeholder option.
func (d *Driver) storeSelectLocations(ctx context.Context, page Page) ([]string, error) {
	html, err := page.HTML(ctx, SelStoreSelect)
	if err != nil {
		return nil, fmt.Errorf("portal: read store dropdown: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("portal: parse store dropdown: %w", err)
	}
	var locations []string
	doc.Find("option").Each(func(_ int, opt *goquery.Selection) {
		if val, _ := opt.Attr("value"); val == "" {
			return // placeholder
		}
		if text := strings.TrimSpace(opt.Text()); text != "" {
			locations = append(locations, text)
		}
	})
	return locations, nil
}

func elementTexts(html, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var texts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			texts = append(texts, t)
		}
	})
	return texts, nil
}
