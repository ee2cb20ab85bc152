package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchops/studio-automation/internal/clubready/extract"
	"github.com/stretchops/studio-automation/internal/clubready/portal"
	"github.com/stretchops/studio-automation/internal/clubready/portal/portaltest"
)

// scriptedRunner fails the scripted locations on every attempt and succeeds
// elsewhere, recording per-location attempt counts.
type scriptedRunner struct {
	mu       sync.Mutex
	failing  map[string]bool
	attempts map[string]int
	inFlight int
	maxSeen  int
	err      error
}

func newScriptedRunner(failing ...string) *scriptedRunner {
	f := map[string]bool{}
	for _, loc := range failing {
		f[loc] = true
	}
	return &scriptedRunner{failing: f, attempts: map[string]int{}, err: errors.New("portal flaked")}
}

func (r *scriptedRunner) RunLocation(_ context.Context, location string) ([]extract.BookingRecord, error) {
	r.mu.Lock()
	r.attempts[location]++
	r.inFlight++
	if r.inFlight > r.maxSeen {
		r.maxSeen = r.inFlight
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if r.failing[location] {
		return nil, fmt.Errorf("%s: %w", location, r.err)
	}
	return []extract.BookingRecord{
		{ClientName: "client a", Location: location, EventDate: "Tue 6/3, 9:00 AM"},
		{ClientName: "client b", Location: location, EventDate: "Tue 6/3, 10:00 AM"},
	}, nil
}

type countingObserver struct {
	mu        sync.Mutex
	succeeded int
	failed    int
}

func (o *countingObserver) ObserveLocation(succeeded bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if succeeded {
		o.succeeded++
	} else {
		o.failed++
	}
}

func TestExtractObservesTerminalOutcomes(t *testing.T) {
	locations := []string{"plano", "frisco", "allen"}
	runner := newScriptedRunner("frisco")
	observer := &countingObserver{}

	result, err := NewScheduler(runner, nil).WithRetries(1).WithObserver(observer).Extract(context.Background(), locations)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.Status {
		t.Fatal("batch with a permanently failing location should not report ok")
	}

	// One count per location by final state; retry rounds are not
	// double-counted.
	if observer.succeeded != 2 {
		t.Errorf("succeeded = %d, want 2", observer.succeeded)
	}
	if observer.failed != 1 {
		t.Errorf("failed = %d, want 1", observer.failed)
	}
}

func TestExtractPartialFailure(t *testing.T) {
	locations := []string{"plano", "frisco", "allen", "mckinney", "richardson"}
	runner := newScriptedRunner("frisco", "mckinney")
	scheduler := NewScheduler(runner, nil)

	result, err := scheduler.Extract(context.Background(), locations)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if result.Status {
		t.Error("status should be false with failed locations")
	}
	if len(result.FailedLocations) != 2 {
		t.Fatalf("failed = %v, want 2 entries", result.FailedLocations)
	}
	if result.FailedLocations[0] != "frisco" || result.FailedLocations[1] != "mckinney" {
		t.Errorf("failed = %v", result.FailedLocations)
	}
	if len(result.Bookings) != 6 {
		t.Errorf("bookings = %d, want 6 from the 3 succeeding locations", len(result.Bookings))
	}

	// 1 concurrent attempt + exactly 2 sequential retry rounds.
	for _, loc := range []string{"frisco", "mckinney"} {
		if runner.attempts[loc] != 3 {
			t.Errorf("attempts[%s] = %d, want 3", loc, runner.attempts[loc])
		}
	}
	for _, loc := range []string{"plano", "allen", "richardson"} {
		if runner.attempts[loc] != 1 {
			t.Errorf("attempts[%s] = %d, want 1", loc, runner.attempts[loc])
		}
	}
}

func TestExtractAllSucceed(t *testing.T) {
	runner := newScriptedRunner()
	result, err := NewScheduler(runner, nil).Extract(context.Background(), []string{"plano", "frisco"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !result.Status {
		t.Error("status should be true")
	}
	if len(result.FailedLocations) != 0 {
		t.Errorf("failed = %v", result.FailedLocations)
	}
	if len(result.Bookings) != 4 {
		t.Errorf("bookings = %d, want 4", len(result.Bookings))
	}
}

func TestExtractBoundsConcurrency(t *testing.T) {
	runner := newScriptedRunner()
	locations := make([]string, 12)
	for i := range locations {
		locations[i] = fmt.Sprintf("loc-%d", i)
	}

	_, err := NewScheduler(runner, nil).WithConcurrency(2).Extract(context.Background(), locations)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if runner.maxSeen > 2 {
		t.Errorf("observed %d concurrent runs, semaphore bound is 2", runner.maxSeen)
	}
}

// invalidCredsRunner simulates the portal rejecting the shared credentials.
type invalidCredsRunner struct{}

func (invalidCredsRunner) RunLocation(context.Context, string) ([]extract.BookingRecord, error) {
	return nil, portal.ErrInvalidCredentials
}

func TestExtractAbortsOnInvalidCredentials(t *testing.T) {
	_, err := NewScheduler(invalidCredsRunner{}, nil).Extract(context.Background(), []string{"plano", "frisco"})
	if !errors.Is(err, portal.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestPortalRunnerClosesPageOnFailure(t *testing.T) {
	// The login form never appears, so LoginToLocation fails; the page
	// context must still be closed exactly once.
	browser := &portaltest.FakeBrowser{
		Factory: func() portal.Page {
			return &portaltest.FakePage{Missing: map[string]bool{portal.SelUsernameInput: true}}
		},
	}
	driver := portal.NewDriver(portal.DriverConfig{BaseURL: "https://portal.test"})
	runner := NewPortalRunner(browser, driver, extract.New(driver, nil), portal.Credentials{Username: "u", Password: "p"})

	_, err := runner.RunLocation(context.Background(), "plano")
	if err == nil {
		t.Fatal("expected login failure")
	}
	if len(browser.Opened) != 1 {
		t.Fatalf("opened %d pages, want 1", len(browser.Opened))
	}
	page := browser.Opened[0].(*portaltest.FakePage)
	if page.CloseCount != 1 {
		t.Errorf("page closed %d times, want exactly 1", page.CloseCount)
	}
}
