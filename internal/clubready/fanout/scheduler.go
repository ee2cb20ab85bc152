// Package fanout extracts bookings across many portal locations
// concurrently. Each location gets its own isolated browser context and its
// own login; one location's failure never aborts its siblings — partial
// success with visibility into what failed is the explicit policy here.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/stretchops/studio-automation/internal/clubready/extract"
	"github.com/stretchops/studio-automation/internal/clubready/portal"
	"github.com/stretchops/studio-automation/pkg/logging"
)

const (
	defaultConcurrency = 3
	defaultRetries     = 2
)

// LocationRunner performs the full login-select-extract cycle for one
// location. Every call must use an entirely fresh browser context: corrupted
// session state is a likely failure cause, so retries never reuse sessions.
type LocationRunner interface {
	RunLocation(ctx context.Context, location string) ([]extract.BookingRecord, error)
}

// Result aggregates a fan-out batch. Status is true only when every
// location produced records.
type Result struct {
	Status          bool
	Bookings        []extract.BookingRecord
	FailedLocations []string
}

// LocationObserver records the terminal outcome of one location's
// extraction. Retry rounds are not observed individually; a location counts
// once, by its final state.
type LocationObserver interface {
	ObserveLocation(succeeded bool)
}

// Scheduler bounds concurrent location extraction with a counting semaphore
// and retries failed locations sequentially with fresh sessions.
type Scheduler struct {
	runner      LocationRunner
	concurrency int
	retries     int
	observer    LocationObserver
	logger      *logging.Logger
}

// NewScheduler creates a Scheduler with default concurrency (3) and retry
// budget (2 additional attempts per failed location).
func NewScheduler(runner LocationRunner, logger *logging.Logger) *Scheduler {
	if runner == nil {
		panic("fanout: location runner required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		runner:      runner,
		concurrency: defaultConcurrency,
		retries:     defaultRetries,
		logger:      logger,
	}
}

// WithConcurrency overrides the semaphore size.
func (s *Scheduler) WithConcurrency(n int) *Scheduler {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// WithObserver installs an outcome observer, typically the metrics
// collector.
func (s *Scheduler) WithObserver(observer LocationObserver) *Scheduler {
	s.observer = observer
	return s
}

// WithRetries overrides the number of additional attempts per failed
// location.
func (s *Scheduler) WithRetries(n int) *Scheduler {
	if n >= 0 {
		s.retries = n
	}
	return s
}

// Extract fans out across the given locations. Invalid portal credentials
// abort the whole batch immediately: they will not get better with retries
// and they affect every location equally.
func (s *Scheduler) Extract(ctx context.Context, locations []string) (*Result, error) {
	type outcome struct {
		location string
		records  []extract.BookingRecord
		err      error
	}

	sem := make(chan struct{}, s.concurrency)
	outcomes := make(chan outcome, len(locations))
	var wg sync.WaitGroup

	for _, location := range locations {
		wg.Add(1)
		go func(location string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes <- outcome{location: location, err: ctx.Err()}
				return
			}
			records, err := s.runner.RunLocation(ctx, location)
			outcomes <- outcome{location: location, records: records, err: err}
		}(location)
	}
	wg.Wait()
	close(outcomes)

	result := &Result{}
	var failed []string
	for out := range outcomes {
		if out.err != nil {
			if errors.Is(out.err, portal.ErrInvalidCredentials) {
				return nil, out.err
			}
			s.logger.Warn("location extraction failed", "location", out.location, "error", out.err)
			failed = append(failed, out.location)
			continue
		}
		result.Bookings = append(result.Bookings, out.records...)
	}

	// Retry rounds run sequentially: the point is a clean, uncontended
	// fresh session per attempt, not throughput.
	for round := 1; round <= s.retries && len(failed) > 0; round++ {
		var stillFailed []string
		for _, location := range failed {
			records, err := s.runner.RunLocation(ctx, location)
			if err != nil {
				if errors.Is(err, portal.ErrInvalidCredentials) {
					return nil, err
				}
				s.logger.Warn("location retry failed", "location", location, "round", round, "error", err)
				stillFailed = append(stillFailed, location)
				continue
			}
			s.logger.Info("location recovered on retry", "location", location, "round", round)
			result.Bookings = append(result.Bookings, records...)
		}
		failed = stillFailed
	}

	sort.Strings(failed)
	result.FailedLocations = failed
	result.Status = len(failed) == 0

	if s.observer != nil {
		for i := 0; i < len(locations)-len(failed); i++ {
			s.observer.ObserveLocation(true)
		}
		for range failed {
			s.observer.ObserveLocation(false)
		}
	}
	return result, nil
}

// PortalRunner is the production LocationRunner: fresh page context, full
// login replay, store selection, extraction. The page is closed exactly once
// on every exit path; leaked contexts exhaust the browser's session pool.
type PortalRunner struct {
	browser   portal.Browser
	driver    *portal.Driver
	extractor *extract.Extractor
	creds     portal.Credentials
}

// NewPortalRunner wires a runner over a shared browser. The browser itself
// is shared; the per-location page contexts are not.
func NewPortalRunner(browser portal.Browser, driver *portal.Driver, extractor *extract.Extractor, creds portal.Credentials) *PortalRunner {
	if browser == nil || driver == nil || extractor == nil {
		panic("fanout: browser, driver and extractor required")
	}
	return &PortalRunner{browser: browser, driver: driver, extractor: extractor, creds: creds}
}

var _ LocationRunner = (*PortalRunner)(nil)

func (r *PortalRunner) RunLocation(ctx context.Context, location string) ([]extract.BookingRecord, error) {
	page, err := r.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fanout: open page for %q: %w", location, err)
	}
	defer page.Close(ctx)

	if err := r.driver.LoginToLocation(ctx, page, r.creds, location); err != nil {
		return nil, err
	}
	return r.extractor.TodayBookings(ctx, page, location)
}
