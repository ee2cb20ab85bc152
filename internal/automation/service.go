package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stretchops/studio-automation/internal/bookings"
	"github.com/stretchops/studio-automation/internal/clubready/extract"
	"github.com/stretchops/studio-automation/internal/clubready/fanout"
	"github.com/stretchops/studio-automation/internal/clubready/notes"
	"github.com/stretchops/studio-automation/internal/clubready/portal"
	"github.com/stretchops/studio-automation/internal/observability/metrics"
	"github.com/stretchops/studio-automation/internal/vault"
	"github.com/stretchops/studio-automation/pkg/logging"
)

// CredentialSource loads the stored portal credential pair for an account.
type CredentialSource interface {
	Credentials(ctx context.Context, accountID uuid.UUID) (*bookings.Credential, error)
}

// BookingWriter persists extraction results and note-filing state.
type BookingWriter interface {
	UpsertDay(ctx context.Context, accountID uuid.UUID, day time.Time, records []extract.BookingRecord) (int, error)
	MarkAnnotated(ctx context.Context, accountID uuid.UUID, clientName, eventDate string, day time.Time) error
}

// LocationCache caches the enumerated location list per portal username.
// Writes are best effort; a cold or unreachable cache never fails a job.
type LocationCache interface {
	Put(ctx context.Context, portalUsername string, locations []string) error
}

// Processor is the job execution surface the worker drives.
type Processor interface {
	SyncBookings(ctx context.Context, req SyncRequest) (*SyncResult, error)
	SubmitNotes(ctx context.Context, req NoteRequest) (*notes.SubmissionResult, error)
	LogOff(ctx context.Context, req NoteRequest) (*notes.SubmissionResult, error)
}

// Service orchestrates a full portal run: credential reveal, login, then
// extraction or note submission, with results persisted.
type Service struct {
	creds       CredentialSource
	store       BookingWriter
	browser     portal.Browser
	driver      *portal.Driver
	extractor   *extract.Extractor
	submitter   *notes.Submitter
	locations   LocationCache
	concurrency int
	metrics     *metrics.AutomationMetrics
	logger      *logging.Logger
	now         func() time.Time
}

var _ Processor = (*Service)(nil)

// ServiceConfig wires a Service. Locations is optional; everything else is
// required.
type ServiceConfig struct {
	Credentials CredentialSource
	Store       BookingWriter
	Browser     portal.Browser
	Driver      *portal.Driver
	Extractor   *extract.Extractor
	Submitter   *notes.Submitter
	Locations   LocationCache
	Concurrency int
	Metrics     *metrics.AutomationMetrics
	Logger      *logging.Logger
}

// NewService validates the wiring and builds a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Credentials == nil {
		panic("automation: credential source required")
	}
	if cfg.Store == nil {
		panic("automation: booking store required")
	}
	if cfg.Browser == nil {
		panic("automation: browser required")
	}
	if cfg.Driver == nil {
		panic("automation: portal driver required")
	}
	if cfg.Extractor == nil {
		panic("automation: extractor required")
	}
	if cfg.Submitter == nil {
		panic("automation: submitter required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		creds:       cfg.Credentials,
		store:       cfg.Store,
		browser:     cfg.Browser,
		driver:      cfg.Driver,
		extractor:   cfg.Extractor,
		submitter:   cfg.Submitter,
		locations:   cfg.Locations,
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// SyncBookings logs in for the account and extracts today's bookings,
// fanning out across locations when the portal enumerates more than one.
// Extracted records are upserted before the result is returned, so a
// partial fan-out still persists what succeeded.
func (s *Service) SyncBookings(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	creds, err := s.portalCredentials(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("automation: open page: %w", err)
	}

	login, err := s.driver.Login(ctx, page, creds)
	if err != nil {
		page.Close(ctx)
		return nil, err
	}

	s.cacheLocations(ctx, creds.Username, login.Locations)

	result := &SyncResult{Status: true}
	if login.MultiLocation() {
		// Every store needs its own scoped session; the page that did
		// the enumeration is no longer useful.
		page.Close(ctx)

		runner := fanout.NewPortalRunner(s.browser, s.driver, s.extractor, creds)
		scheduler := fanout.NewScheduler(runner, s.logger).WithConcurrency(s.concurrency)
		if s.metrics != nil {
			scheduler = scheduler.WithObserver(s.metrics)
		}
		batch, err := scheduler.Extract(ctx, login.Locations)
		if err != nil {
			return nil, err
		}
		result.Status = batch.Status
		result.Bookings = batch.Bookings
		result.FailedLocations = batch.FailedLocations
	} else {
		defer page.Close(ctx)

		location := ""
		if len(login.Locations) > 0 {
			location = login.Locations[0]
		}
		if login.Outcome == portal.OutcomeStoreSelect && location != "" {
			if err := s.driver.SelectStoreLocation(ctx, page, location); err != nil {
				return nil, err
			}
		}
		if err := s.driver.OpenSchedule(ctx, page); err != nil {
			return nil, err
		}
		records, err := s.extractor.TodayBookings(ctx, page, location)
		if err != nil {
			return nil, err
		}
		result.Bookings = records
	}

	stored, err := s.store.UpsertDay(ctx, req.AccountID, s.now(), result.Bookings)
	if err != nil {
		return nil, err
	}
	result.Stored = stored

	s.logger.Info("bookings synced",
		"account_id", req.AccountID,
		"extracted", len(result.Bookings),
		"stored", stored,
		"failed_locations", len(result.FailedLocations))
	return result, nil
}

// SubmitNotes files notes against the booking whose period label matches
// exactly, carrying the submission forward to an adjacent same-client slot
// when one exists.
func (s *Service) SubmitNotes(ctx context.Context, req NoteRequest) (*notes.SubmissionResult, error) {
	return s.annotate(ctx, req, func(page portal.Page, nr notes.Request) (*notes.SubmissionResult, error) {
		return s.submitter.SubmitNotes(ctx, page, nr)
	})
}

// LogOff logs the booking's session off with the default note and no
// carry-forward.
func (s *Service) LogOff(ctx context.Context, req NoteRequest) (*notes.SubmissionResult, error) {
	return s.annotate(ctx, req, func(page portal.Page, nr notes.Request) (*notes.SubmissionResult, error) {
		return s.submitter.LogOff(ctx, page, nr)
	})
}

func (s *Service) annotate(ctx context.Context, req NoteRequest, run func(portal.Page, notes.Request) (*notes.SubmissionResult, error)) (*notes.SubmissionResult, error) {
	creds, err := s.portalCredentials(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("automation: open page: %w", err)
	}
	defer page.Close(ctx)

	if req.Location != "" {
		// LoginToLocation scopes the session and lands on the schedule.
		if err := s.driver.LoginToLocation(ctx, page, creds, req.Location); err != nil {
			return nil, err
		}
	} else {
		login, err := s.driver.Login(ctx, page, creds)
		if err != nil {
			return nil, err
		}
		if login.MultiLocation() {
			return nil, fmt.Errorf("automation: account spans %d locations; request must name one", len(login.Locations))
		}
		if err := s.driver.OpenSchedule(ctx, page); err != nil {
			return nil, err
		}
	}

	result, err := run(page, notes.Request{
		Period:     req.Period,
		ClientName: req.ClientName,
		Notes:      req.Notes,
		Location:   req.Location,
	})
	if err != nil {
		return nil, err
	}

	s.markAnnotated(ctx, req.AccountID, req.ClientName, req.Period)
	if result.SameClientPeriod != nil {
		s.markAnnotated(ctx, req.AccountID, req.ClientName, *result.SameClientPeriod)
	}
	return result, nil
}

func (s *Service) portalCredentials(ctx context.Context, accountID uuid.UUID) (portal.Credentials, error) {
	cred, err := s.creds.Credentials(ctx, accountID)
	if err != nil {
		return portal.Credentials{}, err
	}
	password, err := vault.Reveal(cred.PortalUsername, cred.PasswordToken)
	if err != nil {
		return portal.Credentials{}, fmt.Errorf("automation: reveal credential for %s: %w", accountID, err)
	}
	return portal.Credentials{
		Username: cred.PortalUsername,
		Password: password,
	}, nil
}

func (s *Service) cacheLocations(ctx context.Context, portalUsername string, locations []string) {
	if s.locations == nil || len(locations) == 0 {
		return
	}
	if err := s.locations.Put(ctx, portalUsername, locations); err != nil {
		s.logger.Warn("location cache write failed", "error", err)
	}
}

func (s *Service) markAnnotated(ctx context.Context, accountID uuid.UUID, clientName, period string) {
	// Extraction persists client names lowercased; requests carry them as
	// the portal renders them.
	clientName = strings.ToLower(strings.TrimSpace(clientName))
	err := s.store.MarkAnnotated(ctx, accountID, clientName, period, s.now())
	if err == nil {
		return
	}
	if errors.Is(err, bookings.ErrNotFound) {
		// Extraction may not have run today; the portal-side note still
		// landed, so this is not a job failure.
		s.logger.Warn("annotated booking not in store", "client", clientName, "period", period)
		return
	}
	s.logger.Error("failed to record annotation", "error", err, "client", clientName)
}
