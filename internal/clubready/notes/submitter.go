// Package notes re-locates a booking on the live schedule by its period
// label and drives the portal's note-submission and log-off flows. The
// rendered detail panel comes in several legacy shapes; all entry points
// share one locate-and-branch primitive so the shapes cannot silently
// diverge between flows.
package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/stretchops/studio-automation/internal/clubready/portal"
	"github.com/stretchops/studio-automation/pkg/logging"
)

// DefaultLogOffNote is filed when a session is logged off without free-text
// notes.
const DefaultLogOffNote = "Client showed up"

// SubmissionResult reports the outcome of a note submission or log-off.
// SameClientPeriod is non-nil when the adjacent calendar slot belonged to
// the same client and received the same treatment; the caller must mark
// both slots as annotated.
type SubmissionResult struct {
	Status           bool    `json:"status"`
	SameClientPeriod *string `json:"same_client_period"`
	Message          string  `json:"message"`
	Unpaid           bool    `json:"unpaid"`
}

// Request identifies the booking to annotate.
type Request struct {
	// Period is the portal's free-text date/time label, byte-for-byte as
	// extracted. It is the only join key.
	Period     string
	ClientName string
	Notes      string
	// Location is set for store-select accounts; the caller scopes the
	// session to it before invoking the submitter.
	Location string
}

// Submitter drives note submission on an authenticated schedule page.
type Submitter struct {
	driver *portal.Driver
	logger *logging.Logger
}

// NewSubmitter creates a Submitter bound to a portal driver.
func NewSubmitter(driver *portal.Driver, logger *logging.Logger) *Submitter {
	if driver == nil {
		panic("notes: portal driver required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Submitter{driver: driver, logger: logger}
}

// panelShape classifies the rendered detail panel.
type panelShape int

const (
	shapeLogOff    panelShape = iota // linked booking detail with a log-off tab
	shapeNotesOnly                   // already logged elsewhere, or ambiguous (<3 sub-tabs)
)

// SubmitNotes locates the booking matching req.Period, files the free-text
// notes through whichever panel shape the portal renders, and applies the
// same-client carry-forward to the adjacent slot when it belongs to the
// same client.
func (s *Submitter) SubmitNotes(ctx context.Context, page portal.Page, req Request) (*SubmissionResult, error) {
	idx, count, err := s.locate(ctx, page, req.Period, req.Location)
	if err != nil {
		return nil, err
	}

	unpaid, logged, err := s.annotateCard(ctx, page, idx, req.Notes, req.Location)
	if err != nil {
		return nil, err
	}

	result := &SubmissionResult{Status: true, Unpaid: unpaid, Message: submitMessage(logged, unpaid)}

	// Same-client carry-forward: ClubReady merges consecutive bookings of
	// one client under one calendar entry, so notes filed against only the
	// first slot would be lost on the second.
	if next := idx + 1; next < count && req.ClientName != "" {
		nextClient, err := page.Text(ctx, cardField(next, portal.SelCardClientName))
		if err == nil && strings.EqualFold(strings.TrimSpace(nextClient), strings.TrimSpace(req.ClientName)) {
			nextPeriod, err := page.Text(ctx, cardField(next, portal.SelCardPeriod))
			if err != nil {
				return nil, fmt.Errorf("notes: read adjacent slot period: %w", err)
			}
			nextPeriod = strings.TrimSpace(nextPeriod)
			s.logger.Info("same-client adjacent slot detected", "period", req.Period, "adjacent_period", nextPeriod)
			if _, _, err := s.annotateCard(ctx, page, next, req.Notes, req.Location); err != nil {
				return nil, fmt.Errorf("notes: annotate adjacent slot: %w", err)
			}
			result.SameClientPeriod = &nextPeriod
		}
	}

	return result, nil
}

// LogOff locates the booking and logs it as completed with the default
// note, skipping the free-text branch.
func (s *Submitter) LogOff(ctx context.Context, page portal.Page, req Request) (*SubmissionResult, error) {
	idx, _, err := s.locate(ctx, page, req.Period, req.Location)
	if err != nil {
		return nil, err
	}
	unpaid, logged, err := s.annotateCard(ctx, page, idx, DefaultLogOffNote, req.Location)
	if err != nil {
		return nil, err
	}
	return &SubmissionResult{Status: true, Unpaid: unpaid, Message: submitMessage(logged, unpaid)}, nil
}

// locate activates the my-bookings view and scans today's cards in rendered
// order, returning the index of the first card whose period label exactly
// matches target. The live page is re-scanned deliberately — these cards are
// not assumed to be the same objects seen at extraction time, only identical
// in rendered text.
func (s *Submitter) locate(ctx context.Context, page portal.Page, period, location string) (int, int, error) {
	if err := page.WaitVisible(ctx, portal.SelMyBookingsTab, s.driver.ElementWait()); err != nil {
		shot := s.driver.CaptureScreenshot(ctx, page, "locate-no-bookings-tab")
		return 0, 0, &portal.ElementError{Selector: portal.SelMyBookingsTab, Location: location, ScreenshotURL: shot, Err: err}
	}
	if err := page.Click(ctx, portal.SelMyBookingsTab); err != nil {
		return 0, 0, fmt.Errorf("notes: open my-bookings tab: %w", err)
	}
	if err := page.WaitSettled(ctx); err != nil {
		return 0, 0, fmt.Errorf("notes: wait my-bookings load: %w", err)
	}
	if err := page.WaitHidden(ctx, portal.SelLoadingSpinner, s.driver.ModalWait()); err != nil {
		shot := s.driver.CaptureScreenshot(ctx, page, "locate-spinner-stuck")
		return 0, 0, &portal.ElementError{Selector: portal.SelLoadingSpinner, Location: location, ScreenshotURL: shot, Err: err}
	}

	count, err := page.Count(ctx, portal.SelBookingCard)
	if err != nil {
		return 0, 0, fmt.Errorf("notes: count booking cards: %w", err)
	}
	for i := 0; i < count; i++ {
		label, err := page.Text(ctx, cardField(i, portal.SelCardPeriod))
		if err != nil {
			return 0, 0, fmt.Errorf("notes: read period label of card %d: %w", i, err)
		}
		if strings.TrimSpace(label) == period {
			return i, count, nil
		}
	}

	shot := s.driver.CaptureScreenshot(ctx, page, "locate-no-match")
	return 0, 0, &portal.CorrelationError{Period: period, Location: location, ScreenshotURL: shot}
}

// annotateCard opens the card's detail panel, branches on its rendered
// shape, files the notes, and performs log-off where the shape allows it.
// Returns whether the portal flagged the session unpaid and whether the
// session had already been logged by someone else.
func (s *Submitter) annotateCard(ctx context.Context, page portal.Page, idx int, noteText, location string) (unpaid, alreadyLogged bool, err error) {
	cardSel := portal.Nth(portal.SelBookingCard, idx)

	if err := page.Click(ctx, cardSel+" "+portal.SelCardDetailLink); err != nil {
		return false, false, fmt.Errorf("notes: open booking detail: %w", err)
	}
	if err := page.WaitVisible(ctx, portal.SelDetailPanel, s.driver.ModalWait()); err != nil {
		shot := s.driver.CaptureScreenshot(ctx, page, "detail-panel-missing")
		return false, false, &portal.ElementError{Selector: portal.SelDetailPanel, Location: location, ScreenshotURL: shot, Err: err}
	}

	shape, alreadyLogged, err := s.classifyPanel(ctx, page, location)
	if err != nil {
		return false, false, err
	}

	switch shape {
	case shapeLogOff:
		if err := s.runLogOffFlow(ctx, page, noteText); err != nil {
			return false, false, err
		}
		unpaid, err = page.Exists(ctx, cardSel+" "+portal.SelUnpaidFlag)
		if err != nil {
			return false, false, fmt.Errorf("notes: check unpaid flag: %w", err)
		}
		return unpaid, false, nil

	default:
		if err := s.runNotesOnlyFlow(ctx, page, noteText); err != nil {
			return false, false, err
		}
		return false, alreadyLogged, nil
	}
}

// classifyPanel decides which submission flow the rendered detail panel
// supports. Any shape outside the known set is fatal with forensic
// evidence: these flows are brittle against portal UI drift and an
// unrecognized panel needs investigation, not guessing.
func (s *Submitter) classifyPanel(ctx context.Context, page portal.Page, location string) (panelShape, bool, error) {
	if ok, err := page.Exists(ctx, portal.SelStatusBanner); err == nil && ok {
		banner, err := page.Text(ctx, portal.SelStatusBanner)
		if err == nil && strings.Contains(strings.ToLower(banner), portal.MarkerSessionLogged) {
			return shapeNotesOnly, true, nil
		}
	}

	tabs, err := page.Count(ctx, portal.SelDetailSubTab)
	if err != nil {
		return 0, false, fmt.Errorf("notes: count detail sub-tabs: %w", err)
	}
	if tabs < 3 {
		return shapeNotesOnly, false, nil
	}

	if ok, err := page.Exists(ctx, portal.SelLogOffTab); err == nil && ok {
		return shapeLogOff, false, nil
	}

	url, _ := page.URL(ctx)
	shot := s.driver.CaptureScreenshot(ctx, page, "detail-panel-unknown-shape")
	return 0, false, &portal.UnexpectedStateError{URL: url, Detail: "booking detail panel matched no known shape", ScreenshotURL: shot}
}

// runLogOffFlow fills the log-off notes, toggles the success state and
// submits the log-off.
func (s *Submitter) runLogOffFlow(ctx context.Context, page portal.Page, noteText string) error {
	if err := page.Click(ctx, portal.SelLogOffTab); err != nil {
		return fmt.Errorf("notes: open log-off tab: %w", err)
	}
	if err := page.WaitVisible(ctx, portal.SelLogOffNotes, s.driver.ElementWait()); err != nil {
		shot := s.driver.CaptureScreenshot(ctx, page, "logoff-notes-missing")
		return &portal.ElementError{Selector: portal.SelLogOffNotes, ScreenshotURL: shot, Err: err}
	}
	if err := page.Fill(ctx, portal.SelLogOffNotes, noteText); err != nil {
		return fmt.Errorf("notes: fill log-off notes: %w", err)
	}
	if err := page.Click(ctx, portal.SelSuccessToggle); err != nil {
		return fmt.Errorf("notes: toggle session success: %w", err)
	}
	if err := page.Click(ctx, portal.SelLogOffButton); err != nil {
		return fmt.Errorf("notes: submit log-off: %w", err)
	}
	if err := page.WaitSettled(ctx); err != nil {
		return fmt.Errorf("notes: wait log-off confirmation: %w", err)
	}
	return nil
}

// runNotesOnlyFlow files the notes with the fixed classification, without
// logging off (the session was already completed elsewhere).
func (s *Submitter) runNotesOnlyFlow(ctx context.Context, page portal.Page, noteText string) error {
	if err := page.Click(ctx, portal.SelNotesTab); err != nil {
		return fmt.Errorf("notes: open notes tab: %w", err)
	}
	if err := page.WaitVisible(ctx, portal.SelNotesTextarea, s.driver.ElementWait()); err != nil {
		shot := s.driver.CaptureScreenshot(ctx, page, "notes-textarea-missing")
		return &portal.ElementError{Selector: portal.SelNotesTextarea, ScreenshotURL: shot, Err: err}
	}
	if err := page.Fill(ctx, portal.SelNotesTextarea, noteText); err != nil {
		return fmt.Errorf("notes: fill notes: %w", err)
	}
	if err := page.SelectOption(ctx, portal.SelNotesCategory, portal.NoteCategoryFitness); err != nil {
		return fmt.Errorf("notes: select note category: %w", err)
	}
	if err := page.Click(ctx, portal.SelNotesSubmit); err != nil {
		return fmt.Errorf("notes: submit notes: %w", err)
	}
	if err := page.WaitSettled(ctx); err != nil {
		return fmt.Errorf("notes: wait notes confirmation: %w", err)
	}
	return nil
}

func cardField(idx int, fieldSelector string) string {
	return portal.Nth(portal.SelBookingCard, idx) + " " + fieldSelector
}

func submitMessage(alreadyLogged, unpaid bool) string {
	switch {
	case alreadyLogged:
		return "notes submitted; session was already logged as completed"
	case unpaid:
		return "session logged off; flagged unpaid, ask front desk to process payment"
	default:
		return "notes submitted and session logged off"
	}
}
