package notes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchops/studio-automation/internal/clubready/portal"
	"github.com/stretchops/studio-automation/internal/clubready/portal/portaltest"
)

func newSubmitter(shots portal.ScreenshotSink) *Submitter {
	return NewSubmitter(portal.NewDriver(portal.DriverConfig{
		BaseURL:     "https://portal.test",
		Screenshots: shots,
	}), nil)
}

// schedulePage scripts a my-bookings page with the given period labels and
// client names, one card per entry, defaulting to the log-off panel shape.
func schedulePage(periods, clients []string) *portaltest.FakePage {
	page := &portaltest.FakePage{
		Texts: map[string]string{},
		Counts: map[string]int{
			portal.SelBookingCard:  len(periods),
			portal.SelDetailSubTab: 3,
		},
		Existing: map[string]bool{
			portal.SelLogOffTab: true,
		},
	}
	for i, period := range periods {
		page.Texts[cardField(i, portal.SelCardPeriod)] = period
	}
	for i, client := range clients {
		page.Texts[cardField(i, portal.SelCardClientName)] = client
	}
	return page
}

func clickedDetail(page *portaltest.FakePage, idx int) bool {
	want := cardField(idx, portal.SelCardDetailLink)
	for _, sel := range page.Clicked {
		if sel == want {
			return true
		}
	}
	return false
}

func TestSubmitNotesPicksFirstPeriodMatch(t *testing.T) {
	page := schedulePage(
		[]string{"9:00 AM", "9:30 AM", "10:00 AM", "10:00 AM"},
		[]string{"ann", "ben", "cara", "dave"},
	)

	result, err := newSubmitter(nil).SubmitNotes(context.Background(), page, Request{
		Period:     "10:00 AM",
		ClientName: "cara",
		Notes:      "worked on hamstrings",
	})
	if err != nil {
		t.Fatalf("SubmitNotes: %v", err)
	}
	if !result.Status {
		t.Error("status should be true")
	}
	if !clickedDetail(page, 2) {
		t.Errorf("expected first matching card (index 2) opened, clicks: %v", page.Clicked)
	}
	if clickedDetail(page, 3) {
		t.Error("later duplicate period (index 3) must not be opened; different client")
	}
	if page.Filled[portal.SelLogOffNotes] != "worked on hamstrings" {
		t.Errorf("log-off notes = %q", page.Filled[portal.SelLogOffNotes])
	}
	if result.SameClientPeriod != nil {
		t.Errorf("same_client_period = %v, want nil", *result.SameClientPeriod)
	}
}

func TestSubmitNotesCarryForward(t *testing.T) {
	page := schedulePage(
		[]string{"9:00 AM", "9:30 AM", "10:00 AM"},
		[]string{"ann", "Cara Smith", "cara smith"},
	)

	result, err := newSubmitter(nil).SubmitNotes(context.Background(), page, Request{
		Period:     "9:30 AM",
		ClientName: "cara smith",
		Notes:      "notes for both slots",
	})
	if err != nil {
		t.Fatalf("SubmitNotes: %v", err)
	}
	if result.SameClientPeriod == nil {
		t.Fatal("same_client_period should be set for adjacent same-client slot")
	}
	if *result.SameClientPeriod != "10:00 AM" {
		t.Errorf("same_client_period = %q, want %q", *result.SameClientPeriod, "10:00 AM")
	}
	if !clickedDetail(page, 1) || !clickedDetail(page, 2) {
		t.Errorf("both slots should be annotated, clicks: %v", page.Clicked)
	}
}

func TestSubmitNotesNoCarryForwardDifferentClient(t *testing.T) {
	page := schedulePage(
		[]string{"9:30 AM", "10:00 AM"},
		[]string{"cara smith", "dave jones"},
	)

	result, err := newSubmitter(nil).SubmitNotes(context.Background(), page, Request{
		Period:     "9:30 AM",
		ClientName: "cara smith",
		Notes:      "only one slot",
	})
	if err != nil {
		t.Fatalf("SubmitNotes: %v", err)
	}
	if result.SameClientPeriod != nil {
		t.Errorf("same_client_period = %q, want nil", *result.SameClientPeriod)
	}
	if clickedDetail(page, 1) {
		t.Error("adjacent different-client slot must not be annotated")
	}
}

func TestSubmitNotesUnpaidDetection(t *testing.T) {
	page := schedulePage([]string{"9:30 AM"}, []string{"cara"})
	page.Existing[cardField(0, portal.SelUnpaidFlag)] = true

	result, err := newSubmitter(nil).SubmitNotes(context.Background(), page, Request{
		Period: "9:30 AM", ClientName: "cara", Notes: "n",
	})
	if err != nil {
		t.Fatalf("SubmitNotes: %v", err)
	}
	if !result.Unpaid {
		t.Error("unpaid flag should be surfaced")
	}
}

func TestSubmitNotesAlreadyLoggedBanner(t *testing.T) {
	page := schedulePage([]string{"9:30 AM"}, []string{"cara"})
	page.Existing[portal.SelStatusBanner] = true
	page.Texts[portal.SelStatusBanner] = "This session logged as completed by the front desk"

	result, err := newSubmitter(nil).SubmitNotes(context.Background(), page, Request{
		Period: "9:30 AM", ClientName: "cara", Notes: "late notes",
	})
	if err != nil {
		t.Fatalf("SubmitNotes: %v", err)
	}
	if page.Filled[portal.SelNotesTextarea] != "late notes" {
		t.Errorf("notes textarea = %q", page.Filled[portal.SelNotesTextarea])
	}
	if page.Selected[portal.SelNotesCategory] != portal.NoteCategoryFitness {
		t.Errorf("note category = %q", page.Selected[portal.SelNotesCategory])
	}
	for _, sel := range page.Clicked {
		if sel == portal.SelLogOffButton {
			t.Error("log-off must be skipped when already logged")
		}
	}
	if result.Unpaid {
		t.Error("notes-only path never reports unpaid")
	}
}

func TestSubmitNotesAmbiguousPanelFallsBackToNotes(t *testing.T) {
	page := schedulePage([]string{"9:30 AM"}, []string{"cara"})
	page.Counts[portal.SelDetailSubTab] = 2 // fewer than 3 sub-tabs

	_, err := newSubmitter(nil).SubmitNotes(context.Background(), page, Request{
		Period: "9:30 AM", ClientName: "cara", Notes: "n",
	})
	if err != nil {
		t.Fatalf("SubmitNotes: %v", err)
	}
	if page.Filled[portal.SelNotesTextarea] != "n" {
		t.Error("ambiguous panel should use the notes-only path")
	}
}

func TestSubmitNotesUnknownPanelShapeIsFatal(t *testing.T) {
	shots := &portaltest.FakeScreenshotSink{}
	page := schedulePage([]string{"9:30 AM"}, []string{"cara"})
	page.Existing[portal.SelLogOffTab] = false // 3 tabs but no log-off tab

	_, err := newSubmitter(shots).SubmitNotes(context.Background(), page, Request{
		Period: "9:30 AM", ClientName: "cara", Notes: "n",
	})
	var stateErr *portal.UnexpectedStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected UnexpectedStateError, got %v", err)
	}
	if stateErr.ScreenshotURL == "" {
		t.Error("fatal shape error should carry a screenshot URL")
	}
}

func TestSubmitNotesCorrelationMiss(t *testing.T) {
	shots := &portaltest.FakeScreenshotSink{}
	page := schedulePage([]string{"9:00 AM", "9:30 AM"}, []string{"ann", "ben"})

	_, err := newSubmitter(shots).SubmitNotes(context.Background(), page, Request{
		Period: "4:00 PM", ClientName: "zed", Notes: "n",
	})
	var corrErr *portal.CorrelationError
	if !errors.As(err, &corrErr) {
		t.Fatalf("expected CorrelationError, got %v", err)
	}
	if corrErr.Period != "4:00 PM" {
		t.Errorf("period = %q", corrErr.Period)
	}
	if corrErr.ScreenshotURL == "" {
		t.Error("correlation miss should carry a screenshot URL")
	}
}

func TestSubmitNotesCorrelationMissWithoutDiagnostics(t *testing.T) {
	shots := &portaltest.FakeScreenshotSink{Err: errors.New("unreachable")}
	page := schedulePage([]string{"9:00 AM"}, []string{"ann"})

	_, err := newSubmitter(shots).SubmitNotes(context.Background(), page, Request{
		Period: "4:00 PM", ClientName: "zed", Notes: "n",
	})
	var corrErr *portal.CorrelationError
	if !errors.As(err, &corrErr) {
		t.Fatalf("expected CorrelationError, got %v", err)
	}
	if corrErr.ScreenshotURL != "" {
		t.Error("screenshot URL should be omitted when diagnostic store is down")
	}
}

func TestLogOffUsesDefaultNote(t *testing.T) {
	page := schedulePage([]string{"9:30 AM"}, []string{"cara"})

	result, err := newSubmitter(nil).LogOff(context.Background(), page, Request{
		Period: "9:30 AM", ClientName: "cara",
	})
	if err != nil {
		t.Fatalf("LogOff: %v", err)
	}
	if !result.Status {
		t.Error("status should be true")
	}
	if page.Filled[portal.SelLogOffNotes] != DefaultLogOffNote {
		t.Errorf("log-off note = %q, want %q", page.Filled[portal.SelLogOffNotes], DefaultLogOffNote)
	}
}
