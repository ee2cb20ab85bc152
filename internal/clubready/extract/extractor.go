// Package extract discovers today's booking cards on an authenticated
// schedule page and maps each into a canonical BookingRecord. The portal
// renders two card shapes: individual bookings read directly off the card,
// and group (class) bookings whose attendees live in a roster behind an
// embedded frame.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stretchops/studio-automation/internal/clubready/portal"
	"github.com/stretchops/studio-automation/pkg/logging"
)

// CardParser is an alternate reader for a single booking card's HTML, used
// when the DOM no longer matches the selector contract.
type CardParser interface {
	ExtractCard(ctx context.Context, cardHTML string) (*BookingRecord, error)
}

// Extractor pulls booking records from one location's schedule page.
// It never swallows failures; retry policy belongs to the fan-out scheduler.
type Extractor struct {
	driver   *portal.Driver
	fallback CardParser
	logger   *logging.Logger
}

// New creates an Extractor bound to a portal driver.
func New(driver *portal.Driver, logger *logging.Logger) *Extractor {
	if driver == nil {
		panic("extract: portal driver required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{driver: driver, logger: logger}
}

// WithFallback installs an alternate card parser consulted when a card's
// DOM cannot be read. Returns the Extractor for chaining.
func (e *Extractor) WithFallback(parser CardParser) *Extractor {
	e.fallback = parser
	return e
}

// TodayBookings activates the "my bookings" view on an authenticated page
// and returns one record per client booked today at the given location.
func (e *Extractor) TodayBookings(ctx context.Context, page portal.Page, location string) ([]BookingRecord, error) {
	if err := page.WaitVisible(ctx, portal.SelMyBookingsTab, e.driver.ElementWait()); err != nil {
		return nil, e.elementErr(ctx, page, portal.SelMyBookingsTab, location, err)
	}
	if err := page.Click(ctx, portal.SelMyBookingsTab); err != nil {
		return nil, fmt.Errorf("extract: open my-bookings tab: %w", err)
	}
	if err := page.WaitSettled(ctx); err != nil {
		return nil, fmt.Errorf("extract: wait my-bookings load: %w", err)
	}
	if err := page.WaitHidden(ctx, portal.SelLoadingSpinner, e.driver.ModalWait()); err != nil {
		return nil, e.elementErr(ctx, page, portal.SelLoadingSpinner, location, err)
	}

	count, err := page.Count(ctx, portal.SelBookingCard)
	if err != nil {
		return nil, fmt.Errorf("extract: count booking cards: %w", err)
	}
	e.logger.Debug("booking cards discovered", "location", location, "count", count)

	records := make([]BookingRecord, 0, count)
	for i := 0; i < count; i++ {
		cardSel := portal.Nth(portal.SelBookingCard, i)
		html, err := page.HTML(ctx, cardSel)
		if err != nil {
			return nil, e.elementErr(ctx, page, cardSel, location, err)
		}
		card, err := parseCard(html)
		if err != nil {
			rec, fallbackErr := e.parseWithFallback(ctx, html)
			if fallbackErr != nil {
				return nil, fmt.Errorf("extract: parse card %d at %q: %w", i, location, err)
			}
			rec.Location = strings.ToLower(strings.TrimSpace(location))
			e.logger.Warn("card shape drifted, used fallback parser", "location", location, "card", i)
			records = append(records, *rec)
			continue
		}
		card.Location = strings.ToLower(strings.TrimSpace(location))

		if card.group {
			groupRecords, err := e.expandGroup(ctx, page, cardSel, card)
			if err != nil {
				return nil, err
			}
			records = append(records, groupRecords...)
			continue
		}
		records = append(records, card.record())
	}
	return records, nil
}

// expandGroup opens a group card's roster and emits one record per attendee,
// all sharing the card's event date, workout type and flexologist. An empty
// roster means the group marker was a false positive and the card is skipped.
func (e *Extractor) expandGroup(ctx context.Context, page portal.Page, cardSel string, card *parsedCard) ([]BookingRecord, error) {
	if err := page.Click(ctx, cardSel); err != nil {
		return nil, fmt.Errorf("extract: open group roster: %w", err)
	}
	if err := page.WaitVisible(ctx, portal.SelRosterPanel, e.driver.ModalWait()); err != nil {
		return nil, e.elementErr(ctx, page, portal.SelRosterPanel, card.Location, err)
	}
	rosterHTML, err := page.FrameHTML(ctx, portal.SelRosterFrame, portal.SelRosterTable)
	if err != nil {
		return nil, e.elementErr(ctx, page, portal.SelRosterTable, card.Location, err)
	}

	attendees, err := parseRoster(rosterHTML)
	if err != nil {
		return nil, fmt.Errorf("extract: parse roster at %q: %w", card.Location, err)
	}
	if len(attendees) == 0 {
		e.logger.Debug("empty roster, skipping false-positive group card", "location", card.Location, "event_date", card.EventDate)
		return nil, nil
	}

	records := make([]BookingRecord, 0, len(attendees))
	for _, attendee := range attendees {
		rec := card.record()
		rec.ClientName = strings.ToLower(attendee.name)
		rec.Phone = attendee.phone
		rec.GroupBooking = true
		records = append(records, rec)
	}
	return records, nil
}

func (e *Extractor) parseWithFallback(ctx context.Context, html string) (*BookingRecord, error) {
	if e.fallback == nil {
		return nil, fmt.Errorf("extract: no fallback parser configured")
	}
	return e.fallback.ExtractCard(ctx, html)
}

func (e *Extractor) elementErr(ctx context.Context, page portal.Page, selector, location string, err error) error {
	shot := e.driver.CaptureScreenshot(ctx, page, "extract-element-missing")
	return &portal.ElementError{Selector: selector, Location: location, ScreenshotURL: shot, Err: err}
}

// parsedCard is the intermediate result of reading one booking card's DOM.
type parsedCard struct {
	BookingRecord
	group bool
}

func (c *parsedCard) record() BookingRecord { return c.BookingRecord }

// parseCard reads the canonical fields off one booking card's outer HTML.
func parseCard(html string) (*parsedCard, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	root := doc.Find(".booking-card").First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("no booking-card root in html")
	}

	workout, flexologist := parseSessionLabel(text(root, portal.SelCardSession))
	eventDate := text(root, portal.SelCardPeriod)
	card := &parsedCard{
		BookingRecord: BookingRecord{
			ClientName:      strings.ToLower(text(root, portal.SelCardClientName)),
			BookingID:       parseBookingRef(text(root, portal.SelCardBookingRef)),
			WorkoutType:     workout,
			FlexologistName: strings.ToLower(flexologist),
			Phone:           parsePhone(text(root, portal.SelCardPhone)),
			BookingTime:     bookingTime(eventDate),
			EventDate:       eventDate,
			Past:            root.Find(portal.SelCardPastFlag).Length() > 0,
			FirstTimer:      yesNo(root.Find(portal.SelCardFirstTimer).Length() > 0),
			Active:          yesNo(root.Find(portal.SelCardInactive).Length() == 0),
			ProfileImage:    normalizeProfileImage(attr(root, portal.SelCardAvatar, "src")),
		},
		group: root.HasClass(portal.MarkerGroupBooking),
	}
	return card, nil
}

type rosterAttendee struct {
	name  string
	phone string
}

func parseRoster(html string) ([]rosterAttendee, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var attendees []rosterAttendee
	doc.Find(portal.SelRosterRow).Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find(portal.SelRosterClient).Text())
		if name == "" {
			return
		}
		attendees = append(attendees, rosterAttendee{
			name:  name,
			phone: parsePhone(strings.TrimSpace(row.Find(portal.SelRosterPhone).Text())),
		})
	})
	return attendees, nil
}

// parseBookingRef extracts the numeric id out of a "#<id>" label. Missing
// hash means the portal changed its label shape; the raw text is returned so
// the record still carries identity.
func parseBookingRef(label string) string {
	if i := strings.Index(label, "#"); i >= 0 {
		return strings.TrimSpace(label[i+1:])
	}
	return label
}

// parseSessionLabel splits "<workout> with <flexologist>". The literal word
// "with" is assumed present; when absent the whole label is the workout and
// the flexologist is left empty.
func parseSessionLabel(label string) (workout, flexologist string) {
	if i := strings.Index(label, " with "); i >= 0 {
		return strings.TrimSpace(label[:i]), strings.TrimSpace(label[i+len(" with "):])
	}
	return strings.TrimSpace(label), ""
}

// parsePhone reads the value side of a "label: value" pair, falling back to
// the raw label when no colon is present.
func parsePhone(label string) string {
	if i := strings.Index(label, ":"); i >= 0 {
		return strings.TrimSpace(label[i+1:])
	}
	return strings.TrimSpace(label)
}

// bookingTime derives the display time from the free-text period: the text
// after the last comma, or the whole string when the portal renders time
// only.
func bookingTime(period string) string {
	if i := strings.LastIndex(period, ","); i >= 0 {
		return strings.TrimSpace(period[i+1:])
	}
	return period
}

func normalizeProfileImage(src string) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.Contains(src, portal.MarkerNoUserImage) {
		return portal.DefaultProfileImageURL
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	if !strings.HasPrefix(src, "/") {
		src = "/" + src
	}
	return portal.ProfileImageCDNPrefix + src
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func text(root *goquery.Selection, selector string) string {
	return strings.TrimSpace(root.Find(selector).First().Text())
}

func attr(root *goquery.Selection, selector, name string) string {
	val, _ := root.Find(selector).First().Attr(name)
	return val
}
