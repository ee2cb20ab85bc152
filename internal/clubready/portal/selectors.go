package portal

// ClubReady ships no API; these selectors and URL markers are the de facto
// contract between this module and the portal's rendered pages. They are
// deliberately collected in one place: when ClubReady redeploys and a flow
// breaks, the fix should land here, not across the business logic.

// URL markers recognized after submitting the login form.
const (
	MarkerInvalidLogin = "login?err"
	MarkerDashboard    = "/scheduling/current"
	MarkerChainPicker  = "/clubs/select"

	// SchedulePath is the day-view schedule for the active location.
	SchedulePath = "/scheduling/dayview"
)

// Login page.
const (
	SelUsernameInput = `input[name="uid"]`
	SelPasswordInput = `input[name="pw"]`
	SelLoginSubmit   = `#login-submit`
)

// Post-login location pickers.
const (
	// SelStoreSelect is the <select> of store/location options shown to
	// multi-store accounts. Each option text is an operable location.
	SelStoreSelect       = `select#store-select`
	SelChainClubLink     = `.chain-club-list a.club-link`
	SelChainLocationsBox = `.chain-locations`
	SelChainLocationName = `.location-name`
)

// Day schedule / "my bookings".
const (
	SelLoadingSpinner  = `.loading-spinner`
	SelMyBookingsTab   = `#tab-my-bookings`
	SelBookingCardList = `#my-bookings .booking-list`
	SelBookingCard     = `#my-bookings .booking-list .booking-card`

	// Per-card fields, relative selectors for goquery over card HTML.
	SelCardClientName = `.client-name`
	SelCardBookingRef = `.booking-ref`   // renders "#<id>"
	SelCardSession    = `.session-label` // renders "<workout> with <flexologist>"
	SelCardPhone      = `.contact-line`  // renders "Phone: <value>"
	SelCardPeriod     = `.booking-when`  // free-text period, the join key
	SelCardAvatar     = `.client-avatar img`
	SelCardPastFlag   = `.past-session`
	SelCardFirstTimer = `.first-timer-badge`
	SelCardInactive   = `.inactive-member`

	// MarkerGroupBooking distinguishes class-style sessions that need
	// roster expansion. Occasionally a false positive: the roster panel
	// comes up empty and the card must be skipped.
	MarkerGroupBooking = "group-session"

	SelRosterPanel  = `.class-roster-panel`
	SelRosterFrame  = `iframe.roster-frame`
	SelRosterTable  = `table.roster`
	SelRosterRow    = `table.roster tr.attendee`
	SelRosterClient = `td.attendee-name`
	SelRosterPhone  = `td.attendee-phone`
)

// Booking detail panel / note submission.
const (
	SelCardDetailLink = `.detail-link` // scoped per card by the caller
	SelDetailPanel    = `.booking-detail-panel`
	SelDetailSubTab   = `.booking-detail-panel .detail-tabs li`

	// Shape A: linked booking detail with a log-off tab.
	SelLogOffTab       = `.detail-tabs li.tab-logoff`
	SelLogOffNotes     = `textarea#logoff-notes`
	SelSuccessToggle   = `#session-success-toggle`
	SelLogOffButton    = `#logoff-submit`

	// Shape B: already logged by someone else; notes-only path.
	SelStatusBanner     = `.detail-status-banner`
	MarkerSessionLogged = "session logged as completed"
	SelNotesTab         = `.detail-tabs li.tab-notes`
	SelNotesTextarea    = `textarea#booking-notes`
	SelNotesCategory    = `select#note-category`
	NoteCategoryFitness = "Fitness Related"
	SelNotesSubmit      = `#notes-submit`

	// Unpaid flag surfaced on the card after log-off, scoped per card by
	// the caller.
	SelUnpaidFlag = `.unpaid-flag`
)

// Profile images: the portal renders a "no-user" placeholder path for
// clients without a photo; everything else is CDN-relative.
const (
	MarkerNoUserImage      = "no-user"
	DefaultProfileImageURL = "https://cdn.clubready.com/images/no-user.png"
	ProfileImageCDNPrefix  = "https://cdn.clubready.com"
)
