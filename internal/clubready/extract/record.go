package extract

// BookingRecord is the canonical booking row emitted by extraction. The
// persistence side deduplicates on (client_name, event_date, booking_id), so
// those three must always be populated when the portal renders them.
type BookingRecord struct {
	ClientName      string `json:"client_name"`
	BookingID       string `json:"booking_id"`
	WorkoutType     string `json:"workout_type"`
	FlexologistName string `json:"flexologist_name"`
	Phone           string `json:"phone"`
	BookingTime     string `json:"booking_time"`
	// EventDate is the portal's free-text rendering of the slot. It is the
	// join key used later to re-locate this booking for note submission;
	// beyond trimming it must not be normalized in any way.
	EventDate    string `json:"event_date"`
	Past         bool   `json:"past"`
	FirstTimer   string `json:"first_timer"` // YES / NO
	Active       string `json:"active"`      // YES / NO
	Location     string `json:"location"`
	ProfileImage string `json:"profile_image"`
	GroupBooking bool   `json:"group_booking"`
}
