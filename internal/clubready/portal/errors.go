package portal

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials indicates the portal rejected the username/password.
// Terminal: retrying with the same credentials cannot succeed.
var ErrInvalidCredentials = errors.New("portal: Invalid Username or Password")

// UnexpectedStateError reports a post-navigation URL or DOM shape this driver
// does not recognize. Terminal for the session; never blindly retried. When
// the diagnostic store is reachable ScreenshotURL carries forensic evidence.
type UnexpectedStateError struct {
	URL           string
	Detail        string
	ScreenshotURL string
}

func (e *UnexpectedStateError) Error() string {
	msg := fmt.Sprintf("portal: unexpected state at %s: %s", e.URL, e.Detail)
	if e.ScreenshotURL != "" {
		msg += " (screenshot: " + e.ScreenshotURL + ")"
	}
	return msg
}

// ElementError reports a required selector that did not appear within its
// bounded wait. The fan-out scheduler treats this as a location-level
// failure; single-location submit paths surface it to the caller.
type ElementError struct {
	Selector      string
	Location      string
	ScreenshotURL string
	Err           error
}

func (e *ElementError) Error() string {
	msg := fmt.Sprintf("portal: element %q not found", e.Selector)
	if e.Location != "" {
		msg += " at location " + e.Location
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.ScreenshotURL != "" {
		msg += " (screenshot: " + e.ScreenshotURL + ")"
	}
	return msg
}

func (e *ElementError) Unwrap() error { return e.Err }

// CorrelationError means no booking card matched the target period. Always
// fatal: the period string is the join key that makes note submission
// meaningful.
type CorrelationError struct {
	Period        string
	Location      string
	ScreenshotURL string
}

func (e *CorrelationError) Error() string {
	msg := fmt.Sprintf("portal: no matching booking found for period %q", e.Period)
	if e.Location != "" {
		msg += " at location " + e.Location
	}
	if e.ScreenshotURL != "" {
		msg += " (screenshot: " + e.ScreenshotURL + ")"
	}
	return msg
}
