// Package guardrails holds the pure checks applied to model- and user-supplied values
// before they reach storage or a provider.
package guardrails

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bluewise/pkg/models"
)

const (
	DefaultSMSMaxLength   = 1200
	DefaultSMSSoftLimit   = 320
	DefaultStaleAfterDays = 30
	DefaultDueHour        = 9
)

// Policy carries the configurable limits
type Policy struct {
	SMSMaxLength   int
	SMSSoftLimit   int
	StaleAfterDays int
	DefaultDueHour int
	Location       *time.Location
}

// DefaultPolicy returns the built-in limits in the given location (UTC when nil)
func DefaultPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.UTC
	}
	return Policy{
		SMSMaxLength:   DefaultSMSMaxLength,
		SMSSoftLimit:   DefaultSMSSoftLimit,
		StaleAfterDays: DefaultStaleAfterDays,
		DefaultDueHour: DefaultDueHour,
		Location:       loc,
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// CheckSMSLength rejects bodies longer than max characters. It never truncates.
func CheckSMSLength(body string, max int) error {
	if n := utf8.RuneCountInString(body); n > max {
		return models.NewValidationError(fmt.Sprintf("SMS body too long (max %d chars).", max))
	}
	return nil
}

// CheckSMS applies the hard cap of the policy
func (p Policy) CheckSMS(body string) error {
	return CheckSMSLength(body, p.SMSMaxLength)
}

// ExceedsSoftLimit reports whether an SMS body is over the compose-time threshold
func (p Policy) ExceedsSoftLimit(body string) bool {
	return utf8.RuneCountInString(body) > p.SMSSoftLimit
}

// RemapStaleDate reinterprets a date more than staleAfter in the past as today at the
// same wall-clock hour and minute in loc, rolling to tomorrow when that is not after now.
// Other dates are returned unchanged.
func RemapStaleDate(t, now time.Time, staleAfter time.Duration, loc *time.Location) time.Time {
	if !t.Before(now.Add(-staleAfter)) {
		return t
	}
	wall := t.In(loc)
	today := now.In(loc)
	fixed := time.Date(today.Year(), today.Month(), today.Day(), wall.Hour(), wall.Minute(), 0, 0, loc)
	if !fixed.After(now) {
		fixed = fixed.AddDate(0, 0, 1)
	}
	return fixed
}

// RemapStale applies RemapStaleDate with the policy's threshold and location.
// The second result reports whether the date was changed.
func (p Policy) RemapStale(t, now time.Time) (time.Time, bool) {
	stale := time.Duration(p.StaleAfterDays) * 24 * time.Hour
	fixed := RemapStaleDate(t, now, stale, p.location())
	return fixed, !fixed.Equal(t)
}

// DefaultDueDate is tomorrow at hour:00 in loc
func DefaultDueDate(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc).AddDate(0, 0, 1)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDate parses an ISO timestamp. Values without an offset are taken in loc;
// a bare date means 00:00 local.
func ParseDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Parse parses a date in the policy's location
func (p Policy) Parse(raw string) (time.Time, bool) {
	return ParseDate(raw, p.location())
}

// DueDate turns an optional model-supplied date into the date to store: unusable
// input falls back to the default due date, usable input is remapped when stale.
func (p Policy) DueDate(raw string, now time.Time) (due time.Time, remapped bool) {
	t, ok := ParseDate(raw, p.location())
	if !ok {
		return DefaultDueDate(now, p.DefaultDueHour, p.location()), false
	}
	return p.RemapStale(t, now)
}

// FormatLocal renders a timestamp the way task summaries show it, e.g. "2025-06-02, 09:00"
func (p Policy) FormatLocal(t time.Time) string {
	return t.In(p.location()).Format("2006-01-02, 15:04")
}

// RequireTenant asserts that a query is scoped to a customer. A missing tenant is a
// programming error and panics.
func RequireTenant(customerID int64) {
	if customerID <= 0 {
		panic(fmt.Sprintf("guardrails: tenant scope missing (customer_id=%d)", customerID))
	}
}
