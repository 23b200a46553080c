package quota

import (
	"fmt"
	"time"
	_ "time/tzdata" // containers often ship without a zoneinfo database
)

// DateKeyLayout is the format of ledger date keys.
const DateKeyLayout = "2006-01-02"

// DefaultTimezone is the zone whose midnight resets every quota.
const DefaultTimezone = "America/Sao_Paulo"

// Calendar maps instants to date keys in a fixed timezone.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar returns a Calendar for the named IANA zone.
// An empty name selects DefaultTimezone.
func NewCalendar(zone string) (*Calendar, error) {
	if zone == "" {
		zone = DefaultTimezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", zone, err)
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// WithClock returns a copy of the calendar that reads time from now.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	return &Calendar{loc: c.loc, now: now}
}

// Location returns the calendar timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the calendar timezone.
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// DateKey returns the date key for t.
func (c *Calendar) DateKey(t time.Time) string {
	return t.In(c.loc).Format(DateKeyLayout)
}

// Today returns the date key for the current instant.
func (c *Calendar) Today() string {
	return c.DateKey(c.now())
}

// NextReset returns the next local midnight after t.
func (c *Calendar) NextReset(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, c.loc)
}

// KeyDaysAgo returns the date key n calendar days before today.
func (c *Calendar) KeyDaysAgo(n int) string {
	y, m, d := c.Now().Date()
	// Noon keeps DST transitions from shifting the day.
	return time.Date(y, m, d-n, 12, 0, 0, 0, c.loc).Format(DateKeyLayout)
}
