// Package market implements the trading-hours check. The calendar is a pure
// function of the passed-in time; callers own the clock.
package market

import (
	"fmt"
	"time"
)

// MinuteOfDay is a time-of-day boundary in exchange-local time.
type MinuteOfDay struct {
	Hour   int
	Minute int
}

// ParseMinuteOfDay parses "HH:MM".
func ParseMinuteOfDay(s string) (MinuteOfDay, error) {
	var m MinuteOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &m.Hour, &m.Minute); err != nil {
		return MinuteOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if m.Hour < 0 || m.Hour > 23 || m.Minute < 0 || m.Minute > 59 {
		return MinuteOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return m, nil
}

func (m MinuteOfDay) minutes() int {
	return m.Hour*60 + m.Minute
}

// Calendar answers "is trading active now" for a single market with a fixed
// weekday set and open/close window.
type Calendar struct {
	loc      *time.Location
	weekdays map[time.Weekday]bool
	open     MinuteOfDay
	close    MinuteOfDay
	cutoff   MinuteOfDay
}

// NewCalendar builds a calendar for the named IANA timezone. cutoff is the
// earliest local time-of-day at which the end-of-day summary may fire.
func NewCalendar(timezone string, weekdays []time.Weekday, open, close, cutoff MinuteOfDay) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	if len(weekdays) == 0 {
		return nil, fmt.Errorf("trading weekday set must not be empty")
	}
	if open.minutes() >= close.minutes() {
		return nil, fmt.Errorf("market open %02d:%02d must precede close %02d:%02d",
			open.Hour, open.Minute, close.Hour, close.Minute)
	}
	set := make(map[time.Weekday]bool, len(weekdays))
	for _, d := range weekdays {
		set[d] = true
	}
	return &Calendar{loc: loc, weekdays: set, open: open, close: close, cutoff: cutoff}, nil
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// DateKey returns t's calendar date in exchange-local time, the key for
// day-scoped state.
func (c *Calendar) DateKey(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

// IsOpen reports whether t falls on a trading weekday inside the open/close
// window, boundaries inclusive.
func (c *Calendar) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	if !c.weekdays[local.Weekday()] {
		return false
	}
	m := local.Hour()*60 + local.Minute()
	return m >= c.open.minutes() && m <= c.close.minutes()
}

// SummaryDue reports whether t has reached the end-of-day summary cutoff on
// a trading weekday.
func (c *Calendar) SummaryDue(t time.Time) bool {
	local := t.In(c.loc)
	if !c.weekdays[local.Weekday()] {
		return false
	}
	return local.Hour()*60+local.Minute() >= c.cutoff.minutes()
}
