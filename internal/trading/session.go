// Package trading provides the session clock, price series and order book
// that make up the simulated market.
package trading

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day in the trading timezone.
type ClockTime struct {
	Hour   int
	Minute int
}

// Minutes returns the minute-of-day.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// ParseUTCOffset parses "+05:30" style offsets into a fixed zone.
func ParseUTCOffset(name, offset string) (*time.Location, error) {
	offset = strings.TrimSpace(offset)
	if offset == "" {
		return nil, fmt.Errorf("empty utc offset")
	}
	sign := 1
	switch offset[0] {
	case '+':
		offset = offset[1:]
	case '-':
		sign = -1
		offset = offset[1:]
	}
	ct, err := ParseClockTime(offset)
	if err != nil {
		return nil, fmt.Errorf("invalid utc offset %q: %w", offset, err)
	}
	return time.FixedZone(name, sign*(ct.Hour*3600+ct.Minute*60)), nil
}

// SessionConfig describes the trading session window.
type SessionConfig struct {
	Location    *time.Location
	Open        ClockTime
	Close       ClockTime
	TradingDays []time.Weekday
}

// IndiaLocation is the fixed +05:30 zone used by NSE/BSE.
var IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)

// DefaultSessionConfig returns the NSE/BSE equity session: Mon-Fri 09:15-15:30 IST.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Location: IndiaLocation,
		Open:     ClockTime{Hour: 9, Minute: 15},
		Close:    ClockTime{Hour: 15, Minute: 30},
		TradingDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}
}

// SessionInfo represents the session state at an instant.
type SessionInfo struct {
	Open        bool      `json:"open"`
	NextOpen    time.Time `json:"next_open"`
	Description string    `json:"next_open_text"`
}

// SessionClock decides whether the simulated market is open.
// It holds no mutable state and is safe for concurrent use.
type SessionClock struct {
	cfg  SessionConfig
	days [7]bool
}

// NewSessionClock creates a session clock. A nil location falls back to IST.
func NewSessionClock(cfg SessionConfig) *SessionClock {
	if cfg.Location == nil {
		cfg.Location = IndiaLocation
	}
	c := &SessionClock{cfg: cfg}
	for _, d := range cfg.TradingDays {
		c.days[d] = true
	}
	return c
}

// Config returns the session configuration.
func (c *SessionClock) Config() SessionConfig {
	return c.cfg
}

// IsTradingDay reports whether the weekday of t (in the trading zone) is a trading day.
func (c *SessionClock) IsTradingDay(t time.Time) bool {
	return c.days[t.In(c.cfg.Location).Weekday()]
}

// IsOpen reports whether t falls inside the session window, inclusive of both bounds.
func (c *SessionClock) IsOpen(t time.Time) bool {
	local := t.In(c.cfg.Location)
	if !c.days[local.Weekday()] {
		return false
	}
	mins := local.Hour()*60 + local.Minute()
	return mins >= c.cfg.Open.Minutes() && mins <= c.cfg.Close.Minutes()
}

// NextOpen returns the next session open strictly after the current session.
// Before the open on a trading day it is today's open; otherwise it is the
// open of the nearest following trading day.
func (c *SessionClock) NextOpen(t time.Time) time.Time {
	local := t.In(c.cfg.Location)
	mins := local.Hour()*60 + local.Minute()

	if c.days[local.Weekday()] && mins < c.cfg.Open.Minutes() {
		return c.openOn(local)
	}

	next := local
	for i := 0; i < 7; i++ {
		next = next.AddDate(0, 0, 1)
		if c.days[next.Weekday()] {
			return c.openOn(next)
		}
	}
	// Unreachable with at least one trading day configured.
	return c.openOn(local.AddDate(0, 0, 7))
}

// DescribeNextOpen returns a short label such as "today at 09:15 IST" or
// "on Mon, 20 Oct at 09:15 IST".
func (c *SessionClock) DescribeNextOpen(t time.Time) string {
	local := t.In(c.cfg.Location)
	next := c.NextOpen(t)
	zone, _ := next.Zone()

	if sameDay(local, next) {
		return fmt.Sprintf("today at %s %s", c.cfg.Open, zone)
	}
	return fmt.Sprintf("on %s at %s %s", next.Format("Mon, 02 Jan"), c.cfg.Open, zone)
}

// Status returns the session state at t.
func (c *SessionClock) Status(t time.Time) SessionInfo {
	return SessionInfo{
		Open:        c.IsOpen(t),
		NextOpen:    c.NextOpen(t),
		Description: c.DescribeNextOpen(t),
	}
}

// openOn returns the session open on the calendar day of t.
func (c *SessionClock) openOn(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.cfg.Open.Hour, c.cfg.Open.Minute, 0, 0, c.cfg.Location)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
