package trading

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ist(day, hour, minute, sec int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, sec, 0, IndiaLocation)
}

func TestSessionClock_IsOpen(t *testing.T) {
	clock := NewSessionClock(DefaultSessionConfig())

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday before open", ist(12, 9, 14, 59), false},
		{"monday at open", ist(12, 9, 15, 0), true},
		{"monday midday", ist(12, 12, 0, 0), true},
		{"monday at close", ist(12, 15, 30, 0), true},
		{"close minute is inclusive", ist(12, 15, 30, 59), true},
		{"monday after close", ist(12, 15, 31, 0), false},
		{"friday midday", ist(16, 11, 0, 0), true},
		{"saturday midday", ist(17, 11, 0, 0), false},
		{"sunday midday", ist(18, 11, 0, 0), false},
		{"utc instant inside session", time.Date(2026, 10, 12, 3, 45, 0, 0, time.UTC), true},
		{"utc instant after close", time.Date(2026, 10, 12, 10, 1, 0, 0, time.UTC), false},
		{"utc friday evening is saturday in IST", time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clock.IsOpen(tt.at))
		})
	}
}

func TestSessionClock_NextOpen(t *testing.T) {
	clock := NewSessionClock(DefaultSessionConfig())

	tests := []struct {
		name     string
		at       time.Time
		want     time.Time
		wantText string
	}{
		{"before open on a trading day", ist(12, 8, 0, 0), ist(12, 9, 15, 0), "today at 09:15 IST"},
		{"after close on a weekday", ist(12, 16, 0, 0), ist(13, 9, 15, 0), "on Tue, 13 Oct at 09:15 IST"},
		{"during the session", ist(14, 10, 0, 0), ist(15, 9, 15, 0), "on Thu, 15 Oct at 09:15 IST"},
		{"friday after close", ist(16, 15, 45, 0), ist(19, 9, 15, 0), "on Mon, 19 Oct at 09:15 IST"},
		{"saturday", ist(17, 10, 0, 0), ist(19, 9, 15, 0), "on Mon, 19 Oct at 09:15 IST"},
		{"sunday", ist(18, 23, 59, 0), ist(19, 9, 15, 0), "on Mon, 19 Oct at 09:15 IST"},
		{"utc sunday evening is monday morning in IST", time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC), ist(19, 9, 15, 0), "today at 09:15 IST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clock.NextOpen(tt.at)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
			assert.Equal(t, tt.wantText, clock.DescribeNextOpen(tt.at))
		})
	}
}

func TestSessionClock_Status(t *testing.T) {
	clock := NewSessionClock(DefaultSessionConfig())
	info := clock.Status(ist(17, 10, 0, 0))
	assert.False(t, info.Open)
	assert.Equal(t, "on Mon, 19 Oct at 09:15 IST", info.Description)
	assert.True(t, info.NextOpen.Equal(ist(19, 9, 15, 0)))
}

func TestParseClockTimeAndOffset(t *testing.T) {
	ct, err := ParseClockTime("09:15")
	require.NoError(t, err)
	assert.Equal(t, 555, ct.Minutes())
	assert.Equal(t, "09:15", ct.String())

	for _, bad := range []string{"", "9", "24:00", "09:60", "ab:cd"} {
		_, err := ParseClockTime(bad)
		assert.Error(t, err, bad)
	}

	loc, err := ParseUTCOffset("IST", "+05:30")
	require.NoError(t, err)
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 19800, offset)

	loc, err = ParseUTCOffset("EST", "-05:00")
	require.NoError(t, err)
	_, offset = time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, -18000, offset)

	_, err = ParseUTCOffset("X", "")
	assert.Error(t, err)
}

// Property: weekends in IST are always closed, trading-day instants inside
// 09:15-15:30 are always open, and the next open is a future trading-day open.
func TestProperty_SessionWindow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	clock := NewSessionClock(DefaultSessionConfig())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	end := time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	instantGen := gen.Int64Range(start, end)

	properties.Property("weekends are closed", prop.ForAll(
		func(sec int64) bool {
			local := time.Unix(sec, 0).In(IndiaLocation)
			if local.Weekday() != time.Saturday && local.Weekday() != time.Sunday {
				return true
			}
			return !clock.IsOpen(local)
		},
		instantGen,
	))

	properties.Property("open iff weekday and inside the window", prop.ForAll(
		func(sec int64) bool {
			local := time.Unix(sec, 0).In(IndiaLocation)
			weekday := local.Weekday() != time.Saturday && local.Weekday() != time.Sunday
			mins := local.Hour()*60 + local.Minute()
			inWindow := mins >= 9*60+15 && mins <= 15*60+30
			return clock.IsOpen(local) == (weekday && inWindow)
		},
		instantGen,
	))

	properties.Property("next open is a later trading-day open within four days", prop.ForAll(
		func(sec int64) bool {
			at := time.Unix(sec, 0)
			next := clock.NextOpen(at)
			local := next.In(IndiaLocation)
			return next.After(at) &&
				next.Sub(at) <= 4*24*time.Hour &&
				local.Hour() == 9 && local.Minute() == 15 &&
				clock.IsOpen(next) &&
				clock.DescribeNextOpen(at) != ""
		},
		instantGen,
	))

	properties.TestingRun(t)
}
