package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasknerd/internal/types"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDates_Relative(t *testing.T) {
	p := newDateParser(time.UTC, fixedNow) // Wednesday 2026-03-04

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"today", day(2026, 3, 4)},
		{"tomorrow", day(2026, 3, 5)},
		{"by tomorrow", day(2026, 3, 5)},
		{"yesterday", day(2026, 3, 3)},
		{"day after tomorrow", day(2026, 3, 6)},
		{"Friday", day(2026, 3, 6)},
		{"this friday", day(2026, 3, 6)},
		{"next Friday", day(2026, 3, 6)},
		{"wednesday", day(2026, 3, 4)},
		{"next wednesday", day(2026, 3, 11)},
		{"monday", day(2026, 3, 9)},
		{"in 3 days", day(2026, 3, 7)},
		{"in two weeks", day(2026, 3, 18)},
		{"in 1 month", day(2026, 4, 4)},
		{"end of week", day(2026, 3, 8)},
		{"end of month", day(2026, 3, 31)},
		{"next month", day(2026, 4, 1)},
	}
	for _, tt := range tests {
		e := p.resolve(tt.raw)
		require.Equal(t, types.Resolved, e.Status, tt.raw)
		require.NotNil(t, e.Time, tt.raw)
		assert.True(t, tt.want.Equal(*e.Time), "%q: got %v want %v", tt.raw, *e.Time, tt.want)
		assert.Equal(t, tt.want.Format("2006-01-02"), e.Literal, tt.raw)
	}
}

func TestDates_WeekRanges(t *testing.T) {
	p := newDateParser(time.UTC, fixedNow)

	e := p.resolve("this week")
	require.Equal(t, types.Resolved, e.Status)
	require.NotNil(t, e.Range)
	assert.True(t, day(2026, 3, 2).Equal(e.Range.Start))
	assert.True(t, day(2026, 3, 9).Equal(e.Range.End))

	e = p.resolve("next week")
	require.NotNil(t, e.Range)
	assert.True(t, day(2026, 3, 9).Equal(e.Range.Start))
	assert.True(t, day(2026, 3, 16).Equal(e.Range.End))
	assert.Equal(t, "2026-03-09/2026-03-16", e.Literal)
}

func TestDates_Absolute(t *testing.T) {
	p := newDateParser(time.UTC, fixedNow)

	tests := []struct {
		raw     string
		want    time.Time
		literal string
	}{
		{"2026-05-01", day(2026, 5, 1), "2026-05-01"},
		{"05/01/2026", day(2026, 5, 1), "2026-05-01"},
		{"May 1, 2026", day(2026, 5, 1), "2026-05-01"},
		{"1 May 2026", day(2026, 5, 1), "2026-05-01"},
		{"may 1st", day(2026, 5, 1), "2026-05-01"},
		{"Jan 15", day(2027, 1, 15), "2027-01-15"},
		{"2026-05-01 14:30", time.Date(2026, 5, 1, 14, 30, 0, 0, time.UTC), "2026-05-01T14:30:00Z"},
	}
	for _, tt := range tests {
		e := p.resolve(tt.raw)
		require.Equal(t, types.Resolved, e.Status, tt.raw)
		assert.True(t, tt.want.Equal(*e.Time), "%q: got %v", tt.raw, *e.Time)
		assert.Equal(t, tt.literal, e.Literal, tt.raw)
	}
}

func TestDates_PinnedTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 2026-03-04 20:00 UTC is already Thursday in UTC+9.
	now := func() time.Time { return time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC) }
	p := newDateParser(loc, now)

	e := p.resolve("today")
	require.Equal(t, types.Resolved, e.Status)
	assert.Equal(t, "2026-03-05", e.Literal)
	assert.Equal(t, loc, e.Time.Location())
}

func TestDates_Unparseable(t *testing.T) {
	p := newDateParser(time.UTC, fixedNow)
	for _, raw := range []string{"", "   ", "purple elephant", "blue"} {
		e := p.resolve(raw)
		assert.Equal(t, types.NotFound, e.Status, raw)
		assert.Nil(t, e.Time, raw)
	}
}
