package resolve

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"tasknerd/internal/types"
)

// absoluteLayouts are tried in order. Layouts without a year get the
// current year (rolled forward when the day already passed).
var absoluteLayouts = []struct {
	layout  string
	hasYear bool
	hasTime bool
}{
	{time.RFC3339, true, true},
	{"2006-01-02 15:04:05", true, true},
	{"2006-01-02 15:04", true, true},
	{"2006-01-02T15:04", true, true},
	{"2006-01-02", true, false},
	{"2006/01/02", true, false},
	{"01/02/2006", true, false},
	{"Jan 2 2006", true, false},
	{"Jan 2, 2006", true, false},
	{"January 2 2006", true, false},
	{"January 2, 2006", true, false},
	{"2 Jan 2006", true, false},
	{"2 January 2006", true, false},
	{"Jan 2", false, false},
	{"January 2", false, false},
	{"2 Jan", false, false},
	{"2 January", false, false},
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var smallNumbers = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var (
	weekdayRe  = regexp.MustCompile(`^(?:(next|this|coming)\s+)?([a-z]+)$`)
	relativeRe = regexp.MustCompile(`^in\s+(\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten)\s+(day|days|week|weeks|month|months)$`)
	ordinalDay = regexp.MustCompile(`(\d+)(st|nd|rd|th)\b`)
	clockRe    = regexp.MustCompile(`\d{1,2}(:\d{2})?\s*(am|pm)\b|\b\d{1,2}:\d{2}\b|\bnoon\b|\bmidnight\b`)
)

// dateParser resolves date expressions against an injected clock in one
// pinned timezone.
type dateParser struct {
	loc  *time.Location
	now  func() time.Time
	fall *when.Parser
}

func newDateParser(loc *time.Location, now func() time.Time) *dateParser {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &dateParser{loc: loc, now: now, fall: w}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// mondayOf returns 00:00 of the Monday starting t's week.
func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return midnight(t).AddDate(0, 0, -offset)
}

func cleanDate(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, `"'.`)
	s = strings.Join(strings.Fields(s), " ")
	for _, prefix := range []string{"due on ", "due by ", "due ", "by ", "on ", "until "} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimPrefix(s, "the ")
	return s
}

func (p *dateParser) resolve(raw string) types.ResolvedEntity {
	e := types.ResolvedEntity{Kind: types.EntityDate, Raw: raw, Status: types.NotFound}
	s := cleanDate(raw)
	if s == "" {
		return e
	}

	now := p.now().In(p.loc)
	today := midnight(now)

	at := func(t time.Time) types.ResolvedEntity {
		e.Status = types.Resolved
		e.Time = &t
		if t.Equal(midnight(t)) {
			e.Literal = t.Format("2006-01-02")
		} else {
			e.Literal = t.Format(time.RFC3339)
		}
		e.Name = e.Literal
		return e
	}
	span := func(start, end time.Time) types.ResolvedEntity {
		e.Status = types.Resolved
		e.Range = &types.DateRange{Start: start, End: end}
		e.Time = &start
		e.Literal = start.Format("2006-01-02") + "/" + end.Format("2006-01-02")
		e.Name = e.Literal
		return e
	}

	switch s {
	case "today", "tonight", "now":
		return at(today)
	case "tomorrow", "tmr", "tmrw":
		return at(today.AddDate(0, 0, 1))
	case "yesterday":
		return at(today.AddDate(0, 0, -1))
	case "day after tomorrow":
		return at(today.AddDate(0, 0, 2))
	case "this week":
		mon := mondayOf(today)
		return span(mon, mon.AddDate(0, 0, 7))
	case "next week":
		mon := mondayOf(today).AddDate(0, 0, 7)
		return span(mon, mon.AddDate(0, 0, 7))
	case "end of week", "end of the week", "eow", "this weekend", "weekend":
		return at(mondayOf(today).AddDate(0, 0, 6))
	case "end of month", "end of the month", "eom":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, p.loc)
		return at(first.AddDate(0, 1, -1))
	case "next month":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, p.loc)
		return at(first.AddDate(0, 1, 0))
	}

	if m := relativeRe.FindStringSubmatch(s); m != nil {
		n, ok := smallNumbers[m[1]]
		if !ok {
			n, _ = strconv.Atoi(m[1])
		}
		switch {
		case strings.HasPrefix(m[2], "day"):
			return at(today.AddDate(0, 0, n))
		case strings.HasPrefix(m[2], "week"):
			return at(today.AddDate(0, 0, 7*n))
		default:
			return at(today.AddDate(0, n, 0))
		}
	}

	if m := weekdayRe.FindStringSubmatch(s); m != nil {
		if wd, ok := weekdays[m[2]]; ok {
			diff := (int(wd) - int(today.Weekday()) + 7) % 7
			if m[1] == "next" && diff == 0 {
				diff = 7
			}
			return at(today.AddDate(0, 0, diff))
		}
	}

	for _, cand := range []string{raw, s} {
		if t, ok := p.parseAbsolute(cand, today); ok {
			return at(t)
		}
	}

	if r, err := p.fall.Parse(s, now); err == nil && r != nil {
		t := r.Time.In(p.loc)
		if !clockRe.MatchString(r.Text) {
			t = midnight(t)
		}
		return at(t)
	}
	return e
}

func (p *dateParser) parseAbsolute(raw string, today time.Time) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	s = ordinalDay.ReplaceAllString(s, "$1")
	s = strings.Join(strings.Fields(s), " ")
	for _, l := range absoluteLayouts {
		t, err := time.ParseInLocation(l.layout, s, p.loc)
		if err != nil {
			continue
		}
		if !l.hasYear {
			t = time.Date(today.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc)
			if t.Before(today) {
				t = t.AddDate(1, 0, 0)
			}
		}
		if !l.hasTime {
			t = midnight(t)
		}
		return t.In(p.loc), true
	}
	return time.Time{}, false
}
