package domain

import (
	"time"

	"github.com/teambition/rrule-go"
)

// Outcome classifies the result of an occurrence lookup.
type Outcome int

const (
	// Found means an occurrence was returned.
	Found Outcome = iota
	// Terminal means no occurrence after the reference instant can ever exist.
	Terminal
	// Unavailable means prayer data was missing for every date inspected; a
	// later call may succeed once the provider has refreshed.
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Terminal:
		return "terminal"
	default:
		return "unavailable"
	}
}

// prayerHorizonDays bounds the date-by-date scan of prayer schedules.
const prayerHorizonDays = 400

// Calculator computes occurrences. The zero value is ready to use.
type Calculator struct {
	// OnCandidate, when set, is called for every candidate instant evaluated.
	OnCandidate func(time.Time)
}

var defaultCalculator Calculator

// NextOccurrence returns the earliest occurrence of s strictly after after.
// ok is false when there is none.
func NextOccurrence(s Schedule, lookup PrayerLookup, after time.Time, loc *time.Location) (time.Time, bool) {
	return defaultCalculator.Next(s, lookup, after, loc)
}

// Upcoming returns up to n occurrences of s strictly after after, ascending.
func Upcoming(s Schedule, lookup PrayerLookup, after time.Time, loc *time.Location, n int) []time.Time {
	return defaultCalculator.Upcoming(s, lookup, after, loc, n)
}

func (c Calculator) Next(s Schedule, lookup PrayerLookup, after time.Time, loc *time.Location) (time.Time, bool) {
	t, out := c.Resolve(s, lookup, after, loc)
	return t, out == Found
}

// Resolve is Next with the reason for a missing occurrence.
func (c Calculator) Resolve(s Schedule, lookup PrayerLookup, after time.Time, loc *time.Location) (time.Time, Outcome) {
	if loc == nil {
		loc = time.UTC
	}
	switch r := s.Rule.(type) {
	case OnceRule:
		return c.once(s, r, after, loc)
	case IntervalRule:
		return c.interval(s, r, after, loc)
	case PrayerRule:
		return c.prayer(s, r, lookup, after, loc)
	case DailyRule, WeeklyRule, MonthlyRule:
		return c.recurring(s, after, loc)
	default:
		s.Rule = DailyRule{Times: defaultTimes}
		return c.recurring(s, after, loc)
	}
}

func (c Calculator) Upcoming(s Schedule, lookup PrayerLookup, after time.Time, loc *time.Location, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for len(out) < n {
		t, ok := c.Next(s, lookup, after, loc)
		if !ok {
			break
		}
		out = append(out, t)
		after = t
	}
	return out
}

func (c Calculator) observe(t time.Time) {
	if c.OnCandidate != nil {
		c.OnCandidate(t)
	}
}

func (c Calculator) once(s Schedule, r OnceRule, after time.Time, loc *time.Location) (time.Time, Outcome) {
	t := s.Start.At(r.At, loc)
	c.observe(t)
	d := DateOf(t, loc)
	if !t.After(after) || s.Excluded(d) || !s.Within(d) {
		return time.Time{}, Terminal
	}
	return t, Found
}

// interval jumps straight to the first aligned step after the reference, so
// the cost does not depend on how much time has elapsed since the anchor.
func (c Calculator) interval(s Schedule, r IntervalRule, after time.Time, loc *time.Location) (time.Time, Outcome) {
	anchor := s.Start.At(r.Anchor, loc)
	step := r.Step()
	if step <= 0 {
		step = time.Hour
	}
	ref := after
	// each miss skips past one excluded date
	for i := 0; i <= len(s.Exdates); i++ {
		var k int64
		if !ref.Before(anchor) {
			k = int64(ref.Sub(anchor)/step) + 1
		}
		t := anchor.Add(time.Duration(k) * step)
		c.observe(t)
		d := DateOf(t, loc)
		if s.pastEnd(d) {
			return time.Time{}, Terminal
		}
		if !s.Excluded(d) {
			return t, Found
		}
		ref = endOfDay(d, loc)
	}
	return time.Time{}, Terminal
}

// prayer walks forward one date at a time. Dates the lookup cannot answer are
// skipped rather than ending the sequence.
func (c Calculator) prayer(s Schedule, r PrayerRule, lookup PrayerLookup, after time.Time, loc *time.Location) (time.Time, Outcome) {
	if lookup == nil {
		return time.Time{}, Unavailable
	}
	// start a day early: an offset can move a prayer across midnight
	d := maxDate(DateOf(after, loc).AddDays(-1), s.Start.AddDays(-1))
	missing := false
	for i := 0; i < prayerHorizonDays; i, d = i+1, d.AddDays(1) {
		if s.pastEnd(d.AddDays(-1)) {
			break
		}
		times, ok := lookup(d)
		if !ok {
			missing = missing || s.Within(d)
			continue
		}
		clock, ok := times[r.Name]
		if !ok {
			missing = missing || s.Within(d)
			continue
		}
		t := d.At(clock, loc).Add(r.Shift())
		c.observe(t)
		// range and exdates apply to the calendar date the reminder lands on
		if td := DateOf(t, loc); !t.After(after) || !s.Within(td) || s.Excluded(td) {
			continue
		}
		return t, Found
	}
	if missing || !s.pastEnd(d) {
		return time.Time{}, Unavailable
	}
	return time.Time{}, Terminal
}

// recurring handles Daily, Weekly and Monthly through RRULEs, one per time of
// day; the next occurrence is the earliest any of them yields.
func (c Calculator) recurring(s Schedule, after time.Time, loc *time.Location) (time.Time, Outcome) {
	from := maxDate(DateOf(after, loc).AddDays(-1), s.Start)
	if s.pastEnd(from) {
		return time.Time{}, Terminal
	}
	if _, ok := s.Rule.(MonthlyRule); ok {
		if first := NewDate(from.Year, from.Month, 1); first.After(s.Start) {
			from = first
		} else {
			from = s.Start
		}
	}
	rules, err := timeRules(s, from, loc)
	if err != nil {
		return time.Time{}, Terminal
	}

	t := after
	for i := 0; i <= len(s.Exdates); i++ {
		t = earliestAfter(rules, t)
		if t.IsZero() {
			return time.Time{}, Terminal
		}
		c.observe(t)
		d := DateOf(t, loc)
		if s.pastEnd(d) {
			return time.Time{}, Terminal
		}
		if !s.Excluded(d) {
			return t, Found
		}
		t = endOfDay(d, loc)
	}
	return time.Time{}, Terminal
}

// earliestAfter returns the smallest instant strictly after t produced by any
// of rules, or the zero time when all of them are exhausted.
func earliestAfter(rules []*rrule.RRule, t time.Time) time.Time {
	var best time.Time
	for _, r := range rules {
		next := r.After(t, false)
		if next.IsZero() {
			continue
		}
		if best.IsZero() || next.Before(best) {
			best = next
		}
	}
	return best
}

// timeRules builds one RRULE per time of day. An rrule.Set holds a single
// RRULE, so the rules are kept apart and merged by earliestAfter.
func timeRules(s Schedule, from Date, loc *time.Location) ([]*rrule.RRule, error) {
	base := rrule.ROption{Freq: rrule.DAILY, Interval: 1}
	if s.End != nil {
		base.Until = endOfDay(*s.End, loc)
	}

	var times []Clock
	switch r := s.Rule.(type) {
	case DailyRule:
		times = r.Times
	case WeeklyRule:
		base.Freq = rrule.WEEKLY
		base.Byweekday = rruleWeekdays(r.Days)
		times = r.Times
	case MonthlyRule:
		base.Freq = rrule.MONTHLY
		base.Bymonthday, base.Bysetpos = clampedMonthDay(s.Start.Day)
		times = r.Times
	}
	if len(times) == 0 {
		times = defaultTimes
	}

	rules := make([]*rrule.RRule, 0, len(times))
	for _, tm := range times {
		opt := base
		opt.Dtstart = from.At(tm, loc)
		// explicit so a DST-shifted dtstart does not move every later occurrence
		opt.Byhour = []int{tm.Hour()}
		opt.Byminute = []int{tm.Minute()}
		opt.Bysecond = []int{0}
		r, err := rrule.NewRRule(opt)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// clampedMonthDay selects day of each month, or the month's last day when it
// is shorter: BYMONTHDAY=28..day with BYSETPOS=-1 picks the largest day that
// exists.
func clampedMonthDay(day int) (days, setpos []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}

func rruleWeekdays(set WeekdaySet) []rrule.Weekday {
	byDay := map[time.Weekday]rrule.Weekday{
		time.Sunday:    rrule.SU,
		time.Monday:    rrule.MO,
		time.Tuesday:   rrule.TU,
		time.Wednesday: rrule.WE,
		time.Thursday:  rrule.TH,
		time.Friday:    rrule.FR,
		time.Saturday:  rrule.SA,
	}
	out := make([]rrule.Weekday, 0, 7)
	for _, wd := range set.Days() {
		out = append(out, byDay[wd])
	}
	return out
}

// endOfDay is the last representable instant of d in loc.
func endOfDay(d Date, loc *time.Location) time.Time {
	return d.AddDays(1).Midnight(loc).Add(-time.Nanosecond)
}
