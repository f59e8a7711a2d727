package domain

import "sort"

// RawSchedule is the schedule as edited in the UI: loosely typed and possibly
// partially filled. Fields that do not apply to the mode are ignored.
type RawSchedule struct {
	Mode       string       `json:"mode" yaml:"mode"`
	Times      []string     `json:"times,omitempty" yaml:"times,omitempty"`
	DaysOfWeek []string     `json:"daysOfWeek,omitempty" yaml:"days_of_week,omitempty"`
	StartDate  string       `json:"startDate,omitempty" yaml:"start_date,omitempty"`
	EndDate    string       `json:"endDate,omitempty" yaml:"end_date,omitempty"`
	Interval   *RawInterval `json:"interval,omitempty" yaml:"interval,omitempty"`
	Prayer     *RawPrayer   `json:"prayer,omitempty" yaml:"prayer,omitempty"`
	Exdates    []string     `json:"exdates,omitempty" yaml:"exdates,omitempty"`
	Timezone   string       `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

type RawInterval struct {
	Every int    `json:"every" yaml:"every"`
	Unit  string `json:"unit,omitempty" yaml:"unit,omitempty"` // only "hours" is supported
}

type RawPrayer struct {
	Name          string `json:"name" yaml:"name"`
	Direction     string `json:"direction" yaml:"direction"`
	OffsetMinutes int    `json:"offsetMinutes" yaml:"offset_minutes"`
}

var defaultTimes = []Clock{NewClock(9, 0)}

// Normalize turns raw into a canonical Schedule. It never fails: missing or
// unparseable values are replaced by defaults, and today is used when the
// start date is absent.
func Normalize(raw RawSchedule, today Date) Schedule {
	s := Schedule{
		Start:   today,
		Exdates: map[Date]struct{}{},
	}
	if d, err := ParseDate(raw.StartDate); err == nil {
		s.Start = d
	}
	if raw.EndDate != "" {
		if d, err := ParseDate(raw.EndDate); err == nil {
			s.End = &d
		}
	}
	for _, e := range raw.Exdates {
		if d, err := ParseDate(e); err == nil {
			s.Exdates[d] = struct{}{}
		}
	}
	if raw.Timezone != "" {
		if _, err := LoadLocation(raw.Timezone); err == nil {
			s.Timezone = raw.Timezone
		}
	}

	mode, ok := ParseMode(raw.Mode)
	if !ok {
		mode = ModeDaily
	}
	times := normalizeTimes(raw.Times)

	switch mode {
	case ModeOnce:
		s.Rule = OnceRule{At: firstClock(raw.Times)}
	case ModeWeekly:
		s.Rule = WeeklyRule{Days: normalizeDays(raw.DaysOfWeek), Times: times}
	case ModeMonthly:
		s.Rule = MonthlyRule{Times: times}
	case ModeInterval:
		every := 1
		if raw.Interval != nil && raw.Interval.Every > 0 {
			every = raw.Interval.Every
		}
		s.Rule = IntervalRule{Anchor: firstClock(raw.Times), EveryHours: every}
	case ModePrayer:
		s.Rule = normalizePrayer(raw.Prayer)
	default:
		s.Rule = DailyRule{Times: times}
	}
	return s
}

func normalizeTimes(in []string) []Clock {
	seen := make(map[Clock]bool, len(in))
	out := make([]Clock, 0, len(in))
	for _, t := range in {
		c, err := ParseClock(t)
		if err != nil || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return append([]Clock(nil), defaultTimes...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// firstClock returns the first parseable entry in input order.
func firstClock(in []string) Clock {
	for _, t := range in {
		if c, err := ParseClock(t); err == nil {
			return c
		}
	}
	return defaultTimes[0]
}

// normalizeDays treats "no days chosen" as every day so a weekly reminder is
// never silently inert.
func normalizeDays(in []string) WeekdaySet {
	var set WeekdaySet
	for _, d := range in {
		if wd, ok := ParseWeekday(d); ok {
			set = set.With(wd)
		}
	}
	if set == 0 {
		return AllWeekdays
	}
	return set
}

func normalizePrayer(raw *RawPrayer) PrayerRule {
	r := PrayerRule{Name: Fajr, Direction: After}
	if raw == nil {
		return r
	}
	if n, ok := ParsePrayerName(raw.Name); ok {
		r.Name = n
	}
	if d, ok := ParseDirection(raw.Direction); ok {
		r.Direction = d
	}
	if raw.OffsetMinutes > 0 {
		r.OffsetMinutes = raw.OffsetMinutes
	}
	return r
}
