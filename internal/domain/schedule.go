package domain

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Mode identifies how a schedule generates occurrences.
type Mode string

const (
	ModeOnce     Mode = "once"
	ModeDaily    Mode = "daily"
	ModeWeekly   Mode = "weekly"
	ModeMonthly  Mode = "monthly"
	ModeInterval Mode = "interval"
	ModePrayer   Mode = "prayer"
)

// ParseMode is case-insensitive. ok is false for unknown modes.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeOnce, ModeDaily, ModeWeekly, ModeMonthly, ModeInterval, ModePrayer:
		return m, true
	}
	return "", false
}

var weekdayCodes = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// WeekdayCode returns the two-letter code of wd (SU..SA).
func WeekdayCode(wd time.Weekday) string { return weekdayCodes[wd] }

// ParseWeekday accepts codes (MO) and English names (monday, Mon).
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return 0, false
	}
	for i, code := range weekdayCodes {
		if s == code || (len(s) >= 3 && strings.HasPrefix(strings.ToUpper(time.Weekday(i).String()), s)) {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// WeekdaySet is a bitmask over time.Weekday.
type WeekdaySet uint8

const AllWeekdays WeekdaySet = 1<<7 - 1

func (s WeekdaySet) Has(wd time.Weekday) bool        { return s&(1<<uint(wd)) != 0 }
func (s WeekdaySet) With(wd time.Weekday) WeekdaySet { return s | 1<<uint(wd) }

// Days lists the members in Sunday-first order.
func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if s.Has(wd) {
			out = append(out, wd)
		}
	}
	return out
}

func (s WeekdaySet) String() string {
	codes := make([]string, 0, 7)
	for _, wd := range s.Days() {
		codes = append(codes, WeekdayCode(wd))
	}
	return strings.Join(codes, ",")
}

// Rule is the mode-specific part of a Schedule. Each variant carries only the
// fields its mode consults.
type Rule interface {
	Mode() Mode
}

type OnceRule struct {
	At Clock
}

type DailyRule struct {
	Times []Clock // ascending, unique
}

type WeeklyRule struct {
	Days  WeekdaySet // never empty
	Times []Clock
}

// MonthlyRule fires on Schedule.Start's day of month, clamped to the month's last day.
type MonthlyRule struct {
	Times []Clock
}

type IntervalRule struct {
	Anchor     Clock // combined with Schedule.Start
	EveryHours int   // > 0
}

type PrayerRule struct {
	Name          PrayerName
	Direction     Direction
	OffsetMinutes int // >= 0
}

func (OnceRule) Mode() Mode     { return ModeOnce }
func (DailyRule) Mode() Mode    { return ModeDaily }
func (WeeklyRule) Mode() Mode   { return ModeWeekly }
func (MonthlyRule) Mode() Mode  { return ModeMonthly }
func (IntervalRule) Mode() Mode { return ModeInterval }
func (PrayerRule) Mode() Mode   { return ModePrayer }

// Step returns the interval length.
func (r IntervalRule) Step() time.Duration { return time.Duration(r.EveryHours) * time.Hour }

// Shift returns the signed offset to apply to the prayer time.
func (r PrayerRule) Shift() time.Duration {
	d := time.Duration(r.OffsetMinutes) * time.Minute
	if r.Direction == Before {
		return -d
	}
	return d
}

// Schedule is the canonical, normalized schedule of a reminder.
type Schedule struct {
	Rule     Rule
	Start    Date
	End      *Date // inclusive; nil = unbounded
	Exdates  map[Date]struct{}
	Timezone string // IANA name; empty = use Settings.Timezone
}

func (s Schedule) Mode() Mode {
	if s.Rule == nil {
		return ModeDaily
	}
	return s.Rule.Mode()
}

// Excluded reports whether d is an exdate.
func (s Schedule) Excluded(d Date) bool {
	_, ok := s.Exdates[d]
	return ok
}

// Within reports whether d lies in [Start, End].
func (s Schedule) Within(d Date) bool {
	if d.Before(s.Start) {
		return false
	}
	return s.End == nil || !d.After(*s.End)
}

// pastEnd reports whether d is after End.
func (s Schedule) pastEnd(d Date) bool {
	return s.End != nil && d.After(*s.End)
}

// Location resolves the schedule's zone, falling back to def and then UTC.
func (s Schedule) Location(def string) *time.Location {
	for _, name := range []string{s.Timezone, def} {
		if name == "" {
			continue
		}
		if loc, err := LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// ExdateList returns the exdates in ascending order.
func (s Schedule) ExdateList() []Date {
	out := make([]Date, 0, len(s.Exdates))
	for d := range s.Exdates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

var zones sync.Map // name -> *time.Location

// LoadLocation is time.LoadLocation with a process-wide cache; the tick loop
// resolves zones for every reminder on every tick.
func LoadLocation(name string) (*time.Location, error) {
	if v, ok := zones.Load(name); ok {
		return v.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	zones.Store(name, loc)
	return loc, nil
}
