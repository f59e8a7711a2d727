package domain

import (
	"testing"
	"time"
)

func schedule(t *testing.T, raw RawSchedule) Schedule {
	t.Helper()
	return Normalize(raw, NewDate(2025, time.January, 1))
}

func TestNextOccurrence_Once(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "once", StartDate: "2025-01-01", Times: []string{"08:00"}})
	loc := time.UTC

	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2024, time.December, 31, 23, 0), loc)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.January, 1, 8, 0))

	if got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2025, time.January, 1, 8, 0), loc); ok {
		t.Fatalf("want no occurrence, got %s", got)
	}
}

func TestNextOccurrence_DailyMultipleTimes(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "daily", StartDate: "2025-03-01", Times: []string{"18:30", "07:15"}})
	loc := mustLoc(t, "Europe/Moscow")

	after := mustLocalUTC(t, "Europe/Moscow", 2025, time.March, 10, 7, 15)
	got, ok := NextOccurrence(s, nil, after, loc)
	wantTime(t, got, ok, mustLocalUTC(t, "Europe/Moscow", 2025, time.March, 10, 18, 30))

	got, ok = NextOccurrence(s, nil, got, loc)
	wantTime(t, got, ok, mustLocalUTC(t, "Europe/Moscow", 2025, time.March, 11, 7, 15))
}

func TestNextOccurrence_BeforeStartDate(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "daily", StartDate: "2025-03-01", Times: []string{"09:00"}})
	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2025, time.February, 1, 0, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.March, 1, 9, 0))
}

func TestNextOccurrence_EndDateInclusive(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "daily", StartDate: "2025-03-01", EndDate: "2025-03-05", Times: []string{"09:00"}})

	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2025, time.March, 4, 10, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.March, 5, 9, 0))

	if got, ok := NextOccurrence(s, nil, got, time.UTC); ok {
		t.Fatalf("want no occurrence after end date, got %s", got)
	}
}

func TestNextOccurrence_DailyKeepsWallClockAcrossDST(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "daily", StartDate: "2025-03-01", Times: []string{"09:00"}})
	loc := mustLoc(t, "Europe/Berlin")

	// 2025-03-30 is the spring-forward day in Berlin
	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "Europe/Berlin", 2025, time.March, 29, 10, 0), loc)
	wantTime(t, got, ok, time.Date(2025, time.March, 30, 7, 0, 0, 0, time.UTC))
}

func TestNextOccurrence_Exdate(t *testing.T) {
	s := schedule(t, RawSchedule{
		Mode:      "daily",
		StartDate: "2025-03-01",
		Times:     []string{"09:00"},
		Exdates:   []string{"2025-03-11"},
	})
	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2025, time.March, 10, 9, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.March, 12, 9, 0))
}

func TestNextOccurrence_Weekly(t *testing.T) {
	s := schedule(t, RawSchedule{
		Mode:       "weekly",
		StartDate:  "2025-05-01",
		DaysOfWeek: []string{"MO", "WE"},
		Times:      []string{"18:00"},
	})
	// 2025-05-06 is a Tuesday
	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2025, time.May, 6, 9, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.May, 7, 18, 0))

	got, ok = NextOccurrence(s, nil, got, time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.May, 12, 18, 0))
}

func TestNextOccurrence_WeeklyTwoTimes(t *testing.T) {
	s := schedule(t, RawSchedule{
		Mode:       "weekly",
		StartDate:  "2025-03-01",
		DaysOfWeek: []string{"MO"},
		Times:      []string{"19:00", "07:00"},
	})
	got := Upcoming(s, nil, mustLocalUTC(t, "UTC", 2025, time.March, 9, 12, 0), time.UTC, 4)
	want := []time.Time{
		mustLocalUTC(t, "UTC", 2025, time.March, 10, 7, 0),
		mustLocalUTC(t, "UTC", 2025, time.March, 10, 19, 0),
		mustLocalUTC(t, "UTC", 2025, time.March, 17, 7, 0),
		mustLocalUTC(t, "UTC", 2025, time.March, 17, 19, 0),
	}
	if len(got) != len(want) {
		t.Fatalf("want %d occurrences, got %v", len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("occurrence %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestNextOccurrence_DailyTwoTimesEveryHour(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "daily", StartDate: "2025-03-10", Times: []string{"08:00", "20:00"}})
	var seen []time.Time
	after := mustLocalUTC(t, "UTC", 2025, time.March, 10, 0, 0)
	for h := 1; h <= 24; h++ {
		now := mustLocalUTC(t, "UTC", 2025, time.March, 10, 0, 0).Add(time.Duration(h) * time.Hour)
		if next, ok := NextOccurrence(s, nil, after, time.UTC); ok && !next.After(now) {
			seen = append(seen, next)
			after = next
		}
	}
	if len(seen) != 2 || seen[0].Hour() != 8 || seen[1].Hour() != 20 {
		t.Fatalf("want 08:00 and 20:00, got %v", seen)
	}
}

func TestNextOccurrence_WeeklyNoDaysMeansEveryDay(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "weekly", StartDate: "2025-05-01", Times: []string{"18:00"}})
	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2025, time.May, 6, 19, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.May, 7, 18, 0))
}

func TestNextOccurrence_MonthlyClampsToLastDay(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "monthly", StartDate: "2025-01-31", Times: []string{"10:00"}})

	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2025, time.January, 31, 10, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.February, 28, 10, 0))

	got, ok = NextOccurrence(s, nil, got, time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.March, 31, 10, 0))

	got, ok = NextOccurrence(s, nil, got, time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.April, 30, 10, 0))
}

func TestNextOccurrence_MonthlyTwoTimes(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "monthly", StartDate: "2025-01-31", Times: []string{"18:00", "08:00"}})
	got := Upcoming(s, nil, mustLocalUTC(t, "UTC", 2025, time.February, 1, 0, 0), time.UTC, 3)
	want := []time.Time{
		mustLocalUTC(t, "UTC", 2025, time.February, 28, 8, 0),
		mustLocalUTC(t, "UTC", 2025, time.February, 28, 18, 0),
		mustLocalUTC(t, "UTC", 2025, time.March, 31, 8, 0),
	}
	if len(got) != len(want) {
		t.Fatalf("want %d occurrences, got %v", len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("occurrence %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestNextOccurrence_MonthlyLeapYear(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "monthly", StartDate: "2024-01-31", Times: []string{"10:00"}})
	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2024, time.February, 1, 0, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2024, time.February, 29, 10, 0))
}

func TestNextOccurrence_MonthlyShortDay(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "monthly", StartDate: "2025-01-15", Times: []string{"10:00"}})
	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2025, time.June, 20, 0, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.July, 15, 10, 0))
}

func TestNextOccurrence_IntervalJumpsInConstantTime(t *testing.T) {
	s := schedule(t, RawSchedule{
		Mode:      "interval",
		StartDate: "2025-01-01",
		Times:     []string{"00:00"},
		Interval:  &RawInterval{Every: 4, Unit: "hours"},
	})
	t0 := mustLocalUTC(t, "UTC", 2025, time.January, 1, 0, 0)

	calls := 0
	calc := Calculator{OnCandidate: func(time.Time) { calls++ }}

	got, ok := calc.Next(s, nil, t0.Add(1000*time.Hour), time.UTC)
	wantTime(t, got, ok, t0.Add(1004*time.Hour))
	if calls != 1 {
		t.Fatalf("want 1 candidate evaluated, got %d", calls)
	}

	calls = 0
	got, ok = calc.Next(s, nil, t0.Add(1001*time.Hour), time.UTC)
	wantTime(t, got, ok, t0.Add(1004*time.Hour))
	if calls != 1 {
		t.Fatalf("want 1 candidate evaluated, got %d", calls)
	}
}

func TestNextOccurrence_IntervalBeforeAnchor(t *testing.T) {
	s := schedule(t, RawSchedule{
		Mode:      "interval",
		StartDate: "2025-01-10",
		Times:     []string{"06:00"},
		Interval:  &RawInterval{Every: 3},
	})
	anchor := mustLocalUTC(t, "UTC", 2025, time.January, 10, 6, 0)

	got, ok := NextOccurrence(s, nil, anchor.Add(-time.Nanosecond), time.UTC)
	wantTime(t, got, ok, anchor)

	got, ok = NextOccurrence(s, nil, anchor, time.UTC)
	wantTime(t, got, ok, anchor.Add(3*time.Hour))
}

func TestNextOccurrence_IntervalSkipsExdate(t *testing.T) {
	s := schedule(t, RawSchedule{
		Mode:      "interval",
		StartDate: "2025-01-10",
		Times:     []string{"06:00"},
		Interval:  &RawInterval{Every: 8},
		Exdates:   []string{"2025-01-11"},
	})
	// 2025-01-10 22:00 is followed by 01-11 06:00, 14:00, 22:00, all excluded
	got, ok := NextOccurrence(s, nil, mustLocalUTC(t, "UTC", 2025, time.January, 10, 22, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.January, 12, 6, 0))
}

func TestNextOccurrence_Prayer(t *testing.T) {
	s := schedule(t, RawSchedule{
		Mode:      "prayer",
		StartDate: "2025-03-01",
		Prayer:    &RawPrayer{Name: "fajr", Direction: "after", OffsetMinutes: 10},
	})
	lookup := StaticPrayerTimes(PrayerTimes{Fajr: NewClock(5, 0), Isha: NewClock(19, 30)})

	got, ok := NextOccurrence(s, lookup, mustLocalUTC(t, "UTC", 2025, time.March, 10, 4, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.March, 10, 5, 10))

	got, ok = NextOccurrence(s, lookup, mustLocalUTC(t, "UTC", 2025, time.March, 10, 5, 15), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.March, 11, 5, 10))
}

func TestNextOccurrence_PrayerBefore(t *testing.T) {
	s := schedule(t, RawSchedule{
		Mode:      "prayer",
		StartDate: "2025-03-01",
		Prayer:    &RawPrayer{Name: "Isha", Direction: "before", OffsetMinutes: 15},
	})
	lookup := StaticPrayerTimes(PrayerTimes{Isha: NewClock(19, 30)})
	got, ok := NextOccurrence(s, lookup, mustLocalUTC(t, "UTC", 2025, time.March, 10, 12, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.March, 10, 19, 15))
}

func TestNextOccurrence_PrayerExdateUsesLandingDate(t *testing.T) {
	lookup := StaticPrayerTimes(PrayerTimes{Fajr: NewClock(0, 10)})
	after := mustLocalUTC(t, "UTC", 2025, time.March, 10, 12, 0)
	raw := RawSchedule{
		Mode:      "prayer",
		StartDate: "2025-03-10",
		Prayer:    &RawPrayer{Name: "Fajr", Direction: "before", OffsetMinutes: 20},
	}

	// Fajr of 03-11 minus 20 minutes lands on 03-10, which is not excluded
	raw.Exdates = []string{"2025-03-11"}
	got, ok := NextOccurrence(schedule(t, raw), lookup, after, time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.March, 10, 23, 50))

	raw.Exdates = []string{"2025-03-10"}
	got, ok = NextOccurrence(schedule(t, raw), lookup, after, time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.March, 11, 23, 50))
}

func TestNextOccurrence_PrayerSkipsDatesWithoutData(t *testing.T) {
	s := schedule(t, RawSchedule{
		Mode:      "prayer",
		StartDate: "2025-03-01",
		Prayer:    &RawPrayer{Name: "Fajr", Direction: "after", OffsetMinutes: 10},
	})
	missing := NewDate(2025, time.March, 11)
	lookup := func(d Date) (PrayerTimes, bool) {
		if d == missing {
			return nil, false
		}
		return PrayerTimes{Fajr: NewClock(5, 0)}, true
	}
	got, ok := NextOccurrence(s, lookup, mustLocalUTC(t, "UTC", 2025, time.March, 10, 6, 0), time.UTC)
	wantTime(t, got, ok, mustLocalUTC(t, "UTC", 2025, time.March, 12, 5, 10))
}

func TestResolve_PrayerWithoutProviderIsUnavailable(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "prayer", StartDate: "2025-03-01"})
	var calc Calculator
	if _, out := calc.Resolve(s, nil, mustLocalUTC(t, "UTC", 2025, time.March, 10, 6, 0), time.UTC); out != Unavailable {
		t.Fatalf("want unavailable, got %s", out)
	}
	failing := func(Date) (PrayerTimes, bool) { return nil, false }
	if _, out := calc.Resolve(s, failing, mustLocalUTC(t, "UTC", 2025, time.March, 10, 6, 0), time.UTC); out != Unavailable {
		t.Fatalf("want unavailable, got %s", out)
	}
}

func TestResolve_OncePastIsTerminal(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "once", StartDate: "2025-01-01", Times: []string{"08:00"}})
	var calc Calculator
	if _, out := calc.Resolve(s, nil, mustLocalUTC(t, "UTC", 2025, time.February, 1, 0, 0), time.UTC); out != Terminal {
		t.Fatalf("want terminal, got %s", out)
	}
}

func TestNextOccurrence_NeverReturnsNotAfterReference(t *testing.T) {
	lookup := StaticPrayerTimes(PrayerTimes{Fajr: NewClock(5, 0), Dhuhr: NewClock(12, 30)})
	raws := []RawSchedule{
		{Mode: "daily", StartDate: "2025-01-01", Times: []string{"09:00", "21:00"}},
		{Mode: "weekly", StartDate: "2025-01-01", DaysOfWeek: []string{"TU", "SA"}, Times: []string{"06:45"}},
		{Mode: "monthly", StartDate: "2025-01-30", Times: []string{"12:00"}},
		{Mode: "interval", StartDate: "2025-01-01", Times: []string{"01:30"}, Interval: &RawInterval{Every: 5}},
		{Mode: "prayer", StartDate: "2025-01-01", Prayer: &RawPrayer{Name: "Dhuhr", Direction: "before", OffsetMinutes: 20}},
	}
	loc := mustLoc(t, "America/New_York")
	for _, raw := range raws {
		s := schedule(t, raw)
		after := mustLocalUTC(t, "America/New_York", 2025, time.February, 20, 13, 7)
		for i := 0; i < 40; i++ {
			next, ok := NextOccurrence(s, lookup, after, loc)
			if !ok {
				t.Fatalf("%s: sequence ended at step %d", raw.Mode, i)
			}
			if !next.After(after) {
				t.Fatalf("%s: want occurrence after %s, got %s", raw.Mode, after, next)
			}
			after = next
		}
	}
}

func TestUpcoming(t *testing.T) {
	s := schedule(t, RawSchedule{Mode: "daily", StartDate: "2025-03-01", EndDate: "2025-03-03", Times: []string{"09:00"}})
	got := Upcoming(s, nil, mustLocalUTC(t, "UTC", 2025, time.February, 1, 0, 0), time.UTC, 5)
	if len(got) != 3 {
		t.Fatalf("want 3 occurrences, got %d", len(got))
	}
	if want := mustLocalUTC(t, "UTC", 2025, time.March, 3, 9, 0); !got[2].Equal(want) {
		t.Fatalf("want %s, got %s", want, got[2])
	}
}
