package domain

import (
	"testing"
	"time"
)

// helper: build a time in given tz and return its UTC
func mustLocalUTC(t *testing.T, tz string, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	lt := time.Date(y, m, d, hh, mm, 0, 0, loc)
	return lt.UTC()
}

func mustLoc(t *testing.T, tz string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return loc
}

func wantTime(t *testing.T, got time.Time, ok bool, want time.Time) {
	t.Helper()
	if !ok {
		t.Fatalf("want %s, got no occurrence", want)
	}
	if !got.Equal(want) {
		t.Fatalf("want %s, got %s", want, got)
	}
}
