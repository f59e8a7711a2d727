package domain

import "strings"

// PrayerName is one of the five daily prayers.
type PrayerName string

const (
	Fajr    PrayerName = "Fajr"
	Dhuhr   PrayerName = "Dhuhr"
	Asr     PrayerName = "Asr"
	Maghrib PrayerName = "Maghrib"
	Isha    PrayerName = "Isha"
)

// PrayerNames lists the prayers in daily order.
var PrayerNames = []PrayerName{Fajr, Dhuhr, Asr, Maghrib, Isha}

// ParsePrayerName is case-insensitive.
func ParsePrayerName(s string) (PrayerName, bool) {
	for _, n := range PrayerNames {
		if strings.EqualFold(strings.TrimSpace(s), string(n)) {
			return n, true
		}
	}
	return "", false
}

// Direction places a reminder before or after the prayer time.
type Direction string

const (
	Before Direction = "before"
	After  Direction = "after"
)

func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Before:
		return Before, true
	case After:
		return After, true
	}
	return "", false
}

// PrayerTimes maps prayer names to local clock times for one date.
type PrayerTimes map[PrayerName]Clock

// PrayerLookup returns the prayer times for a date. It must not block on I/O;
// ok is false when no data is available for that date.
type PrayerLookup func(d Date) (PrayerTimes, bool)

// StaticPrayerTimes returns a lookup answering the same times for every date.
func StaticPrayerTimes(times PrayerTimes) PrayerLookup {
	return func(Date) (PrayerTimes, bool) { return times, true }
}
