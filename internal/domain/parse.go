package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyDuration   = errors.New("empty duration")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrTooSmall        = errors.New("duration too small")
	ErrTooLarge        = errors.New("duration too large")
	ErrInvalidClock    = errors.New("invalid clock")
	ErrInvalidDate     = errors.New("invalid date")
)

var (
	hoursRe   = regexp.MustCompile(`(?i)(\d+)\s*h`)
	minutesRe = regexp.MustCompile(`(?i)(\d+)\s*m`)
)

// ParseSnooze parses human-friendly snooze lengths like "10", "15m", "1h30m", "2h".
// A plain number means minutes. Constraints: 1m <= d <= 24h.
func ParseSnooze(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, ErrEmptyDuration
	}
	var total time.Duration

	if isAllDigits(s) {
		mins, _ := strconv.Atoi(s)
		total = time.Duration(mins) * time.Minute
	} else {
		if mh := hoursRe.FindStringSubmatch(s); len(mh) == 2 {
			h, _ := strconv.Atoi(mh[1])
			total += time.Duration(h) * time.Hour
		}
		if mm := minutesRe.FindStringSubmatch(s); len(mm) == 2 {
			m, _ := strconv.Atoi(mm[1])
			total += time.Duration(m) * time.Minute
		}
		if total == 0 && !(strings.Contains(s, "h") || strings.Contains(s, "m")) {
			return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
		}
	}

	if total < time.Minute {
		return 0, fmt.Errorf("%w: min 1m", ErrTooSmall)
	}
	if total > 24*time.Hour {
		return 0, fmt.Errorf("%w: max 24h", ErrTooLarge)
	}
	return total, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseQuietHours parses "HH:MM–HH:MM" or "HH:MM-HH:MM".
// A start later than the end denotes a window that wraps midnight.
func ParseQuietHours(s string) (QuietHours, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return QuietHours{}, errors.New("empty window")
	}
	sep := "–"
	if strings.Contains(s, "-") && !strings.Contains(s, "–") {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return QuietHours{}, errors.New("expected format HH:MM–HH:MM")
	}
	from, err := ParseClock(parts[0])
	if err != nil {
		return QuietHours{}, fmt.Errorf("from: %w", err)
	}
	to, err := ParseClock(parts[1])
	if err != nil {
		return QuietHours{}, fmt.Errorf("to: %w", err)
	}
	return QuietHours{Start: from, End: to}, nil
}

// ParseClock parses a local wall-clock time "HH:MM".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: expected HH:MM", ErrInvalidClock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: invalid hour", ErrInvalidClock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: invalid minute", ErrInvalidClock)
	}
	return Clock(h*60 + m), nil
}

// ParseDate parses a calendar date "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}
