package domain

import "time"

// QuietHours is a local time-of-day window during which due notifications are
// deferred. Start > End wraps midnight (22:00–07:00); Start == End disables it.
type QuietHours struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

func (q QuietHours) Enabled() bool { return q.Start != q.End }

func (q QuietHours) String() string {
	if !q.Enabled() {
		return "off"
	}
	return q.Start.String() + "–" + q.End.String()
}

// InWindow returns true if local time (minutes since midnight) is inside the window.
// Supports wrap-around windows like 22:00–02:00 (fromM > toM).
func InWindow(localM, fromM, toM int) bool {
	if fromM == toM {
		return false // zero-length window
	}
	if fromM < toM {
		return localM >= fromM && localM < toM
	}
	// wrap: [from..1440) U [0..to)
	return localM >= fromM || localM < toM
}

// Contains reports whether t falls inside the window in loc.
func (q QuietHours) Contains(t time.Time, loc *time.Location) bool {
	return InWindow(int(ClockOf(t, loc)), int(q.Start), int(q.End))
}

// AdjustForQuietHours defers occ to the end of the quiet window when it falls
// inside it, and returns it unchanged otherwise. It never drops an occurrence.
func AdjustForQuietHours(occ time.Time, q QuietHours, loc *time.Location) time.Time {
	if !q.Contains(occ, loc) {
		return occ
	}
	d := DateOf(occ, loc)
	// evening part of a wrapping window ends tomorrow
	if q.Start > q.End && ClockOf(occ, loc) >= q.Start {
		d = d.AddDays(1)
	}
	return d.At(q.End, loc)
}
