package domain

import (
	"sync"
	"sync/atomic"
	"time"
)

// Settings are the per-user engine settings.
type Settings struct {
	Timezone             string
	QuietHours           QuietHours
	DefaultSnoozeMinutes int
	City                 string
	Country              string
}

// DefaultSettings are used until the user saves their own.
func DefaultSettings(tz string) Settings {
	return Settings{
		Timezone:             tz,
		QuietHours:           QuietHours{Start: NewClock(22, 0), End: NewClock(7, 0)},
		DefaultSnoozeMinutes: 10,
	}
}

// Location resolves the settings zone, UTC when invalid.
func (s Settings) Location() *time.Location {
	if loc, err := LoadLocation(s.Timezone); err == nil && s.Timezone != "" {
		return loc
	}
	return time.UTC
}

// SnoozeDuration returns d, or the default snooze when d is not positive.
func (s Settings) SnoozeDuration(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	if s.DefaultSnoozeMinutes > 0 {
		return time.Duration(s.DefaultSnoozeMinutes) * time.Minute
	}
	return 10 * time.Minute
}

// SharedSettings is a read-mostly holder swapped atomically by the UI layer
// and read once per tick.
type SharedSettings struct {
	v atomic.Pointer[Settings]
}

func NewSharedSettings(s Settings) *SharedSettings {
	h := &SharedSettings{}
	h.Store(s)
	return h
}

func (h *SharedSettings) Load() Settings { return *h.v.Load() }

func (h *SharedSettings) Store(s Settings) { h.v.Store(&s) }

// ReminderState is the mutable part of a reminder.
type ReminderState struct {
	Active       bool
	SnoozedUntil *time.Time
	LastFiredAt  *time.Time
	CompletedAt  *time.Time
}

// Reminder is a scheduled reminder. All mutable fields are guarded by one
// mutex, so a tick always sees them as a unit.
type Reminder struct {
	ID string

	mu       sync.Mutex
	title    string
	raw      RawSchedule
	schedule Schedule
	state    ReminderState
	terminal bool // cached: no occurrence can exist after LastFiredAt
}

// NewReminder creates an active reminder from a raw schedule.
func NewReminder(id, title string, raw RawSchedule, today Date) *Reminder {
	return &Reminder{
		ID:       id,
		title:    title,
		raw:      raw,
		schedule: Normalize(raw, today),
		state:    ReminderState{Active: true},
	}
}

func (r *Reminder) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

func (r *Reminder) SetTitle(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.title = title
}

func (r *Reminder) Schedule() Schedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedule
}

// Raw returns the schedule as it was last edited.
func (r *Reminder) Raw() RawSchedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raw
}

// SetSchedule replaces the schedule. The fired watermark is kept so an edit
// never re-fires an occurrence that was already delivered.
func (r *Reminder) SetSchedule(raw RawSchedule, today Date) {
	s := Normalize(raw, today)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = raw
	r.schedule = s
	r.terminal = false
}

// Snapshot returns a copy of the mutable state.
func (r *Reminder) Snapshot() ReminderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

// Restore replaces the mutable state, e.g. after loading from storage.
func (r *Reminder) Restore(st ReminderState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = st.clone()
	r.terminal = false
}

func (r *Reminder) SetActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Active = active
	r.terminal = false
}

// Snooze suppresses firing until now+d, truncated to the second so the
// instant survives storage unchanged.
func (r *Reminder) Snooze(now time.Time, d time.Duration) time.Time {
	until := now.Add(d).Truncate(time.Second)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.SnoozedUntil = &until
	return until
}

// Acknowledge marks the reminder done and drops a pending snooze. Future
// occurrences are not affected.
func (r *Reminder) Acknowledge(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.CompletedAt = &now
	r.state.SnoozedUntil = nil
}

// Evaluator carries the inputs of one due check.
type Evaluator struct {
	Settings Settings
	Lookup   PrayerLookup
	Calc     Calculator
	// MaxCatchUp, when positive, collapses up to that many missed occurrences
	// into one fire of the latest. Zero fires missed occurrences one per
	// check, earliest first.
	MaxCatchUp int
}

// CheckDue decides whether r fires at now.
//
// A schedule occurrence fires once its quiet-hours adjusted instant is not
// after now; LastFiredAt then advances to that instant and any snooze is
// cleared, so the same occurrence can never be returned again. Otherwise an
// expired snooze of an unacknowledged fire reminds again at the snooze
// instant, also deferred by quiet hours. That repeat consumes the snooze but
// leaves LastFiredAt alone, so no schedule occurrence is skipped.
func (r *Reminder) CheckDue(now time.Time, ev Evaluator) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := &r.state
	if !st.Active {
		return time.Time{}, false
	}
	if st.SnoozedUntil != nil && st.SnoozedUntil.After(now) {
		return time.Time{}, false
	}

	if due, ok := r.naturalDue(now, ev); ok {
		st.LastFiredAt = &due
		st.SnoozedUntil = nil
		return due, true
	}

	if st.SnoozedUntil == nil || !r.awaitingAck() || !st.SnoozedUntil.After(*st.LastFiredAt) {
		return time.Time{}, false
	}
	loc := r.schedule.Location(ev.Settings.Timezone)
	due := AdjustForQuietHours(*st.SnoozedUntil, ev.Settings.QuietHours, loc)
	if due.After(now) {
		return time.Time{}, false
	}
	st.SnoozedUntil = nil
	return due, true
}

// naturalDue returns the first schedule occurrence after LastFiredAt when its
// deferred instant is not after now. With MaxCatchUp set, later missed
// occurrences that are also due replace it.
func (r *Reminder) naturalDue(now time.Time, ev Evaluator) (time.Time, bool) {
	if r.terminal {
		return time.Time{}, false
	}
	loc := r.schedule.Location(ev.Settings.Timezone)
	ref := r.schedule.Start.Midnight(loc).Add(-time.Nanosecond)
	if r.state.LastFiredAt != nil {
		ref = *r.state.LastFiredAt
	}

	occ, out := ev.Calc.Resolve(r.schedule, ev.Lookup, ref, loc)
	switch out {
	case Terminal:
		r.terminal = true
		return time.Time{}, false
	case Unavailable:
		return time.Time{}, false
	}
	due := AdjustForQuietHours(occ, ev.Settings.QuietHours, loc)
	if due.After(now) {
		return time.Time{}, false
	}

	for i := 0; i < ev.MaxCatchUp; i++ {
		next, ok := ev.Calc.Next(r.schedule, ev.Lookup, occ, loc)
		if !ok {
			break
		}
		nextDue := AdjustForQuietHours(next, ev.Settings.QuietHours, loc)
		if nextDue.After(now) {
			break
		}
		occ, due = next, nextDue
	}
	return due, true
}

func (r *Reminder) awaitingAck() bool {
	st := r.state
	return st.LastFiredAt != nil && (st.CompletedAt == nil || st.CompletedAt.Before(*st.LastFiredAt))
}

func (s ReminderState) clone() ReminderState {
	cp := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	return ReminderState{
		Active:       s.Active,
		SnoozedUntil: cp(s.SnoozedUntil),
		LastFiredAt:  cp(s.LastFiredAt),
		CompletedAt:  cp(s.CompletedAt),
	}
}
