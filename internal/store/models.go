package store

import (
	"database/sql"
	"time"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

// ReminderRecord is the stored form of a reminder: the schedule as edited plus
// the mutable state.
type ReminderRecord struct {
	ID        string
	Title     string
	Schedule  domain.RawSchedule
	State     domain.ReminderState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordOf captures r for storage.
func RecordOf(r *domain.Reminder) ReminderRecord {
	return ReminderRecord{
		ID:       r.ID,
		Title:    r.Title(),
		Schedule: r.Raw(),
		State:    r.Snapshot(),
	}
}

// Reminder rebuilds the in-memory reminder. today fills a missing start date.
func (rec ReminderRecord) Reminder(today domain.Date) *domain.Reminder {
	r := domain.NewReminder(rec.ID, rec.Title, rec.Schedule, today)
	r.Restore(rec.State)
	return r
}

func toNullInt64(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func fromNullInt64(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := time.Unix(ns.Int64, 0).UTC()
	return &t
}

// boolToInt converts a boolean to 1/0 for SQLite.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
