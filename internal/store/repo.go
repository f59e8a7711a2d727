package store

import (
	"context"
	"errors"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for reminders, settings and cached prayer times.
type Repo interface {
	UpsertReminder(ctx context.Context, rec ReminderRecord) error
	GetReminder(ctx context.Context, id string) (ReminderRecord, error)
	ListReminders(ctx context.Context) ([]ReminderRecord, error)
	DeleteReminder(ctx context.Context, id string) error
	SaveState(ctx context.Context, id string, st domain.ReminderState) error

	LoadSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, s domain.Settings) error

	GetPrayerTimes(ctx context.Context, d domain.Date, city, country string) (domain.PrayerTimes, error)
	PutPrayerTimes(ctx context.Context, d domain.Date, city, country string, times domain.PrayerTimes) error

	Close() error
}
