package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// UpsertReminder inserts a reminder or replaces its title, schedule and state.
func (r *SQLiteRepo) UpsertReminder(ctx context.Context, rec ReminderRecord) error {
	if rec.ID == "" {
		return errors.New("empty reminder id")
	}
	sched, err := json.Marshal(rec.Schedule)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	now := time.Now().UTC().Unix()
	created := rec.CreatedAt.UTC().Unix()
	if rec.CreatedAt.IsZero() {
		created = now
	}
	st := rec.State

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reminders (
			id, title, schedule_json, active,
			snoozed_until, last_fired_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title         = excluded.title,
			schedule_json = excluded.schedule_json,
			active        = excluded.active,
			snoozed_until = excluded.snoozed_until,
			last_fired_at = excluded.last_fired_at,
			completed_at  = excluded.completed_at,
			updated_at    = excluded.updated_at`,
		rec.ID, rec.Title, string(sched), boolToInt(st.Active),
		toNullInt64(st.SnoozedUntil), toNullInt64(st.LastFiredAt), toNullInt64(st.CompletedAt),
		created, now,
	)
	return err
}

const reminderColumns = `id, title, schedule_json, active,
	snoozed_until, last_fired_at, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (ReminderRecord, error) {
	var (
		rec       ReminderRecord
		sched     string
		activeInt int
		snoozedNS sql.NullInt64
		firedNS   sql.NullInt64
		doneNS    sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&rec.ID, &rec.Title, &sched, &activeInt,
		&snoozedNS, &firedNS, &doneNS, &createdAt, &updatedAt,
	); err != nil {
		return ReminderRecord{}, err
	}
	if err := json.Unmarshal([]byte(sched), &rec.Schedule); err != nil {
		return ReminderRecord{}, fmt.Errorf("decode schedule of %s: %w", rec.ID, err)
	}
	rec.State = domain.ReminderState{
		Active:       activeInt != 0,
		SnoozedUntil: fromNullInt64(snoozedNS),
		LastFiredAt:  fromNullInt64(firedNS),
		CompletedAt:  fromNullInt64(doneNS),
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}

// GetReminder returns one reminder or ErrNotFound.
func (r *SQLiteRepo) GetReminder(ctx context.Context, id string) (ReminderRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	rec, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ReminderRecord{}, ErrNotFound
	}
	return rec, err
}

// ListReminders returns all reminders ordered by creation time.
func (r *SQLiteRepo) ListReminders(ctx context.Context) ([]ReminderRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+reminderColumns+` FROM reminders ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ReminderRecord
	for rows.Next() {
		rec, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *SQLiteRepo) DeleteReminder(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SaveState updates only the mutable state columns of a reminder.
func (r *SQLiteRepo) SaveState(ctx context.Context, id string, st domain.ReminderState) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders
		SET active = ?, snoozed_until = ?, last_fired_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		boolToInt(st.Active), toNullInt64(st.SnoozedUntil), toNullInt64(st.LastFiredAt),
		toNullInt64(st.CompletedAt), time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// LoadSettings returns the saved settings or ErrNotFound when none were saved yet.
func (r *SQLiteRepo) LoadSettings(ctx context.Context) (domain.Settings, error) {
	var (
		s          domain.Settings
		quietStart int
		quietEnd   int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT timezone, quiet_start_m, quiet_end_m, default_snooze_min, city, country
		FROM settings
		WHERE id = 1`,
	).Scan(&s.Timezone, &quietStart, &quietEnd, &s.DefaultSnoozeMinutes, &s.City, &s.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, ErrNotFound
	}
	if err != nil {
		return domain.Settings{}, err
	}
	s.QuietHours = domain.QuietHours{Start: domain.Clock(quietStart), End: domain.Clock(quietEnd)}
	return s, nil
}

func (r *SQLiteRepo) SaveSettings(ctx context.Context, s domain.Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (
			id, timezone, quiet_start_m, quiet_end_m, default_snooze_min, city, country, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timezone           = excluded.timezone,
			quiet_start_m      = excluded.quiet_start_m,
			quiet_end_m        = excluded.quiet_end_m,
			default_snooze_min = excluded.default_snooze_min,
			city               = excluded.city,
			country            = excluded.country,
			updated_at         = excluded.updated_at`,
		s.Timezone, int(s.QuietHours.Start), int(s.QuietHours.End), s.DefaultSnoozeMinutes,
		s.City, s.Country, time.Now().UTC().Unix(),
	)
	return err
}

// GetPrayerTimes returns cached times for a date and place or ErrNotFound.
func (r *SQLiteRepo) GetPrayerTimes(ctx context.Context, d domain.Date, city, country string) (domain.PrayerTimes, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `
		SELECT times_json FROM prayer_times
		WHERE date = ? AND city = ? AND country = ?`,
		d.String(), city, country,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var clocks map[string]string
	if err := json.Unmarshal([]byte(raw), &clocks); err != nil {
		return nil, fmt.Errorf("decode prayer times %s: %w", d, err)
	}
	times := make(domain.PrayerTimes, len(clocks))
	for name, hhmm := range clocks {
		n, ok := domain.ParsePrayerName(name)
		if !ok {
			continue
		}
		c, err := domain.ParseClock(hhmm)
		if err != nil {
			continue
		}
		times[n] = c
	}
	return times, nil
}

func (r *SQLiteRepo) PutPrayerTimes(ctx context.Context, d domain.Date, city, country string, times domain.PrayerTimes) error {
	clocks := make(map[string]string, len(times))
	for n, c := range times {
		clocks[string(n)] = c.String()
	}
	raw, err := json.Marshal(clocks)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO prayer_times (date, city, country, times_json, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, city, country) DO UPDATE SET
			times_json = excluded.times_json,
			fetched_at = excluded.fetched_at`,
		d.String(), city, country, string(raw), time.Now().UTC().Unix(),
	)
	return err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
