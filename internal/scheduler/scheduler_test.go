package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap/zaptest"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

func at(hh, mm int) time.Time {
	return time.Date(2025, time.March, 10, hh, mm, 0, 0, time.UTC)
}

func daily(id, clock string) *domain.Reminder {
	raw := domain.RawSchedule{Mode: "daily", Times: []string{clock}, StartDate: "2025-03-10"}
	return domain.NewReminder(id, id, raw, domain.NewDate(2025, time.March, 10))
}

func utcSettings() *domain.SharedSettings {
	s := domain.DefaultSettings("UTC")
	s.QuietHours = domain.QuietHours{}
	return domain.NewSharedSettings(s)
}

type memSaver struct {
	mu    sync.Mutex
	saved map[string]domain.ReminderState
}

func (m *memSaver) SaveState(_ context.Context, id string, st domain.ReminderState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]domain.ReminderState{}
	}
	m.saved[id] = st
	return nil
}

func TestTick_FiresInInputOrder(t *testing.T) {
	rs := []*domain.Reminder{daily("b", "08:00"), daily("a", "09:30"), daily("c", "07:00")}
	fired := Tick(rs, domain.Settings{Timezone: "UTC"}, nil, at(9, 0))

	if len(fired) != 2 {
		t.Fatalf("want 2 fired, got %d", len(fired))
	}
	if fired[0].Reminder.ID != "b" || !fired[0].Due.Equal(at(8, 0)) {
		t.Fatalf("want b@08:00 first, got %s@%s", fired[0].Reminder.ID, fired[0].Due)
	}
	if fired[1].Reminder.ID != "c" || !fired[1].Due.Equal(at(7, 0)) {
		t.Fatalf("want c@07:00 second, got %s@%s", fired[1].Reminder.ID, fired[1].Due)
	}
	if again := Tick(rs, domain.Settings{Timezone: "UTC"}, nil, at(9, 0)); len(again) != 0 {
		t.Fatalf("want no refire, got %d", len(again))
	}
}

func TestTicker_RunDispatches(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at(8, 59).Add(30 * time.Second))
	got := make(chan Fired, 4)
	handler := DueFunc(func(_ context.Context, f Fired) error {
		got <- f
		return nil
	})

	tk := New(zaptest.NewLogger(t), utcSettings(), nil, handler, Options{Interval: 30 * time.Second, Clock: clock})
	tk.Add(daily("water", "09:00"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("ticker never armed: %v", err)
	}
	clock.Advance(30 * time.Second)

	select {
	case f := <-got:
		if f.Reminder.ID != "water" || !f.Due.Equal(at(9, 0)) {
			t.Fatalf("want water@09:00, got %s@%s", f.Reminder.ID, f.Due)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("due handler not called")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTicker_SlowHandlerDoesNotBlockTick(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at(9, 0))
	release := make(chan struct{})
	handler := DueFunc(func(ctx context.Context, _ Fired) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	tk := New(zaptest.NewLogger(t), utcSettings(), nil, handler, Options{Clock: clock, QueueSize: 1})
	for _, id := range []string{"a", "b", "c"} {
		tk.Add(daily(id, "09:00"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan []Fired, 1)
	go func() { done <- tk.TickNow(ctx) }()
	select {
	case fired := <-done:
		if len(fired) != 3 {
			t.Fatalf("want 3 fired, got %d", len(fired))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tick blocked on the due handler")
	}
	close(release)
}

func TestTicker_SnoozeSuppression(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at(9, 0))
	tk := New(zaptest.NewLogger(t), utcSettings(), nil, nil, Options{Clock: clock})
	tk.Add(daily("walk", "09:00"))
	ctx := context.Background()

	if fired := tk.TickNow(ctx); len(fired) != 1 {
		t.Fatalf("want fire at 09:00, got %d", len(fired))
	}
	until, err := tk.Snooze(ctx, "walk", 10)
	if err != nil {
		t.Fatalf("snooze: %v", err)
	}
	if !until.Equal(at(9, 10)) {
		t.Fatalf("want until 09:10, got %s", until)
	}
	for i := 1; i <= 9; i++ {
		clock.Advance(time.Minute)
		if fired := tk.TickNow(ctx); len(fired) != 0 {
			t.Fatalf("fired during snooze at minute %d", i)
		}
	}
	clock.Advance(time.Minute)
	fired := tk.TickNow(ctx)
	if len(fired) != 1 || !fired[0].Due.Equal(at(9, 10)) {
		t.Fatalf("want one fire at 09:10, got %v", fired)
	}
}

func TestTicker_SnoozeUsesDefault(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at(9, 0))
	settings := utcSettings()
	s := settings.Load()
	s.DefaultSnoozeMinutes = 15
	settings.Store(s)

	tk := New(zaptest.NewLogger(t), settings, nil, nil, Options{Clock: clock})
	tk.Add(daily("walk", "09:00"))

	until, err := tk.Snooze(context.Background(), "walk", 0)
	if err != nil {
		t.Fatalf("snooze: %v", err)
	}
	if !until.Equal(at(9, 15)) {
		t.Fatalf("want until 09:15, got %s", until)
	}
	if _, err := tk.Snooze(context.Background(), "nope", 5); !errors.Is(err, ErrUnknownReminder) {
		t.Fatalf("want ErrUnknownReminder, got %v", err)
	}
}

func TestTicker_RemoveAndPause(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at(9, 0))
	saver := &memSaver{}
	tk := New(zaptest.NewLogger(t), utcSettings(), nil, nil, Options{Clock: clock, Saver: saver})
	tk.Add(daily("a", "09:00"))
	tk.Add(daily("b", "09:00"))
	ctx := context.Background()

	tk.Remove("a")
	if err := tk.SetActive(ctx, "b", false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if fired := tk.TickNow(ctx); len(fired) != 0 {
		t.Fatalf("want nothing fired, got %d", len(fired))
	}
	if st, ok := saver.saved["b"]; !ok || st.Active {
		t.Fatalf("want paused state saved, got %+v", st)
	}
	if _, ok := tk.Get("a"); ok {
		t.Fatal("removed reminder still present")
	}
	if err := tk.Acknowledge(ctx, "a"); !errors.Is(err, ErrUnknownReminder) {
		t.Fatalf("want ErrUnknownReminder, got %v", err)
	}
}

func TestTicker_FirePersistsState(t *testing.T) {
	clock := clockwork.NewFakeClockAt(at(9, 0))
	saver := &memSaver{}
	tk := New(zaptest.NewLogger(t), utcSettings(), nil, nil, Options{Clock: clock, Saver: saver})
	tk.Add(daily("a", "09:00"))

	tk.TickNow(context.Background())
	st := saver.saved["a"]
	if st.LastFiredAt == nil || !st.LastFiredAt.Equal(at(9, 0)) {
		t.Fatalf("want LastFiredAt 09:00 saved, got %v", st.LastFiredAt)
	}
}

func TestTicker_ListOrder(t *testing.T) {
	tk := New(zaptest.NewLogger(t), utcSettings(), nil, nil, Options{})
	tk.Add(daily("2", "09:00"))
	tk.Add(daily("1", "09:00"))
	r := daily("3", "09:00")
	r.SetTitle("0-first")
	tk.Add(r)

	list := tk.List()
	if len(list) != 3 || list[0].ID != "3" || list[1].ID != "1" || list[2].ID != "2" {
		ids := make([]string, len(list))
		for i, r := range list {
			ids[i] = r.ID
		}
		t.Fatalf("want [3 1 2], got %v", ids)
	}
}

func TestTicker_MissedOccurrences(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.March, 13, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	tk := New(zaptest.NewLogger(t), utcSettings(), nil, nil, Options{Clock: clock})
	tk.Add(daily("water", "09:00"))
	for _, d := range []int{10, 11, 12, 13} {
		fired := tk.TickNow(ctx)
		want := time.Date(2025, time.March, d, 9, 0, 0, 0, time.UTC)
		if len(fired) != 1 || !fired[0].Due.Equal(want) {
			t.Fatalf("want one fire at %s, got %v", want, fired)
		}
	}

	collapsing := New(zaptest.NewLogger(t), utcSettings(), nil, nil, Options{Clock: clock, MaxCatchUp: 10})
	collapsing.Add(daily("water", "09:00"))
	fired := collapsing.TickNow(ctx)
	if len(fired) != 1 || !fired[0].Due.Equal(time.Date(2025, time.March, 13, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("want a single fire at 03-13 09:00, got %v", fired)
	}
	if again := collapsing.TickNow(ctx); len(again) != 0 {
		t.Fatalf("want nothing left to fire, got %v", again)
	}
}
