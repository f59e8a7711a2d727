package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

// ErrUnknownReminder is returned by mutators for ids outside the working set.
var ErrUnknownReminder = errors.New("unknown reminder")

// Fired is one due notification produced by a tick.
type Fired struct {
	Reminder *domain.Reminder
	Due      time.Time
}

// Tick evaluates every reminder once at now and returns those that fired, in
// input order. Each fired reminder has already advanced its LastFiredAt.
func Tick(reminders []*domain.Reminder, settings domain.Settings, lookup domain.PrayerLookup, now time.Time) []Fired {
	return tick(reminders, domain.Evaluator{Settings: settings, Lookup: lookup}, now)
}

func tick(reminders []*domain.Reminder, ev domain.Evaluator, now time.Time) []Fired {
	var out []Fired
	for _, r := range reminders {
		if due, ok := r.CheckDue(now, ev); ok {
			out = append(out, Fired{Reminder: r, Due: due})
		}
	}
	return out
}

// DueHandler receives fired reminders. It runs on the dispatch goroutine, never
// on the tick loop.
type DueHandler interface {
	HandleDue(ctx context.Context, f Fired) error
}

// DueFunc adapts a function to DueHandler.
type DueFunc func(ctx context.Context, f Fired) error

func (fn DueFunc) HandleDue(ctx context.Context, f Fired) error { return fn(ctx, f) }

// StateSaver persists reminder state after a fire or a mutation.
type StateSaver interface {
	SaveState(ctx context.Context, id string, st domain.ReminderState) error
}

// Options tune a Ticker. Zero values pick defaults.
type Options struct {
	Interval  time.Duration
	Clock     clockwork.Clock
	QueueSize int
	// MaxCatchUp > 0 collapses missed occurrences into one fire; see
	// domain.Evaluator.
	MaxCatchUp int
	Saver      StateSaver
}

// Ticker owns the working set of reminders and polls it on a fixed interval.
type Ticker struct {
	log      *zap.Logger
	settings *domain.SharedSettings
	lookup   domain.PrayerLookup
	handler  DueHandler
	saver    StateSaver
	clock    clockwork.Clock
	interval time.Duration
	catchUp  int

	mu        sync.RWMutex
	reminders map[string]*domain.Reminder

	queue chan Fired
}

// New creates a Ticker. lookup may be nil when no prayer data is available.
func New(log *zap.Logger, settings *domain.SharedSettings, lookup domain.PrayerLookup, handler DueHandler, opts Options) *Ticker {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	return &Ticker{
		log:       log,
		settings:  settings,
		lookup:    lookup,
		handler:   handler,
		saver:     opts.Saver,
		clock:     opts.Clock,
		interval:  opts.Interval,
		catchUp:   opts.MaxCatchUp,
		reminders: make(map[string]*domain.Reminder),
		queue:     make(chan Fired, opts.QueueSize),
	}
}

// SetHandler sets the DueHandler. Call it before Run.
func (t *Ticker) SetHandler(h DueHandler) { t.handler = h }

// Add puts r into the working set, replacing any reminder with the same id.
func (t *Ticker) Add(r *domain.Reminder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reminders[r.ID] = r
}

// Remove drops a reminder; it is not evaluated on later ticks.
func (t *Ticker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.reminders, id)
}

func (t *Ticker) Get(id string) (*domain.Reminder, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.reminders[id]
	return r, ok
}

// List returns the working set ordered by title, then id.
func (t *Ticker) List() []*domain.Reminder {
	t.mu.RLock()
	out := make([]*domain.Reminder, 0, len(t.reminders))
	for _, r := range t.reminders {
		out = append(out, r)
	}
	t.mu.RUnlock()

	titles := make(map[string]string, len(out))
	for _, r := range out {
		titles[r.ID] = r.Title()
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := titles[out[i].ID], titles[out[j].ID]
		if ti != tj {
			return ti < tj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Snooze suppresses a reminder for minutes; minutes <= 0 uses the default
// snooze from settings. It returns the instant the snooze expires.
func (t *Ticker) Snooze(ctx context.Context, id string, minutes int) (time.Time, error) {
	r, ok := t.Get(id)
	if !ok {
		return time.Time{}, ErrUnknownReminder
	}
	d := t.settings.Load().SnoozeDuration(time.Duration(minutes) * time.Minute)
	until := r.Snooze(t.clock.Now(), d)
	t.save(ctx, r)
	return until, nil
}

// Acknowledge records completion of the reminder's latest fire.
func (t *Ticker) Acknowledge(ctx context.Context, id string) error {
	r, ok := t.Get(id)
	if !ok {
		return ErrUnknownReminder
	}
	r.Acknowledge(t.clock.Now())
	t.save(ctx, r)
	return nil
}

func (t *Ticker) SetActive(ctx context.Context, id string, active bool) error {
	r, ok := t.Get(id)
	if !ok {
		return ErrUnknownReminder
	}
	r.SetActive(active)
	t.save(ctx, r)
	return nil
}

// Run ticks immediately and then every interval until ctx is canceled. Fired
// reminders are handed to the DueHandler from a separate goroutine.
func (t *Ticker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.dispatchLoop(ctx)
	}()

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	t.log.Info("ticker started", zap.Duration("interval", t.interval))
	t.TickNow(ctx)
	for {
		select {
		case <-ctx.Done():
			t.log.Info("ticker stopping")
			wg.Wait()
			return
		case <-ticker.Chan():
			t.TickNow(ctx)
		}
	}
}

// TickNow performs one scheduling cycle at the clock's current time and
// enqueues the fired reminders.
func (t *Ticker) TickNow(ctx context.Context) []Fired {
	now := t.clock.Now()
	ev := domain.Evaluator{
		Settings:   t.settings.Load(),
		Lookup:     t.lookup,
		MaxCatchUp: t.catchUp,
	}

	t.mu.RLock()
	set := make([]*domain.Reminder, 0, len(t.reminders))
	for _, r := range t.reminders {
		set = append(set, r)
	}
	t.mu.RUnlock()

	fired := tick(set, ev, now)
	for _, f := range fired {
		t.log.Debug("reminder due",
			zap.String("id", f.Reminder.ID),
			zap.Time("due", f.Due),
		)
		t.save(ctx, f.Reminder)
		t.enqueue(ctx, f)
	}
	return fired
}

// enqueue never blocks the tick: a full queue hands the fire to its own goroutine.
func (t *Ticker) enqueue(ctx context.Context, f Fired) {
	select {
	case t.queue <- f:
	default:
		t.log.Warn("dispatch queue full", zap.String("id", f.Reminder.ID))
		go t.dispatch(ctx, f)
	}
}

func (t *Ticker) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-t.queue:
			t.dispatch(ctx, f)
		}
	}
}

func (t *Ticker) dispatch(ctx context.Context, f Fired) {
	if t.handler == nil {
		return
	}
	if err := t.handler.HandleDue(ctx, f); err != nil {
		t.log.Error("due handler failed", zap.Error(err), zap.String("id", f.Reminder.ID))
	}
}

func (t *Ticker) save(ctx context.Context, r *domain.Reminder) {
	if t.saver == nil {
		return
	}
	if err := t.saver.SaveState(ctx, r.ID, r.Snapshot()); err != nil {
		t.log.Error("save state failed", zap.Error(err), zap.String("id", r.ID))
	}
}
