package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Shtya/fitness-reminders/internal/config"
	"github.com/Shtya/fitness-reminders/internal/domain"
	"github.com/Shtya/fitness-reminders/internal/export"
	"github.com/Shtya/fitness-reminders/internal/prayer"
	"github.com/Shtya/fitness-reminders/internal/scheduler"
	"github.com/Shtya/fitness-reminders/internal/seed"
	"github.com/Shtya/fitness-reminders/internal/store"
	"github.com/Shtya/fitness-reminders/internal/telegram"
)

type App struct {
	cfg      config.Config
	log      *zap.Logger
	bot      *tgbotapi.BotAPI
	httpSrv  *http.Server
	mux      *http.ServeMux
	clock    clockwork.Clock
	repo     store.Repo
	settings *domain.SharedSettings
	provider *prayer.Provider
	ticker   *scheduler.Ticker
	router   *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv, mux: mux, clock: clockwork.NewRealClock()}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting fitness-reminders",
		zap.String("http", a.cfg.HTTPAddr),
		zap.Duration("tick", a.cfg.TickInterval),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	defer func() { _ = a.repo.Close() }()
	a.log.Info("sqlite ready")

	settings, err := a.loadSettings(ctx)
	if err != nil {
		return err
	}
	a.settings = domain.NewSharedSettings(settings)

	a.provider = prayer.NewProvider(a.log, repo, prayer.NewAladhanClient(a.cfg.PrayerAPIURL), func() (string, string) {
		s := a.settings.Load()
		return s.City, s.Country
	})

	a.ticker = scheduler.New(a.log, a.settings, a.provider.Lookup, nil, scheduler.Options{
		Interval:   a.cfg.TickInterval,
		Clock:      a.clock,
		MaxCatchUp: a.cfg.MaxCatchUp,
		Saver:      repo,
	})
	if err := a.loadReminders(ctx); err != nil {
		return err
	}

	a.router = telegram.NewRouter(telegram.Deps{
		Bot:              a.bot,
		Log:              a.log,
		Reminders:        a.ticker,
		Settings:         a.settings,
		Store:            repo,
		Lookup:           a.provider.Lookup,
		Clock:            a.clock,
		ChatID:           a.cfg.ChatID,
		OnSettingsChange: func(domain.Settings) { go a.refreshPrayer(ctx) },
	})
	a.ticker.SetHandler(a.router)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.City != "" {
		refresher, err := prayer.StartRefresher(ctx, a.log, a.provider, a.cfg.PrayerRefreshCron, settings.Location(), a.clock)
		if err != nil {
			a.log.Error("prayer refresher failed", zap.Error(err))
			return err
		}
		defer func() { _ = refresher.Stop() }()
	} else {
		a.log.Info("prayer location not set; prayer reminders stay idle")
	}

	go a.ticker.Run(ctx)

	a.mux.Handle("/calendar.ics", a.calendarHandler())
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			// Create a short-lived shutdown context and cancel it immediately after use.
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

// loadSettings returns the stored settings, seeding them from config on first run.
func (a *App) loadSettings(ctx context.Context) (domain.Settings, error) {
	s, err := a.repo.LoadSettings(ctx)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		a.log.Error("load settings failed", zap.Error(err))
		return s, err
	}
	s = a.cfg.Settings()
	if err := a.repo.SaveSettings(ctx, s); err != nil {
		a.log.Error("save settings failed", zap.Error(err))
		return s, err
	}
	return s, nil
}

// loadReminders fills the ticker from the store and applies the seed file:
// new entries are imported, stored entries whose title or schedule changed in
// the file are updated. Runtime state (paused, snoozed, fired) is kept.
func (a *App) loadReminders(ctx context.Context) error {
	today := domain.DateOf(a.clock.Now(), a.settings.Load().Location())

	recs, err := a.repo.ListReminders(ctx)
	if err != nil {
		a.log.Error("list reminders failed", zap.Error(err))
		return err
	}
	for _, rec := range recs {
		a.ticker.Add(rec.Reminder(today))
	}

	if a.cfg.SeedFile == "" {
		a.log.Info("reminders loaded", zap.Int("count", len(recs)))
		return nil
	}
	entries, err := seed.LoadFile(a.cfg.SeedFile)
	if err != nil {
		a.log.Error("load seed failed", zap.Error(err), zap.String("file", a.cfg.SeedFile))
		return err
	}
	imported, updated := 0, 0
	for _, e := range entries {
		r, known := a.ticker.Get(e.ID)
		switch {
		case !known:
			r = e.Reminder(today)
		case r.Title() != e.Title || !reflect.DeepEqual(r.Raw(), e.Schedule):
			r.SetTitle(e.Title)
			r.SetSchedule(e.Schedule, today)
		default:
			continue
		}
		if err := a.repo.UpsertReminder(ctx, store.RecordOf(r)); err != nil {
			a.log.Error("store seed reminder failed", zap.Error(err), zap.String("id", e.ID))
			continue
		}
		if known {
			updated++
			continue
		}
		a.ticker.Add(r)
		imported++
	}
	a.log.Info("reminders loaded",
		zap.Int("count", len(recs)),
		zap.Int("imported", imported),
		zap.Int("updated", updated),
	)
	return nil
}

func (a *App) refreshPrayer(ctx context.Context) {
	s := a.settings.Load()
	if s.City == "" {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := a.provider.Refresh(rctx, domain.DateOf(a.clock.Now(), s.Location())); err != nil {
		a.log.Warn("prayer refresh after settings change failed", zap.Error(err))
	}
}

// calendarHandler serves the upcoming occurrences as ICS; ?days=N (1..366, default 30).
func (a *App) calendarHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		days := 30
		if v := req.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 366 {
				http.Error(w, "days must be 1..366", http.StatusBadRequest)
				return
			}
			days = n
		}

		s := a.settings.Load()
		loc := s.Location()
		from := domain.DateOf(a.clock.Now(), loc).Midnight(loc)

		var items []export.Item
		for _, r := range a.ticker.List() {
			if r.Snapshot().Active {
				items = append(items, export.ItemOf(r))
			}
		}
		cal := export.Calendar(items, a.provider.Lookup, from, from.AddDate(0, 0, days), loc)

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		if err := export.Write(w, cal); err != nil {
			a.log.Warn("write calendar failed", zap.Error(err))
		}
	})
}
