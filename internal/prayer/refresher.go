package prayer

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

// DefaultRefreshCron runs shortly after local midnight.
const DefaultRefreshCron = "5 0 * * *"

// Refresher keeps a Provider warm on a cron schedule.
type Refresher struct {
	sched gocron.Scheduler
}

// StartRefresher schedules p.Refresh on spec (a 5-field cron expression) in
// loc and runs it once right away.
func StartRefresher(ctx context.Context, log *zap.Logger, p *Provider, spec string, loc *time.Location, clock clockwork.Clock) (*Refresher, error) {
	if spec == "" {
		spec = DefaultRefreshCron
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithClock(clock),
	)
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.CronJob(spec, false),
		gocron.NewTask(func() {
			today := domain.DateOf(clock.Now(), loc)
			rctx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if err := p.Refresh(rctx, today); err != nil {
				log.Warn("prayer refresh incomplete", zap.Error(err))
			}
		}),
		gocron.WithName("prayer-refresh"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}

	s.Start()
	return &Refresher{sched: s}, nil
}

func (r *Refresher) Stop() error {
	return r.sched.Shutdown()
}
