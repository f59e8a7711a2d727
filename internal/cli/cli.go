package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Shtya/fitness-reminders/internal/domain"
	"github.com/Shtya/fitness-reminders/internal/export"
	"github.com/Shtya/fitness-reminders/internal/seed"
)

// Context is passed to every command's Run.
type Context struct {
	Out io.Writer
	Now func() time.Time
}

// Common flags shared by the preview commands.
type Common struct {
	File   string   `arg:"" type:"existingfile" help:"YAML seed file with reminders."`
	TZ     string   `name:"tz" default:"UTC" help:"Zone for schedules without their own."`
	Prayer []string `name:"prayer" sep:"," help:"Static prayer times, e.g. Fajr=05:00,Dhuhr=12:10."`
}

func (c Common) load(ctx *Context) ([]seed.Entry, *time.Location, domain.PrayerLookup, domain.Date, error) {
	loc, err := domain.LoadLocation(c.TZ)
	if err != nil {
		return nil, nil, nil, domain.Date{}, fmt.Errorf("--tz: %w", err)
	}
	lookup, err := parsePrayerFlag(c.Prayer)
	if err != nil {
		return nil, nil, nil, domain.Date{}, err
	}
	entries, err := seed.LoadFile(c.File)
	if err != nil {
		return nil, nil, nil, domain.Date{}, err
	}
	return entries, loc, lookup, domain.DateOf(ctx.Now(), loc), nil
}

func parsePrayerFlag(pairs []string) (domain.PrayerLookup, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	times := domain.PrayerTimes{}
	for _, p := range pairs {
		name, clock, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("--prayer %q: want Name=HH:MM", p)
		}
		n, ok := domain.ParsePrayerName(name)
		if !ok {
			return nil, fmt.Errorf("--prayer %q: unknown prayer", p)
		}
		c, err := domain.ParseClock(clock)
		if err != nil {
			return nil, fmt.Errorf("--prayer %q: %w", p, err)
		}
		times[n] = c
	}
	return domain.StaticPrayerTimes(times), nil
}

// NextCmd prints the upcoming occurrences of every reminder in a seed file.
type NextCmd struct {
	Common
	Count int    `default:"5" help:"Occurrences per reminder."`
	After string `help:"Start instant (RFC3339); defaults to now."`
	Quiet string `help:"Quiet hours HH:MM-HH:MM to apply."`
}

func (c *NextCmd) Run(ctx *Context) error {
	entries, loc, lookup, today, err := c.load(ctx)
	if err != nil {
		return err
	}
	after := ctx.Now()
	if c.After != "" {
		if after, err = time.Parse(time.RFC3339, c.After); err != nil {
			return fmt.Errorf("--after: %w", err)
		}
	}
	var quiet domain.QuietHours
	if c.Quiet != "" {
		if quiet, err = domain.ParseQuietHours(c.Quiet); err != nil {
			return fmt.Errorf("--quiet: %w", err)
		}
	}

	for _, e := range entries {
		s := domain.Normalize(e.Schedule, today)
		sloc := s.Location(loc.String())
		fmt.Fprintf(ctx.Out, "%s (%s)\n", e.Title, s.Mode())
		occs := domain.Upcoming(s, lookup, after, sloc, c.Count)
		if len(occs) == 0 {
			fmt.Fprintln(ctx.Out, "  no upcoming occurrences")
			continue
		}
		for _, o := range occs {
			line := "  " + o.In(sloc).Format("Mon 2006-01-02 15:04 MST")
			if due := domain.AdjustForQuietHours(o, quiet, sloc); !due.Equal(o) {
				line += " -> " + due.In(sloc).Format("15:04") + " (quiet hours)"
			}
			fmt.Fprintln(ctx.Out, line)
		}
	}
	return nil
}

// ICSCmd renders a seed file as an iCalendar feed.
type ICSCmd struct {
	Common
	Days int `default:"30" help:"Number of days to render."`
}

func (c *ICSCmd) Run(ctx *Context) error {
	entries, loc, lookup, today, err := c.load(ctx)
	if err != nil {
		return err
	}
	items := make([]export.Item, 0, len(entries))
	for _, e := range entries {
		if !e.IsActive() {
			continue
		}
		items = append(items, export.Item{ID: e.ID, Title: e.Title, Schedule: domain.Normalize(e.Schedule, today)})
	}
	from := today.Midnight(loc)
	cal := export.Calendar(items, lookup, from, from.AddDate(0, 0, c.Days), loc)
	return export.Write(ctx.Out, cal)
}
