package export

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

const (
	productID = "-//fitness-reminders//EN"
	// eventLength is the nominal VEVENT duration of a reminder.
	eventLength = 15 * time.Minute
	// maxPerReminder bounds dense schedules (hourly intervals over long ranges).
	maxPerReminder = 500
)

// Item is one reminder to render.
type Item struct {
	ID       string
	Title    string
	Schedule domain.Schedule
}

// ItemOf snapshots r for export.
func ItemOf(r *domain.Reminder) Item {
	return Item{ID: r.ID, Title: r.Title(), Schedule: r.Schedule()}
}

// Calendar renders the occurrences of every item in [from, until) as VEVENTs.
// loc is the zone for schedules that do not carry their own.
func Calendar(items []Item, lookup domain.PrayerLookup, from, until time.Time, loc *time.Location) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName("Reminders")

	stamp := from.UTC()
	for _, it := range items {
		sloc := it.Schedule.Location(loc.String())
		after := from.Add(-time.Nanosecond)
		for n := 0; n < maxPerReminder; n++ {
			occ, ok := domain.NextOccurrence(it.Schedule, lookup, after, sloc)
			if !ok || !occ.Before(until) {
				break
			}
			ev := cal.AddEvent(fmt.Sprintf("%s-%d@fitness-reminders", it.ID, occ.Unix()))
			ev.SetDtStampTime(stamp)
			ev.SetStartAt(occ)
			ev.SetEndAt(occ.Add(eventLength))
			ev.SetSummary(it.Title)
			ev.SetDescription(fmt.Sprintf("%s reminder", it.Schedule.Mode()))
			after = occ
		}
	}
	return cal
}

// Write serializes cal to w.
func Write(w io.Writer, cal *ical.Calendar) error {
	_, err := io.WriteString(w, cal.Serialize())
	return err
}
