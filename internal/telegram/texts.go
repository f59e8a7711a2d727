package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

// UI texts in English
const (
	startText = "👋 I keep your training, water and prayer reminders on time.\n\n" +
		"/list shows every reminder with its next time, /settings changes quiet hours, " +
		"timezone and the default snooze."
	listTitle     = "📋 Your reminders:"
	settingsTitle = "🧾 Your current settings:"
	settingsFmt   = "• TZ: %s\n• Quiet hours: %s\n• Default snooze: %s\n• Prayer location: %s\n"
)

func dueText(title string, due time.Time, loc *time.Location) string {
	return fmt.Sprintf("⏰ %s\n%s", title, due.In(loc).Format("Mon 02 Jan 15:04"))
}

// describeSchedule renders a schedule in one short line.
func describeSchedule(s domain.Schedule) string {
	clocks := func(cs []domain.Clock) string {
		out := make([]string, len(cs))
		for i, c := range cs {
			out[i] = c.String()
		}
		return strings.Join(out, ", ")
	}
	switch r := s.Rule.(type) {
	case domain.OnceRule:
		return "once " + s.Start.String() + " " + r.At.String()
	case domain.DailyRule:
		return "daily " + clocks(r.Times)
	case domain.WeeklyRule:
		return "weekly " + r.Days.String() + " " + clocks(r.Times)
	case domain.MonthlyRule:
		return fmt.Sprintf("monthly on day %d %s", s.Start.Day, clocks(r.Times))
	case domain.IntervalRule:
		return fmt.Sprintf("every %dh from %s", r.EveryHours, r.Anchor)
	case domain.PrayerRule:
		if r.OffsetMinutes == 0 {
			return "at " + string(r.Name)
		}
		return fmt.Sprintf("%dm %s %s", r.OffsetMinutes, r.Direction, r.Name)
	}
	return string(s.Mode())
}

// mainMenuKeyboard builds the reply keyboard shown under the chat.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/list"),
			tgbotapi.NewKeyboardButton("/settings"),
		),
	)
}

// dueKeyboard is attached to every due message.
func dueKeyboard(id string, snooze time.Duration) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💤 Snooze "+snooze.String(), "snooze:"+id),
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", "done:"+id),
		),
	)
}

// listKeyboard has a pause/resume toggle and a delete button per reminder.
func listKeyboard(list []*domain.Reminder) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list))
	for _, rem := range list {
		label, data := "⏸ "+rem.Title(), "pause:"+rem.ID
		if !rem.Snapshot().Active {
			label, data = "▶️ "+rem.Title(), "resume:"+rem.ID
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, data),
			tgbotapi.NewInlineKeyboardButtonData("🗑", "delete:"+rem.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Inline keyboards
func settingsInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌙 Quiet hours", "set_quiet"),
			tgbotapi.NewInlineKeyboardButtonData("🌍 Timezone", "set_tz"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💤 Default snooze", "set_snooze"),
		),
	)
}

func snoozePresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("5m", "snoozedef:5m"),
			tgbotapi.NewInlineKeyboardButtonData("10m", "snoozedef:10m"),
			tgbotapi.NewInlineKeyboardButtonData("15m", "snoozedef:15m"),
			tgbotapi.NewInlineKeyboardButtonData("30m", "snoozedef:30m"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1h", "snoozedef:1h"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "snoozedef:custom"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back_to_menu"),
		),
	)
}

func quietPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("22:00–07:00", "quiet:22:00-07:00"),
			tgbotapi.NewInlineKeyboardButtonData("23:00–06:00", "quiet:23:00-06:00"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Off", "quiet:off"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "quiet:custom"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back_to_menu"),
		),
	)
}

func tzPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Europe/Moscow", "tz:Europe/Moscow"),
			tgbotapi.NewInlineKeyboardButtonData("Africa/Cairo", "tz:Africa/Cairo"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Asia/Riyadh", "tz:Asia/Riyadh"),
			tgbotapi.NewInlineKeyboardButtonData("UTC", "tz:UTC"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "tz:custom"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back_to_menu"),
		),
	)
}
