package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Shtya/fitness-reminders/internal/domain"
	"github.com/Shtya/fitness-reminders/internal/scheduler"
	"github.com/Shtya/fitness-reminders/internal/store"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// updateSettings applies fn to a copy of the current settings, persists it and
// publishes it to the ticker.
func (r *Router) updateSettings(ctx context.Context, fn func(*domain.Settings)) (domain.Settings, error) {
	s := r.settings.Load()
	fn(&s)
	if r.store != nil {
		if err := r.store.SaveSettings(ctx, s); err != nil {
			return s, err
		}
	}
	r.settings.Store(s)
	if r.onChange != nil {
		r.onChange(s)
	}
	return s, nil
}

// --- Due delivery ---

// HandleDue sends the due message with Snooze and Done buttons to the owner
// chat. It makes Router a scheduler.DueHandler.
func (r *Router) HandleDue(_ context.Context, f scheduler.Fired) error {
	chatID := r.chatID.Load()
	if chatID == 0 {
		return ErrNoChat
	}
	s := r.settings.Load()
	msg := tgbotapi.NewMessage(chatID, dueText(f.Reminder.Title(), f.Due, s.Location()))
	msg.ReplyMarkup = dueKeyboard(f.Reminder.ID, s.SnoozeDuration(0))
	_, err := r.bot.Send(msg)
	return err
}

func (r *Router) handleSnoozeCallback(ctx context.Context, chatID int64, id, cbID string) {
	until, err := r.reminders.Snooze(ctx, id, 0)
	if err != nil {
		r.callbackError(cbID, id, err)
		return
	}
	_ = r.answerCallback(cbID, "Snoozed until "+until.In(r.settings.Load().Location()).Format("15:04"))
}

func (r *Router) handleDoneCallback(ctx context.Context, chatID int64, id, cbID string) {
	if err := r.reminders.Acknowledge(ctx, id); err != nil {
		r.callbackError(cbID, id, err)
		return
	}
	_ = r.answerCallback(cbID, "Done ✅")
}

func (r *Router) handleActiveCallback(ctx context.Context, chatID int64, id string, active bool, cbID string) {
	if err := r.reminders.SetActive(ctx, id, active); err != nil {
		r.callbackError(cbID, id, err)
		return
	}
	if active {
		_ = r.answerCallback(cbID, "Resumed ✅")
	} else {
		_ = r.answerCallback(cbID, "Paused ⏸")
	}
	r.handleList(ctx, chatID)
}

// handleDeleteCallback drops the reminder from storage and the working set.
func (r *Router) handleDeleteCallback(ctx context.Context, chatID int64, id, cbID string) {
	if _, ok := r.reminders.Get(id); !ok {
		r.callbackError(cbID, id, scheduler.ErrUnknownReminder)
		return
	}
	if r.store != nil {
		if err := r.store.DeleteReminder(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			r.callbackError(cbID, id, err)
			return
		}
	}
	r.reminders.Remove(id)
	_ = r.answerCallback(cbID, "Deleted 🗑")
	r.handleList(ctx, chatID)
}

func (r *Router) callbackError(cbID, id string, err error) {
	if errors.Is(err, scheduler.ErrUnknownReminder) {
		_ = r.answerCallback(cbID, "This reminder no longer exists.")
		return
	}
	r.log.Error("reminder update failed", zap.Error(err), zap.String("id", id))
	_ = r.answerCallback(cbID, "Could not update the reminder.")
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, startText)
	msg.ReplyMarkup = mainMenuKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleList(ctx context.Context, chatID int64) {
	list := r.reminders.List()
	if len(list) == 0 {
		r.sendText(chatID, "No reminders yet.")
		return
	}

	s := r.settings.Load()
	now := r.clock.Now()
	var b strings.Builder
	b.WriteString(listTitle)
	for _, rem := range list {
		b.WriteString("\n")
		b.WriteString(r.listLine(rem, s, now))
	}

	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ReplyMarkup = listKeyboard(list)
	_, _ = r.bot.Send(msg)
}

func (r *Router) listLine(rem *domain.Reminder, s domain.Settings, now time.Time) string {
	sched := rem.Schedule()
	st := rem.Snapshot()
	loc := sched.Location(s.Timezone)

	status := "next: —"
	switch {
	case !st.Active:
		status = "⏸ paused"
	case st.SnoozedUntil != nil && st.SnoozedUntil.After(now):
		status = "💤 snoozed until " + st.SnoozedUntil.In(loc).Format("15:04")
	default:
		if next, ok := domain.NextOccurrence(sched, r.lookup, now, loc); ok {
			status = "next: " + domain.AdjustForQuietHours(next, s.QuietHours, loc).In(loc).Format("Mon 02 Jan 15:04")
		}
	}
	return fmt.Sprintf("• %s — %s (%s)", rem.Title(), describeSchedule(sched), status)
}

func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	s := r.settings.Load()
	place := "—"
	if s.City != "" {
		place = s.City + ", " + s.Country
	}
	body := fmt.Sprintf("%s\n\n"+settingsFmt,
		settingsTitle,
		s.Timezone,
		s.QuietHours.String(),
		s.SnoozeDuration(0).String(),
		place,
	)
	msg := tgbotapi.NewMessage(chatID, body)
	msg.ReplyMarkup = settingsInlineKeyboard()
	_, _ = r.bot.Send(msg)
}

// --- Quiet hours flow ---

func (r *Router) handleQuiet(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		msg := tgbotapi.NewMessage(chatID, "Choose quiet hours (or Custom):")
		msg.ReplyMarkup = quietPresetsKeyboard()
		_, _ = r.bot.Send(msg)
		return
	}
	r.applyQuiet(ctx, chatID, arg)
}

func (r *Router) askQuietPresets(ctx context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	r.handleQuiet(ctx, chatID, "")
}

func (r *Router) handleQuietCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	if data == "quiet:custom" {
		r.sendText(chatID, "Enter quiet hours as HH:MM–HH:MM (e.g., 22:00–07:00), or off")
		r.setPending(chatID, pendingQuiet)
		return
	}
	r.applyQuiet(ctx, chatID, strings.TrimPrefix(data, "quiet:"))
}

func (r *Router) applyQuiet(ctx context.Context, chatID int64, val string) {
	var q domain.QuietHours
	if !strings.EqualFold(val, "off") {
		var err error
		q, err = domain.ParseQuietHours(val)
		if err != nil {
			r.sendText(chatID, "Invalid format. Example: 22:00–07:00")
			return
		}
	}
	if _, err := r.updateSettings(ctx, func(s *domain.Settings) { s.QuietHours = q }); err != nil {
		r.log.Error("update quiet hours failed", zap.Error(err))
		r.sendText(chatID, "Could not save quiet hours.")
		return
	}
	r.sendText(chatID, "Quiet hours updated: "+q.String())
}

// --- Timezone flow ---

func (r *Router) handleTZ(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		msg := tgbotapi.NewMessage(chatID, "Choose a timezone or enter your own (Region/City):")
		msg.ReplyMarkup = tzPresetsKeyboard()
		_, _ = r.bot.Send(msg)
		return
	}
	r.applyTZ(ctx, chatID, arg)
}

func (r *Router) askTZPresets(ctx context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	r.handleTZ(ctx, chatID, "")
}

func (r *Router) handleTZCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	if data == "tz:custom" {
		r.sendText(chatID, "Enter timezone (e.g., Europe/Moscow):")
		r.setPending(chatID, pendingTZ)
		return
	}
	r.applyTZ(ctx, chatID, strings.TrimPrefix(data, "tz:"))
}

func (r *Router) applyTZ(ctx context.Context, chatID int64, val string) {
	tz, err := domain.ValidateTZ(strings.TrimSpace(val))
	if err != nil {
		r.sendText(chatID, "Invalid timezone. Example: Europe/Moscow")
		return
	}
	if _, err := r.updateSettings(ctx, func(s *domain.Settings) { s.Timezone = tz }); err != nil {
		r.log.Error("update timezone failed", zap.Error(err))
		r.sendText(chatID, "Could not save timezone.")
		return
	}
	r.sendText(chatID, "Timezone updated: "+tz)
}

// --- Default snooze flow ---

func (r *Router) handleSnoozeDefault(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		msg := tgbotapi.NewMessage(chatID, "Choose the default snooze (or Custom):")
		msg.ReplyMarkup = snoozePresetsKeyboard()
		_, _ = r.bot.Send(msg)
		return
	}
	r.applySnooze(ctx, chatID, arg)
}

func (r *Router) askSnoozePresets(ctx context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	r.handleSnoozeDefault(ctx, chatID, "")
}

func (r *Router) handleSnoozePresetCallback(ctx context.Context, chatID int64, data string, cbID string) {
	_ = r.answerCallback(cbID, "")
	if data == "snoozedef:custom" {
		r.sendText(chatID, "Enter snooze length, e.g.: 5, 15m, 1h")
		r.setPending(chatID, pendingSnooze)
		return
	}
	r.applySnooze(ctx, chatID, strings.TrimPrefix(data, "snoozedef:"))
}

func (r *Router) applySnooze(ctx context.Context, chatID int64, val string) {
	d, err := domain.ParseSnooze(val)
	if err != nil {
		r.sendText(chatID, "Invalid snooze. Examples: 5, 15m, 1h (1m to 24h).")
		return
	}
	minutes := int(d / time.Minute)
	if _, err := r.updateSettings(ctx, func(s *domain.Settings) { s.DefaultSnoozeMinutes = minutes }); err != nil {
		r.log.Error("update snooze failed", zap.Error(err))
		r.sendText(chatID, "Could not save snooze.")
		return
	}
	r.sendText(chatID, "Default snooze updated: "+strconv.Itoa(minutes)+"m")
}

// --- Free-form dispatcher (for all "Custom" inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	switch r.getPending(chatID) {
	case pendingQuiet:
		r.clearPending(chatID)
		r.applyQuiet(ctx, chatID, text)
	case pendingTZ:
		r.clearPending(chatID)
		r.applyTZ(ctx, chatID, text)
	case pendingSnooze:
		r.clearPending(chatID)
		r.applySnooze(ctx, chatID, text)
	default:
		// No pending flow: ignore free-form message
	}
}
