package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Shtya/fitness-reminders/internal/domain"
)

// Pending state keys used in conversational flows.
const (
	pendingQuiet  = "await_quiet_text"
	pendingTZ     = "await_tz_text"
	pendingSnooze = "await_snooze_text"
)

// ErrNoChat is returned when a due message has no chat to go to yet.
var ErrNoChat = errors.New("no chat bound; send /start to the bot")

// Bot is the part of tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Reminders is the working set the router acts on; scheduler.Ticker implements it.
type Reminders interface {
	List() []*domain.Reminder
	Get(id string) (*domain.Reminder, bool)
	Snooze(ctx context.Context, id string, minutes int) (time.Time, error)
	Acknowledge(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	Remove(id string)
}

// Store persists settings edits and reminder deletions.
type Store interface {
	SaveSettings(ctx context.Context, s domain.Settings) error
	DeleteReminder(ctx context.Context, id string) error
}

// Deps groups the router collaborators.
type Deps struct {
	Bot       Bot
	Log       *zap.Logger
	Reminders Reminders
	Settings  *domain.SharedSettings
	Store     Store
	Lookup    domain.PrayerLookup
	Clock     clockwork.Clock
	// ChatID is the owner chat; 0 binds the first chat that sends /start.
	ChatID int64
	// OnSettingsChange runs after a settings edit was saved.
	OnSettingsChange func(domain.Settings)
}

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot       Bot
	log       *zap.Logger
	reminders Reminders
	settings  *domain.SharedSettings
	store     Store
	lookup    domain.PrayerLookup
	clock     clockwork.Clock
	onChange  func(domain.Settings)
	chatID    atomic.Int64

	state map[int64]string // chatID -> pending state
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(d Deps) *Router {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	r := &Router{
		bot:       d.Bot,
		log:       d.Log,
		reminders: d.Reminders,
		settings:  d.Settings,
		store:     d.Store,
		lookup:    d.Lookup,
		clock:     d.Clock,
		onChange:  d.OnSettingsChange,
		state:     make(map[int64]string),
	}
	r.chatID.Store(d.ChatID)
	return r
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// allowed reports whether chatID may drive the bot. The first /start binds
// the owner when none was configured.
func (r *Router) allowed(chatID int64, binding bool) bool {
	owner := r.chatID.Load()
	if owner == 0 && binding {
		return r.chatID.CompareAndSwap(0, chatID) || r.chatID.Load() == chatID
	}
	return owner == chatID
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	// Text messages
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		if !r.allowed(chatID, strings.HasPrefix(text, "/start")) {
			r.log.Warn("update from unknown chat", zap.Int64("chatID", chatID))
			return
		}

		cmd, arg := splitCommand(text)
		switch cmd {
		case "/start":
			r.handleStart(ctx, chatID)
		case "/list":
			r.handleList(ctx, chatID)
		case "/settings":
			r.handleSettings(ctx, chatID)
		case "/quiet":
			r.handleQuiet(ctx, chatID, arg)
		case "/tz":
			r.handleTZ(ctx, chatID, arg)
		case "/snooze":
			r.handleSnoozeDefault(ctx, chatID, arg)
		default:
			// Free-form text used in "Custom" flows (quiet/tz/snooze)
			r.handleFreeForm(ctx, chatID, text)
		}
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		data := cb.Data
		chatID := cb.Message.Chat.ID
		if !r.allowed(chatID, false) {
			_ = r.answerCallback(cb.ID, "")
			return
		}

		switch {
		// Due message buttons
		case strings.HasPrefix(data, "snooze:"):
			r.handleSnoozeCallback(ctx, chatID, strings.TrimPrefix(data, "snooze:"), cb.ID)
		case strings.HasPrefix(data, "done:"):
			r.handleDoneCallback(ctx, chatID, strings.TrimPrefix(data, "done:"), cb.ID)
		case strings.HasPrefix(data, "pause:"):
			r.handleActiveCallback(ctx, chatID, strings.TrimPrefix(data, "pause:"), false, cb.ID)
		case strings.HasPrefix(data, "resume:"):
			r.handleActiveCallback(ctx, chatID, strings.TrimPrefix(data, "resume:"), true, cb.ID)
		case strings.HasPrefix(data, "delete:"):
			r.handleDeleteCallback(ctx, chatID, strings.TrimPrefix(data, "delete:"), cb.ID)

		// Settings sections
		case data == "set_quiet":
			r.askQuietPresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "quiet:"):
			r.handleQuietCallback(ctx, chatID, data, cb.ID)

		case data == "set_tz":
			r.askTZPresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "tz:"):
			r.handleTZCallback(ctx, chatID, data, cb.ID)

		case data == "set_snooze":
			r.askSnoozePresets(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "snoozedef:"):
			r.handleSnoozePresetCallback(ctx, chatID, data, cb.ID)

		case data == "back_to_menu":
			_ = r.answerCallback(cb.ID, "")
			r.handleSettings(ctx, chatID)

		default:
			// Unknown callback: ignore silently
			_ = r.answerCallback(cb.ID, "")
		}
		return
	}
}

// splitCommand returns "/cmd" (without a @botname suffix) and the rest.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, arg, _ := strings.Cut(text, " ")
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

// SendMessage sends a plain text message to the given chat.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
