package handler

import (
	"context"
	"strings"
	"time"

	"leave-bot/internal/apperr"
	"leave-bot/internal/config"
	"leave-bot/internal/metrics"
	"leave-bot/internal/models"
	"leave-bot/internal/policy"
	"leave-bot/internal/service"
	"leave-bot/pkg/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Services bundles the application services the bot fronts.
type Services struct {
	Users         *service.UserService
	Leaves        *service.LeaveService
	Teams         *service.TeamService
	Holidays      *service.HolidayService
	Balances      *service.BalanceService
	Settings      *service.SettingsService
	Audit         *service.AuditService
	Notifications *service.NotificationService
}

type Handler struct {
	client     telegram.Messenger
	services   Services
	userStates map[int64]string
	limiters   map[int64]*rate.Limiter
	config     *config.BotConfig
	logger     *logrus.Logger
	now        func() time.Time
}

// request is an authenticated command invocation.
type request struct {
	message *tgbotapi.Message
	chatID  int64
	args    string
	user    *models.User
	actor   policy.Actor
}

type commandFunc func(ctx context.Context, req request)

func NewHandler(client telegram.Messenger, services Services, cfg *config.BotConfig, logger *logrus.Logger) *Handler {
	return &Handler{
		client:     client,
		services:   services,
		userStates: make(map[int64]string),
		limiters:   make(map[int64]*rate.Limiter),
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleUpdates processes updates one at a time until the channel closes or
// ctx is done.
func (h *Handler) HandleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.handleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	h.handleMessage(ctx, update.Message)
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	username := ""
	if message.From != nil {
		username = message.From.UserName
	}
	h.logger.WithFields(logrus.Fields{
		"chat_id":  chatID,
		"username": username,
	}).Debug(message.Text)

	if !h.allow(chatID) {
		metrics.RateLimited.Inc()
		return
	}

	if state, exists := h.userStates[chatID]; exists {
		if message.IsCommand() && message.Command() == "cancel" {
			delete(h.userStates, chatID)
			h.reply(chatID, "❌ Cancelled.")
			return
		}
		h.handleState(ctx, message, state)
		return
	}

	if message.IsCommand() {
		h.handleCommand(ctx, message)
		return
	}

	h.reply(chatID, "🤖 I only understand commands. Use /help for the list.")
}

func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	command := strings.ToLower(message.Command())

	switch command {
	case "start":
		defer metrics.TrackCommand(command)()
		h.sendStartMessage(ctx, message)
		return
	case "help":
		defer metrics.TrackCommand(command)()
		h.sendHelpMessage(ctx, message)
		return
	case "createprofile":
		defer metrics.TrackCommand(command)()
		h.startProfileCreation(ctx, message)
		return
	}

	fn, ok := h.routes()[command]
	if !ok {
		h.sendUnknownCommand(chatID)
		return
	}
	defer metrics.TrackCommand(command)()

	user, err := h.services.Users.Authenticate(ctx, chatID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	fn(ctx, request{
		message: message,
		chatID:  chatID,
		args:    strings.TrimSpace(message.CommandArguments()),
		user:    user,
		actor:   policy.ActorOf(user),
	})
}

// routes maps commands that need a registered, active user.
func (h *Handler) routes() map[string]commandFunc {
	return map[string]commandFunc{
		"myprofile":     h.showProfile,
		"leave":         h.createLeave,
		"editleave":     h.editLeave,
		"submit":        h.submitLeave,
		"cancel":        h.cancelLeave,
		"approve":       h.approveLeave,
		"reject":        h.rejectLeave,
		"deleteleave":   h.deleteLeave,
		"leaveinfo":     h.leaveInfo,
		"myleaves":      h.myLeaves,
		"pending":       h.pendingLeaves,
		"balance":       h.showBalance,
		"calendar":      h.showCalendar,
		"notifications": h.showNotifications,
		"holidays":      h.listHolidays,

		"addholiday":     h.addHoliday,
		"removeholiday":  h.removeHoliday,
		"toggleholiday":  h.toggleHoliday,
		"importholidays": h.importHolidays,
		"teams":          h.listTeams,
		"addteam":        h.addTeam,
		"editteam":       h.editTeam,
		"deleteteam":     h.deleteTeam,
		"users":          h.listUsers,
		"setrole":        h.setRole,
		"setteam":        h.setTeam,
		"setprofile":     h.setProfile,
		"deactivate":     h.deactivateUser,
		"activate":       h.activateUser,
		"deleteuser":     h.deleteUser,
		"settings":       h.showSettings,
		"setsetting":     h.setSetting,
		"setbalance":     h.setBalance,
		"clearbalance":   h.clearBalance,
		"audit":          h.showAudit,
	}
}

func (h *Handler) handleState(ctx context.Context, message *tgbotapi.Message, state string) {
	switch {
	case strings.HasPrefix(state, stateAwaitingFirstName), strings.HasPrefix(state, stateAwaitingLastName):
		h.handleProfileState(ctx, message, state)
	default:
		delete(h.userStates, message.Chat.ID)
		h.logger.WithField("state", state).Warn("Unknown dialogue state dropped")
	}
}

// allow applies the per-chat rate limit.
func (h *Handler) allow(chatID int64) bool {
	limiter, ok := h.limiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(h.config.RateLimitPerSecond), h.config.RateLimitBurst)
		h.limiters[chatID] = limiter
	}
	return limiter.Allow()
}

func (h *Handler) reply(chatID int64, text string, buttons ...telegram.Button) {
	if err := h.client.Send(chatID, text, buttons...); err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to send reply")
	}
}

// replyError renders a service error by kind. Internal details stay in the log.
func (h *Handler) replyError(chatID int64, err error) {
	var text string
	switch apperr.KindOf(err) {
	case apperr.KindInternal:
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Command failed")
		text = "❌ Something went wrong, please try again later."
	case apperr.KindUnauthenticated:
		text = "🔒 " + err.Error()
	case apperr.KindPermissionDenied:
		text = "⛔ " + err.Error()
	case apperr.KindNotFound:
		text = "🔍 " + err.Error()
	case apperr.KindFailedPrecondition:
		if remaining, ok := apperr.RemainingHours(err); ok {
			text = "❌ Not enough annual leave left: " + formatHours(remaining) + " remaining."
		} else {
			text = "⚠️ " + err.Error()
		}
	default:
		text = "❌ " + err.Error()
	}
	h.reply(chatID, text)
}

func (h *Handler) sendUnknownCommand(chatID int64) {
	h.reply(chatID, "❌ Unknown command. Use /help for the list of commands.")
}
