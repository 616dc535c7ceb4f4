package handler

import (
	"context"
	"fmt"
	"strings"

	"leave-bot/internal/metrics"
	"leave-bot/internal/policy"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// handleCallbackQuery handles inline keyboard buttons.
func (h *Handler) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.Message.Chat == nil {
		h.answer(callback.ID, "")
		return
	}
	chatID := callback.Message.Chat.ID
	data := callback.Data

	if !h.allow(chatID) {
		metrics.RateLimited.Inc()
		h.answer(callback.ID, "⏳ Too many requests, try again in a moment.")
		return
	}

	if err := h.client.ClearKeyboard(chatID, callback.Message.MessageID); err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Debug("Failed to clear keyboard")
	}

	if data == callbackCancelDelete {
		h.answer(callback.ID, "")
		h.reply(chatID, "👌 Kept.")
		return
	}

	user, err := h.services.Users.Authenticate(ctx, chatID)
	if err != nil {
		h.answer(callback.ID, "")
		h.replyError(chatID, err)
		return
	}
	req := request{
		message: callback.Message,
		chatID:  chatID,
		user:    user,
		actor:   policy.ActorOf(user),
	}

	var handle func(ctx context.Context, req request, id uint)
	var prefix, label string
	switch {
	case strings.HasPrefix(data, callbackApproveLeave):
		prefix, label, handle = callbackApproveLeave, "approve", func(ctx context.Context, req request, id uint) {
			h.doApprove(ctx, req, id, "")
		}
	case strings.HasPrefix(data, callbackSubmitLeave):
		prefix, label, handle = callbackSubmitLeave, "submit", h.doSubmit
	case strings.HasPrefix(data, callbackConfirmDelete):
		prefix, label, handle = callbackConfirmDelete, "deleteleave", h.doDelete
	default:
		h.logger.WithFields(logrus.Fields{"chat_id": chatID, "data": data}).Warn("Unknown callback")
		h.answer(callback.ID, "")
		return
	}

	id, err := parseID(strings.TrimPrefix(data, prefix))
	if err != nil {
		h.answer(callback.ID, "")
		h.reply(chatID, "❌ "+err.Error())
		return
	}

	defer metrics.TrackCommand(label)()
	h.answer(callback.ID, "")
	handle(ctx, req, id)
}

func (h *Handler) doDelete(ctx context.Context, req request, id uint) {
	if err := h.services.Leaves.Delete(ctx, req.actor, id); err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, fmt.Sprintf("🗑 Request #%d deleted.", id))
}

// answer stops the button spinner.
func (h *Handler) answer(callbackID, text string) {
	if err := h.client.AnswerCallback(callbackID, text); err != nil {
		h.logger.WithError(err).Debug("Failed to answer callback")
	}
}
