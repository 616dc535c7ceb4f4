package handler

import (
	"context"
	"fmt"
	"strings"

	"leave-bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	stateAwaitingFirstName = "awaiting_first_name"
	stateAwaitingLastName  = "awaiting_last_name:"
)

// startProfileCreation begins the two-step registration dialogue.
func (h *Handler) startProfileCreation(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	user, err := h.services.Users.FindByChatID(ctx, chatID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	if user != nil {
		h.reply(chatID, "❌ You already have a profile.\nUse /myprofile to see it.")
		return
	}

	h.userStates[chatID] = stateAwaitingFirstName

	h.reply(chatID, `👤 Creating your profile

Step 1 of 2:
✏️ Please send your first name (or /cancel):`)
}

func (h *Handler) handleProfileState(ctx context.Context, message *tgbotapi.Message, state string) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	if state == stateAwaitingFirstName {
		if text == "" || message.IsCommand() {
			h.reply(chatID, "✏️ Please send your first name as plain text:")
			return
		}
		h.userStates[chatID] = stateAwaitingLastName + text

		h.reply(chatID, fmt.Sprintf(`Step 2 of 2:
✅ First name saved: %s
✏️ Now send your last name (send "-" if you have none):`, text))
		return
	}

	firstName := strings.TrimPrefix(state, stateAwaitingLastName)
	lastName := text
	if lastName == "-" {
		lastName = ""
	}

	username := ""
	if message.From != nil {
		username = message.From.UserName
	}

	delete(h.userStates, chatID)

	user, err := h.services.Users.Register(ctx, service.RegisterInput{
		ChatID:    chatID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	h.reply(chatID, fmt.Sprintf(`🎉 Profile created!

%s

Use /help to see what you can do.`, formatUser(user)))
}

// showProfile prints the caller's profile and this year's entitlement.
func (h *Handler) showProfile(ctx context.Context, req request) {
	text := formatUser(req.user)

	if summary, err := h.services.Balances.Summary(ctx, req.actor, req.user.ID, h.now().Year()); err == nil {
		text += "\n\n" + formatBalance(summary)
	} else {
		h.logger.WithError(err).WithField("user_id", req.user.ID).Warn("Failed to load balance for profile")
	}

	h.reply(req.chatID, text)
}
