package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Sender delivers a text message, optionally with one row of inline buttons.
type Sender interface {
	Send(chatID int64, text string, buttons ...Button) error
}

// Messenger is a Sender that can also settle inline keyboard callbacks.
type Messenger interface {
	Sender
	AnswerCallback(callbackID, text string) error
	ClearKeyboard(chatID int64, messageID int) error
}

type Client struct {
	Bot          *tgbotapi.BotAPI
	UpdateConfig tgbotapi.UpdateConfig
}

func NewClient(token string, debug bool) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	bot.Debug = debug

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	return &Client{
		Bot:          bot,
		UpdateConfig: updateConfig,
	}, nil
}

func (c *Client) Send(chatID int64, text string, buttons ...Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = Keyboard(buttons...)
	}
	_, err := c.Bot.Send(msg)
	return err
}

// AnswerCallback stops the button spinner, optionally showing text.
func (c *Client) AnswerCallback(callbackID, text string) error {
	_, err := c.Bot.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

// ClearKeyboard removes the inline keyboard from a sent message.
func (c *Client) ClearKeyboard(chatID int64, messageID int) error {
	_, err := c.Bot.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	}))
	return err
}

// Keyboard builds a single-row inline keyboard.
func Keyboard(buttons ...Button) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
