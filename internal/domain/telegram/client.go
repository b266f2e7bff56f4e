package telegram

import "gopkg.in/telebot.v3"

// Client sends messages to a Telegram chat.
// It keeps the application layer independent of the bot library's polling and routing.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
