package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// StartHandler handles the /start command
type StartHandler struct {
	logger *logrus.Logger
}

func NewStartHandler(logger *logrus.Logger) *StartHandler {
	return &StartHandler{logger: logger}
}

func (h *StartHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	text := "👋 Hi! I remind you to take your medicines.\n\n" +
		"Add a medicine with /addmed, then give it a daily (or every-N-days) " +
		"reminder time with /schedule. When a reminder fires, tap the button " +
		"to mark the dose as taken.\n\n" +
		"Use /help to see all commands."

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	bot.Send(msg)
	return nil
}
