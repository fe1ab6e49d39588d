package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	text := `💊 *Medicines*
/addmed <name> — add a medicine
/meds — list medicines and their schedules
/delmed <id> — delete a medicine and its history

⏰ *Schedules*
/schedule <medicine\_id> <HH:MM> [every\_n\_days] — add a reminder
/pause <schedule\_id> — pause a reminder (history stays)
/resume <schedule\_id> — resume a paused reminder
/delschedule <schedule\_id> — delete a reminder

✅ *Intakes*
/taken <schedule\_id> — mark today's dose as taken
/history <medicine\_id> — recent intake history
/missed <medicine\_id> — count of missed doses`

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}
