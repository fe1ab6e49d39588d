package telegram

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/PillboT/internal/alarm"
	"github.com/Kerhoff/PillboT/internal/metrics"
	"github.com/Kerhoff/PillboT/internal/service"
)

// Notifier sends reminder messages to chats when a fired schedule still has
// an untaken dose for the day. The message carries a "mark as taken" button
// whose callback flips the intake without any further input, so the dose can
// be recorded straight from the reminder.
type Notifier struct {
	bot    *Bot
	logger *logrus.Logger
}

// NewNotifier creates a Notifier backed by the given bot.
func NewNotifier(bot *Bot, logger *logrus.Logger) *Notifier {
	return &Notifier{bot: bot, logger: logger}
}

// MaybeNotify surfaces a reminder only when the reconcile verdict says the
// dose is still pending. An already-taken dose stays silent: that is the
// duplicate-fire suppression path.
func (n *Notifier) MaybeNotify(verdict service.Verdict, payload alarm.FirePayload, firedAt time.Time) {
	if verdict != service.VerdictCreatedPlaceholder {
		return
	}

	text := fmt.Sprintf("💊 *Medicine reminder*\nTime to take *%s* (%s)",
		payload.MedicineName, firedAt.Format("15:04"))

	msg := tgbotapi.NewMessage(payload.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Mark as taken", fmt.Sprintf("taken:%d", payload.ScheduleID)),
		),
	)

	n.bot.SendRaw(msg)
	metrics.NotificationsSent.Inc()

	n.logger.WithFields(logrus.Fields{
		"chat_id":     payload.ChatID,
		"schedule_id": payload.ScheduleID,
		"medicine":    payload.MedicineName,
	}).Info("Sent reminder notification")
}
