package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/PillboT/internal/service"
)

const historyLimit = 30

// TakenHandler handles the /taken command
type TakenHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewTakenHandler(svc *service.Service, logger *logrus.Logger) *TakenHandler {
	return &TakenHandler{svc: svc, logger: logger}
}

func (h *TakenHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	id, ok := parseScheduleID(bot, message, args, "/taken")
	if !ok {
		return nil
	}

	ctx := context.Background()
	intake, err := h.svc.MarkTaken(ctx, id, time.Now())
	if err != nil {
		return fmt.Errorf("mark taken: %w", err)
	}
	if intake == nil {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Schedule not found"))
		return nil
	}

	text := fmt.Sprintf("✅ Dose for reminder #%d marked as taken at %s",
		id, intake.TakenTime.Format("15:04"))
	bot.Send(tgbotapi.NewMessage(message.Chat.ID, text))
	return nil
}

// TakenCallbackHandler handles the "taken:<schedule_id>" inline button on
// reminder notifications, so a dose can be recorded without typing a command.
type TakenCallbackHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewTakenCallbackHandler(svc *service.Service, logger *logrus.Logger) *TakenCallbackHandler {
	return &TakenCallbackHandler{svc: svc, logger: logger}
}

func (h *TakenCallbackHandler) HandleCallback(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, data string) error {
	scheduleID, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		bot.Request(tgbotapi.NewCallback(query.ID, "Bad reminder reference"))
		return fmt.Errorf("invalid callback data %q: %w", data, err)
	}

	ctx := context.Background()
	intake, err := h.svc.MarkTaken(ctx, scheduleID, time.Now())
	if err != nil {
		bot.Request(tgbotapi.NewCallback(query.ID, "Could not record the dose, try again"))
		return fmt.Errorf("mark taken from callback: %w", err)
	}

	if intake == nil {
		// Schedule deleted between notification and tap.
		bot.Request(tgbotapi.NewCallback(query.ID, "This reminder no longer exists"))
		return nil
	}

	bot.Request(tgbotapi.NewCallback(query.ID, "Dose recorded"))

	// Replace the reminder message so the button disappears and the chat
	// shows the outcome.
	if query.Message != nil {
		text := fmt.Sprintf("✅ Taken at %s", intake.TakenTime.Format("15:04"))
		edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID,
			query.Message.Text+"\n\n"+text)
		bot.Send(edit)
	}

	return nil
}

// HistoryHandler handles the /history command
type HistoryHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewHistoryHandler(svc *service.Service, logger *logrus.Logger) *HistoryHandler {
	return &HistoryHandler{svc: svc, logger: logger}
}

func (h *HistoryHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "Usage: /history <medicine_id>"))
		return nil
	}

	medicineID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Invalid medicine ID"))
		return nil
	}

	ctx := context.Background()
	medicine, err := h.svc.Medicines.GetByID(ctx, medicineID)
	if err != nil {
		return fmt.Errorf("get medicine: %w", err)
	}
	if medicine == nil {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Medicine not found"))
		return nil
	}

	intakes, err := h.svc.Intakes.GetByMedicineID(ctx, medicineID, historyLimit)
	if err != nil {
		return fmt.Errorf("get intakes: %w", err)
	}

	if len(intakes) == 0 {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID,
			fmt.Sprintf("📋 No intake history for %s yet", medicine.Name)))
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *Intake history for %s:*\n\n", medicine.Name))
	for _, intake := range intakes {
		if intake.Taken {
			sb.WriteString(fmt.Sprintf("✅ %s — taken at %s\n",
				intake.ScheduledTime.Format("Mon, 02 Jan"),
				intake.TakenTime.Format("15:04")))
		} else {
			sb.WriteString(fmt.Sprintf("❌ %s — missed (%s)\n",
				intake.ScheduledTime.Format("Mon, 02 Jan"),
				intake.ScheduledTime.Format("15:04")))
		}
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

// MissedHandler handles the /missed command
type MissedHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewMissedHandler(svc *service.Service, logger *logrus.Logger) *MissedHandler {
	return &MissedHandler{svc: svc, logger: logger}
}

func (h *MissedHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "Usage: /missed <medicine_id>"))
		return nil
	}

	medicineID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Invalid medicine ID"))
		return nil
	}

	ctx := context.Background()
	medicine, err := h.svc.Medicines.GetByID(ctx, medicineID)
	if err != nil {
		return fmt.Errorf("get medicine: %w", err)
	}
	if medicine == nil {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Medicine not found"))
		return nil
	}

	count, err := h.svc.Intakes.MissedCount(ctx, medicineID)
	if err != nil {
		return fmt.Errorf("count missed: %w", err)
	}

	text := fmt.Sprintf("📊 *%s*: %d missed dose(s)", medicine.Name, count)
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}
