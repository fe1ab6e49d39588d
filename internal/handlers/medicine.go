package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/PillboT/internal/alarm"
	"github.com/Kerhoff/PillboT/internal/service"
)

// AddMedicineHandler handles the /addmed command
type AddMedicineHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewAddMedicineHandler(svc *service.Service, logger *logrus.Logger) *AddMedicineHandler {
	return &AddMedicineHandler{svc: svc, logger: logger}
}

func (h *AddMedicineHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Usage: /addmed <name>")
		bot.Send(msg)
		return nil
	}

	ctx := context.Background()
	medicine, err := h.svc.CreateMedicine(ctx, message.Chat.ID, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("create medicine: %w", err)
	}

	text := fmt.Sprintf("💊 Added *%s* (id %d)\nSet a reminder with /schedule %d <HH:MM> [every\\_n\\_days]",
		medicine.Name, medicine.ID, medicine.ID)
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

// MedicinesListHandler handles the /meds command
type MedicinesListHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewMedicinesListHandler(svc *service.Service, logger *logrus.Logger) *MedicinesListHandler {
	return &MedicinesListHandler{svc: svc, logger: logger}
}

func (h *MedicinesListHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()
	medicines, err := h.svc.Medicines.GetByChatID(ctx, message.Chat.ID)
	if err != nil {
		return fmt.Errorf("list medicines: %w", err)
	}

	if len(medicines) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "💊 No medicines yet. Add one with /addmed <name>")
		bot.Send(msg)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("💊 *Your medicines:*\n\n")
	for _, m := range medicines {
		sb.WriteString(fmt.Sprintf("#%d *%s*\n", m.ID, m.Name))

		schedules, err := h.svc.Schedules.GetByMedicineID(ctx, m.ID)
		if err != nil {
			h.logger.WithError(err).WithField("medicine_id", m.ID).Error("Failed to get schedules")
			continue
		}
		if len(schedules) == 0 {
			sb.WriteString("   no reminders\n")
			continue
		}
		for _, s := range schedules {
			state := "⏰"
			if !s.Enabled {
				state = "⏸"
			}
			every := "daily"
			if s.IntervalDays > 1 {
				every = fmt.Sprintf("every %d days", s.IntervalDays)
			}
			sb.WriteString(fmt.Sprintf("   %s #%d at %s, %s\n", state, s.ID, s.TimeOfDay(), every))
		}
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

// MedicineDeleteHandler handles the /delmed command
type MedicineDeleteHandler struct {
	svc    *service.Service
	engine *alarm.Engine
	logger *logrus.Logger
}

func NewMedicineDeleteHandler(svc *service.Service, engine *alarm.Engine, logger *logrus.Logger) *MedicineDeleteHandler {
	return &MedicineDeleteHandler{svc: svc, engine: engine, logger: logger}
}

func (h *MedicineDeleteHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Usage: /delmed <id>")
		bot.Send(msg)
		return nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Invalid medicine ID")
		bot.Send(msg)
		return nil
	}

	ctx := context.Background()
	scheduleIDs, err := h.svc.DeleteMedicine(ctx, id)
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Medicine not found")
		bot.Send(msg)
		return nil
	}

	// Pending reminders for the deleted schedules must go too.
	for _, scheduleID := range scheduleIDs {
		h.engine.Disarm(scheduleID)
	}

	text := fmt.Sprintf("🗑 Medicine #%d deleted with %d reminder(s)", id, len(scheduleIDs))
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	bot.Send(msg)
	return nil
}
