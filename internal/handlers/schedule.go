package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/PillboT/internal/alarm"
	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
	"github.com/Kerhoff/PillboT/internal/service"
)

// ScheduleAddHandler handles the /schedule command
type ScheduleAddHandler struct {
	svc    *service.Service
	engine *alarm.Engine
	logger *logrus.Logger
}

func NewScheduleAddHandler(svc *service.Service, engine *alarm.Engine, logger *logrus.Logger) *ScheduleAddHandler {
	return &ScheduleAddHandler{svc: svc, engine: engine, logger: logger}
}

func (h *ScheduleAddHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) < 2 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Usage: /schedule <medicine_id> <HH:MM> [every_n_days]")
		bot.Send(msg)
		return nil
	}

	medicineID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Invalid medicine ID")
		bot.Send(msg)
		return nil
	}

	hour, minute, err := parseTimeOfDay(args[1])
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Time must be HH:MM, e.g. 08:00")
		bot.Send(msg)
		return nil
	}

	intervalDays := 1
	if len(args) >= 3 {
		if intervalDays, err = strconv.Atoi(args[2]); err != nil {
			msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Interval must be a number of days")
			bot.Send(msg)
			return nil
		}
	}

	ctx := context.Background()
	sw, err := h.svc.AddSchedule(ctx, medicineID, hour, minute, intervalDays)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidSchedule):
			bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ "+err.Error()))
			return nil
		case errors.Is(err, repository.ErrNotFound):
			bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Medicine not found"))
			return nil
		}
		return fmt.Errorf("add schedule: %w", err)
	}

	if err := h.engine.Arm(&sw.Schedule, sw.MedicineName, sw.ChatID); err != nil {
		// The schedule is persisted, so the recovery sweep will retry the
		// timer on next startup. Tell the user rather than pretend.
		h.logger.WithError(err).Error("Failed to arm new schedule")
		bot.Send(tgbotapi.NewMessage(message.Chat.ID,
			"⚠️ Schedule saved but the reminder could not be armed. It will be retried on restart."))
		return nil
	}

	every := "daily"
	if sw.IntervalDays > 1 {
		every = fmt.Sprintf("every %d days", sw.IntervalDays)
	}
	text := fmt.Sprintf("⏰ Reminder #%d for *%s* at %s, %s",
		sw.ID, sw.MedicineName, sw.TimeOfDay(), every)
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

// parseTimeOfDay parses "HH:MM" into hour and minute.
func parseTimeOfDay(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	if hour, err = strconv.Atoi(hh); err != nil {
		return 0, 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	if minute, err = strconv.Atoi(mm); err != nil {
		return 0, 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	return hour, minute, nil
}

// SchedulePauseHandler handles the /pause command
type SchedulePauseHandler struct {
	svc    *service.Service
	engine *alarm.Engine
	logger *logrus.Logger
}

func NewSchedulePauseHandler(svc *service.Service, engine *alarm.Engine, logger *logrus.Logger) *SchedulePauseHandler {
	return &SchedulePauseHandler{svc: svc, engine: engine, logger: logger}
}

func (h *SchedulePauseHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	id, ok := parseScheduleID(bot, message, args, "/pause")
	if !ok {
		return nil
	}

	ctx := context.Background()
	sw, err := h.svc.SetScheduleEnabled(ctx, id, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Schedule not found"))
			return nil
		}
		return fmt.Errorf("pause schedule: %w", err)
	}

	h.engine.Disarm(id)

	text := fmt.Sprintf("⏸ Reminder #%d for *%s* paused", id, sw.MedicineName)
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

// ScheduleResumeHandler handles the /resume command
type ScheduleResumeHandler struct {
	svc    *service.Service
	engine *alarm.Engine
	logger *logrus.Logger
}

func NewScheduleResumeHandler(svc *service.Service, engine *alarm.Engine, logger *logrus.Logger) *ScheduleResumeHandler {
	return &ScheduleResumeHandler{svc: svc, engine: engine, logger: logger}
}

func (h *ScheduleResumeHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	id, ok := parseScheduleID(bot, message, args, "/resume")
	if !ok {
		return nil
	}

	ctx := context.Background()
	sw, err := h.svc.SetScheduleEnabled(ctx, id, true)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Schedule not found"))
			return nil
		}
		return fmt.Errorf("resume schedule: %w", err)
	}

	if err := h.engine.Arm(&sw.Schedule, sw.MedicineName, sw.ChatID); err != nil {
		h.logger.WithError(err).Error("Failed to arm resumed schedule")
		bot.Send(tgbotapi.NewMessage(message.Chat.ID,
			"⚠️ Schedule resumed but the reminder could not be armed. It will be retried on restart."))
		return nil
	}

	text := fmt.Sprintf("▶️ Reminder #%d for *%s* resumed at %s", id, sw.MedicineName, sw.TimeOfDay())
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)
	return nil
}

// ScheduleDeleteHandler handles the /delschedule command
type ScheduleDeleteHandler struct {
	svc    *service.Service
	engine *alarm.Engine
	logger *logrus.Logger
}

func NewScheduleDeleteHandler(svc *service.Service, engine *alarm.Engine, logger *logrus.Logger) *ScheduleDeleteHandler {
	return &ScheduleDeleteHandler{svc: svc, engine: engine, logger: logger}
}

func (h *ScheduleDeleteHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	id, ok := parseScheduleID(bot, message, args, "/delschedule")
	if !ok {
		return nil
	}

	ctx := context.Background()
	if err := h.svc.DeleteSchedule(ctx, id); err != nil {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Schedule not found"))
		return nil
	}

	h.engine.Disarm(id)

	text := fmt.Sprintf("🗑 Reminder #%d deleted", id)
	bot.Send(tgbotapi.NewMessage(message.Chat.ID, text))
	return nil
}

// parseScheduleID reads the single <schedule_id> argument, replying with a
// usage hint on bad input.
func parseScheduleID(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string, command string) (int64, bool) {
	if len(args) == 0 {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("Usage: %s <schedule_id>", command)))
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Invalid schedule ID"))
		return 0, false
	}
	return id, true
}
