package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
)

// Service is the central business logic layer that holds all repositories
// and provides high-level methods for the application.
type Service struct {
	db        *sql.DB
	logger    *logrus.Logger
	loc       *time.Location
	Medicines repository.MedicineRepository
	Schedules repository.ScheduleRepository
	Intakes   repository.IntakeRepository
}

// New creates a new Service with all required dependencies.
func New(db *sql.DB, logger *logrus.Logger, loc *time.Location,
	medicines repository.MedicineRepository,
	schedules repository.ScheduleRepository,
	intakes repository.IntakeRepository,
) *Service {
	return &Service{
		db: db, logger: logger, loc: loc,
		Medicines: medicines, Schedules: schedules, Intakes: intakes,
	}
}

// CreateMedicine registers a new medicine for a chat.
func (s *Service) CreateMedicine(ctx context.Context, chatID int64, name string) (*models.Medicine, error) {
	name = strings.TrimSpace(name)
	candidate := &models.Medicine{
		ChatID: chatID,
		Name:   name,
	}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	medicine, err := s.Medicines.Create(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to create medicine %q: %w", name, err)
	}

	s.logger.Infof("Created medicine %q (id=%d, chat_id=%d)", name, medicine.ID, chatID)
	return medicine, nil
}

// DeleteMedicine removes a medicine and, via cascade, all its schedules and
// intake history. It returns the IDs of the schedules that were attached so
// the caller can disarm their pending reminders.
func (s *Service) DeleteMedicine(ctx context.Context, id int64) ([]int64, error) {
	schedules, err := s.Schedules.GetByMedicineID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules for medicine %d: %w", id, err)
	}

	if err := s.Medicines.Delete(ctx, id); err != nil {
		return nil, err
	}

	scheduleIDs := make([]int64, 0, len(schedules))
	for _, sched := range schedules {
		scheduleIDs = append(scheduleIDs, sched.ID)
	}

	s.logger.Infof("Deleted medicine %d with %d schedule(s)", id, len(scheduleIDs))
	return scheduleIDs, nil
}

// AddSchedule validates and creates a recurring schedule for a medicine. The
// returned value carries the medicine name and chat so the caller can arm the
// first reminder immediately.
func (s *Service) AddSchedule(ctx context.Context, medicineID int64, hour, minute, intervalDays int) (*models.ScheduleWithMedicine, error) {
	schedule := &models.Schedule{
		MedicineID:   medicineID,
		Hour:         hour,
		Minute:       minute,
		IntervalDays: intervalDays,
		Enabled:      true,
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	medicine, err := s.Medicines.GetByID(ctx, medicineID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup medicine %d: %w", medicineID, err)
	}
	if medicine == nil {
		return nil, fmt.Errorf("medicine %d: %w", medicineID, repository.ErrNotFound)
	}

	schedule, err = s.Schedules.Create(ctx, schedule)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Added schedule %d for medicine %q at %s every %d day(s)",
		schedule.ID, medicine.Name, schedule.TimeOfDay(), schedule.IntervalDays)

	return &models.ScheduleWithMedicine{
		Schedule:     *schedule,
		MedicineName: medicine.Name,
		ChatID:       medicine.ChatID,
	}, nil
}

// UpdateSchedule changes a schedule's time, interval and enabled flag.
func (s *Service) UpdateSchedule(ctx context.Context, id int64, hour, minute, intervalDays int, enabled bool) (*models.ScheduleWithMedicine, error) {
	sw, err := s.Schedules.GetWithMedicine(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup schedule %d: %w", id, err)
	}
	if sw == nil {
		return nil, fmt.Errorf("schedule %d: %w", id, repository.ErrNotFound)
	}

	sw.Hour = hour
	sw.Minute = minute
	sw.IntervalDays = intervalDays
	sw.Enabled = enabled
	if err := sw.Schedule.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.Schedules.Update(ctx, &sw.Schedule); err != nil {
		return nil, err
	}

	s.logger.Infof("Updated schedule %d: %s every %d day(s), enabled=%t",
		id, sw.TimeOfDay(), sw.IntervalDays, sw.Enabled)
	return sw, nil
}

// SetScheduleEnabled flips a schedule on or off. Disabling keeps the intake
// history; only the pending reminder goes away (caller disarms it).
func (s *Service) SetScheduleEnabled(ctx context.Context, id int64, enabled bool) (*models.ScheduleWithMedicine, error) {
	sw, err := s.Schedules.GetWithMedicine(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup schedule %d: %w", id, err)
	}
	if sw == nil {
		return nil, fmt.Errorf("schedule %d: %w", id, repository.ErrNotFound)
	}

	if err := s.Schedules.SetEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}

	sw.Enabled = enabled
	s.logger.Infof("Schedule %d enabled=%t", id, enabled)
	return sw, nil
}

// DeleteSchedule removes a schedule and its intake history (cascade).
func (s *Service) DeleteSchedule(ctx context.Context, id int64) error {
	if err := s.Schedules.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infof("Deleted schedule %d", id)
	return nil
}
