package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSchedule is returned when a schedule's time or interval is out of
// range. Validation happens at create/edit time so the alarm engine only ever
// sees well-formed schedules.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedule represents a recurring reminder time for a medicine: a local
// wall-clock time of day repeated every IntervalDays days.
type Schedule struct {
	ID           int64     `json:"id" db:"id"`
	MedicineID   int64     `json:"medicine_id" db:"medicine_id"`
	Hour         int       `json:"hour" db:"hour"`
	Minute       int       `json:"minute" db:"minute"`
	IntervalDays int       `json:"interval_days" db:"interval_days"`
	Enabled      bool      `json:"enabled" db:"enabled"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ScheduleWithMedicine is a schedule joined with the owning medicine's name
// and chat, enough to arm a reminder without further lookups.
type ScheduleWithMedicine struct {
	Schedule
	MedicineName string `json:"medicine_name" db:"medicine_name"`
	ChatID       int64  `json:"chat_id" db:"chat_id"`
}

// Validate checks the schedule's wall-clock time and interval ranges.
func (s *Schedule) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range [0,23]", ErrInvalidSchedule, s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range [0,59]", ErrInvalidSchedule, s.Minute)
	}
	if s.IntervalDays < 1 {
		return fmt.Errorf("%w: interval %d days, must be >= 1", ErrInvalidSchedule, s.IntervalDays)
	}
	return nil
}

// TimeOfDay formats the schedule's wall-clock time as HH:MM.
func (s *Schedule) TimeOfDay() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}
