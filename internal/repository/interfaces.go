package repository

import (
	"context"
	"time"

	"github.com/Kerhoff/PillboT/internal/models"
)

// MedicineRepository defines the interface for medicine data operations
type MedicineRepository interface {
	Create(ctx context.Context, medicine *models.Medicine) (*models.Medicine, error)
	GetByID(ctx context.Context, id int64) (*models.Medicine, error)
	GetByChatID(ctx context.Context, chatID int64) ([]*models.Medicine, error)
	Delete(ctx context.Context, id int64) error
}

// ScheduleRepository defines the interface for schedule data operations
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error)
	GetByID(ctx context.Context, id int64) (*models.Schedule, error)
	GetWithMedicine(ctx context.Context, id int64) (*models.ScheduleWithMedicine, error)
	GetByMedicineID(ctx context.Context, medicineID int64) ([]*models.Schedule, error)
	Update(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	Delete(ctx context.Context, id int64) error
	// ListEnabled returns every enabled schedule joined with its medicine,
	// which is exactly what the recovery sweep needs to re-arm after restart.
	ListEnabled(ctx context.Context) ([]*models.ScheduleWithMedicine, error)
}

// IntakeRepository defines the interface for intake data operations. The
// day parameter is the calendar-day key from clock.DayKey; CreateIfAbsent and
// MarkTaken are single-statement upserts on (schedule_id, day) so concurrent
// fire and mark-taken paths always resolve to one row.
type IntakeRepository interface {
	FindForDay(ctx context.Context, scheduleID int64, day string) (*models.Intake, error)
	CreateIfAbsent(ctx context.Context, intake *models.Intake, day string) (*models.Intake, bool, error)
	MarkTaken(ctx context.Context, medicineID, scheduleID int64, at time.Time, day string) (*models.Intake, error)
	GetByMedicineID(ctx context.Context, medicineID int64, limit int) ([]*models.Intake, error)
	GetByChatRange(ctx context.Context, chatID int64, from, to time.Time) ([]*models.Intake, error)
	MissedCount(ctx context.Context, medicineID int64) (int, error)
}
