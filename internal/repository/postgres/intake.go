package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
)

type intakeRepository struct {
	db *sql.DB
}

// NewIntakeRepository creates a new intake repository
func NewIntakeRepository(db *sql.DB) repository.IntakeRepository {
	return &intakeRepository{db: db}
}

func (r *intakeRepository) FindForDay(ctx context.Context, scheduleID int64, day string) (*models.Intake, error) {
	query := `
		SELECT id, medicine_id, schedule_id, scheduled_time, taken_time, taken
		FROM medicine_intakes
		WHERE schedule_id = $1 AND day_key = $2`

	intake := &models.Intake{}
	err := r.db.QueryRowContext(ctx, query, scheduleID, day).Scan(
		&intake.ID,
		&intake.MedicineID,
		&intake.ScheduleID,
		&intake.ScheduledTime,
		&intake.TakenTime,
		&intake.Taken,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get intake for day: %w", err)
	}

	return intake, nil
}

// CreateIfAbsent inserts an untaken placeholder for the schedule's day unless
// a row already exists for that (schedule, day) key. The second return value
// reports whether a new row was written. ON CONFLICT DO NOTHING keeps the
// insert atomic against a concurrent mark-taken for the same key.
func (r *intakeRepository) CreateIfAbsent(ctx context.Context, intake *models.Intake, day string) (*models.Intake, bool, error) {
	query := `
		INSERT INTO medicine_intakes (medicine_id, schedule_id, scheduled_time, taken_time, taken, day_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (schedule_id, day_key) DO NOTHING
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		intake.MedicineID,
		intake.ScheduleID,
		intake.ScheduledTime,
		intake.TakenTime,
		intake.Taken,
		day,
	).Scan(&intake.ID)

	if err == nil {
		return intake, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to create intake: %w", err)
	}

	// Conflict: someone else wrote the row for this day first.
	existing, err := r.FindForDay(ctx, intake.ScheduleID, day)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("intake for schedule %d on %s vanished after conflict", intake.ScheduleID, day)
	}
	return existing, false, nil
}

// MarkTaken upserts the day's intake as taken in one statement. If a
// placeholder exists it is flipped in place; if nothing exists yet a taken
// record is created. taken=true always wins, so the fire/mark-taken race
// resolves the same way regardless of ordering.
func (r *intakeRepository) MarkTaken(ctx context.Context, medicineID, scheduleID int64, at time.Time, day string) (*models.Intake, error) {
	query := `
		INSERT INTO medicine_intakes (medicine_id, schedule_id, scheduled_time, taken_time, taken, day_key)
		VALUES ($1, $2, $3, $3, TRUE, $4)
		ON CONFLICT (schedule_id, day_key) DO UPDATE
		SET taken = TRUE, taken_time = EXCLUDED.taken_time
		RETURNING id, medicine_id, schedule_id, scheduled_time, taken_time, taken`

	intake := &models.Intake{}
	err := r.db.QueryRowContext(ctx, query, medicineID, scheduleID, at, day).Scan(
		&intake.ID,
		&intake.MedicineID,
		&intake.ScheduleID,
		&intake.ScheduledTime,
		&intake.TakenTime,
		&intake.Taken,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to mark intake taken: %w", err)
	}

	return intake, nil
}

func (r *intakeRepository) GetByMedicineID(ctx context.Context, medicineID int64, limit int) ([]*models.Intake, error) {
	query := `
		SELECT id, medicine_id, schedule_id, scheduled_time, taken_time, taken
		FROM medicine_intakes
		WHERE medicine_id = $1
		ORDER BY scheduled_time DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, medicineID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query intakes by medicine ID: %w", err)
	}
	defer rows.Close()

	return scanIntakes(rows)
}

func (r *intakeRepository) GetByChatRange(ctx context.Context, chatID int64, from, to time.Time) ([]*models.Intake, error) {
	query := `
		SELECT i.id, i.medicine_id, i.schedule_id, i.scheduled_time, i.taken_time, i.taken
		FROM medicine_intakes i
		JOIN medicines m ON m.id = i.medicine_id
		WHERE m.chat_id = $1 AND i.scheduled_time >= $2 AND i.scheduled_time < $3
		ORDER BY i.scheduled_time DESC`

	rows, err := r.db.QueryContext(ctx, query, chatID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query intakes by range: %w", err)
	}
	defer rows.Close()

	return scanIntakes(rows)
}

func (r *intakeRepository) MissedCount(ctx context.Context, medicineID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM medicine_intakes
		WHERE medicine_id = $1 AND taken = FALSE`

	var count int
	if err := r.db.QueryRowContext(ctx, query, medicineID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count missed intakes: %w", err)
	}

	return count, nil
}

func scanIntakes(rows *sql.Rows) ([]*models.Intake, error) {
	var intakes []*models.Intake
	for rows.Next() {
		intake := &models.Intake{}
		if err := rows.Scan(
			&intake.ID,
			&intake.MedicineID,
			&intake.ScheduleID,
			&intake.ScheduledTime,
			&intake.TakenTime,
			&intake.Taken,
		); err != nil {
			return nil, fmt.Errorf("failed to scan intake: %w", err)
		}
		intakes = append(intakes, intake)
	}

	return intakes, rows.Err()
}
