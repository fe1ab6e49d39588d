package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
)

type scheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *sql.DB) repository.ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	query := `
		INSERT INTO medicine_schedules (medicine_id, hour, minute, interval_days, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		schedule.MedicineID,
		schedule.Hour,
		schedule.Minute,
		schedule.IntervalDays,
		schedule.Enabled,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	).Scan(&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	return schedule, nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, id int64) (*models.Schedule, error) {
	query := `
		SELECT id, medicine_id, hour, minute, interval_days, enabled, created_at, updated_at
		FROM medicine_schedules
		WHERE id = $1`

	schedule := &models.Schedule{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&schedule.ID,
		&schedule.MedicineID,
		&schedule.Hour,
		&schedule.Minute,
		&schedule.IntervalDays,
		&schedule.Enabled,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	return schedule, nil
}

func (r *scheduleRepository) GetWithMedicine(ctx context.Context, id int64) (*models.ScheduleWithMedicine, error) {
	query := `
		SELECT s.id, s.medicine_id, s.hour, s.minute, s.interval_days, s.enabled, s.created_at, s.updated_at,
		       m.name, m.chat_id
		FROM medicine_schedules s
		JOIN medicines m ON m.id = s.medicine_id
		WHERE s.id = $1`

	sw := &models.ScheduleWithMedicine{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sw.ID,
		&sw.MedicineID,
		&sw.Hour,
		&sw.Minute,
		&sw.IntervalDays,
		&sw.Enabled,
		&sw.CreatedAt,
		&sw.UpdatedAt,
		&sw.MedicineName,
		&sw.ChatID,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule with medicine: %w", err)
	}

	return sw, nil
}

func (r *scheduleRepository) GetByMedicineID(ctx context.Context, medicineID int64) ([]*models.Schedule, error) {
	query := `
		SELECT id, medicine_id, hour, minute, interval_days, enabled, created_at, updated_at
		FROM medicine_schedules
		WHERE medicine_id = $1
		ORDER BY hour, minute`

	rows, err := r.db.QueryContext(ctx, query, medicineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules by medicine ID: %w", err)
	}
	defer rows.Close()

	var schedules []*models.Schedule
	for rows.Next() {
		schedule := &models.Schedule{}
		if err := rows.Scan(
			&schedule.ID,
			&schedule.MedicineID,
			&schedule.Hour,
			&schedule.Minute,
			&schedule.IntervalDays,
			&schedule.Enabled,
			&schedule.CreatedAt,
			&schedule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}

	return schedules, rows.Err()
}

func (r *scheduleRepository) Update(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	query := `
		UPDATE medicine_schedules
		SET hour = $2, minute = $3, interval_days = $4, enabled = $5, updated_at = $6
		WHERE id = $1
		RETURNING updated_at`

	schedule.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		schedule.ID,
		schedule.Hour,
		schedule.Minute,
		schedule.IntervalDays,
		schedule.Enabled,
		schedule.UpdatedAt,
	).Scan(&schedule.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("schedule %d: %w", schedule.ID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}

	return schedule, nil
}

func (r *scheduleRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	query := `
		UPDATE medicine_schedules
		SET enabled = $2, updated_at = $3
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, enabled, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set schedule enabled: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("schedule %d: %w", id, repository.ErrNotFound)
	}

	return nil
}

func (r *scheduleRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM medicine_schedules WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("schedule %d: %w", id, repository.ErrNotFound)
	}

	return nil
}

func (r *scheduleRepository) ListEnabled(ctx context.Context) ([]*models.ScheduleWithMedicine, error) {
	query := `
		SELECT s.id, s.medicine_id, s.hour, s.minute, s.interval_days, s.enabled, s.created_at, s.updated_at,
		       m.name, m.chat_id
		FROM medicine_schedules s
		JOIN medicines m ON m.id = s.medicine_id
		WHERE s.enabled = TRUE
		ORDER BY s.id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*models.ScheduleWithMedicine
	for rows.Next() {
		sw := &models.ScheduleWithMedicine{}
		if err := rows.Scan(
			&sw.ID,
			&sw.MedicineID,
			&sw.Hour,
			&sw.Minute,
			&sw.IntervalDays,
			&sw.Enabled,
			&sw.CreatedAt,
			&sw.UpdatedAt,
			&sw.MedicineName,
			&sw.ChatID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan enabled schedule: %w", err)
		}
		schedules = append(schedules, sw)
	}

	return schedules, rows.Err()
}
