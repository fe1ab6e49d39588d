package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
)

type medicineRepository struct {
	db *sql.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *sql.DB) repository.MedicineRepository {
	return &medicineRepository{db: db}
}

func (r *medicineRepository) Create(ctx context.Context, medicine *models.Medicine) (*models.Medicine, error) {
	query := `
		INSERT INTO medicines (chat_id, name, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	medicine.CreatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		medicine.ChatID,
		medicine.Name,
		medicine.CreatedAt,
	).Scan(&medicine.ID, &medicine.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create medicine: %w", err)
	}

	return medicine, nil
}

func (r *medicineRepository) GetByID(ctx context.Context, id int64) (*models.Medicine, error) {
	query := `
		SELECT id, chat_id, name, created_at
		FROM medicines
		WHERE id = $1`

	medicine := &models.Medicine{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&medicine.ID,
		&medicine.ChatID,
		&medicine.Name,
		&medicine.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get medicine: %w", err)
	}

	return medicine, nil
}

func (r *medicineRepository) GetByChatID(ctx context.Context, chatID int64) ([]*models.Medicine, error) {
	query := `
		SELECT id, chat_id, name, created_at
		FROM medicines
		WHERE chat_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query medicines by chat ID: %w", err)
	}
	defer rows.Close()

	var medicines []*models.Medicine
	for rows.Next() {
		medicine := &models.Medicine{}
		if err := rows.Scan(
			&medicine.ID,
			&medicine.ChatID,
			&medicine.Name,
			&medicine.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan medicine: %w", err)
		}
		medicines = append(medicines, medicine)
	}

	return medicines, rows.Err()
}

func (r *medicineRepository) Delete(ctx context.Context, id int64) error {
	// Schedules and intakes go with it via ON DELETE CASCADE.
	query := `DELETE FROM medicines WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete medicine: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("medicine %d: %w", id, repository.ErrNotFound)
	}

	return nil
}
