package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/PillboT/internal/models"
)

// seedIntake stores one intake whose day key disagrees with the date of its
// timestamp, as happens when the service location is ahead of UTC.
func seedIntake(t *testing.T, store *Store) (medicineID, scheduleID int64, day string) {
	t.Helper()
	ctx := context.Background()

	medicine, err := store.Medicines().Create(ctx, &models.Medicine{ChatID: 100, Name: "Aspirin"})
	require.NoError(t, err)
	schedule, err := store.Schedules().Create(ctx, &models.Schedule{
		MedicineID: medicine.ID, Hour: 23, Minute: 30, IntervalDays: 1, Enabled: true,
	})
	require.NoError(t, err)

	at := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
	day = "2025-06-16"
	_, inserted, err := store.Intakes().CreateIfAbsent(ctx, &models.Intake{
		MedicineID: medicine.ID, ScheduleID: schedule.ID, ScheduledTime: at,
	}, day)
	require.NoError(t, err)
	require.True(t, inserted)

	return medicine.ID, schedule.ID, day
}

func TestScheduleCascadeClearsDayIndex(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_, scheduleID, day := seedIntake(t, store)

	require.NoError(t, store.Schedules().Delete(ctx, scheduleID))

	found, err := store.Intakes().FindForDay(ctx, scheduleID, day)
	require.NoError(t, err)
	assert.Nil(t, found, "cascade delete must clear the day index entry")
}

func TestMedicineCascadeClearsDayIndex(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	medicineID, scheduleID, day := seedIntake(t, store)

	require.NoError(t, store.Medicines().Delete(ctx, medicineID))

	found, err := store.Intakes().FindForDay(ctx, scheduleID, day)
	require.NoError(t, err)
	assert.Nil(t, found)

	count, err := store.Intakes().MissedCount(ctx, medicineID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
