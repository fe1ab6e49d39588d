package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
	"github.com/Kerhoff/PillboT/internal/repository/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.NewStore()
	svc := New(nil, logger, time.UTC, store.Medicines(), store.Schedules(), store.Intakes())
	return svc, store
}

// seedSchedule creates a medicine with one daily schedule and returns the IDs.
func seedSchedule(t *testing.T, svc *Service) (medicineID, scheduleID int64) {
	t.Helper()
	ctx := context.Background()

	medicine, err := svc.CreateMedicine(ctx, 100, "Aspirin")
	require.NoError(t, err)

	sw, err := svc.AddSchedule(ctx, medicine.ID, 8, 0, 1)
	require.NoError(t, err)

	return medicine.ID, sw.ID
}

func TestReconcileFireCreatesPlaceholder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	medicineID, scheduleID := seedSchedule(t, svc)

	firedAt := time.Date(2025, 6, 15, 8, 0, 1, 0, time.UTC)
	verdict, err := svc.ReconcileFire(ctx, scheduleID, medicineID, firedAt)
	require.NoError(t, err)
	assert.Equal(t, VerdictCreatedPlaceholder, verdict)

	intake, err := svc.Intakes.FindForDay(ctx, scheduleID, "2025-06-15")
	require.NoError(t, err)
	require.NotNil(t, intake)
	assert.False(t, intake.Taken)
	assert.Nil(t, intake.TakenTime)
	assert.Equal(t, medicineID, intake.MedicineID)
}

func TestReconcileFireDuplicateSameDay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	medicineID, scheduleID := seedSchedule(t, svc)

	firedAt := time.Date(2025, 6, 15, 8, 0, 1, 0, time.UTC)

	verdict, err := svc.ReconcileFire(ctx, scheduleID, medicineID, firedAt)
	require.NoError(t, err)
	assert.Equal(t, VerdictCreatedPlaceholder, verdict)

	// A second fire the same day finds the placeholder and still reminds,
	// without writing a second row.
	verdict, err = svc.ReconcileFire(ctx, scheduleID, medicineID, firedAt.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, VerdictCreatedPlaceholder, verdict)

	intakes, err := svc.Intakes.GetByMedicineID(ctx, medicineID, 10)
	require.NoError(t, err)
	assert.Len(t, intakes, 1)
}

func TestReconcileFireAfterTaken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	medicineID, scheduleID := seedSchedule(t, svc)

	takenAt := time.Date(2025, 6, 15, 7, 55, 0, 0, time.UTC)
	_, err := svc.MarkTaken(ctx, scheduleID, takenAt)
	require.NoError(t, err)

	// The fire arrives after the user already marked the dose. Stay silent.
	verdict, err := svc.ReconcileFire(ctx, scheduleID, medicineID, takenAt.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, VerdictAlreadyTaken, verdict)
}

func TestReconcileFireMissingSchedule(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	verdict, err := svc.ReconcileFire(ctx, 999, 1, time.Now())
	assert.Equal(t, VerdictNone, verdict)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReconcileFireNextDayStartsFresh(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	medicineID, scheduleID := seedSchedule(t, svc)

	day1 := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	_, err := svc.MarkTaken(ctx, scheduleID, day1)
	require.NoError(t, err)

	// A new calendar day means a new record, regardless of yesterday.
	verdict, err := svc.ReconcileFire(ctx, scheduleID, medicineID, day1.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, VerdictCreatedPlaceholder, verdict)

	intakes, err := svc.Intakes.GetByMedicineID(ctx, medicineID, 10)
	require.NoError(t, err)
	assert.Len(t, intakes, 2)
}

func TestMarkTakenFlipsPlaceholder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	medicineID, scheduleID := seedSchedule(t, svc)

	firedAt := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	_, err := svc.ReconcileFire(ctx, scheduleID, medicineID, firedAt)
	require.NoError(t, err)

	takenAt := firedAt.Add(10 * time.Minute)
	intake, err := svc.MarkTaken(ctx, scheduleID, takenAt)
	require.NoError(t, err)
	require.NotNil(t, intake)
	assert.True(t, intake.Taken)
	require.NotNil(t, intake.TakenTime)
	assert.True(t, intake.TakenTime.Equal(takenAt))

	// Still exactly one row for the day.
	intakes, err := svc.Intakes.GetByMedicineID(ctx, medicineID, 10)
	require.NoError(t, err)
	assert.Len(t, intakes, 1)
}

func TestMarkTakenWithoutPlaceholder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, scheduleID := seedSchedule(t, svc)

	// Taking a dose before the reminder ever fired creates the record
	// directly in the taken state.
	takenAt := time.Date(2025, 6, 15, 7, 30, 0, 0, time.UTC)
	intake, err := svc.MarkTaken(ctx, scheduleID, takenAt)
	require.NoError(t, err)
	require.NotNil(t, intake)
	assert.True(t, intake.Taken)
}

func TestMarkTakenIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	medicineID, scheduleID := seedSchedule(t, svc)

	first := time.Date(2025, 6, 15, 8, 5, 0, 0, time.UTC)
	second := first.Add(30 * time.Minute)

	_, err := svc.MarkTaken(ctx, scheduleID, first)
	require.NoError(t, err)

	intake, err := svc.MarkTaken(ctx, scheduleID, second)
	require.NoError(t, err)
	require.NotNil(t, intake)
	assert.True(t, intake.Taken)
	assert.True(t, intake.TakenTime.Equal(second))

	intakes, err := svc.Intakes.GetByMedicineID(ctx, medicineID, 10)
	require.NoError(t, err)
	assert.Len(t, intakes, 1)
}

func TestMarkTakenMissingScheduleIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)

	intake, err := svc.MarkTaken(context.Background(), 999, time.Now())
	assert.NoError(t, err)
	assert.Nil(t, intake)
}

func TestConcurrentFireAndMarkTaken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	medicineID, scheduleID := seedSchedule(t, svc)

	at := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.ReconcileFire(ctx, scheduleID, medicineID, at)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.MarkTaken(ctx, scheduleID, at)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Whatever the interleaving, one row exists and taken wins.
	intakes, err := svc.Intakes.GetByMedicineID(ctx, medicineID, 10)
	require.NoError(t, err)
	require.Len(t, intakes, 1)
	assert.True(t, intakes[0].Taken)
}

func TestCreateMedicineValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateMedicine(ctx, 100, "   ")
	assert.ErrorIs(t, err, models.ErrInvalidMedicine)

	medicine, err := svc.CreateMedicine(ctx, 100, "  Aspirin  ")
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", medicine.Name)
}

func TestAddScheduleValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	medicine, err := svc.CreateMedicine(ctx, 100, "Aspirin")
	require.NoError(t, err)

	_, err = svc.AddSchedule(ctx, medicine.ID, 25, 0, 1)
	assert.ErrorIs(t, err, models.ErrInvalidSchedule)

	_, err = svc.AddSchedule(ctx, medicine.ID, 8, 0, 0)
	assert.ErrorIs(t, err, models.ErrInvalidSchedule)

	_, err = svc.AddSchedule(ctx, 999, 8, 0, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteMedicineReturnsScheduleIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	medicine, err := svc.CreateMedicine(ctx, 100, "Aspirin")
	require.NoError(t, err)

	sw1, err := svc.AddSchedule(ctx, medicine.ID, 8, 0, 1)
	require.NoError(t, err)
	sw2, err := svc.AddSchedule(ctx, medicine.ID, 20, 0, 1)
	require.NoError(t, err)

	ids, err := svc.DeleteMedicine(ctx, medicine.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{sw1.ID, sw2.ID}, ids)

	got, err := svc.Medicines.GetByID(ctx, medicine.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
