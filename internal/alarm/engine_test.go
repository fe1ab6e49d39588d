package alarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
	"github.com/Kerhoff/PillboT/internal/service"
)

// fakeTimer records arms and cancels without any real clocks.
type fakeTimer struct {
	mu      sync.Mutex
	arms    []armCall
	cancels []int64
	armErr  error
}

type armCall struct {
	id      int64
	at      time.Time
	payload FirePayload
}

func (f *fakeTimer) ArmOnce(id int64, at time.Time, payload FirePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armErr != nil {
		return f.armErr
	}
	f.arms = append(f.arms, armCall{id: id, at: at, payload: payload})
	return nil
}

func (f *fakeTimer) Cancel(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, id)
}

// fakeReconciler returns a scripted verdict or error.
type fakeReconciler struct {
	verdict service.Verdict
	err     error
	calls   int
}

func (f *fakeReconciler) ReconcileFire(ctx context.Context, scheduleID, medicineID int64, firedAt time.Time) (service.Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

// fakeNotifier records every notification decision it was asked to make.
type fakeNotifier struct {
	notified []service.Verdict
}

func (f *fakeNotifier) MaybeNotify(verdict service.Verdict, payload FirePayload, firedAt time.Time) {
	f.notified = append(f.notified, verdict)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testPayload() FirePayload {
	return FirePayload{
		ScheduleID:   7,
		MedicineID:   3,
		ChatID:       100,
		MedicineName: "Aspirin",
		IntervalDays: 1,
	}
}

func TestArmComputesNextOccurrence(t *testing.T) {
	timer := &fakeTimer{}
	engine := NewEngine(timer, &fakeReconciler{}, &fakeNotifier{}, testLogger(), time.UTC)

	now := time.Now().UTC()
	schedule := &models.Schedule{
		ID:           7,
		MedicineID:   3,
		Hour:         now.Hour(),
		Minute:       now.Minute(),
		IntervalDays: 2,
		Enabled:      true,
	}

	require.NoError(t, engine.Arm(schedule, "Aspirin", 100))

	require.Len(t, timer.arms, 1)
	arm := timer.arms[0]
	assert.Equal(t, int64(7), arm.id)
	assert.Equal(t, "Aspirin", arm.payload.MedicineName)
	assert.Equal(t, int64(100), arm.payload.ChatID)
	assert.Equal(t, 2, arm.payload.IntervalDays)

	// The schedule's wall-clock time already passed this minute (seconds are
	// truncated), so the first fire lands tomorrow.
	assert.True(t, arm.at.After(now))
	assert.WithinDuration(t, now.Add(24*time.Hour), arm.at, time.Minute)
}

func TestArmPropagatesTimerError(t *testing.T) {
	timer := &fakeTimer{armErr: fmt.Errorf("no capacity")}
	engine := NewEngine(timer, &fakeReconciler{}, &fakeNotifier{}, testLogger(), time.UTC)

	schedule := &models.Schedule{ID: 7, Hour: 8, Minute: 0, IntervalDays: 1}
	assert.Error(t, engine.Arm(schedule, "Aspirin", 100))
}

func TestDisarmCancelsTimer(t *testing.T) {
	timer := &fakeTimer{}
	engine := NewEngine(timer, &fakeReconciler{}, &fakeNotifier{}, testLogger(), time.UTC)

	engine.Disarm(7)

	assert.Equal(t, []int64{7}, timer.cancels)
}

func TestOnFireNotifiesAndRearms(t *testing.T) {
	timer := &fakeTimer{}
	reconciler := &fakeReconciler{verdict: service.VerdictCreatedPlaceholder}
	notifier := &fakeNotifier{}
	engine := NewEngine(timer, reconciler, notifier, testLogger(), time.UTC)

	before := time.Now()
	engine.OnFire(testPayload())

	require.Equal(t, []service.Verdict{service.VerdictCreatedPlaceholder}, notifier.notified)

	// Re-armed one interval after the actual fire time.
	require.Len(t, timer.arms, 1)
	assert.Equal(t, int64(7), timer.arms[0].id)
	assert.WithinDuration(t, before.Add(24*time.Hour), timer.arms[0].at, 5*time.Second)
}

func TestOnFireAlreadyTakenStillRearms(t *testing.T) {
	timer := &fakeTimer{}
	reconciler := &fakeReconciler{verdict: service.VerdictAlreadyTaken}
	notifier := &fakeNotifier{}
	engine := NewEngine(timer, reconciler, notifier, testLogger(), time.UTC)

	engine.OnFire(testPayload())

	// The notifier is consulted (it decides to stay silent) and the chain
	// continues regardless.
	assert.Equal(t, []service.Verdict{service.VerdictAlreadyTaken}, notifier.notified)
	assert.Len(t, timer.arms, 1)
}

func TestOnFireStorageErrorSkipsNotifyButRearms(t *testing.T) {
	timer := &fakeTimer{}
	reconciler := &fakeReconciler{err: fmt.Errorf("db down")}
	notifier := &fakeNotifier{}
	engine := NewEngine(timer, reconciler, notifier, testLogger(), time.UTC)

	engine.OnFire(testPayload())

	assert.Empty(t, notifier.notified)
	assert.Len(t, timer.arms, 1, "a transient storage failure must not break the chain")
}

func TestOnFireMissingScheduleEndsChain(t *testing.T) {
	timer := &fakeTimer{}
	reconciler := &fakeReconciler{err: fmt.Errorf("schedule 7: %w", repository.ErrNotFound)}
	notifier := &fakeNotifier{}
	engine := NewEngine(timer, reconciler, notifier, testLogger(), time.UTC)

	engine.OnFire(testPayload())

	assert.Empty(t, notifier.notified)
	assert.Empty(t, timer.arms, "a deleted schedule must not be re-armed")
}

func TestOnFireRearmHonorsInterval(t *testing.T) {
	timer := &fakeTimer{}
	engine := NewEngine(timer, &fakeReconciler{verdict: service.VerdictCreatedPlaceholder}, &fakeNotifier{}, testLogger(), time.UTC)

	payload := testPayload()
	payload.IntervalDays = 3

	before := time.Now()
	engine.OnFire(payload)

	require.Len(t, timer.arms, 1)
	assert.WithinDuration(t, before.Add(72*time.Hour), timer.arms[0].at, 5*time.Second)
}

func TestRecoveryArmsAllEnabled(t *testing.T) {
	timer := &fakeTimer{}
	engine := NewEngine(timer, &fakeReconciler{}, &fakeNotifier{}, testLogger(), time.UTC)

	source := &fakeScheduleSource{schedules: []*models.ScheduleWithMedicine{
		{Schedule: models.Schedule{ID: 1, Hour: 8, Minute: 0, IntervalDays: 1, Enabled: true}, MedicineName: "Aspirin", ChatID: 100},
		{Schedule: models.Schedule{ID: 2, Hour: 20, Minute: 30, IntervalDays: 2, Enabled: true}, MedicineName: "Ibuprofen", ChatID: 101},
	}}

	recovery := NewRecovery(engine, source, testLogger())
	require.NoError(t, recovery.RecoverAll(context.Background()))

	require.Len(t, timer.arms, 2)
	assert.Equal(t, int64(1), timer.arms[0].id)
	assert.Equal(t, int64(2), timer.arms[1].id)
}

func TestRecoveryListError(t *testing.T) {
	timer := &fakeTimer{}
	engine := NewEngine(timer, &fakeReconciler{}, &fakeNotifier{}, testLogger(), time.UTC)

	source := &fakeScheduleSource{err: errors.New("db down")}
	recovery := NewRecovery(engine, source, testLogger())

	assert.Error(t, recovery.RecoverAll(context.Background()))
	assert.Empty(t, timer.arms)
}

func TestRecoveryCollectsArmFailures(t *testing.T) {
	timer := &fakeTimer{armErr: fmt.Errorf("no capacity")}
	engine := NewEngine(timer, &fakeReconciler{}, &fakeNotifier{}, testLogger(), time.UTC)

	source := &fakeScheduleSource{schedules: []*models.ScheduleWithMedicine{
		{Schedule: models.Schedule{ID: 1, Hour: 8, Minute: 0, IntervalDays: 1, Enabled: true}, MedicineName: "Aspirin", ChatID: 100},
		{Schedule: models.Schedule{ID: 2, Hour: 9, Minute: 0, IntervalDays: 1, Enabled: true}, MedicineName: "Ibuprofen", ChatID: 100},
	}}

	recovery := NewRecovery(engine, source, testLogger())
	err := recovery.RecoverAll(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule 1")
	assert.Contains(t, err.Error(), "schedule 2")
}

type fakeScheduleSource struct {
	schedules []*models.ScheduleWithMedicine
	err       error
}

func (f *fakeScheduleSource) ListEnabled(ctx context.Context) ([]*models.ScheduleWithMedicine, error) {
	return f.schedules, f.err
}
