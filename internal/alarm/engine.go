// Package alarm owns the self-perpetuating reminder chain: it computes the
// next occurrence for a schedule, arms a one-shot timer for it, and on every
// fire reconciles the dose, optionally notifies, and re-arms the next
// occurrence. One-shot timers mean a schedule keeps ringing only as long as
// each fire arms the next one, so the fire path never lets an error break
// the chain.
package alarm

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/PillboT/internal/clock"
	"github.com/Kerhoff/PillboT/internal/metrics"
	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
	"github.com/Kerhoff/PillboT/internal/service"
)

// reconcileTimeout bounds the storage work done on a single fire.
const reconcileTimeout = 30 * time.Second

// Reconciler decides what a fire means for the day's intake record.
// *service.Service satisfies it.
type Reconciler interface {
	ReconcileFire(ctx context.Context, scheduleID, medicineID int64, firedAt time.Time) (service.Verdict, error)
}

// Notifier surfaces a reminder to the user when the verdict calls for one.
type Notifier interface {
	MaybeNotify(verdict service.Verdict, payload FirePayload, firedAt time.Time)
}

// Engine arms, disarms and services reminder timers for schedules.
type Engine struct {
	timer      Timer
	reconciler Reconciler
	notifier   Notifier
	logger     *logrus.Logger
	loc        *time.Location
}

// NewEngine creates an Engine. If the timer is a *ClockTimer the caller must
// Bind it to OnFire after construction.
func NewEngine(timer Timer, reconciler Reconciler, notifier Notifier, logger *logrus.Logger, loc *time.Location) *Engine {
	return &Engine{
		timer:      timer,
		reconciler: reconciler,
		notifier:   notifier,
		logger:     logger,
		loc:        loc,
	}
}

// Arm computes the schedule's next occurrence and registers a single pending
// timer for it, replacing any previous one for the same schedule. The first
// occurrence is today at the schedule's wall-clock time if that is still
// ahead, otherwise tomorrow.
func (e *Engine) Arm(schedule *models.Schedule, medicineName string, chatID int64) error {
	next := clock.NextOccurrence(schedule.Hour, schedule.Minute, time.Now().In(e.loc))

	payload := FirePayload{
		ScheduleID:   schedule.ID,
		MedicineID:   schedule.MedicineID,
		ChatID:       chatID,
		MedicineName: medicineName,
		IntervalDays: schedule.IntervalDays,
	}

	if err := e.timer.ArmOnce(schedule.ID, next, payload); err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"schedule_id": schedule.ID,
		"medicine":    medicineName,
		"next_fire":   next.Format(time.RFC3339),
	}).Info("Armed reminder")
	return nil
}

// Disarm cancels the pending timer for a schedule. No-op if none is pending.
func (e *Engine) Disarm(scheduleID int64) {
	e.timer.Cancel(scheduleID)
	e.logger.WithField("schedule_id", scheduleID).Info("Disarmed reminder")
}

// OnFire services one timer delivery: reconcile the dose against today's
// intake record, let the notifier decide whether to remind, and re-arm the
// next occurrence. Storage failures skip the notification but still re-arm;
// only a schedule that no longer exists ends the chain.
func (e *Engine) OnFire(payload FirePayload) {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	firedAt := time.Now().In(e.loc)
	metrics.TimerFires.Inc()

	log := e.logger.WithFields(logrus.Fields{
		"schedule_id": payload.ScheduleID,
		"medicine":    payload.MedicineName,
	})

	verdict, err := e.reconciler.ReconcileFire(ctx, payload.ScheduleID, payload.MedicineID, firedAt)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// Schedule deleted after the timer was armed. Re-arming would leak a
		// timer that rings forever, so the chain ends here.
		log.Debug("Schedule no longer exists, ending reminder chain")
		return
	case err != nil:
		metrics.ReconcileErrors.Inc()
		log.WithError(err).Error("Reconcile failed, skipping notification")
	default:
		metrics.ReconcileVerdicts.WithLabelValues(verdict.String()).Inc()
		e.notifier.MaybeNotify(verdict, payload, firedAt)
	}

	// Self-perpetuate: the next occurrence anchors on the actual fire time,
	// so a late delivery shifts the cadence instead of piling up fires.
	next := clock.NextAfterFire(firedAt, payload.IntervalDays)
	if err := e.timer.ArmOnce(payload.ScheduleID, next, payload); err != nil {
		log.WithError(err).Error("Failed to re-arm reminder")
		return
	}

	log.WithField("next_fire", next.Format(time.RFC3339)).Debug("Re-armed reminder")
}
