package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/PillboT/internal/clock"
	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
)

// Verdict is the outcome of reconciling a reminder fire against the day's
// intake record.
type Verdict int

const (
	// VerdictNone means reconciliation failed before reaching a decision.
	VerdictNone Verdict = iota
	// VerdictAlreadyTaken: the dose was already marked taken today, so the
	// fire is a duplicate or arrived after the user acted. No write, no
	// notification.
	VerdictAlreadyTaken
	// VerdictCreatedPlaceholder: an untaken record exists for today (created
	// now or by an earlier fire) and the user should be reminded.
	VerdictCreatedPlaceholder
)

func (v Verdict) String() string {
	switch v {
	case VerdictAlreadyTaken:
		return "already_taken"
	case VerdictCreatedPlaceholder:
		return "created_placeholder"
	default:
		return "none"
	}
}

// ReconcileFire decides what a firing reminder means for today's intake
// record. At most one record exists per (schedule, calendar day); duplicate
// or late fires collapse onto it. A schedule that has been deleted since the
// timer was armed yields repository.ErrNotFound, which callers treat as the
// end of that reminder chain.
func (s *Service) ReconcileFire(ctx context.Context, scheduleID, medicineID int64, firedAt time.Time) (Verdict, error) {
	schedule, err := s.Schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return VerdictNone, fmt.Errorf("failed to lookup schedule %d: %w", scheduleID, err)
	}
	if schedule == nil {
		return VerdictNone, fmt.Errorf("schedule %d: %w", scheduleID, repository.ErrNotFound)
	}

	firedAt = firedAt.In(s.loc)
	day := clock.DayKey(firedAt)

	existing, err := s.Intakes.FindForDay(ctx, scheduleID, day)
	if err != nil {
		return VerdictNone, err
	}
	if existing != nil {
		if existing.Taken {
			return VerdictAlreadyTaken, nil
		}
		// Placeholder already written by an earlier fire today. Nothing to
		// store, but the dose is still untaken so the reminder stands.
		return VerdictCreatedPlaceholder, nil
	}

	intake := &models.Intake{
		MedicineID:    schedule.MedicineID,
		ScheduleID:    scheduleID,
		ScheduledTime: firedAt,
		Taken:         false,
	}
	created, inserted, err := s.Intakes.CreateIfAbsent(ctx, intake, day)
	if err != nil {
		return VerdictNone, err
	}
	if !inserted && created.Taken {
		// Lost the race to a concurrent mark-taken. Taken wins.
		return VerdictAlreadyTaken, nil
	}

	return VerdictCreatedPlaceholder, nil
}

// MarkTaken records that the dose for the given schedule's calendar day was
// taken at the given time. If a placeholder exists it is flipped in place,
// otherwise a taken record is created. Idempotent: repeating it the same day
// keeps one row and refreshes the taken time. A deleted schedule is a silent
// no-op, returning (nil, nil).
func (s *Service) MarkTaken(ctx context.Context, scheduleID int64, at time.Time) (*models.Intake, error) {
	schedule, err := s.Schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup schedule %d: %w", scheduleID, err)
	}
	if schedule == nil {
		s.logger.Debugf("MarkTaken for missing schedule %d, ignoring", scheduleID)
		return nil, nil
	}

	at = at.In(s.loc)
	intake, err := s.Intakes.MarkTaken(ctx, schedule.MedicineID, scheduleID, at, clock.DayKey(at))
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Marked schedule %d taken at %s", scheduleID, at.Format(time.RFC3339))
	return intake, nil
}
