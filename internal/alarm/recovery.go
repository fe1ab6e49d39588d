package alarm

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/PillboT/internal/models"
)

// ScheduleSource lists the schedules that should have a pending reminder.
type ScheduleSource interface {
	ListEnabled(ctx context.Context) ([]*models.ScheduleWithMedicine, error)
}

// Recovery re-arms reminder timers from persisted schedules. Timers live only
// in process memory, so this must run once at every startup.
type Recovery struct {
	engine    *Engine
	schedules ScheduleSource
	logger    *logrus.Logger
}

// NewRecovery creates a Recovery runner.
func NewRecovery(engine *Engine, schedules ScheduleSource, logger *logrus.Logger) *Recovery {
	return &Recovery{engine: engine, schedules: schedules, logger: logger}
}

// RecoverAll arms a timer for every enabled schedule. Each arm is independent
// and failures are collected rather than aborting the sweep, so one refused
// timer cannot silence every other medicine. Schedules whose arm failed stay
// enabled in storage and get another chance on the next restart.
func (r *Recovery) RecoverAll(ctx context.Context) error {
	schedules, err := r.schedules.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to list enabled schedules: %w", err)
	}

	var errs *multierror.Error
	armed := 0
	for _, sw := range schedules {
		if err := r.engine.Arm(&sw.Schedule, sw.MedicineName, sw.ChatID); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("schedule %d: %w", sw.ID, err))
			continue
		}
		armed++
	}

	r.logger.Infof("Recovery armed %d of %d enabled schedule(s)", armed, len(schedules))
	return errs.ErrorOrNil()
}
