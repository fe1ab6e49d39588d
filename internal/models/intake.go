package models

import "time"

// Intake records what happened to one scheduled dose: the occurrence it
// answers for (ScheduledTime) and whether/when it was actually taken. There
// is at most one intake per schedule per calendar day; a fired reminder
// creates it untaken and a "mark taken" flips it in place, never duplicating.
type Intake struct {
	ID            int64      `json:"id" db:"id"`
	MedicineID    int64      `json:"medicine_id" db:"medicine_id"`
	ScheduleID    int64      `json:"schedule_id" db:"schedule_id"`
	ScheduledTime time.Time  `json:"scheduled_time" db:"scheduled_time"`
	TakenTime     *time.Time `json:"taken_time" db:"taken_time"`
	Taken         bool       `json:"taken" db:"taken"`
}

// IsMissed returns true if the dose was never marked as taken.
func (i *Intake) IsMissed() bool {
	return !i.Taken
}
