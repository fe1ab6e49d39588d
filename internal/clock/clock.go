// Package clock holds the pure time arithmetic behind reminder scheduling:
// local calendar-day boundaries and next-occurrence computation. Everything
// here is deterministic given the location carried by the input time.
package clock

import "time"

// DayBounds returns the half-open local calendar day [start, end) that
// contains t. Bounds are built from wall-clock fields, so on a daylight
// saving transition the "day" may be 23 or 25 hours long; that behavior is
// deliberate and matches how intakes are keyed.
func DayBounds(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end = start.AddDate(0, 0, 1)
	return start, end
}

// DayKey returns the calendar-day key ("2006-01-02") used to deduplicate
// intakes for a schedule.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NextOccurrence returns the first instant strictly after from that matches
// hour:minute on from's calendar: today if the time is still ahead, otherwise
// tomorrow. Used when a schedule is first armed or re-armed from persisted
// state.
func NextOccurrence(hour, minute int, from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextAfterFire returns the instant the chain re-arms for after a fire:
// exactly intervalDays * 24h after the actual fire time. Anchoring on the
// real fire time means a delayed delivery shifts the cadence instead of
// triggering make-up fires.
func NextAfterFire(firedAt time.Time, intervalDays int) time.Time {
	return firedAt.Add(time.Duration(intervalDays) * 24 * time.Hour)
}
