package alarm

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/PillboT/internal/metrics"
)

// FirePayload travels with an armed timer and is handed back on fire. It
// carries everything needed to reconcile, notify and re-arm without touching
// storage first.
type FirePayload struct {
	ScheduleID   int64
	MedicineID   int64
	ChatID       int64
	MedicineName string
	IntervalDays int
}

// FireFunc is invoked when an armed timer expires.
type FireFunc func(payload FirePayload)

// Timer is the one-shot wake-up primitive the engine runs on: arm a single
// future fire per schedule id, or cancel it. Arming an id that is already
// pending replaces the previous wake-up, so at most one timer per schedule
// exists at any moment. Delivery is at-least-once and may be late; the
// reconcile path absorbs both.
type Timer interface {
	ArmOnce(id int64, at time.Time, payload FirePayload) error
	Cancel(id int64)
}

// ClockTimer implements Timer over process-local time.AfterFunc timers.
// Timers do not survive a restart; the recovery sweep re-arms them from
// persisted schedules on boot.
type ClockTimer struct {
	mu      sync.Mutex
	nextGen uint64
	pending map[int64]*armedTimer
	fire    FireFunc
	logger  *logrus.Logger
}

// armedTimer pairs a runtime timer with the generation it was armed under.
// Stop cannot prevent an expiration whose goroutine already started, so an
// expiring timer proves it is still the current one by matching generations
// before it touches the map or fires.
type armedTimer struct {
	timer *time.Timer
	gen   uint64
}

// NewClockTimer creates a ClockTimer. Bind must be called before the first
// ArmOnce so expirations have somewhere to go.
func NewClockTimer(logger *logrus.Logger) *ClockTimer {
	return &ClockTimer{
		pending: make(map[int64]*armedTimer),
		logger:  logger,
	}
}

// Bind sets the function expiring timers invoke. Split from the constructor
// because the engine and the timer reference each other.
func (t *ClockTimer) Bind(fire FireFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fire = fire
}

// ArmOnce schedules a single fire for the given id, replacing any pending one.
func (t *ClockTimer) ArmOnce(id int64, at time.Time, payload FirePayload) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.pending[id]; ok {
		prev.timer.Stop()
	}

	t.nextGen++
	gen := t.nextGen
	t.pending[id] = &armedTimer{
		gen: gen,
		timer: time.AfterFunc(time.Until(at), func() {
			t.expire(id, gen, payload)
		}),
	}
	metrics.PendingTimers.Set(float64(len(t.pending)))

	return nil
}

// Cancel stops the pending timer for id, if any.
func (t *ClockTimer) Cancel(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if armed, ok := t.pending[id]; ok {
		armed.timer.Stop()
		delete(t.pending, id)
		metrics.PendingTimers.Set(float64(len(t.pending)))
	}
}

// Pending reports how many timers are currently armed.
func (t *ClockTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *ClockTimer) expire(id int64, gen uint64, payload FirePayload) {
	t.mu.Lock()
	armed, ok := t.pending[id]
	if !ok || armed.gen != gen {
		// Replaced or cancelled after this expiration already started. The
		// current entry, if any, belongs to a newer arm and stays tracked.
		t.mu.Unlock()
		return
	}
	delete(t.pending, id)
	metrics.PendingTimers.Set(float64(len(t.pending)))
	fire := t.fire
	t.mu.Unlock()

	if fire == nil {
		t.logger.Errorf("Timer %d expired with no fire handler bound", id)
		return
	}
	fire(payload)
}
