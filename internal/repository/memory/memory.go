// Package memory provides in-memory repository implementations with the same
// semantics as the postgres ones, including the one-intake-per-day upsert
// behavior. They back the service and HTTP tests without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
)

// Store holds all three repositories over one shared dataset, so foreign-key
// style lookups (schedule -> medicine) work the same way the database does.
type Store struct {
	mu        sync.Mutex
	nextID    int64
	medicines map[int64]*models.Medicine
	schedules map[int64]*models.Schedule
	intakes   map[int64]*models.Intake

	// intakeByDay maps (scheduleID, dayKey) to the intake ID, mirroring the
	// UNIQUE (schedule_id, day_key) constraint. dayKeys remembers each
	// intake's stored key so cascades remove the right index entry; the key
	// is not recomputable from ScheduledTime when locations differ.
	intakeByDay map[dayRef]int64
	dayKeys     map[int64]string
}

type dayRef struct {
	scheduleID int64
	day        string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		medicines:   make(map[int64]*models.Medicine),
		schedules:   make(map[int64]*models.Schedule),
		intakes:     make(map[int64]*models.Intake),
		intakeByDay: make(map[dayRef]int64),
		dayKeys:     make(map[int64]string),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Medicines returns the medicine repository view of the store.
func (s *Store) Medicines() repository.MedicineRepository { return (*medicineRepo)(s) }

// Schedules returns the schedule repository view of the store.
func (s *Store) Schedules() repository.ScheduleRepository { return (*scheduleRepo)(s) }

// Intakes returns the intake repository view of the store.
func (s *Store) Intakes() repository.IntakeRepository { return (*intakeRepo)(s) }

// ---------------------------------------------------------------------------
// Medicines
// ---------------------------------------------------------------------------

type medicineRepo Store

func (r *medicineRepo) Create(ctx context.Context, medicine *models.Medicine) (*models.Medicine, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	m := *medicine
	m.ID = s.id()
	m.CreatedAt = time.Now()
	s.medicines[m.ID] = &m

	out := m
	return &out, nil
}

func (r *medicineRepo) GetByID(ctx context.Context, id int64) (*models.Medicine, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.medicines[id]
	if !ok {
		return nil, nil
	}
	out := *m
	return &out, nil
}

func (r *medicineRepo) GetByChatID(ctx context.Context, chatID int64) ([]*models.Medicine, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Medicine
	for _, m := range s.medicines {
		if m.ChatID == chatID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *medicineRepo) Delete(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.medicines[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.medicines, id)

	// Cascade, like the ON DELETE CASCADE foreign keys.
	for sid, sc := range s.schedules {
		if sc.MedicineID == id {
			delete(s.schedules, sid)
		}
	}
	for iid, in := range s.intakes {
		if in.MedicineID == id {
			delete(s.intakeByDay, dayRef{in.ScheduleID, s.dayKeys[iid]})
			delete(s.dayKeys, iid)
			delete(s.intakes, iid)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Schedules
// ---------------------------------------------------------------------------

type scheduleRepo Store

func (r *scheduleRepo) Create(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	sc := *schedule
	sc.ID = s.id()
	now := time.Now()
	sc.CreatedAt = now
	sc.UpdatedAt = now
	s.schedules[sc.ID] = &sc

	out := sc
	return &out, nil
}

func (r *scheduleRepo) GetByID(ctx context.Context, id int64) (*models.Schedule, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.schedules[id]
	if !ok {
		return nil, nil
	}
	out := *sc
	return &out, nil
}

func (r *scheduleRepo) GetWithMedicine(ctx context.Context, id int64) (*models.ScheduleWithMedicine, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.joinMedicine(id)
}

// joinMedicine must be called with the lock held.
func (s *Store) joinMedicine(id int64) (*models.ScheduleWithMedicine, error) {
	sc, ok := s.schedules[id]
	if !ok {
		return nil, nil
	}
	m, ok := s.medicines[sc.MedicineID]
	if !ok {
		return nil, nil
	}
	return &models.ScheduleWithMedicine{
		Schedule:     *sc,
		MedicineName: m.Name,
		ChatID:       m.ChatID,
	}, nil
}

func (r *scheduleRepo) GetByMedicineID(ctx context.Context, medicineID int64) ([]*models.Schedule, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Schedule
	for _, sc := range s.schedules {
		if sc.MedicineID == medicineID {
			cp := *sc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *scheduleRepo) Update(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.schedules[schedule.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	existing.Hour = schedule.Hour
	existing.Minute = schedule.Minute
	existing.IntervalDays = schedule.IntervalDays
	existing.Enabled = schedule.Enabled
	existing.UpdatedAt = time.Now()

	out := *existing
	return &out, nil
}

func (r *scheduleRepo) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.schedules[id]
	if !ok {
		return repository.ErrNotFound
	}
	sc.Enabled = enabled
	sc.UpdatedAt = time.Now()
	return nil
}

func (r *scheduleRepo) Delete(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.schedules, id)
	for iid, in := range s.intakes {
		if in.ScheduleID == id {
			delete(s.intakeByDay, dayRef{id, s.dayKeys[iid]})
			delete(s.dayKeys, iid)
			delete(s.intakes, iid)
		}
	}
	return nil
}

func (r *scheduleRepo) ListEnabled(ctx context.Context) ([]*models.ScheduleWithMedicine, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, sc := range s.schedules {
		if sc.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*models.ScheduleWithMedicine
	for _, id := range ids {
		sw, err := s.joinMedicine(id)
		if err != nil {
			return nil, err
		}
		if sw != nil {
			out = append(out, sw)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Intakes
// ---------------------------------------------------------------------------

type intakeRepo Store

func (r *intakeRepo) FindForDay(ctx context.Context, scheduleID int64, day string) (*models.Intake, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.intakeByDay[dayRef{scheduleID, day}]
	if !ok {
		return nil, nil
	}
	out := *s.intakes[id]
	return &out, nil
}

func (r *intakeRepo) CreateIfAbsent(ctx context.Context, intake *models.Intake, day string) (*models.Intake, bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := dayRef{intake.ScheduleID, day}
	if id, ok := s.intakeByDay[ref]; ok {
		out := *s.intakes[id]
		return &out, false, nil
	}

	in := *intake
	in.ID = s.id()
	s.intakes[in.ID] = &in
	s.intakeByDay[ref] = in.ID
	s.dayKeys[in.ID] = day

	out := in
	return &out, true, nil
}

func (r *intakeRepo) MarkTaken(ctx context.Context, medicineID, scheduleID int64, at time.Time, day string) (*models.Intake, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := dayRef{scheduleID, day}
	if id, ok := s.intakeByDay[ref]; ok {
		in := s.intakes[id]
		in.Taken = true
		taken := at
		in.TakenTime = &taken
		out := *in
		return &out, nil
	}

	taken := at
	in := models.Intake{
		ID:            s.id(),
		MedicineID:    medicineID,
		ScheduleID:    scheduleID,
		ScheduledTime: at,
		TakenTime:     &taken,
		Taken:         true,
	}
	s.intakes[in.ID] = &in
	s.intakeByDay[ref] = in.ID
	s.dayKeys[in.ID] = day

	out := in
	return &out, nil
}

func (r *intakeRepo) GetByMedicineID(ctx context.Context, medicineID int64, limit int) ([]*models.Intake, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Intake
	for _, in := range s.intakes {
		if in.MedicineID == medicineID {
			cp := *in
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.After(out[j].ScheduledTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *intakeRepo) GetByChatRange(ctx context.Context, chatID int64, from, to time.Time) ([]*models.Intake, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Intake
	for _, in := range s.intakes {
		m, ok := s.medicines[in.MedicineID]
		if !ok || m.ChatID != chatID {
			continue
		}
		if in.ScheduledTime.Before(from) || !in.ScheduledTime.Before(to) {
			continue
		}
		cp := *in
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.After(out[j].ScheduledTime) })
	return out, nil
}

func (r *intakeRepo) MissedCount(ctx context.Context, medicineID int64) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, in := range s.intakes {
		if in.MedicineID == medicineID && !in.Taken {
			count++
		}
	}
	return count, nil
}
