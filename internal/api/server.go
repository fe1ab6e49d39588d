package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/PillboT/internal/alarm"
	"github.com/Kerhoff/PillboT/internal/models"
	"github.com/Kerhoff/PillboT/internal/repository"
	"github.com/Kerhoff/PillboT/internal/service"
)

// Server provides the JSON HTTP API consumed by external UIs.
type Server struct {
	svc    *service.Service
	engine *alarm.Engine
	logger *logrus.Logger
	mux    *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, engine *alarm.Engine, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, engine: engine, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	// API – Medicines
	s.mux.HandleFunc("GET /api/medicines", s.handleGetMedicines)
	s.mux.HandleFunc("POST /api/medicines", s.handleCreateMedicine)
	s.mux.HandleFunc("DELETE /api/medicines/{id}", s.handleDeleteMedicine)
	s.mux.HandleFunc("GET /api/medicines/{id}/intakes", s.handleGetMedicineIntakes)
	s.mux.HandleFunc("GET /api/medicines/{id}/missed", s.handleGetMissedCount)
	s.mux.HandleFunc("POST /api/medicines/{id}/schedules", s.handleCreateSchedule)

	// API – Schedules
	s.mux.HandleFunc("PUT /api/schedules/{id}", s.handleUpdateSchedule)
	s.mux.HandleFunc("DELETE /api/schedules/{id}", s.handleDeleteSchedule)
	s.mux.HandleFunc("POST /api/schedules/{id}/taken", s.handleMarkTaken)

	// API – Intake history
	s.mux.HandleFunc("GET /api/intakes", s.handleGetIntakes)

	// Prometheus metrics
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts the {id} path value and converts it to int64.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	if raw == "" {
		return 0, fmt.Errorf("missing id in path")
	}
	return strconv.ParseInt(raw, 10, 64)
}

// requireChatID reads the chat_id query parameter.  It writes an error
// response and returns 0 when the parameter is absent or invalid.
func (s *Server) requireChatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("chat_id")
	if raw == "" {
		s.respondError(w, http.StatusBadRequest, "chat_id query parameter is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "chat_id must be an integer")
		return 0, false
	}
	return id, true
}

// ---------------------------------------------------------------------------
// Medicines
// ---------------------------------------------------------------------------

type createMedicineRequest struct {
	ChatID int64  `json:"chat_id"`
	Name   string `json:"name"`
}

func (s *Server) handleGetMedicines(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.requireChatID(w, r)
	if !ok {
		return
	}

	medicines, err := s.svc.Medicines.GetByChatID(r.Context(), chatID)
	if err != nil {
		s.logger.WithError(err).Error("failed to get medicines")
		s.respondError(w, http.StatusInternalServerError, "failed to get medicines")
		return
	}

	// Populate schedules so the client receives a complete snapshot in a
	// single request.
	for _, medicine := range medicines {
		schedules, err := s.svc.Schedules.GetByMedicineID(r.Context(), medicine.ID)
		if err != nil {
			s.logger.WithError(err).WithField("medicine_id", medicine.ID).Error("failed to get schedules")
			continue
		}
		medicine.Schedules = make([]models.Schedule, len(schedules))
		for i, schedule := range schedules {
			medicine.Schedules[i] = *schedule
		}
	}

	s.respondJSON(w, http.StatusOK, medicines)
}

func (s *Server) handleCreateMedicine(w http.ResponseWriter, r *http.Request) {
	var req createMedicineRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if req.ChatID == 0 {
		s.respondError(w, http.StatusBadRequest, "chat_id is required")
		return
	}

	created, err := s.svc.CreateMedicine(r.Context(), req.ChatID, req.Name)
	if err != nil {
		if errors.Is(err, models.ErrInvalidMedicine) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.WithError(err).Error("failed to create medicine")
		s.respondError(w, http.StatusInternalServerError, "failed to create medicine")
		return
	}

	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}

	scheduleIDs, err := s.svc.DeleteMedicine(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "medicine not found")
			return
		}
		s.logger.WithError(err).Error("failed to delete medicine")
		s.respondError(w, http.StatusInternalServerError, "failed to delete medicine")
		return
	}

	for _, scheduleID := range scheduleIDs {
		s.engine.Disarm(scheduleID)
	}

	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetMedicineIntakes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	intakes, err := s.svc.Intakes.GetByMedicineID(r.Context(), id, limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to get intakes")
		s.respondError(w, http.StatusInternalServerError, "failed to get intakes")
		return
	}

	s.respondJSON(w, http.StatusOK, intakes)
}

func (s *Server) handleGetMissedCount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}

	count, err := s.svc.Intakes.MissedCount(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("failed to count missed intakes")
		s.respondError(w, http.StatusInternalServerError, "failed to count missed intakes")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]int{"missed": count})
}

// ---------------------------------------------------------------------------
// Schedules
// ---------------------------------------------------------------------------

type scheduleRequest struct {
	Hour         int  `json:"hour"`
	Minute       int  `json:"minute"`
	IntervalDays int  `json:"interval_days"`
	Enabled      bool `json:"enabled"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	medicineID, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}

	var req scheduleRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if req.IntervalDays == 0 {
		req.IntervalDays = 1
	}

	sw, err := s.svc.AddSchedule(r.Context(), medicineID, req.Hour, req.Minute, req.IntervalDays)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidSchedule):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "medicine not found")
		default:
			s.logger.WithError(err).Error("failed to create schedule")
			s.respondError(w, http.StatusInternalServerError, "failed to create schedule")
		}
		return
	}

	if err := s.engine.Arm(&sw.Schedule, sw.MedicineName, sw.ChatID); err != nil {
		// Schedule persisted; the reminder will be retried by the recovery
		// sweep on next startup.
		s.logger.WithError(err).Error("failed to arm new schedule")
	}

	s.respondJSON(w, http.StatusCreated, sw)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	var req scheduleRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if req.IntervalDays == 0 {
		req.IntervalDays = 1
	}

	sw, err := s.svc.UpdateSchedule(r.Context(), id, req.Hour, req.Minute, req.IntervalDays, req.Enabled)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidSchedule):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "schedule not found")
		default:
			s.logger.WithError(err).Error("failed to update schedule")
			s.respondError(w, http.StatusInternalServerError, "failed to update schedule")
		}
		return
	}

	// Re-arm with the new time, or drop the pending reminder if disabled.
	if sw.Enabled {
		if err := s.engine.Arm(&sw.Schedule, sw.MedicineName, sw.ChatID); err != nil {
			s.logger.WithError(err).Error("failed to re-arm updated schedule")
		}
	} else {
		s.engine.Disarm(id)
	}

	s.respondJSON(w, http.StatusOK, sw)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	if err := s.svc.DeleteSchedule(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "schedule not found")
			return
		}
		s.logger.WithError(err).Error("failed to delete schedule")
		s.respondError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}

	s.engine.Disarm(id)

	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMarkTaken(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	intake, err := s.svc.MarkTaken(r.Context(), id, time.Now())
	if err != nil {
		s.logger.WithError(err).Error("failed to mark intake taken")
		s.respondError(w, http.StatusInternalServerError, "failed to mark intake taken")
		return
	}
	if intake == nil {
		s.respondError(w, http.StatusNotFound, "schedule not found")
		return
	}

	s.respondJSON(w, http.StatusOK, intake)
}

// ---------------------------------------------------------------------------
// Intake history
// ---------------------------------------------------------------------------

func (s *Server) handleGetIntakes(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.requireChatID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	to := time.Now()
	from := to.AddDate(0, 0, -7)

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "from must be RFC 3339 format")
			return
		}
		from = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "to must be RFC 3339 format")
			return
		}
		to = t
	}

	intakes, err := s.svc.Intakes.GetByChatRange(r.Context(), chatID, from, to)
	if err != nil {
		s.logger.WithError(err).Error("failed to get intakes")
		s.respondError(w, http.StatusInternalServerError, "failed to get intakes")
		return
	}

	s.respondJSON(w, http.StatusOK, intakes)
}
