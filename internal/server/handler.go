package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cftracker/internal/domain"
	"cftracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Syncer is the slice of the sync service the API exposes.
type Syncer interface {
	SyncSingleProfile(ctx context.Context, studentID string) domain.SyncResult
	SyncAllProfiles(ctx context.Context, studentIDs []string) (*domain.BatchResult, error)
	SyncProblemCatalog(ctx context.Context) (int, error)
}

type ScheduleManager interface {
	UpdateSchedule(ctx context.Context, input string) (string, error)
}

type RecommendationLister interface {
	ListForStudent(ctx context.Context, studentID string) ([]domain.RecommendedProblem, error)
}

// Handler exposes the sync engine over JSON. Sync endpoints block until the
// run completes; batch runs can take minutes under the shared rate pacer.
type Handler struct {
	sync            Syncer
	scheduler       ScheduleManager
	recommendations RecommendationLister
	students        service.StudentLister
	settings        service.ScheduleStore
	logger          zerolog.Logger
}

func NewHandler(
	sync Syncer,
	scheduler ScheduleManager,
	recommendations RecommendationLister,
	students service.StudentLister,
	settings service.ScheduleStore,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		sync:            sync,
		scheduler:       scheduler,
		recommendations: recommendations,
		students:        students,
		settings:        settings,
		logger:          logger,
	}
}

func (h *Handler) SyncStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing student id")
		return
	}

	result := h.sync.SyncSingleProfile(r.Context(), id)
	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	ids, err := h.students.ListIDs(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list students")
		writeError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	result, err := h.sync.SyncAllProfiles(r.Context(), ids)
	if err != nil {
		if errors.Is(err, service.ErrSyncTooSoon) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("batch sync failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SyncProblems(w http.ResponseWriter, r *http.Request) {
	count, err := h.sync.SyncProblemCatalog(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("problem catalog sync failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"problemCount": count})
}

type scheduleResponse struct {
	Schedule        string `json:"schedule"`
	CronExpression  string `json:"cronExpression"`
	AutoSyncEnabled bool   `json:"autoSyncEnabled"`
	LastSyncTime    string `json:"lastSyncTime,omitempty"`
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load settings")
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	resp := scheduleResponse{
		Schedule:        settings.ScheduleInput,
		CronExpression:  settings.CronSchedule,
		AutoSyncEnabled: settings.AutoSyncEnabled,
	}
	if !settings.LastSyncTime.IsZero() {
		resp.LastSyncTime = settings.LastSyncTime.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateScheduleRequest struct {
	Schedule string `json:"schedule"`
}

func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req updateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	expr, err := h.scheduler.UpdateSchedule(r.Context(), req.Schedule)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Schedule: req.Schedule, CronExpression: expr, AutoSyncEnabled: true})
}

func (h *Handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	problems, err := h.recommendations.ListForStudent(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("student_id", id).Msg("failed to list recommendations")
		writeError(w, http.StatusInternalServerError, "failed to list recommendations")
		return
	}
	if problems == nil {
		problems = []domain.RecommendedProblem{}
	}
	writeJSON(w, http.StatusOK, problems)
}
