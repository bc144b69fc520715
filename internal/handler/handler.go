package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Dan9191/goal-service/internal/forecast"
	"github.com/Dan9191/goal-service/internal/integrations/cbr"
	"github.com/Dan9191/goal-service/internal/middleware"
	"github.com/Dan9191/goal-service/internal/models"
	"github.com/Dan9191/goal-service/internal/narrative"
	"github.com/Dan9191/goal-service/internal/repository"
	"github.com/Dan9191/goal-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// GoalService is the business logic behind the goal endpoints
type GoalService interface {
	CreateGoal(ctx context.Context, in models.GoalInput, requester string) (*models.Goal, error)
	UpdateGoal(ctx context.Context, in models.GoalInput, requester string) (*models.Goal, error)
	GetGoal(ctx context.Context, goalID, username string) (*models.Goal, error)
	ListGoals(ctx context.Context, username string) ([]models.GoalProgress, error)
	PredictTimeline(ctx context.Context, goalID, username string) (*forecast.Result, error)
	TimelineInterpretation(ctx context.Context, goalID, username, language string) (*models.TimelineInterpretation, error)
}

// RateProvider serves the exchange rate endpoint
type RateProvider interface {
	GetRates(ctx context.Context) (*cbr.Rates, error)
}

// Pinger checks a backing dependency for the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc   GoalService
	rates RateProvider
	db    Pinger
	log   *logrus.Logger
}

func NewHandler(svc GoalService, rates RateProvider, db Pinger, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, rates: rates, db: db, log: log}
}

// CreateGoal handles goal creation
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var in models.GoalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}

	requester, _ := middleware.UsernameFromContext(r.Context())
	h.log.Infof("Creating goal for user: %s", in.UserID)
	goal, err := h.svc.CreateGoal(r.Context(), in, requester)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Goal created successfully.", goal)
}

// UpdateGoal handles goal updates
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	var in models.GoalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}

	requester, _ := middleware.UsernameFromContext(r.Context())
	h.log.Infof("Updating goal %s", in.GoalID)
	goal, err := h.svc.UpdateGoal(r.Context(), in, requester)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Goal updated successfully.", goal)
}

// ListGoals handles listing the goals of a user
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}

	goals, err := h.svc.ListGoals(r.Context(), username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Goals retrieved successfully.", goals)
}

// GetGoal handles fetching one goal
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}

	goal, err := h.svc.GetGoal(r.Context(), mux.Vars(r)["goal_id"], username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Goal retrieved successfully.", goal)
}

// PredictTimeline handles the Monte Carlo forecast of a goal
func (h *Handler) PredictTimeline(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	goalID := mux.Vars(r)["goal_id"]

	h.log.Infof("Predicting timeline for goal %s, user: %s", goalID, username)
	result, err := h.svc.PredictTimeline(r.Context(), goalID, username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Goal timeline predicted.", result)
}

// TimelineInterpretation handles the narrated forecast of a goal
func (h *Handler) TimelineInterpretation(w http.ResponseWriter, r *http.Request) {
	username, ok := requireUsername(w, r)
	if !ok {
		return
	}
	goalID := mux.Vars(r)["goal_id"]
	language := narrative.ParseLanguage(r.URL.Query().Get("language"), r.Header.Get("Accept-Language"))

	h.log.Infof("Getting timeline interpretation for goal %s, user: %s, language: %s", goalID, username, language)
	out, err := h.svc.TimelineInterpretation(r.Context(), goalID, username, language)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Goal timeline interpretation generated.", out)
}

// ExchangeRates returns the current central bank quotes
func (h *Handler) ExchangeRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.rates.GetRates(r.Context())
	if err != nil {
		h.log.Errorf("Failed to get exchange rates: %v", err)
		writeError(w, http.StatusBadGateway, "Failed to get exchange rates", err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, "Exchange rates retrieved successfully.", rates)
}

// Health reports whether the database is reachable
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.log.Warnf("Health check failed: %v", err)
			writeError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}
	writeSuccess(w, http.StatusOK, "OK", nil)
}

// requireUsername reads the username query parameter. When the request is
// authenticated, the token subject must match it.
func requireUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return "", false
	}
	if subject, ok := middleware.UsernameFromContext(r.Context()); ok && subject != username {
		writeError(w, http.StatusForbidden, "Forbidden", "token does not belong to "+username)
		return "", false
	}
	return username, true
}

// writeServiceError maps service errors to status codes, masking internal failures
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Validation Error", err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "Not found.", err.Error())
	case forecast.IsInvalidSnapshot(err):
		writeError(w, http.StatusBadRequest, "Goal cannot be forecast.", err.Error())
	case forecast.IsComputationTimeout(err):
		h.log.Warnf("Forecast timed out: %v", err)
		writeError(w, http.StatusGatewayTimeout, "Forecast did not finish in time.")
	case forecast.IsInvalidConfiguration(err):
		h.log.Errorf("Forecaster misconfigured: %v", err)
		writeError(w, http.StatusInternalServerError, "Forecast is misconfigured.")
	default:
		h.log.Errorf("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, models.BaseResponse{IsSuccess: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, errs ...string) {
	if len(errs) == 0 {
		errs = []string{message}
	}
	writeJSON(w, status, models.BaseResponse{Message: message, Errors: errs})
}
