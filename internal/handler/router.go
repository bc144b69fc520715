package handler

import (
	"net/http"

	"github.com/Dan9191/goal-service/internal/config"
	"github.com/Dan9191/goal-service/internal/metrics"
	"github.com/Dan9191/goal-service/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the API routes, auth, request logging and CORS
func NewRouter(h *Handler, cfg *config.Config, log *logrus.Logger, m *metrics.Metrics) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(log, m))

	// Public routes
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg))
	for _, path := range []string{"/goals", "/goals/"} {
		api.HandleFunc(path, h.CreateGoal).Methods(http.MethodPost)
		api.HandleFunc(path, h.ListGoals).Methods(http.MethodGet)
		api.HandleFunc(path, h.UpdateGoal).Methods(http.MethodPut)
	}
	api.HandleFunc("/goals/{goal_id}", h.GetGoal).Methods(http.MethodGet)
	api.HandleFunc("/goals/{goal_id}/timeline", h.PredictTimeline).Methods(http.MethodGet)
	api.HandleFunc("/goals/{goal_id}/timeline/interpretation", h.TimelineInterpretation).Methods(http.MethodGet)
	api.HandleFunc("/exchange-rates", h.ExchangeRates).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
