package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/goal-service/internal/cache"
	"github.com/Dan9191/goal-service/internal/config"
	"github.com/Dan9191/goal-service/internal/handler"
	"github.com/Dan9191/goal-service/internal/integrations/cbr"
	"github.com/Dan9191/goal-service/internal/metrics"
	"github.com/Dan9191/goal-service/internal/narrative"
	"github.com/Dan9191/goal-service/internal/repository"
	"github.com/Dan9191/goal-service/internal/scheduler"
	"github.com/Dan9191/goal-service/internal/service"
	"github.com/Dan9191/goal-service/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Optional Redis cache for timelines
	rdb, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warnf("Redis unavailable, timeline cache disabled: %v", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}
	timelineCache := cache.NewTimelineCache(rdb, logger, cache.WithTTL(cfg.TimelineCacheTTL))

	// Initialize layers
	m := metrics.New()
	repo := repository.NewRepository(db)
	cbrClient := cbr.NewCBRClient(cfg, logger)
	narrator := narrative.NewNarrator(cfg, logger)
	if !narrator.Enabled() {
		logger.Info("LLM_API_KEY is not set, interpretations use the fallback message")
	}

	opts := []service.Option{
		service.WithRates(cbrClient),
		service.WithNarrator(narrator),
		service.WithCache(timelineCache),
		service.WithMetrics(m),
	}
	if cfg.SMTPEnabled() {
		opts = append(opts, service.WithAlerts(email.NewSender(cfg, logger)))
	}
	svc := service.NewService(repo, logger, cfg, opts...)
	h := handler.NewHandler(svc, cbrClient, repo, logger)

	// At-risk goal sweep
	sched, err := scheduler.NewScheduler(cfg.AtRiskCron, svc, logger)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}
	sched.Start()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, cfg, logger, m),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.SimulationTimeout + cfg.LLMTimeout + 10*time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	sched.Stop(shutdownCtx)
}
