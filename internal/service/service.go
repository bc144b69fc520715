package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Dan9191/goal-service/internal/cache"
	"github.com/Dan9191/goal-service/internal/config"
	"github.com/Dan9191/goal-service/internal/forecast"
	"github.com/Dan9191/goal-service/internal/integrations/cbr"
	"github.com/Dan9191/goal-service/internal/metrics"
	"github.com/Dan9191/goal-service/internal/models"
	"github.com/Dan9191/goal-service/internal/narrative"
	"github.com/Dan9191/goal-service/internal/repository"
	"github.com/Dan9191/goal-service/internal/utils/email"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidInput wraps request validation failures
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when the caller acts on behalf of another user
	ErrForbidden = errors.New("forbidden")
)

// Repository is the persistence the service needs
type Repository interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	CreateGoal(ctx context.Context, goal *models.Goal) error
	FindGoalByID(ctx context.Context, id string) (*models.Goal, error)
	ListGoalsByUser(ctx context.Context, userID string) ([]*models.Goal, error)
	ListActiveGoalsWithDeadline(ctx context.Context) ([]*models.Goal, error)
	UpdateGoal(ctx context.Context, goal *models.Goal) error
	UpdateGoalStatus(ctx context.Context, id string, status models.GoalStatus) error
	SpendingSince(ctx context.Context, userID string, since time.Time) ([]models.CurrencyAmount, error)
}

// Forecaster runs a goal forecast
type Forecaster interface {
	Forecast(ctx context.Context, s forecast.Snapshot) (*forecast.Result, error)
}

// RateProvider supplies exchange rates for currency conversion
type RateProvider interface {
	GetRates(ctx context.Context) (*cbr.Rates, error)
}

// Narrator explains a forecast in plain language
type Narrator interface {
	Enabled() bool
	Narrate(ctx context.Context, req narrative.Request) (string, error)
}

// TimelineCache stores the latest forecast per goal
type TimelineCache interface {
	Get(ctx context.Context, goalID string) (*forecast.Result, error)
	Set(ctx context.Context, goalID string, result *forecast.Result) error
	Delete(ctx context.Context, goalID string) error
}

// AlertSender notifies owners about goals at risk
type AlertSender interface {
	SendGoalAtRiskAlert(alert email.GoalAlert) error
}

// Service handles business logic
type Service struct {
	repo       Repository
	log        *logrus.Logger
	config     *config.Config
	forecaster Forecaster
	rates      RateProvider
	narrator   Narrator
	cache      TimelineCache
	alerts     AlertSender
	metrics    *metrics.Metrics
	now        func() time.Time
	newID      func() string
}

// Option customises a Service
type Option func(*Service)

// WithForecaster replaces the forecaster built from the configuration
func WithForecaster(f Forecaster) Option { return func(s *Service) { s.forecaster = f } }

// WithRates sets the exchange rate source
func WithRates(r RateProvider) Option { return func(s *Service) { s.rates = r } }

// WithNarrator sets the interpretation backend
func WithNarrator(n Narrator) Option { return func(s *Service) { s.narrator = n } }

// WithCache sets the timeline cache
func WithCache(c TimelineCache) Option { return func(s *Service) { s.cache = c } }

// WithAlerts sets the at-risk alert sender
func WithAlerts(a AlertSender) Option { return func(s *Service) { s.alerts = a } }

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService initializes a new service
func NewService(repo Repository, log *logrus.Logger, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		log:    log,
		config: cfg,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.forecaster == nil {
		s.forecaster = forecast.NewForecaster(ForecastConfig(cfg), log)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// ForecastConfig derives the simulation parameters from the application config
func ForecastConfig(cfg *config.Config) forecast.Config {
	fc := forecast.DefaultConfig()
	if cfg.Simulations > 0 {
		fc.Simulations = cfg.Simulations
	}
	if cfg.SimulationCap > 0 {
		fc.MonthCap = cfg.SimulationCap
	}
	if cfg.SimulationWorkers > 0 {
		fc.Workers = cfg.SimulationWorkers
	}
	fc.Seed = cfg.SimulationSeed
	fc.Timeout = cfg.SimulationTimeout
	return fc
}

// CreateGoal validates the input and stores a new goal. A non-empty requester
// is the authenticated username and must own the goal.
func (s *Service) CreateGoal(ctx context.Context, in models.GoalInput, requester string) (*models.Goal, error) {
	in.ApplyDefaults()
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if requester != "" {
		user, err := s.repo.FindUserByUsername(ctx, requester)
		if err != nil {
			return nil, err
		}
		if in.UserID == "" {
			in.UserID = user.ID
		}
		if in.UserID != user.ID {
			return nil, fmt.Errorf("%w: %s cannot create goals for user %s", ErrForbidden, requester, in.UserID)
		}
	} else {
		if in.UserID == "" {
			return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
		}
		if _, err := s.repo.FindUserByID(ctx, in.UserID); err != nil {
			return nil, err
		}
	}

	goal := &models.Goal{
		ID:            s.newID(),
		UserID:        in.UserID,
		Name:          in.Name,
		TargetAmount:  in.TargetAmount,
		CurrentAmount: in.CurrentAmount,
		Currency:      strings.ToUpper(in.Currency),
		TargetDate:    in.TargetDate,
		Status:        in.Status,
		Priority:      in.Priority,
		Description:   in.Description,
	}
	if err := s.repo.CreateGoal(ctx, goal); err != nil {
		return nil, err
	}

	s.log.Infof("Goal %s created for user %s", goal.ID, goal.UserID)
	return goal, nil
}

// UpdateGoal overwrites an existing goal and drops its cached forecast. A
// non-empty requester is the authenticated username and must own the goal.
func (s *Service) UpdateGoal(ctx context.Context, in models.GoalInput, requester string) (*models.Goal, error) {
	if in.GoalID == "" {
		return nil, fmt.Errorf("%w: goal_id is required", ErrInvalidInput)
	}
	in.ApplyDefaults()
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	goal, err := s.repo.FindGoalByID(ctx, in.GoalID)
	if err != nil {
		return nil, err
	}
	if in.UserID != "" && in.UserID != goal.UserID {
		return nil, fmt.Errorf("goal %s: %w", in.GoalID, repository.ErrNotFound)
	}
	if requester != "" {
		user, err := s.repo.FindUserByUsername(ctx, requester)
		if err != nil {
			return nil, err
		}
		if user.ID != goal.UserID {
			return nil, fmt.Errorf("goal %s: %w", in.GoalID, repository.ErrNotFound)
		}
	}

	goal.Name = in.Name
	goal.TargetAmount = in.TargetAmount
	goal.CurrentAmount = in.CurrentAmount
	goal.Currency = strings.ToUpper(in.Currency)
	goal.TargetDate = in.TargetDate
	goal.Status = in.Status
	goal.Priority = in.Priority
	goal.Description = in.Description

	if err := s.repo.UpdateGoal(ctx, goal); err != nil {
		return nil, err
	}
	s.evict(ctx, goal.ID)

	s.log.Infof("Goal %s updated", goal.ID)
	return goal, nil
}

// GetGoal returns a goal if it belongs to the user
func (s *Service) GetGoal(ctx context.Context, goalID, username string) (*models.Goal, error) {
	goal, _, err := s.ownedGoal(ctx, goalID, username)
	return goal, err
}

// ListGoals returns the user's goals with progress and a simple months estimate
func (s *Service) ListGoals(ctx context.Context, username string) ([]models.GoalProgress, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	goals, err := s.repo.ListGoalsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	fin, err := s.loadFinances(ctx, user)
	if err != nil {
		return nil, err
	}

	out := make([]models.GoalProgress, 0, len(goals))
	for _, goal := range goals {
		progress := models.GoalProgress{Goal: goal, EstimatedMonths: -1}
		if goal.TargetAmount > 0 {
			progress.ProgressPercentage = round1(goal.CurrentAmount / goal.TargetAmount * 100)
		}
		snap, err := s.snapshotFor(ctx, fin, goal)
		if err != nil {
			s.log.Warnf("No estimate for goal %s: %v", goal.ID, err)
			out = append(out, progress)
			continue
		}
		switch c := snap.RealContribution(); {
		case snap.Remaining() == 0:
			progress.EstimatedMonths = 0
		case c > 0:
			progress.EstimatedMonths = round1(snap.Remaining() / c)
		}
		out = append(out, progress)
	}
	return out, nil
}

// PredictTimeline runs the forecast for a goal and caches the result
func (s *Service) PredictTimeline(ctx context.Context, goalID, username string) (*forecast.Result, error) {
	goal, user, err := s.ownedGoal(ctx, goalID, username)
	if err != nil {
		return nil, err
	}
	fin, err := s.loadFinances(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.forecastGoal(ctx, fin, goal)
}

// TimelineInterpretation narrates the latest forecast of a goal, falling back
// to a static message when narration is unavailable.
func (s *Service) TimelineInterpretation(ctx context.Context, goalID, username, language string) (*models.TimelineInterpretation, error) {
	goal, user, err := s.ownedGoal(ctx, goalID, username)
	if err != nil {
		return nil, err
	}

	result := s.cachedTimeline(ctx, goal.ID)
	if result == nil {
		fin, err := s.loadFinances(ctx, user)
		if err != nil {
			return nil, err
		}
		if result, err = s.forecastGoal(ctx, fin, goal); err != nil {
			return nil, err
		}
	}

	out := &models.TimelineInterpretation{Interpretation: narrative.FallbackMessage, Language: language}
	if s.narrator == nil || !s.narrator.Enabled() {
		s.metrics.ObserveNarration(metrics.NarrationDisabled)
		return out, nil
	}

	text, err := s.narrator.Narrate(ctx, narrative.Request{
		GoalName:   goal.Name,
		Currency:   goal.Currency,
		Target:     goal.TargetAmount,
		Current:    goal.CurrentAmount,
		TargetDate: goal.TargetDate,
		Language:   language,
		Result:     result,
	})
	if err != nil {
		s.log.Warnf("Narration failed for goal %s, using fallback: %v", goal.ID, err)
		s.metrics.ObserveNarration(metrics.NarrationFallback)
		return out, nil
	}

	s.metrics.ObserveNarration(metrics.NarrationGenerated)
	out.Interpretation = text
	out.Generated = true
	return out, nil
}

// SweepReport summarises one at-risk sweep
type SweepReport struct {
	Checked  int
	Achieved int
	AtRisk   int
	Alerted  int
	Failed   int
}

// SweepAtRiskGoals forecasts every active goal with a deadline. Funded goals
// are marked achieved and owners of goals below the threshold are alerted.
func (s *Service) SweepAtRiskGoals(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	goals, err := s.repo.ListActiveGoalsWithDeadline(ctx)
	if err != nil {
		return report, err
	}

	users := make(map[string]*finances)
	now := s.now()
	for _, goal := range goals {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		if goal.CurrentAmount >= goal.TargetAmount {
			if err := s.repo.UpdateGoalStatus(ctx, goal.ID, models.GoalStatusAchieved); err != nil {
				s.log.Errorf("Failed to mark goal %s achieved: %v", goal.ID, err)
				report.Failed++
				continue
			}
			s.evict(ctx, goal.ID)
			report.Achieved++
			continue
		}
		if goal.TargetDate == nil || goal.TargetDate.Before(startOfDay(now)) {
			continue
		}

		fin, ok := users[goal.UserID]
		if !ok {
			user, err := s.repo.FindUserByID(ctx, goal.UserID)
			if err == nil {
				fin, err = s.loadFinances(ctx, user)
			}
			if err != nil {
				s.log.Errorf("Failed to load finances of user %s: %v", goal.UserID, err)
				report.Failed++
				continue
			}
			users[goal.UserID] = fin
		}

		result, err := s.forecastGoal(ctx, fin, goal)
		if err != nil {
			s.log.Errorf("Failed to forecast goal %s: %v", goal.ID, err)
			report.Failed++
			continue
		}
		if result.SuccessProbability >= s.config.AtRiskThreshold {
			continue
		}

		report.AtRisk++
		if s.alerts == nil || fin.user.Email == "" {
			continue
		}
		err = s.alerts.SendGoalAtRiskAlert(email.GoalAlert{
			To:                 fin.user.Email,
			Username:           fin.user.Username,
			GoalName:           goal.Name,
			Currency:           goal.Currency,
			Remaining:          math.Max(0, goal.TargetAmount-goal.CurrentAmount),
			TargetDate:         *goal.TargetDate,
			SuccessProbability: result.SuccessProbability,
			MedianMonths:       result.MonteCarlo.P50,
		})
		if err != nil {
			report.Failed++
			continue
		}
		s.metrics.AtRiskAlertsTotal.Inc()
		report.Alerted++
	}

	s.log.WithFields(logrus.Fields{
		"checked":  report.Checked,
		"achieved": report.Achieved,
		"at_risk":  report.AtRisk,
		"alerted":  report.Alerted,
		"failed":   report.Failed,
	}).Info("At-risk sweep finished")
	return report, nil
}

func (s *Service) ownedGoal(ctx context.Context, goalID, username string) (*models.Goal, *models.User, error) {
	user, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	goal, err := s.repo.FindGoalByID(ctx, goalID)
	if err != nil {
		return nil, nil, err
	}
	if goal.UserID != user.ID {
		return nil, nil, fmt.Errorf("goal %s: %w", goalID, repository.ErrNotFound)
	}
	return goal, user, nil
}

func (s *Service) forecastGoal(ctx context.Context, fin *finances, goal *models.Goal) (*forecast.Result, error) {
	snap, err := s.snapshotFor(ctx, fin, goal)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := s.forecaster.Forecast(ctx, snap)
	s.metrics.ObserveForecast(time.Since(started), result, err)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, goal.ID, result); err != nil {
			s.log.Warnf("Failed to cache timeline of goal %s: %v", goal.ID, err)
		}
	}
	return result, nil
}

func (s *Service) cachedTimeline(ctx context.Context, goalID string) *forecast.Result {
	if s.cache == nil {
		return nil
	}
	result, err := s.cache.Get(ctx, goalID)
	switch {
	case err == nil:
		s.metrics.ObserveCache(metrics.CacheHit)
		return result
	case errors.Is(err, cache.ErrCacheMiss):
		s.metrics.ObserveCache(metrics.CacheMiss)
	default:
		s.metrics.ObserveCache(metrics.CacheError)
		s.log.Warnf("Timeline cache lookup failed for goal %s: %v", goalID, err)
	}
	return nil
}

func (s *Service) evict(ctx context.Context, goalID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, goalID); err != nil {
		s.log.Warnf("Failed to evict timeline of goal %s: %v", goalID, err)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
