package service

import (
	"context"
	"time"

	"github.com/Dan9191/goal-service/internal/forecast"
	"github.com/Dan9191/goal-service/internal/integrations/cbr"
	"github.com/Dan9191/goal-service/internal/models"
	"github.com/Dan9191/goal-service/internal/narrative"
	"github.com/Dan9191/goal-service/internal/utils/email"
	"github.com/stretchr/testify/mock"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockRepository) CreateGoal(ctx context.Context, goal *models.Goal) error {
	return m.Called(ctx, goal).Error(0)
}

func (m *mockRepository) FindGoalByID(ctx context.Context, id string) (*models.Goal, error) {
	args := m.Called(ctx, id)
	goal, _ := args.Get(0).(*models.Goal)
	return goal, args.Error(1)
}

func (m *mockRepository) ListGoalsByUser(ctx context.Context, userID string) ([]*models.Goal, error) {
	args := m.Called(ctx, userID)
	goals, _ := args.Get(0).([]*models.Goal)
	return goals, args.Error(1)
}

func (m *mockRepository) ListActiveGoalsWithDeadline(ctx context.Context) ([]*models.Goal, error) {
	args := m.Called(ctx)
	goals, _ := args.Get(0).([]*models.Goal)
	return goals, args.Error(1)
}

func (m *mockRepository) UpdateGoal(ctx context.Context, goal *models.Goal) error {
	return m.Called(ctx, goal).Error(0)
}

func (m *mockRepository) UpdateGoalStatus(ctx context.Context, id string, status models.GoalStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockRepository) SpendingSince(ctx context.Context, userID string, since time.Time) ([]models.CurrencyAmount, error) {
	args := m.Called(ctx, userID, since)
	spending, _ := args.Get(0).([]models.CurrencyAmount)
	return spending, args.Error(1)
}

type mockForecaster struct {
	mock.Mock
}

func (m *mockForecaster) Forecast(ctx context.Context, s forecast.Snapshot) (*forecast.Result, error) {
	args := m.Called(ctx, s)
	res, _ := args.Get(0).(*forecast.Result)
	return res, args.Error(1)
}

type mockRates struct {
	mock.Mock
}

func (m *mockRates) GetRates(ctx context.Context) (*cbr.Rates, error) {
	args := m.Called(ctx)
	rates, _ := args.Get(0).(*cbr.Rates)
	return rates, args.Error(1)
}

type mockNarrator struct {
	mock.Mock
}

func (m *mockNarrator) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *mockNarrator) Narrate(ctx context.Context, req narrative.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, goalID string) (*forecast.Result, error) {
	args := m.Called(ctx, goalID)
	res, _ := args.Get(0).(*forecast.Result)
	return res, args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, goalID string, result *forecast.Result) error {
	return m.Called(ctx, goalID, result).Error(0)
}

func (m *mockCache) Delete(ctx context.Context, goalID string) error {
	return m.Called(ctx, goalID).Error(0)
}

type mockAlerts struct {
	mock.Mock
}

func (m *mockAlerts) SendGoalAtRiskAlert(alert email.GoalAlert) error {
	return m.Called(alert).Error(0)
}
