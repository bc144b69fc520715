package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestForecaster(cfg Config, opts ...Option) *Forecaster {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewForecaster(cfg, nil, opts...)
}

func seededConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	return cfg
}

func scenarioA() Snapshot {
	return Snapshot{
		CurrentAmount:   0,
		TargetAmount:    10_000_000,
		MonthlyIncome:   5_000_000,
		MonthlySpending: 2_000_000,
	}
}

func datePtr(t time.Time) *time.Time { return &t }

func assertPercentilesOrdered(t *testing.T, res *Result) {
	t.Helper()
	assert.LessOrEqual(t, res.MonteCarlo.P10, res.MonteCarlo.P50)
	assert.LessOrEqual(t, res.MonteCarlo.P50, res.MonteCarlo.P90)
}

func assertTimelineLength(t *testing.T, res *Result) {
	t.Helper()
	want := min(int(res.MonteCarlo.P90)+6, 60) + 1
	require.Len(t, res.Timeline, want)
	for i, p := range res.Timeline {
		assert.Equal(t, i, p.Month)
	}
}

func TestForecast_ScenarioA_NoDeadline(t *testing.T) {
	res, err := newTestForecaster(seededConfig()).Forecast(context.Background(), scenarioA())
	require.NoError(t, err)

	assert.InDelta(t, 3_000_000, res.RealContribution, 1e-6)
	require.True(t, res.Reachable())
	assert.InDelta(t, 10.0/3.0, *res.DeterministicMonths, 1e-9)
	assert.GreaterOrEqual(t, res.MonteCarlo.P10, 3.0)
	assert.LessOrEqual(t, res.MonteCarlo.P90, 5.0)
	assert.Equal(t, 100.0, res.SuccessProbability)
	assert.Nil(t, res.MonthsToTarget)
	assert.Equal(t, 5000, res.Simulations)
	assert.Zero(t, res.CappedTrials)
	assertPercentilesOrdered(t, res)
	assertTimelineLength(t, res)
}

func TestForecast_ScenarioB_Overspending(t *testing.T) {
	snap := Snapshot{
		TargetAmount:    5_000_000,
		MonthlyIncome:   1_000_000,
		MonthlySpending: 1_200_000,
	}
	res, err := newTestForecaster(seededConfig()).Forecast(context.Background(), snap)
	require.NoError(t, err)

	assert.Zero(t, res.RealContribution)
	assert.False(t, res.Reachable())
	assert.Nil(t, res.DeterministicMonths)
	assert.Equal(t, 360.0, res.MonteCarlo.P50)
	assert.Equal(t, 360.0, res.MonteCarlo.P90)
	assert.Greater(t, res.CappedTrials, res.Simulations/2)
	assertPercentilesOrdered(t, res)
	assertTimelineLength(t, res)
	for _, p := range res.Timeline {
		assert.Zero(t, p.Deterministic)
	}
}

func TestForecast_ZeroContributionMostlyCapped(t *testing.T) {
	snap := Snapshot{
		TargetAmount:    5_000_000,
		MonthlyIncome:   1_000_000,
		MonthlySpending: 2_000_000,
	}
	res, err := newTestForecaster(seededConfig()).Forecast(context.Background(), snap)
	require.NoError(t, err)

	assert.Nil(t, res.DeterministicMonths)
	capped := float64(res.CappedTrials) / float64(res.Simulations)
	assert.Greater(t, capped, 0.9)
}

func TestForecast_ScenarioC_AlmostThere(t *testing.T) {
	snap := scenarioA()
	snap.CurrentAmount = 9_900_000

	res, err := newTestForecaster(seededConfig()).Forecast(context.Background(), snap)
	require.NoError(t, err)

	require.NotNil(t, res.DeterministicMonths)
	assert.LessOrEqual(t, *res.DeterministicMonths, 1.0)
	assert.LessOrEqual(t, res.MonteCarlo.P90, 1.0)
	assertPercentilesOrdered(t, res)
}

func TestForecast_ScenarioD_DeadlineInSixMonths(t *testing.T) {
	snap := scenarioA()
	snap.TargetDate = datePtr(testNow.AddDate(0, 0, 180))

	res, err := newTestForecaster(seededConfig()).Forecast(context.Background(), snap)
	require.NoError(t, err)

	require.NotNil(t, res.MonthsToTarget)
	assert.InDelta(t, 6.0, *res.MonthsToTarget, 1e-9)
	assert.Greater(t, res.SuccessProbability, 80.0)
	assert.LessOrEqual(t, res.SuccessProbability, 100.0)
}

func TestForecast_GoalAlreadyReached(t *testing.T) {
	snap := Snapshot{
		CurrentAmount:   12_000_000,
		TargetAmount:    10_000_000,
		MonthlyIncome:   1_000_000,
		MonthlySpending: 3_000_000,
		TargetDate:      datePtr(testNow.AddDate(0, -1, 0)),
	}
	res, err := newTestForecaster(seededConfig()).Forecast(context.Background(), snap)
	require.NoError(t, err)

	require.NotNil(t, res.DeterministicMonths)
	assert.Zero(t, *res.DeterministicMonths)
	assert.Zero(t, res.MonteCarlo.P10)
	assert.Zero(t, res.MonteCarlo.P50)
	assert.Zero(t, res.MonteCarlo.P90)
	assert.Equal(t, 100.0, res.SuccessProbability)
	assert.InDelta(t, 1.0, *res.MonthsToTarget, 1e-9)
	require.Len(t, res.Timeline, 7)
	for _, p := range res.Timeline {
		assert.Equal(t, 12_000_000.0, p.Deterministic)
		assert.Equal(t, 12_000_000.0, p.P90Pessimistic)
	}
}

func TestForecast_DeadlineIsToday(t *testing.T) {
	snap := scenarioA()
	midnight := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 0, 0, 0, 0, time.UTC)
	snap.TargetDate = &midnight

	res, err := newTestForecaster(seededConfig()).Forecast(context.Background(), snap)
	require.NoError(t, err)
	require.NotNil(t, res.MonthsToTarget)
	assert.Equal(t, 1.0, *res.MonthsToTarget)

	yesterday := midnight.AddDate(0, 0, -1)
	snap.TargetDate = &yesterday
	_, err = newTestForecaster(seededConfig()).Forecast(context.Background(), snap)
	assert.True(t, IsInvalidSnapshot(err))
}

func TestForecast_ReproducibleWithSeed(t *testing.T) {
	snap := scenarioA()
	snap.MonthlySpending = 4_300_000
	snap.TargetDate = datePtr(testNow.AddDate(1, 0, 0))

	sequential := seededConfig()
	sequential.Workers = 1
	parallel := seededConfig()
	parallel.Workers = 8

	first, err := newTestForecaster(sequential).Forecast(context.Background(), snap)
	require.NoError(t, err)
	second, err := newTestForecaster(sequential).Forecast(context.Background(), snap)
	require.NoError(t, err)
	third, err := newTestForecaster(parallel).Forecast(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

type meanSource struct{}

func (meanSource) Normal(mean, _ float64) float64 { return mean }
func (meanSource) Uniform(_, hi float64) float64  { return hi }

func TestForecast_InjectedSource(t *testing.T) {
	snap := Snapshot{
		TargetAmount:    10_000,
		MonthlyIncome:   1_500,
		MonthlySpending: 500,
		TargetDate:      datePtr(testNow.AddDate(0, 0, 270)),
	}
	f := newTestForecaster(seededConfig(), WithSourceFactory(func(uint64, int) Source { return meanSource{} }))

	res, err := f.Forecast(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, MonteCarlo{P10: 10, P50: 10, P90: 10}, res.MonteCarlo)
	assert.Zero(t, res.SuccessProbability)
	require.Len(t, res.Timeline, 17)

	last := res.Timeline[16]
	assert.Equal(t, 10_000.0, last.Deterministic)
	assert.Equal(t, 10_000.0, last.P90Pessimistic)

	m4 := res.Timeline[4]
	assert.InDelta(t, 4_000, m4.Deterministic, 1e-9)
	assert.InDelta(t, 4_600, m4.P10Optimistic, 1e-9)
	assert.InDelta(t, 4_000, m4.P50Median, 1e-9)
	assert.InDelta(t, 3_400, m4.P90Pessimistic, 1e-9)
}

func TestForecast_DeductionsReduceContribution(t *testing.T) {
	snap := scenarioA()
	snap.MonthlyInstallments = 500_000
	snap.MonthlyTaxes = 600_000
	snap.MonthlyVolatilityBuffer = 250_000

	res, err := newTestForecaster(seededConfig()).Forecast(context.Background(), snap)
	require.NoError(t, err)
	assert.InDelta(t, 1_650_000, res.RealContribution, 1e-6)
	assert.InDelta(t, 10_000_000/1_650_000.0, *res.DeterministicMonths, 1e-9)
}

func TestForecast_SmallMonthCap(t *testing.T) {
	cfg := seededConfig()
	cfg.MonthCap = 12
	cfg.Simulations = 200
	snap := Snapshot{TargetAmount: 1_000_000, MonthlyIncome: 100, MonthlySpending: 50}

	res, err := newTestForecaster(cfg).Forecast(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 12.0, res.MonteCarlo.P10)
	assert.Equal(t, 200, res.CappedTrials)
}

func TestForecast_InvalidSnapshot(t *testing.T) {
	cases := map[string]func(*Snapshot){
		"negative income":         func(s *Snapshot) { s.MonthlyIncome = -1 },
		"negative spending":       func(s *Snapshot) { s.MonthlySpending = -1 },
		"negative current amount": func(s *Snapshot) { s.CurrentAmount = -5 },
		"negative taxes":          func(s *Snapshot) { s.MonthlyTaxes = -0.01 },
		"nan target":              func(s *Snapshot) { s.TargetAmount = math.NaN() },
		"infinite buffer":         func(s *Snapshot) { s.MonthlyVolatilityBuffer = math.Inf(1) },
		"past deadline":           func(s *Snapshot) { s.TargetDate = datePtr(testNow.AddDate(0, -2, 0)) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			snap := scenarioA()
			mutate(&snap)
			_, err := newTestForecaster(seededConfig()).Forecast(context.Background(), snap)
			require.Error(t, err)
			assert.True(t, IsInvalidSnapshot(err), "got %v", err)
		})
	}
}

func TestForecast_InvalidConfiguration(t *testing.T) {
	cases := map[string]func(*Config){
		"zero simulations":     func(c *Config) { c.Simulations = 0 },
		"negative simulations": func(c *Config) { c.Simulations = -10 },
		"zero cap":             func(c *Config) { c.MonthCap = 0 },
		"shock probability":    func(c *Config) { c.ShockProbability = 1.5 },
		"inverted shock range": func(c *Config) { c.ShockMin, c.ShockMax = 0.3, 0.1 },
		"negative std dev":     func(c *Config) { c.SpendingStdDev = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := seededConfig()
			mutate(&cfg)
			_, err := newTestForecaster(cfg).Forecast(context.Background(), scenarioA())
			require.Error(t, err)
			assert.True(t, IsInvalidConfiguration(err), "got %v", err)
			assert.False(t, IsInvalidSnapshot(err))
		})
	}
}

func TestForecast_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestForecaster(seededConfig()).Forecast(ctx, scenarioA())
	require.Error(t, err)
	assert.True(t, IsComputationTimeout(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForecast_ConfiguredTimeout(t *testing.T) {
	cfg := seededConfig()
	cfg.Timeout = time.Nanosecond
	cfg.Simulations = 50_000
	snap := Snapshot{TargetAmount: 5_000_000, MonthlyIncome: 1_000_000, MonthlySpending: 2_000_000}

	_, err := newTestForecaster(cfg).Forecast(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, IsComputationTimeout(err))
}

func TestForecast_ProbabilityBounds(t *testing.T) {
	snaps := []Snapshot{
		scenarioA(),
		{TargetAmount: 3_000_000, MonthlyIncome: 1_000_000, MonthlySpending: 900_000, TargetDate: datePtr(testNow.AddDate(0, 3, 0))},
		{TargetAmount: 3_000_000, MonthlyIncome: 1_000_000, MonthlySpending: 100_000, TargetDate: datePtr(testNow.AddDate(0, 0, 10))},
	}
	cfg := seededConfig()
	cfg.Simulations = 500
	for _, snap := range snaps {
		res, err := newTestForecaster(cfg).Forecast(context.Background(), snap)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.SuccessProbability, 0.0)
		assert.LessOrEqual(t, res.SuccessProbability, 100.0)
		assertPercentilesOrdered(t, res)
		assertTimelineLength(t, res)
	}
}
