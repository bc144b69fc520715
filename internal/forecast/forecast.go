package forecast

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MonteCarlo holds the simulated months-to-goal percentiles.
type MonteCarlo struct {
	P10 float64 `json:"p10"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
}

// Result is the outcome of one forecast.
type Result struct {
	// DeterministicMonths is nil when the real contribution is zero and the
	// goal can never be reached on the average path.
	DeterministicMonths *float64   `json:"deterministic_months"`
	MonteCarlo          MonteCarlo `json:"monte_carlo"`
	// SuccessProbability is 100 when the snapshot has no target date.
	SuccessProbability float64         `json:"success_probability"`
	MonthsToTarget     *float64        `json:"months_to_target"`
	RealContribution   float64         `json:"real_monthly_contribution"`
	Simulations        int             `json:"simulations"`
	CappedTrials       int             `json:"capped_trials"`
	Seed               uint64          `json:"-"`
	Timeline           []TimelinePoint `json:"timeline_data"`
}

// Reachable reports whether the deterministic path ever reaches the goal.
func (r *Result) Reachable() bool {
	return r.DeterministicMonths != nil
}

// Forecaster runs goal timeline forecasts. It keeps no state between calls and
// is safe for concurrent use.
type Forecaster struct {
	cfg     Config
	log     *logrus.Logger
	sources SourceFactory
	now     func() time.Time
}

// Option customises a Forecaster.
type Option func(*Forecaster)

// WithSourceFactory replaces the per-trial random source.
func WithSourceFactory(f SourceFactory) Option {
	return func(fc *Forecaster) { fc.sources = f }
}

// WithClock replaces time.Now, used to turn the target date into months.
func WithClock(now func() time.Time) Option {
	return func(fc *Forecaster) { fc.now = now }
}

// NewForecaster creates a forecaster. A nil logger discards output.
func NewForecaster(cfg Config, log *logrus.Logger, opts ...Option) *Forecaster {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	f := &Forecaster{
		cfg:     cfg,
		log:     log,
		sources: PCGSources,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns the parameters the forecaster runs with.
func (f *Forecaster) Config() Config {
	return f.cfg
}

// Forecast validates the snapshot, runs the simulation and aggregates the result.
func (f *Forecaster) Forecast(ctx context.Context, s Snapshot) (*Result, error) {
	if err := f.cfg.Validate(); err != nil {
		return nil, err
	}
	now := f.now()
	if err := s.Validate(now); err != nil {
		return nil, err
	}
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	seed := f.cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	started := time.Now()
	months, err := f.simulate(ctx, s, seed)
	if err != nil {
		return nil, err
	}
	slices.Sort(months)

	res := &Result{
		RealContribution: s.RealContribution(),
		Simulations:      len(months),
		Seed:             seed,
		MonteCarlo: MonteCarlo{
			P10: Percentile(months, 10),
			P50: Percentile(months, 50),
			P90: Percentile(months, 90),
		},
		MonthsToTarget:     s.monthsToTarget(now),
		SuccessProbability: 100,
	}
	res.DeterministicMonths = deterministicMonths(s)

	for _, m := range months {
		if m >= f.cfg.MonthCap {
			res.CappedTrials++
		}
	}
	if res.MonthsToTarget != nil {
		res.SuccessProbability = successProbability(months, *res.MonthsToTarget)
	}
	res.Timeline = buildTimeline(s, res.MonteCarlo.P90, f.cfg)

	f.log.WithFields(logrus.Fields{
		"simulations": res.Simulations,
		"p50":         res.MonteCarlo.P50,
		"success":     res.SuccessProbability,
		"elapsed":     time.Since(started).String(),
	}).Debug("Forecast completed")
	return res, nil
}

func deterministicMonths(s Snapshot) *float64 {
	remaining := s.Remaining()
	if remaining == 0 {
		zero := 0.0
		return &zero
	}
	c := s.RealContribution()
	if c <= 0 {
		return nil
	}
	m := remaining / c
	return &m
}

func successProbability(sorted []int, monthsToTarget float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	hits := 0
	for _, m := range sorted {
		if float64(m) <= monthsToTarget {
			hits++
		}
	}
	return float64(hits) / float64(len(sorted)) * 100
}

// simulate runs every trial and returns the months each one needed. Trial i
// always draws from the stream derived from (seed, i), so the outcome does not
// depend on how trials are spread over workers.
func (f *Forecaster) simulate(ctx context.Context, s Snapshot, seed uint64) ([]int, error) {
	n := f.cfg.Simulations
	months := make([]int, n)

	workers := max(1, min(f.cfg.Workers, n))
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				months[i] = f.runTrial(s, f.sources(seed, i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, computationTimeout(err)
	}
	return months, nil
}

// runTrial simulates one path to the goal and returns the month it was
// reached, or the month cap.
func (f *Forecaster) runTrial(s Snapshot, src Source) int {
	saved := s.CurrentAmount
	if saved >= s.TargetAmount {
		return 0
	}
	fixed := s.MonthlyInstallments + s.MonthlyTaxes
	for month := 1; month <= f.cfg.MonthCap; month++ {
		income := s.MonthlyIncome * src.Normal(1, f.cfg.IncomeStdDev)
		spending := s.MonthlySpending * src.Normal(1, f.cfg.SpendingStdDev)
		unexpected := 0.0
		if src.Uniform(0, 1) < f.cfg.ShockProbability {
			unexpected = income * src.Uniform(f.cfg.ShockMin, f.cfg.ShockMax)
		}
		saved += math.Max(0, income-spending-fixed-unexpected)
		if saved >= s.TargetAmount {
			return month
		}
	}
	return f.cfg.MonthCap
}
