package forecast

import (
	"math"
	"runtime"
	"time"
)

// Config holds the simulation parameters. DefaultConfig returns the reference model.
type Config struct {
	Simulations int
	MonthCap    int
	Workers     int
	// Seed of zero picks a fresh random seed per forecast.
	Seed    uint64
	Timeout time.Duration

	IncomeStdDev     float64
	SpendingStdDev   float64
	ShockProbability float64
	ShockMin         float64
	ShockMax         float64

	OptimisticMultiplier  float64
	MedianMultiplier      float64
	PessimisticMultiplier float64
	TimelineHorizon       int
	TimelinePadding       int
}

// DefaultConfig returns the reference simulation parameters.
func DefaultConfig() Config {
	return Config{
		Simulations:           5000,
		MonthCap:              360,
		Workers:               runtime.GOMAXPROCS(0),
		IncomeStdDev:          0.05,
		SpendingStdDev:        0.15,
		ShockProbability:      0.10,
		ShockMin:              0.05,
		ShockMax:              0.20,
		OptimisticMultiplier:  1.15,
		MedianMultiplier:      1.00,
		PessimisticMultiplier: 0.85,
		TimelineHorizon:       60,
		TimelinePadding:       6,
	}
}

// Validate checks the parameters before any trial runs.
func (c Config) Validate() error {
	switch {
	case c.Simulations <= 0:
		return invalidConfiguration("number of simulations must be positive, got %d", c.Simulations)
	case c.MonthCap <= 0:
		return invalidConfiguration("month cap must be positive, got %d", c.MonthCap)
	case c.Workers < 0:
		return invalidConfiguration("workers must not be negative, got %d", c.Workers)
	case c.Timeout < 0:
		return invalidConfiguration("timeout must not be negative, got %s", c.Timeout)
	case !nonNegative(c.IncomeStdDev) || !nonNegative(c.SpendingStdDev):
		return invalidConfiguration("standard deviations must be non-negative")
	case math.IsNaN(c.ShockProbability) || c.ShockProbability < 0 || c.ShockProbability > 1:
		return invalidConfiguration("shock probability must be within [0, 1], got %v", c.ShockProbability)
	case !nonNegative(c.ShockMin) || c.ShockMax < c.ShockMin:
		return invalidConfiguration("shock range [%v, %v] is invalid", c.ShockMin, c.ShockMax)
	case !nonNegative(c.OptimisticMultiplier) || !nonNegative(c.MedianMultiplier) || !nonNegative(c.PessimisticMultiplier):
		return invalidConfiguration("display multipliers must be non-negative")
	case c.TimelineHorizon < 0 || c.TimelinePadding < 0:
		return invalidConfiguration("timeline horizon and padding must not be negative")
	}
	return nil
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
