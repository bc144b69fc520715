package forecast

import (
	"math"
	"time"
)

// Snapshot is the financial state a forecast is computed from.
type Snapshot struct {
	CurrentAmount           float64    `json:"current_amount" yaml:"current_amount"`
	TargetAmount            float64    `json:"target_amount" yaml:"target_amount"`
	MonthlyIncome           float64    `json:"monthly_income" yaml:"monthly_income"`
	MonthlySpending         float64    `json:"monthly_spending" yaml:"monthly_spending"`
	MonthlyInstallments     float64    `json:"monthly_installments" yaml:"monthly_installments"`
	MonthlyTaxes            float64    `json:"monthly_taxes" yaml:"monthly_taxes"`
	MonthlyVolatilityBuffer float64    `json:"monthly_volatility_buffer" yaml:"monthly_volatility_buffer"`
	TargetDate              *time.Time `json:"target_date,omitempty" yaml:"target_date,omitempty"`
}

// RealContribution is what is actually left for the goal each month.
func (s Snapshot) RealContribution() float64 {
	c := s.MonthlyIncome - s.MonthlySpending - s.MonthlyInstallments - s.MonthlyTaxes - s.MonthlyVolatilityBuffer
	return math.Max(0, c)
}

// Remaining returns the amount still missing to reach the target.
func (s Snapshot) Remaining() float64 {
	return math.Max(0, s.TargetAmount-s.CurrentAmount)
}

// Validate rejects snapshots that cannot be simulated. A target date is still
// valid for the whole of its own day.
func (s Snapshot) Validate(now time.Time) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"current_amount", s.CurrentAmount},
		{"target_amount", s.TargetAmount},
		{"monthly_income", s.MonthlyIncome},
		{"monthly_spending", s.MonthlySpending},
		{"monthly_installments", s.MonthlyInstallments},
		{"monthly_taxes", s.MonthlyTaxes},
		{"monthly_volatility_buffer", s.MonthlyVolatilityBuffer},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return invalidSnapshot("%s must be a finite number", f.name)
		}
		if f.value < 0 {
			return invalidSnapshot("%s must not be negative, got %.2f", f.name, f.value)
		}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if s.TargetDate != nil && s.TargetDate.Before(today) && s.Remaining() > 0 {
		return invalidSnapshot("target date %s is in the past and the goal is not reached", s.TargetDate.Format("2006-01-02"))
	}
	return nil
}

// monthsToTarget converts the target date into 30-day months, never below one.
func (s Snapshot) monthsToTarget(now time.Time) *float64 {
	if s.TargetDate == nil {
		return nil
	}
	days := math.Floor(s.TargetDate.Sub(now).Hours() / 24)
	m := math.Max(1, days/30)
	return &m
}
