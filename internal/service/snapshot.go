package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/goal-service/internal/forecast"
	"github.com/Dan9191/goal-service/internal/integrations/cbr"
	"github.com/Dan9191/goal-service/internal/models"
)

// finances is the monthly cash flow of one user, in the currencies it was recorded in
type finances struct {
	user     *models.User
	spending []models.CurrencyAmount
	rates    *cbr.Rates
}

// loadFinances reads the user's outgoing transactions for the current calendar month
func (s *Service) loadFinances(ctx context.Context, user *models.User) (*finances, error) {
	spending, err := s.repo.SpendingSince(ctx, user.ID, monthStart(s.now()))
	if err != nil {
		return nil, err
	}
	return &finances{user: user, spending: spending}, nil
}

// snapshotFor expresses the user's finances in the goal currency and applies
// the configured installment, tax and buffer deductions.
func (s *Service) snapshotFor(ctx context.Context, fin *finances, goal *models.Goal) (forecast.Snapshot, error) {
	currency := goal.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}

	income, err := s.convert(ctx, fin, fin.user.Salary, fin.user.Currency, currency)
	if err != nil {
		return forecast.Snapshot{}, err
	}
	var spending float64
	for _, ca := range fin.spending {
		v, err := s.convert(ctx, fin, ca.Amount, ca.Currency, currency)
		if err != nil {
			return forecast.Snapshot{}, err
		}
		spending += v
	}

	return forecast.Snapshot{
		CurrentAmount:           goal.CurrentAmount,
		TargetAmount:            goal.TargetAmount,
		MonthlyIncome:           income,
		MonthlySpending:         spending,
		MonthlyInstallments:     income * s.config.InstallmentsRate,
		MonthlyTaxes:            income * s.config.TaxRate,
		MonthlyVolatilityBuffer: income * s.config.VolatilityBufferRate,
		TargetDate:              goal.TargetDate,
	}, nil
}

// convert loads exchange rates on first use within one set of finances
func (s *Service) convert(ctx context.Context, fin *finances, amount float64, from, to string) (float64, error) {
	if from == "" {
		from = models.DefaultCurrency
	}
	if amount == 0 || strings.EqualFold(from, to) {
		return amount, nil
	}
	if fin.rates == nil {
		if s.rates == nil {
			return 0, fmt.Errorf("cannot convert %s to %s: no exchange rate source", from, to)
		}
		rates, err := s.rates.GetRates(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to load exchange rates: %w", err)
		}
		fin.rates = rates
	}
	return fin.rates.Convert(amount, from, to)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
