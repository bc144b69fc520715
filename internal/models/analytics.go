package models

// CurrencyAmount is a sum of transactions in one currency
type CurrencyAmount struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// GoalProgress enriches a goal for list responses
type GoalProgress struct {
	*Goal
	ProgressPercentage float64 `json:"progress_percentage"`
	// EstimatedMonths is -1 when the goal cannot be reached at the current savings rate.
	EstimatedMonths float64 `json:"estimated_months"`
}
