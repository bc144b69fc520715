package models

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

// GoalStatus is the lifecycle state of a goal
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "Active"
	GoalStatusAchieved  GoalStatus = "Achieved"
	GoalStatusCancelled GoalStatus = "Cancelled"
)

// GoalPriority ranks goals for the owner
type GoalPriority string

const (
	GoalPriorityLow    GoalPriority = "Low"
	GoalPriorityMedium GoalPriority = "Medium"
	GoalPriorityHigh   GoalPriority = "High"
)

// DefaultCurrency is used when a goal or user has none.
const DefaultCurrency = "UZS"

// Goal represents a savings goal
type Goal struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	Name          string       `json:"name"`
	TargetAmount  float64      `json:"target_amount"`
	CurrentAmount float64      `json:"current_amount"`
	Currency      string       `json:"currency"`
	TargetDate    *time.Time   `json:"target_date"`
	Status        GoalStatus   `json:"status"`
	Priority      GoalPriority `json:"priority"`
	Description   *string      `json:"description"`
	CreatedAt     time.Time    `json:"created_at"`
}

// GoalInput is the body of create and update requests
type GoalInput struct {
	GoalID        string       `json:"goal_id,omitempty"`
	UserID        string       `json:"user_id"`
	Name          string       `json:"name"`
	TargetAmount  float64      `json:"target_amount"`
	CurrentAmount float64      `json:"current_amount"`
	Currency      string       `json:"currency"`
	TargetDate    *time.Time   `json:"target_date"`
	Status        GoalStatus   `json:"status"`
	Priority      GoalPriority `json:"priority"`
	Description   *string      `json:"description"`
}

// UnmarshalJSON accepts target_date either as RFC 3339 or as a plain YYYY-MM-DD date.
func (in *GoalInput) UnmarshalJSON(data []byte) error {
	type alias GoalInput
	aux := struct {
		*alias
		TargetDate *string `json:"target_date"`
	}{alias: (*alias)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	in.TargetDate = nil
	if aux.TargetDate == nil || *aux.TargetDate == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, *aux.TargetDate); err == nil {
			in.TargetDate = &t
			return nil
		}
	}
	return fmt.Errorf("target_date %q is not a date", *aux.TargetDate)
}

// ApplyDefaults fills optional fields the way the API documents them.
func (in *GoalInput) ApplyDefaults() {
	if in.Currency == "" {
		in.Currency = DefaultCurrency
	}
	if in.Status == "" {
		in.Status = GoalStatusActive
	}
	if in.Priority == "" {
		in.Priority = GoalPriorityMedium
	}
}

// Validate checks a goal input. Call ApplyDefaults first.
func (in *GoalInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(in.Name) > 100 {
		return fmt.Errorf("name must be at most 100 characters")
	}
	if in.TargetAmount <= 0 {
		return fmt.Errorf("target_amount must be positive")
	}
	if in.CurrentAmount < 0 {
		return fmt.Errorf("current_amount must not be negative")
	}
	if len(in.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code")
	}
	switch in.Status {
	case GoalStatusActive, GoalStatusAchieved, GoalStatusCancelled:
	default:
		return fmt.Errorf("unknown status %q", in.Status)
	}
	switch in.Priority {
	case GoalPriorityLow, GoalPriorityMedium, GoalPriorityHigh:
	default:
		return fmt.Errorf("unknown priority %q", in.Priority)
	}
	return nil
}
