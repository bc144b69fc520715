package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoalInput_ApplyDefaults(t *testing.T) {
	in := GoalInput{Name: "Car", TargetAmount: 100}
	in.ApplyDefaults()

	assert.Equal(t, DefaultCurrency, in.Currency)
	assert.Equal(t, GoalStatusActive, in.Status)
	assert.Equal(t, GoalPriorityMedium, in.Priority)
	assert.NoError(t, in.Validate())
}

func TestGoalInput_ApplyDefaultsKeepsValues(t *testing.T) {
	in := GoalInput{Currency: "USD", Status: GoalStatusAchieved, Priority: GoalPriorityHigh}
	in.ApplyDefaults()

	assert.Equal(t, "USD", in.Currency)
	assert.Equal(t, GoalStatusAchieved, in.Status)
	assert.Equal(t, GoalPriorityHigh, in.Priority)
}

func TestGoalInput_Validate(t *testing.T) {
	valid := func() GoalInput {
		in := GoalInput{Name: "Trip", TargetAmount: 3_000_000}
		in.ApplyDefaults()
		return in
	}

	tests := []struct {
		name   string
		mutate func(*GoalInput)
		errMsg string
	}{
		{"missing name", func(in *GoalInput) { in.Name = "" }, "name is required"},
		{"long name", func(in *GoalInput) { in.Name = strings.Repeat("x", 101) }, "at most 100"},
		{"zero target", func(in *GoalInput) { in.TargetAmount = 0 }, "target_amount"},
		{"negative current", func(in *GoalInput) { in.CurrentAmount = -1 }, "current_amount"},
		{"bad currency", func(in *GoalInput) { in.Currency = "EURO" }, "currency"},
		{"unknown status", func(in *GoalInput) { in.Status = "Paused" }, "status"},
		{"unknown priority", func(in *GoalInput) { in.Priority = "Urgent" }, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			err := in.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestGoalInput_ValidateCountsCharacters(t *testing.T) {
	in := GoalInput{Name: strings.Repeat("Ж", 100), TargetAmount: 1}
	in.ApplyDefaults()
	assert.NoError(t, in.Validate())

	in.Name = strings.Repeat("o‘", 50)
	assert.NoError(t, in.Validate())

	in.Name = strings.Repeat("Ж", 101)
	assert.Error(t, in.Validate())
}

func TestGoalInput_UnmarshalJSON(t *testing.T) {
	var in GoalInput
	err := json.Unmarshal([]byte(`{"goal_id":"g-1","name":"Car","target_amount":100,"target_date":"2026-12-31"}`), &in)
	if assert.NoError(t, err) {
		assert.Equal(t, "g-1", in.GoalID)
		assert.Equal(t, "Car", in.Name)
		assert.Equal(t, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), *in.TargetDate)
	}

	err = json.Unmarshal([]byte(`{"name":"Car","target_date":"2026-12-31T10:00:00+05:00"}`), &in)
	if assert.NoError(t, err) {
		assert.Equal(t, 5*time.Hour, time.Date(2026, 12, 31, 10, 0, 0, 0, time.UTC).Sub(*in.TargetDate))
	}

	err = json.Unmarshal([]byte(`{"name":"Car","target_date":null}`), &in)
	if assert.NoError(t, err) {
		assert.Nil(t, in.TargetDate)
	}

	assert.Error(t, json.Unmarshal([]byte(`{"target_date":"next year"}`), &in))
}
