package models

// User represents a user in the system
type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email,omitempty"`
	Salary   float64 `json:"salary"`
	Currency string  `json:"currency"`
	IsActive bool    `json:"is_active"`
}
