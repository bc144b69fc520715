package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/goal-service/internal/models"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnknownUser is returned when a goal references a missing user
	ErrUnknownUser = errors.New("user does not exist")
)

const pqForeignKeyViolation = "23503"

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FindUserByUsername retrieves an active user by username
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, COALESCE(email, ''), salary, currency, is_active
		FROM users
		WHERE username = $1 AND is_deleted = FALSE`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

// FindUserByID retrieves an active user by id
func (r *Repository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, username, COALESCE(email, ''), salary, currency, is_active
		FROM users
		WHERE id = $1 AND is_deleted = FALSE`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Salary, &user.Currency, &user.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

const goalColumns = `id, user_id, name, target_amount, current_amount, currency, target_date, status, priority, description, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (*models.Goal, error) {
	var (
		g           models.Goal
		targetDate  sql.NullTime
		description sql.NullString
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.Currency,
		&targetDate, &g.Status, &g.Priority, &description, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	if targetDate.Valid {
		t := targetDate.Time
		g.TargetDate = &t
	}
	if description.Valid {
		d := description.String
		g.Description = &d
	}
	return &g, nil
}

// CreateGoal creates a new goal in the database
func (r *Repository) CreateGoal(ctx context.Context, goal *models.Goal) error {
	query := `
		INSERT INTO goals (id, user_id, name, target_amount, current_amount, currency, target_date, status, priority, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, goal.ID, goal.UserID, goal.Name, goal.TargetAmount, goal.CurrentAmount,
		goal.Currency, goal.TargetDate, goal.Status, goal.Priority, goal.Description).
		Scan(&goal.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return ErrUnknownUser
		}
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// FindGoalByID retrieves a goal by id
func (r *Repository) FindGoalByID(ctx context.Context, id string) (*models.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = $1`
	goal, err := scanGoal(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find goal: %w", err)
	}
	return goal, nil
}

// ListGoalsByUser retrieves all goals of a user, newest first
func (r *Repository) ListGoalsByUser(ctx context.Context, userID string) ([]*models.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryGoals(ctx, query, userID)
}

// ListActiveGoalsWithDeadline retrieves active goals that have a target date
func (r *Repository) ListActiveGoalsWithDeadline(ctx context.Context) ([]*models.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE status = $1 AND target_date IS NOT NULL ORDER BY target_date`
	return r.queryGoals(ctx, query, models.GoalStatusActive)
}

func (r *Repository) queryGoals(ctx context.Context, query string, args ...any) ([]*models.Goal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*models.Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	return goals, nil
}

// UpdateGoal overwrites the editable fields of a goal
func (r *Repository) UpdateGoal(ctx context.Context, goal *models.Goal) error {
	query := `
		UPDATE goals
		SET name = $2, target_amount = $3, current_amount = $4, currency = $5,
		    target_date = $6, status = $7, priority = $8, description = $9
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, goal.ID, goal.Name, goal.TargetAmount, goal.CurrentAmount,
		goal.Currency, goal.TargetDate, goal.Status, goal.Priority, goal.Description)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return expectOneRow(res, goal.ID)
}

// UpdateGoalStatus changes only the status of a goal
func (r *Repository) UpdateGoalStatus(ctx context.Context, id string, status models.GoalStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE goals SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update goal status: %w", err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("goal %s: %w", id, ErrNotFound)
	}
	return nil
}

// SpendingSince sums a user's outgoing transactions per currency since the given time
func (r *Repository) SpendingSince(ctx context.Context, userID string, since time.Time) ([]models.CurrencyAmount, error) {
	query := `
		SELECT currency, COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND transaction_direction = $2 AND date >= $3
		GROUP BY currency`
	rows, err := r.db.QueryContext(ctx, query, userID, models.DirectionOutgoing, since)
	if err != nil {
		return nil, fmt.Errorf("failed to sum spending: %w", err)
	}
	defer rows.Close()

	var out []models.CurrencyAmount
	for rows.Next() {
		var ca models.CurrencyAmount
		if err := rows.Scan(&ca.Currency, &ca.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan spending: %w", err)
		}
		out = append(out, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to sum spending: %w", err)
	}
	return out, nil
}
