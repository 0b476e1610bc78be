package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/goalsmith/goalsmith/internal/core/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const goalColumns = `
        id, group_id, user_id, chat_id, status, recurrence_type, timeframe,
        deadline, interval, reminder_scheduled, reminder_time, iteration, final_iteration,
        time_investment_value, difficulty_multiplier, impact_multiplier, goal_value, penalty,
        description, category, set_time, completion_time`

type PostgresGoalRepository struct {
	db *sqlx.DB
}

func NewPostgresGoalRepository(db *sqlx.DB) *PostgresGoalRepository {
	return &PostgresGoalRepository{db: db}
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanGoal(row scannable) (*domain.Goal, error) {
	var g domain.Goal
	var categoryJSON []byte

	err := row.Scan(
		&g.ID, &g.GroupID, &g.UserID, &g.ChatID, &g.Status, &g.Recurrence, &g.Timeframe,
		&g.Deadline, &g.Interval, &g.ReminderScheduled, &g.ReminderTime, &g.Iteration, &g.FinalIteration,
		&g.TimeInvestment, &g.Difficulty, &g.Impact, &g.GoalValue, &g.Penalty,
		&g.Description, &categoryJSON, &g.SetTime, &g.CompletionTime,
	)
	if err != nil {
		return nil, err
	}

	if len(categoryJSON) > 0 {
		if err := json.Unmarshal(categoryJSON, &g.Category); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category: %w", err)
		}
	}

	return &g, nil
}

func (r *PostgresGoalRepository) Create(ctx context.Context, g *domain.Goal) error {
	categoryJSON, err := json.Marshal(g.Category)
	if err != nil {
		return fmt.Errorf("failed to marshal category: %w", err)
	}

	query := `
        INSERT INTO goals (
            group_id, user_id, chat_id, status, recurrence_type, timeframe,
            deadline, interval, reminder_scheduled, reminder_time, iteration, final_iteration,
            time_investment_value, difficulty_multiplier, impact_multiplier, goal_value, penalty,
            description, category, set_time, completion_time
        ) VALUES (
            $1, $2, $3, $4, $5, $6,
            $7, $8, $9, $10, $11, $12,
            $13, $14, $15, $16, $17,
            $18, $19, $20, $21
        ) RETURNING id`

	err = r.db.QueryRowContext(ctx, query,
		g.GroupID, g.UserID, g.ChatID, g.Status, g.Recurrence, g.Timeframe,
		g.Deadline, g.Interval, g.ReminderScheduled, g.ReminderTime, g.Iteration, g.FinalIteration,
		g.TimeInvestment, g.Difficulty, g.Impact, g.GoalValue, g.Penalty,
		g.Description, categoryJSON, g.SetTime, g.CompletionTime,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}

	return nil
}

func (r *PostgresGoalRepository) GetByID(ctx context.Context, id int64) (*domain.Goal, error) {
	query := `SELECT` + goalColumns + ` FROM goals WHERE id = $1`

	g, err := scanGoal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGoalNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return g, nil
}

func (r *PostgresGoalRepository) Update(ctx context.Context, g *domain.Goal) error {
	categoryJSON, err := json.Marshal(g.Category)
	if err != nil {
		return fmt.Errorf("failed to marshal category: %w", err)
	}

	query := `
        UPDATE goals SET
            status=$1, recurrence_type=$2, timeframe=$3, deadline=$4, interval=$5,
            reminder_scheduled=$6, reminder_time=$7, iteration=$8, final_iteration=$9,
            time_investment_value=$10, difficulty_multiplier=$11, impact_multiplier=$12,
            goal_value=$13, penalty=$14, description=$15, category=$16, completion_time=$17
        WHERE id=$18`

	res, err := r.db.ExecContext(ctx, query,
		g.Status, g.Recurrence, g.Timeframe, g.Deadline, g.Interval,
		g.ReminderScheduled, g.ReminderTime, g.Iteration, g.FinalIteration,
		g.TimeInvestment, g.Difficulty, g.Impact,
		g.GoalValue, g.Penalty, g.Description, categoryJSON, g.CompletionTime,
		g.ID,
	)
	if err != nil {
		return fmt.Errorf("update query failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrGoalNotFound
	}

	return nil
}

// Mutate serializes concurrent read-modify-writes on one goal behind a
// row lock. If fn fails the transaction rolls back and nothing is
// written.
func (r *PostgresGoalRepository) Mutate(ctx context.Context, id int64, fn func(*domain.Goal) error) (*domain.Goal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT` + goalColumns + ` FROM goals WHERE id = $1 FOR UPDATE`

	g, err := scanGoal(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGoalNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	if err := fn(g); err != nil {
		return nil, err
	}

	categoryJSON, err := json.Marshal(g.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal category: %w", err)
	}

	update := `
        UPDATE goals SET
            status=$1, recurrence_type=$2, timeframe=$3, deadline=$4, interval=$5,
            reminder_scheduled=$6, reminder_time=$7, iteration=$8, final_iteration=$9,
            time_investment_value=$10, difficulty_multiplier=$11, impact_multiplier=$12,
            goal_value=$13, penalty=$14, description=$15, category=$16, completion_time=$17
        WHERE id=$18`

	if _, err := tx.ExecContext(ctx, update,
		g.Status, g.Recurrence, g.Timeframe, g.Deadline, g.Interval,
		g.ReminderScheduled, g.ReminderTime, g.Iteration, g.FinalIteration,
		g.TimeInvestment, g.Difficulty, g.Impact,
		g.GoalValue, g.Penalty, g.Description, categoryJSON, g.CompletionTime,
		g.ID,
	); err != nil {
		return nil, fmt.Errorf("update query failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	return g, nil
}

func (r *PostgresGoalRepository) listGoals(ctx context.Context, query string, args ...interface{}) ([]*domain.Goal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var goals []*domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("row scan error: %w", err)
		}
		goals = append(goals, g)
	}

	return goals, rows.Err()
}

func (r *PostgresGoalRepository) ListByGroup(ctx context.Context, groupID string) ([]*domain.Goal, error) {
	query := `SELECT` + goalColumns + `
        FROM goals
        WHERE group_id = $1
        ORDER BY iteration ASC, id ASC`

	return r.listGoals(ctx, query, groupID)
}

func (r *PostgresGoalRepository) ListPendingByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Goal, error) {
	query := `SELECT` + goalColumns + `
        FROM goals
        WHERE user_id = $1 AND chat_id = $2 AND status = $3
        ORDER BY deadline ASC NULLS LAST, id ASC`

	return r.listGoals(ctx, query, owner.UserID, owner.ChatID, domain.StatusPending)
}

func (r *PostgresGoalRepository) ListDueBetween(ctx context.Context, owner domain.Owner, from, to time.Time, includeEnd bool) ([]*domain.Goal, error) {
	endOp := "<"
	if includeEnd {
		endOp = "<="
	}

	query := `SELECT` + goalColumns + `
        FROM goals
        WHERE user_id = $1 AND chat_id = $2 AND status = $3
          AND deadline >= $4 AND deadline ` + endOp + ` $5
        ORDER BY deadline ASC, id ASC`

	return r.listGoals(ctx, query, owner.UserID, owner.ChatID, domain.StatusPending, from, to)
}

func (r *PostgresGoalRepository) ListOverdue(ctx context.Context, owner domain.Owner, until time.Time) ([]*domain.Goal, error) {
	query := `SELECT` + goalColumns + `
        FROM goals
        WHERE user_id = $1 AND chat_id = $2 AND status = $3 AND deadline <= $4
        ORDER BY deadline ASC, id ASC`

	return r.listGoals(ctx, query, owner.UserID, owner.ChatID, domain.StatusPending, until)
}

func (r *PostgresGoalRepository) ListScheduledReminders(ctx context.Context, from, to time.Time) ([]*domain.Goal, error) {
	query := `SELECT` + goalColumns + `
        FROM goals
        WHERE status = $1 AND reminder_scheduled = TRUE
          AND reminder_time >= $2 AND reminder_time < $3
        ORDER BY reminder_time ASC, id ASC`

	return r.listGoals(ctx, query, domain.StatusPending, from, to)
}

func (r *PostgresGoalRepository) ListSetBetween(ctx context.Context, owner domain.Owner, from, to time.Time) ([]*domain.Goal, error) {
	query := `SELECT` + goalColumns + `
        FROM goals
        WHERE user_id = $1 AND chat_id = $2 AND set_time >= $3 AND set_time < $4
        ORDER BY set_time ASC, id ASC`

	return r.listGoals(ctx, query, owner.UserID, owner.ChatID, from, to)
}

func (r *PostgresGoalRepository) ListArchivedBetween(ctx context.Context, owner domain.Owner, status domain.Status, from, to time.Time) ([]*domain.Goal, error) {
	query := `SELECT` + goalColumns + `
        FROM goals
        WHERE user_id = $1 AND chat_id = $2 AND status = $3
          AND completion_time >= $4 AND completion_time < $5
        ORDER BY completion_time ASC, id ASC`

	return r.listGoals(ctx, query, owner.UserID, owner.ChatID, status, from, to)
}
