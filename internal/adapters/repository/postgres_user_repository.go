package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `
        INSERT INTO users (user_id, chat_id, name, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, chat_id)
        DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name), updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		user.UserID, user.ChatID, user.Name, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: upsert user failed: %w", err)
	}

	return nil
}

func (r *PostgresUserRepository) GetByOwner(ctx context.Context, owner domain.Owner) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `
        SELECT user_id, chat_id, name, score, pending_goals, finished_goals,
               failed_goals, accrued_penalties, created_at, updated_at
        FROM users
        WHERE user_id = $1 AND chat_id = $2`

	var user domain.User
	err := r.db.GetContext(ctx, &user, query, owner.UserID, owner.ChatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("repository: get user failed: %w", err)
	}

	return &user, nil
}

func (r *PostgresUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := `
        SELECT user_id, chat_id, name, score, pending_goals, finished_goals,
               failed_goals, accrued_penalties, created_at, updated_at
        FROM users
        ORDER BY user_id ASC, chat_id ASC`

	var users []*domain.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("repository: list users failed: %w", err)
	}

	return users, nil
}

func (r *PostgresUserRepository) ApplyDelta(ctx context.Context, owner domain.Owner, delta domain.CounterDelta) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `
        UPDATE users SET
            pending_goals = pending_goals + $1,
            finished_goals = finished_goals + $2,
            failed_goals = failed_goals + $3,
            score = score + $4,
            accrued_penalties = accrued_penalties + $5,
            updated_at = NOW()
        WHERE user_id = $6 AND chat_id = $7`

	res, err := r.db.ExecContext(ctx, query,
		delta.Pending, delta.Finished, delta.Failed, delta.Score, delta.Penalties,
		owner.UserID, owner.ChatID,
	)
	if err != nil {
		return fmt.Errorf("repository: counter update failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}
