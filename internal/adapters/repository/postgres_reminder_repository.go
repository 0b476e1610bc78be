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

type PostgresReminderRepository struct {
	db *sqlx.DB
}

func NewPostgresReminderRepository(db *sqlx.DB) *PostgresReminderRepository {
	return &PostgresReminderRepository{db: db}
}

func (r *PostgresReminderRepository) Create(ctx context.Context, reminder *domain.Reminder) error {
	query := `
        INSERT INTO reminders (id, user_id, chat_id, reminder_text, time, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		reminder.ID, reminder.UserID, reminder.ChatID, reminder.Text, reminder.Time, reminder.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: insert reminder failed: %w", err)
	}

	return nil
}

func (r *PostgresReminderRepository) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	query := `
        SELECT id, user_id, chat_id, reminder_text, time, created_at
        FROM reminders
        WHERE id = $1`

	var reminder domain.Reminder
	err := r.db.GetContext(ctx, &reminder, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReminderNotFound
		}
		return nil, fmt.Errorf("repository: get reminder failed: %w", err)
	}

	return &reminder, nil
}

func (r *PostgresReminderRepository) ListByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Reminder, error) {
	query := `
        SELECT id, user_id, chat_id, reminder_text, time, created_at
        FROM reminders
        WHERE user_id = $1 AND chat_id = $2
        ORDER BY time ASC`

	var reminders []*domain.Reminder
	if err := r.db.SelectContext(ctx, &reminders, query, owner.UserID, owner.ChatID); err != nil {
		return nil, fmt.Errorf("repository: list reminders failed: %w", err)
	}

	return reminders, nil
}

func (r *PostgresReminderRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*domain.Reminder, error) {
	query := `
        SELECT id, user_id, chat_id, reminder_text, time, created_at
        FROM reminders
        WHERE time >= $1 AND time < $2
        ORDER BY time ASC`

	var reminders []*domain.Reminder
	if err := r.db.SelectContext(ctx, &reminders, query, from, to); err != nil {
		return nil, fmt.Errorf("repository: list reminders in range failed: %w", err)
	}

	return reminders, nil
}

func (r *PostgresReminderRepository) Delete(ctx context.Context, id string, owner domain.Owner) error {
	query := `DELETE FROM reminders WHERE id = $1 AND user_id = $2 AND chat_id = $3`

	res, err := r.db.ExecContext(ctx, query, id, owner.UserID, owner.ChatID)
	if err != nil {
		return fmt.Errorf("repository: delete reminder failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrReminderNotFound
	}

	return nil
}
