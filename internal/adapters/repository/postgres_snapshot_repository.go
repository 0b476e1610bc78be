package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

const uniqueViolation = "23505"

type PostgresSnapshotRepository struct {
	db *sqlx.DB
}

func NewPostgresSnapshotRepository(db *sqlx.DB) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{db: db}
}

// Insert relies on the unique (user_id, chat_id, day) index: the ledger
// is append-only, so a second run for the same day is a no-op.
func (r *PostgresSnapshotRepository) Insert(ctx context.Context, snap *domain.StatsSnapshot) (bool, error) {
	query := `
        INSERT INTO stats_snapshots (
            user_id, chat_id, day,
            goals_set, goals_finished, goals_failed, score_gained, penalties_incurred, completion_rate,
            score, pending_goals, finished_goals, failed_goals, accrued_penalties, created_at
        ) VALUES (
            $1, $2, $3,
            $4, $5, $6, $7, $8, $9,
            $10, $11, $12, $13, $14, $15
        )
        ON CONFLICT (user_id, chat_id, day) DO NOTHING
        RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		snap.UserID, snap.ChatID, snap.Day,
		snap.GoalsSet, snap.GoalsFinished, snap.GoalsFailed, snap.ScoreGained, snap.PenaltiesIncurred, snap.CompletionRate,
		snap.Score, snap.PendingGoals, snap.FinishedGoals, snap.FailedGoals, snap.AccruedPenalties, snap.CreatedAt,
	).Scan(&snap.ID)

	if err != nil {
		// DO NOTHING yields no row; a concurrent plain insert can
		// still surface the constraint directly
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("repository: insert snapshot failed: %w", err)
	}

	return true, nil
}

func (r *PostgresSnapshotRepository) ListRange(ctx context.Context, owner domain.Owner, from, to time.Time) ([]*domain.StatsSnapshot, error) {
	query := `
        SELECT id, user_id, chat_id, day,
               goals_set, goals_finished, goals_failed, score_gained, penalties_incurred, completion_rate,
               score, pending_goals, finished_goals, failed_goals, accrued_penalties, created_at
        FROM stats_snapshots
        WHERE user_id = $1 AND chat_id = $2 AND day >= $3 AND day <= $4
        ORDER BY day ASC`

	var snaps []*domain.StatsSnapshot
	if err := r.db.SelectContext(ctx, &snaps, query, owner.UserID, owner.ChatID, from, to); err != nil {
		return nil, fmt.Errorf("repository: list snapshots failed: %w", err)
	}

	return snaps, nil
}
