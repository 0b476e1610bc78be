package domain

import (
	"context"
	"time"
)

// StatsSnapshot is one immutable row per (user, chat, day): the day's
// outcomes plus a copy of the running totals at that moment. The ledger
// is append-only; period aggregation sums over it.
type StatsSnapshot struct {
	ID int64 `json:"id" db:"id"`
	Owner
	Day time.Time `json:"day" db:"day"`

	GoalsSet          int      `json:"goals_set" db:"goals_set"`
	GoalsFinished     int      `json:"goals_finished" db:"goals_finished"`
	GoalsFailed       int      `json:"goals_failed" db:"goals_failed"`
	ScoreGained       float64  `json:"score_gained" db:"score_gained"`
	PenaltiesIncurred float64  `json:"penalties_incurred" db:"penalties_incurred"`
	CompletionRate    *float64 `json:"completion_rate,omitempty" db:"completion_rate"`

	Score            float64 `json:"score" db:"score"`
	PendingGoals     int     `json:"pending_goals" db:"pending_goals"`
	FinishedGoals    int     `json:"finished_goals" db:"finished_goals"`
	FailedGoals      int     `json:"failed_goals" db:"failed_goals"`
	AccruedPenalties float64 `json:"accrued_penalties" db:"accrued_penalties"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SnapshotRepository interface {
	// Insert writes one snapshot row. A row for the same (owner, day)
	// already existing is a no-op, not an error; the bool reports
	// whether a row was actually written.
	Insert(ctx context.Context, snap *StatsSnapshot) (bool, error)

	// ListRange returns snapshots with day in [from, to], oldest first.
	ListRange(ctx context.Context, owner Owner, from, to time.Time) ([]*StatsSnapshot, error)
}
