package domain

import (
	"context"
	"time"
)

type GoalRepository interface {
	// Create persists a new goal and assigns its monotonic id.
	Create(ctx context.Context, goal *Goal) error

	GetByID(ctx context.Context, id int64) (*Goal, error)

	// Update persists the full current state of an existing goal.
	Update(ctx context.Context, goal *Goal) error

	// Mutate runs fn inside a serialized read-modify-write on the goal
	// row. Concurrent mutations of the same goal never interleave; if
	// fn returns an error nothing is written.
	Mutate(ctx context.Context, id int64, fn func(*Goal) error) (*Goal, error)

	// ListByGroup returns every instance of a recurring group, any
	// status, ordered by ascending iteration.
	ListByGroup(ctx context.Context, groupID string) ([]*Goal, error)

	// ListPendingByOwner returns the owner's pending goals ordered by
	// ascending deadline (open-ended last).
	ListPendingByOwner(ctx context.Context, owner Owner) ([]*Goal, error)

	// ListDueBetween returns pending goals with deadline in [from, to),
	// or [from, to] when includeEnd is set, ordered by ascending
	// deadline.
	ListDueBetween(ctx context.Context, owner Owner, from, to time.Time, includeEnd bool) ([]*Goal, error)

	// ListOverdue returns pending goals with deadline <= until.
	ListOverdue(ctx context.Context, owner Owner, until time.Time) ([]*Goal, error)

	// ListScheduledReminders returns pending goals across all owners
	// with reminder_scheduled set and reminder_time in [from, to).
	ListScheduledReminders(ctx context.Context, from, to time.Time) ([]*Goal, error)

	// ListSetBetween returns the owner's goals with set_time in
	// [from, to), any status. The snapshot job counts them.
	ListSetBetween(ctx context.Context, owner Owner, from, to time.Time) ([]*Goal, error)

	// ListArchivedBetween returns the owner's goals that reached the
	// given archived status with completion_time in [from, to).
	ListArchivedBetween(ctx context.Context, owner Owner, status Status, from, to time.Time) ([]*Goal, error)
}
