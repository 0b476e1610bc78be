package domain

import (
	"context"
	"strings"
	"time"
)

// User carries the denormalized running counters. They are caches over
// the goal archive and are only ever touched by the lifecycle service's
// transition-completion hook.
type User struct {
	Owner
	Name string `json:"name" db:"name"`

	Score            float64 `json:"score" db:"score"`
	PendingGoals     int     `json:"pending_goals" db:"pending_goals"`
	FinishedGoals    int     `json:"finished_goals" db:"finished_goals"`
	FailedGoals      int     `json:"failed_goals" db:"failed_goals"`
	AccruedPenalties float64 `json:"accrued_penalties" db:"accrued_penalties"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func NewUser(owner Owner, name string) *User {
	now := time.Now().UTC()
	return &User{
		Owner:     owner,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CounterDelta is one atomic set of counter changes produced by a
// single lifecycle transition.
type CounterDelta struct {
	Pending   int
	Finished  int
	Failed    int
	Score     float64
	Penalties float64
}

func (d CounterDelta) Zero() bool {
	return d == CounterDelta{}
}

type UserRepository interface {
	// Upsert creates the user on first contact or refreshes the name.
	Upsert(ctx context.Context, user *User) error

	GetByOwner(ctx context.Context, owner Owner) (*User, error)

	// List returns every known user; the snapshot job iterates it.
	List(ctx context.Context) ([]*User, error)

	// ApplyDelta atomically applies one transition's counter changes.
	ApplyDelta(ctx context.Context, owner Owner, delta CounterDelta) error
}
