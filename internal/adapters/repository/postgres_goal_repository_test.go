package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getenv("DB_USER", "goalsmith_user"),
		getenv("DB_PASSWORD", "secret"),
		getenv("DB_HOST", "localhost"),
		getenv("DB_PORT", "5432"),
		getenv("DB_NAME", "goalsmith_db"),
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("Database connection failed (skipping integration tests): %v", err)
	}

	db.MustExec("TRUNCATE TABLE stats_snapshots, reminders, goals, users CASCADE")
	return db
}

func testGoal(owner domain.Owner, deadline time.Time) *domain.Goal {
	return &domain.Goal{
		Owner:          owner,
		Status:         domain.StatusPending,
		Recurrence:     domain.RecurrenceOneTime,
		Timeframe:      domain.TimeframeByDate,
		Deadline:       &deadline,
		FinalIteration: domain.FinalIterationNA,
		Iteration:      1,
		TimeInvestment: 5,
		Difficulty:     1,
		Impact:         1,
		GoalValue:      5,
		Penalty:        7.5,
		Description:    "ship the release",
		Category:       []string{"work", "deep"},
		SetTime:        deadline.Add(-24 * time.Hour).UTC(),
	}
}

func TestPostgresGoalRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewPostgresGoalRepository(db)
	owner := domain.Owner{UserID: 10, ChatID: 20}
	deadline := time.Now().UTC().Add(6 * time.Hour).Truncate(time.Second)

	t.Run("Create assigns an id and GetByID round-trips", func(t *testing.T) {
		goal := testGoal(owner, deadline)
		require.NoError(t, repo.Create(ctx, goal))
		require.NotZero(t, goal.ID)

		stored, err := repo.GetByID(ctx, goal.ID)
		require.NoError(t, err)
		assert.Equal(t, goal.Description, stored.Description)
		assert.Equal(t, []string{"work", "deep"}, stored.Category)
		assert.Equal(t, domain.StatusPending, stored.Status)
		require.NotNil(t, stored.Deadline)
		assert.True(t, stored.Deadline.Equal(deadline))
	})

	t.Run("GetByID on a missing row is ErrGoalNotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 999999)
		assert.ErrorIs(t, err, domain.ErrGoalNotFound)
	})

	t.Run("Mutate applies the change transactionally", func(t *testing.T) {
		goal := testGoal(owner, deadline)
		require.NoError(t, repo.Create(ctx, goal))

		now := time.Now().UTC()
		mutated, err := repo.Mutate(ctx, goal.ID, func(g *domain.Goal) error {
			return g.Apply(domain.ActionDone, now)
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusArchivedDone, mutated.Status)

		stored, err := repo.GetByID(ctx, goal.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusArchivedDone, stored.Status)
		require.NotNil(t, stored.CompletionTime)
	})

	t.Run("Mutate rolls back when fn fails", func(t *testing.T) {
		goal := testGoal(owner, deadline)
		require.NoError(t, repo.Create(ctx, goal))

		_, err := repo.Mutate(ctx, goal.ID, func(g *domain.Goal) error {
			g.Status = domain.StatusArchivedDone
			return fmt.Errorf("changed my mind")
		})
		require.Error(t, err)

		stored, err := repo.GetByID(ctx, goal.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, stored.Status)
	})

	t.Run("ListByGroup returns the instances in iteration order", func(t *testing.T) {
		groupID := "7f9c0a4e-5d2b-4e8f-b1a3-6c5d4e3f2a1b"

		first := testGoal(owner, deadline)
		first.GroupID = &groupID
		first.Iteration = 1
		second := testGoal(owner, deadline.Add(24*time.Hour))
		second.GroupID = &groupID
		second.Iteration = 2

		require.NoError(t, repo.Create(ctx, second))
		require.NoError(t, repo.Create(ctx, first))

		listed, err := repo.ListByGroup(ctx, groupID)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, first.ID, listed[0].ID)
		assert.Equal(t, second.ID, listed[1].ID)
	})

	t.Run("ListDueBetween honors the half-open range", func(t *testing.T) {
		db.MustExec("TRUNCATE TABLE goals CASCADE")

		early := testGoal(owner, deadline)
		late := testGoal(owner, deadline.Add(2*time.Hour))
		require.NoError(t, repo.Create(ctx, early))
		require.NoError(t, repo.Create(ctx, late))

		listed, err := repo.ListDueBetween(ctx, owner, deadline, deadline.Add(2*time.Hour), false)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, early.ID, listed[0].ID)

		listed, err = repo.ListDueBetween(ctx, owner, deadline, deadline.Add(2*time.Hour), true)
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})
}

func TestPostgresUserRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewPostgresUserRepository(db)
	owner := domain.Owner{UserID: 30, ChatID: 40}

	t.Run("Upsert creates then refreshes the name", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, domain.NewUser(owner, "Ada")))
		require.NoError(t, repo.Upsert(ctx, domain.NewUser(owner, "")))

		u, err := repo.GetByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, "Ada", u.Name, "an empty name must not clobber the stored one")

		require.NoError(t, repo.Upsert(ctx, domain.NewUser(owner, "Grace")))
		u, err = repo.GetByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, "Grace", u.Name)
	})

	t.Run("ApplyDelta accumulates the counters", func(t *testing.T) {
		require.NoError(t, repo.ApplyDelta(ctx, owner, domain.CounterDelta{Pending: 1}))
		require.NoError(t, repo.ApplyDelta(ctx, owner, domain.CounterDelta{Pending: -1, Finished: 1, Score: 5}))

		u, err := repo.GetByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, 0, u.PendingGoals)
		assert.Equal(t, 1, u.FinishedGoals)
		assert.Equal(t, 5.0, u.Score)
	})

	t.Run("ApplyDelta for an unknown user fails", func(t *testing.T) {
		err := repo.ApplyDelta(ctx, domain.Owner{UserID: 1, ChatID: 1}, domain.CounterDelta{Pending: 1})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestPostgresSnapshotRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewPostgresSnapshotRepository(db)
	owner := domain.Owner{UserID: 50, ChatID: 60}
	day := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	snap := &domain.StatsSnapshot{
		Owner:         owner,
		Day:           day,
		GoalsSet:      3,
		GoalsFinished: 2,
		ScoreGained:   10,
		CreatedAt:     time.Now().UTC(),
	}

	t.Run("first insert writes", func(t *testing.T) {
		inserted, err := repo.Insert(ctx, snap)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NotZero(t, snap.ID)
	})

	t.Run("second insert for the same day is a no-op", func(t *testing.T) {
		dup := *snap
		dup.ID = 0
		dup.GoalsSet = 99

		inserted, err := repo.Insert(ctx, &dup)
		require.NoError(t, err)
		assert.False(t, inserted)

		rows, err := repo.ListRange(ctx, owner, day, day)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 3, rows[0].GoalsSet, "the original row must survive untouched")
	})
}
