package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalsmith/goalsmith/internal/adapters/repository"
	"github.com/goalsmith/goalsmith/internal/core/domain"
)

func archiveGoal(t *testing.T, goals domain.GoalRepository, owner domain.Owner, status domain.Status, value, penalty float64, at time.Time) {
	t.Helper()

	goal := &domain.Goal{
		Owner:          owner,
		Status:         status,
		Recurrence:     domain.RecurrenceOneTime,
		Timeframe:      domain.TimeframeOpenEnded,
		FinalIteration: domain.FinalIterationNA,
		Iteration:      1,
		TimeInvestment: 5,
		Difficulty:     1,
		Impact:         1,
		GoalValue:      value,
		Penalty:        penalty,
		Description:    "meditate",
		Category:       []string{"mind"},
		SetTime:        at,
		CompletionTime: &at,
	}
	require.NoError(t, goals.Create(context.Background(), goal))
}

func TestStatsService_RunDailySnapshots(t *testing.T) {
	ctx := context.Background()
	owner := domain.Owner{UserID: 1, ChatID: 2}

	// now is 10:00 on March 11; the snapshot covers the logical day
	// March 10, i.e. [March 10 04:00, March 11 04:00)
	clock := fixedClock{now: time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)}

	goals := repository.NewInMemoryGoalRepository()
	users := repository.NewInMemoryUserRepository()
	snaps := repository.NewInMemorySnapshotRepository()
	require.NoError(t, users.Upsert(ctx, domain.NewUser(owner, "Ada")))

	inDay := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)
	lateNight := time.Date(2026, time.March, 11, 2, 0, 0, 0, time.UTC)
	beforeBoundary := time.Date(2026, time.March, 10, 3, 30, 0, 0, time.UTC)

	archiveGoal(t, goals, owner, domain.StatusArchivedDone, 5, 7.5, inDay)
	archiveGoal(t, goals, owner, domain.StatusArchivedDone, 3, 4.5, lateNight)
	archiveGoal(t, goals, owner, domain.StatusArchivedFailed, 2, 3, inDay)
	// belongs to March 9, must not be counted
	archiveGoal(t, goals, owner, domain.StatusArchivedDone, 100, 150, beforeBoundary)

	svc := NewStatsService(goals, users, snaps, clock)

	t.Run("first run writes one row per user", func(t *testing.T) {
		written, err := svc.RunDailySnapshots(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, written)

		day := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
		rows, err := snaps.ListRange(ctx, owner, day, day)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		snap := rows[0]
		assert.Equal(t, 3, snap.GoalsSet)
		assert.Equal(t, 2, snap.GoalsFinished)
		assert.Equal(t, 1, snap.GoalsFailed)
		assert.Equal(t, 8.0, snap.ScoreGained)
		assert.Equal(t, 3.0, snap.PenaltiesIncurred)
		require.NotNil(t, snap.CompletionRate)
		assert.Equal(t, 66.67, *snap.CompletionRate)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		written, err := svc.RunDailySnapshots(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, written)
	})
}

func TestStatsService_Aggregate(t *testing.T) {
	ctx := context.Background()
	owner := domain.Owner{UserID: 1, ChatID: 2}
	clock := fixedClock{now: time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)}

	snaps := repository.NewInMemorySnapshotRepository()
	svc := NewStatsService(repository.NewInMemoryGoalRepository(), repository.NewInMemoryUserRepository(), snaps, clock)

	day := func(offset int) time.Time {
		return time.Date(2026, time.March, 11+offset, 0, 0, 0, 0, time.UTC)
	}
	insert := func(d time.Time, set, finished, failed int, score, penalties float64) {
		_, err := snaps.Insert(ctx, &domain.StatsSnapshot{
			Owner: owner, Day: d,
			GoalsSet: set, GoalsFinished: finished, GoalsFailed: failed,
			ScoreGained: score, PenaltiesIncurred: penalties,
		})
		require.NoError(t, err)
	}

	// 4 finished / 1 failed inside the week, an old row far outside it
	insert(day(-1), 3, 3, 0, 12, 0)
	insert(day(-2), 2, 1, 1, 4, 3)
	insert(day(-40), 10, 0, 10, 0, 99)

	t.Run("week sums only the trailing seven days", func(t *testing.T) {
		stats, err := svc.Aggregate(ctx, owner, PeriodWeek)
		require.NoError(t, err)
		assert.Equal(t, 5, stats.GoalsSet)
		assert.Equal(t, 4, stats.GoalsFinished)
		assert.Equal(t, 1, stats.GoalsFailed)
		assert.Equal(t, 16.0, stats.ScoreGained)
		assert.Equal(t, 3.0, stats.PenaltiesIncurred)
		require.NotNil(t, stats.CompletionRate)
		assert.Equal(t, 80.0, *stats.CompletionRate)
	})

	t.Run("quarter picks up the old row too", func(t *testing.T) {
		stats, err := svc.Aggregate(ctx, owner, PeriodQuarter)
		require.NoError(t, err)
		assert.Equal(t, 15, stats.GoalsSet)
		assert.Equal(t, 11, stats.GoalsFailed)
	})

	t.Run("no attempts means no completion rate", func(t *testing.T) {
		stats, err := svc.Aggregate(ctx, domain.Owner{UserID: 7, ChatID: 7}, PeriodWeek)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.GoalsSet)
		assert.Nil(t, stats.CompletionRate)
	})

	t.Run("unknown period is rejected", func(t *testing.T) {
		_, err := svc.Aggregate(ctx, owner, Period("decade"))
		assert.ErrorIs(t, err, ErrUnknownPeriod)
	})
}

func TestStatsService_Trend(t *testing.T) {
	ctx := context.Background()
	owner := domain.Owner{UserID: 1, ChatID: 2}
	clock := fixedClock{now: time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)}

	snaps := repository.NewInMemorySnapshotRepository()
	svc := NewStatsService(repository.NewInMemoryGoalRepository(), repository.NewInMemoryUserRepository(), snaps, clock)

	// strong recent week, weak older month: week baseline per-day counts
	// beat the month's, and the month carries more failures per day
	_, err := snaps.Insert(ctx, &domain.StatsSnapshot{
		Owner: owner, Day: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		GoalsSet: 7, GoalsFinished: 7, ScoreGained: 35,
	})
	require.NoError(t, err)
	_, err = snaps.Insert(ctx, &domain.StatsSnapshot{
		Owner: owner, Day: time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC),
		GoalsSet: 2, GoalsFinished: 1, GoalsFailed: 10, PenaltiesIncurred: 40,
	})
	require.NoError(t, err)

	report, err := svc.Trend(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, report.Baseline)
	require.Len(t, report.Periods, 3)

	month := report.Periods[0]
	require.Equal(t, PeriodMonth, month.Period)
	assert.Equal(t, TrendBelow, month.Flags["goals_finished"])
	// more failures and penalties per day than the baseline reads as
	// below, not above: the flag expresses performance
	assert.Equal(t, TrendBelow, month.Flags["goals_failed"])
	assert.Equal(t, TrendBelow, month.Flags["penalties_incurred"])
}
