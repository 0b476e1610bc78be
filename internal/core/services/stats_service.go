package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

var ErrUnknownPeriod = errors.New("unknown period")

func (p Period) Days() int {
	switch p {
	case PeriodWeek:
		return 7
	case PeriodMonth:
		return 30
	case PeriodQuarter:
		return 90
	case PeriodYear:
		return 365
	}
	return 0
}

// PeriodStats is the sum of the snapshot ledger over the trailing N
// days. The completion rate is blended from the summed counts, not
// averaged over days, so low-volume days carry no extra weight.
type PeriodStats struct {
	Period            Period   `json:"period"`
	Days              int      `json:"days"`
	GoalsSet          int      `json:"goals_set"`
	GoalsFinished     int      `json:"goals_finished"`
	GoalsFailed       int      `json:"goals_failed"`
	ScoreGained       float64  `json:"score_gained"`
	PenaltiesIncurred float64  `json:"penalties_incurred"`
	CompletionRate    *float64 `json:"completion_rate,omitempty"`
}

type TrendFlag string

const (
	TrendAbove TrendFlag = "above"
	TrendAt    TrendFlag = "at"
	TrendBelow TrendFlag = "below"
)

type PeriodTrend struct {
	Period Period               `json:"period"`
	Stats  *PeriodStats         `json:"stats"`
	Flags  map[string]TrendFlag `json:"flags"`
}

type TrendReport struct {
	Baseline *PeriodStats  `json:"baseline"`
	Periods  []PeriodTrend `json:"periods"`
}

type StatsService struct {
	goals domain.GoalRepository
	users domain.UserRepository
	snaps domain.SnapshotRepository
	clock domain.Clock
}

func NewStatsService(goals domain.GoalRepository, users domain.UserRepository, snaps domain.SnapshotRepository, clock domain.Clock) *StatsService {
	return &StatsService{goals: goals, users: users, snaps: snaps, clock: clock}
}

// RunDailySnapshots writes one snapshot per user for the logical day
// that ended at the most recent 04:00 boundary. Re-running is safe: an
// existing (owner, day) row turns the insert into a no-op. One failing
// user does not abort the rest of the batch. Returns how many rows were
// actually written.
func (s *StatsService) RunDailySnapshots(ctx context.Context) (int, error) {
	now := s.clock.Now()
	day := LogicalDay(now).AddDate(0, 0, -1)
	from := time.Date(day.Year(), day.Month(), day.Day(), BoundaryHour, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	users, err := s.users.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("stats: listing users failed: %w", err)
	}

	written := 0
	for _, user := range users {
		snap, err := s.buildSnapshot(ctx, user, day, from, to)
		if err != nil {
			log.Printf("stats: snapshot for %s on %s failed: %v", user.Owner, day.Format("2006-01-02"), err)
			continue
		}

		inserted, err := s.snaps.Insert(ctx, snap)
		if err != nil {
			log.Printf("stats: snapshot insert for %s failed: %v", user.Owner, err)
			continue
		}
		if inserted {
			written++
		}
	}

	return written, nil
}

func (s *StatsService) buildSnapshot(ctx context.Context, user *domain.User, day, from, to time.Time) (*domain.StatsSnapshot, error) {
	set, err := s.goals.ListSetBetween(ctx, user.Owner, from, to)
	if err != nil {
		return nil, err
	}
	done, err := s.goals.ListArchivedBetween(ctx, user.Owner, domain.StatusArchivedDone, from, to)
	if err != nil {
		return nil, err
	}
	failed, err := s.goals.ListArchivedBetween(ctx, user.Owner, domain.StatusArchivedFailed, from, to)
	if err != nil {
		return nil, err
	}

	var scoreGained, penalties float64
	for _, g := range done {
		scoreGained += g.GoalValue
	}
	for _, g := range failed {
		penalties += g.Penalty
	}

	snap := &domain.StatsSnapshot{
		Owner:             user.Owner,
		Day:               day,
		GoalsSet:          len(set),
		GoalsFinished:     len(done),
		GoalsFailed:       len(failed),
		ScoreGained:       domain.Round2(scoreGained),
		PenaltiesIncurred: domain.Round2(penalties),
		CompletionRate:    completionRate(len(done), len(failed)),
		Score:             user.Score,
		PendingGoals:      user.PendingGoals,
		FinishedGoals:     user.FinishedGoals,
		FailedGoals:       user.FailedGoals,
		AccruedPenalties:  user.AccruedPenalties,
		CreatedAt:         s.clock.Now().UTC(),
	}
	return snap, nil
}

func completionRate(finished, failed int) *float64 {
	attempts := finished + failed
	if attempts == 0 {
		return nil
	}
	rate := domain.Round2(float64(finished) / float64(attempts) * 100)
	return &rate
}

// Aggregate sums the snapshot columns over the trailing period.
func (s *StatsService) Aggregate(ctx context.Context, owner domain.Owner, period Period) (*PeriodStats, error) {
	days := period.Days()
	if days == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}

	today := LogicalDay(s.clock.Now())
	from := today.AddDate(0, 0, -days)

	snaps, err := s.snaps.ListRange(ctx, owner, from, today)
	if err != nil {
		return nil, err
	}

	stats := &PeriodStats{Period: period, Days: days}
	for _, snap := range snaps {
		stats.GoalsSet += snap.GoalsSet
		stats.GoalsFinished += snap.GoalsFinished
		stats.GoalsFailed += snap.GoalsFailed
		stats.ScoreGained += snap.ScoreGained
		stats.PenaltiesIncurred += snap.PenaltiesIncurred
	}
	stats.ScoreGained = domain.Round2(stats.ScoreGained)
	stats.PenaltiesIncurred = domain.Round2(stats.PenaltiesIncurred)
	stats.CompletionRate = completionRate(stats.GoalsFinished, stats.GoalsFailed)

	return stats, nil
}

// Trend flags each longer period against the weekly baseline. Counts
// and points are normalized per day before comparing; the flag reads as
// performance, so for penalty-type metrics a lower value is "above".
func (s *StatsService) Trend(ctx context.Context, owner domain.Owner) (*TrendReport, error) {
	baseline, err := s.Aggregate(ctx, owner, PeriodWeek)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{Baseline: baseline}
	for _, period := range []Period{PeriodMonth, PeriodQuarter, PeriodYear} {
		stats, err := s.Aggregate(ctx, owner, period)
		if err != nil {
			return nil, err
		}

		flags := map[string]TrendFlag{
			"goals_set":          trendFlag(perDay(float64(stats.GoalsSet), stats.Days), perDay(float64(baseline.GoalsSet), baseline.Days), false),
			"goals_finished":     trendFlag(perDay(float64(stats.GoalsFinished), stats.Days), perDay(float64(baseline.GoalsFinished), baseline.Days), false),
			"goals_failed":       trendFlag(perDay(float64(stats.GoalsFailed), stats.Days), perDay(float64(baseline.GoalsFailed), baseline.Days), true),
			"score_gained":       trendFlag(perDay(stats.ScoreGained, stats.Days), perDay(baseline.ScoreGained, baseline.Days), false),
			"penalties_incurred": trendFlag(perDay(stats.PenaltiesIncurred, stats.Days), perDay(baseline.PenaltiesIncurred, baseline.Days), true),
		}

		report.Periods = append(report.Periods, PeriodTrend{
			Period: period,
			Stats:  stats,
			Flags:  flags,
		})
	}

	return report, nil
}

func perDay(total float64, days int) float64 {
	if days == 0 {
		return 0
	}
	return total / float64(days)
}

func trendFlag(value, baseline float64, lowerIsBetter bool) TrendFlag {
	const epsilon = 1e-9

	if math.Abs(value-baseline) < epsilon {
		return TrendAt
	}

	better := value > baseline
	if lowerIsBetter {
		better = value < baseline
	}
	if better {
		return TrendAbove
	}
	return TrendBelow
}
