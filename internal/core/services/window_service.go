package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

// BoundaryHour is the local-time hour at which one logical day rolls
// into the next. A deadline at 03:59 still belongs to the previous day.
const BoundaryHour = 4

type Window string

const (
	WindowToday        Window = "today"
	WindowOverdue      Window = "overdue"
	WindowOverdueToday Window = "overdue_today"
	WindowEarly        Window = "early"
	WindowTomorrow     Window = "tomorrow"
	WindowRestOfDay    Window = "rest_of_day"
)

var ErrUnknownWindow = errors.New("unknown window")

// DayStart returns the boundary instant (04:00) on t's calendar day.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), BoundaryHour, 0, 0, 0, t.Location())
}

// LogicalDay returns the calendar date a deadline belongs to under the
// 04:00 boundary: anything before 04:00 counts as the previous day.
func LogicalDay(t time.Time) time.Time {
	shifted := t.Add(-BoundaryHour * time.Hour)
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, t.Location())
}

// WindowReport is a classified slice of pending goals plus the stakes
// over the matched set. An empty report is a valid answer.
type WindowReport struct {
	Window         Window         `json:"window"`
	From           *time.Time     `json:"from,omitempty"`
	To             time.Time      `json:"to"`
	Goals          []*domain.Goal `json:"goals"`
	GoalsCount     int            `json:"goals_count"`
	TotalGoalValue float64        `json:"total_goal_value"`
	TotalPenalty   float64        `json:"total_penalty"`
}

type WindowService struct {
	goals domain.GoalRepository
	clock domain.Clock
}

func NewWindowService(goals domain.GoalRepository, clock domain.Clock) *WindowService {
	return &WindowService{goals: goals, clock: clock}
}

// Query resolves a named window to a timestamp range against the
// pending set. Ranges are half-open except for the windows that end
// "up to and including now".
func (s *WindowService) Query(ctx context.Context, owner domain.Owner, window Window) (*WindowReport, error) {
	now := s.clock.Now()
	todayStart := DayStart(now)

	var (
		goals []*domain.Goal
		err   error
		from  *time.Time
		to    time.Time
	)

	switch window {
	case WindowToday:
		f, t := todayStart, todayStart.AddDate(0, 0, 1)
		goals, err = s.goals.ListDueBetween(ctx, owner, f, t, false)
		from, to = &f, t
	case WindowOverdue:
		goals, err = s.goals.ListOverdue(ctx, owner, now)
		to = now
	case WindowOverdueToday:
		goals, err = s.goals.ListDueBetween(ctx, owner, todayStart, now, true)
		from, to = &todayStart, now
	case WindowEarly:
		goals, err = s.goals.ListDueBetween(ctx, owner, todayStart, now, false)
		from, to = &todayStart, now
	case WindowTomorrow:
		f, t := todayStart.AddDate(0, 0, 1), todayStart.AddDate(0, 0, 2)
		goals, err = s.goals.ListDueBetween(ctx, owner, f, t, false)
		from, to = &f, t
	case WindowRestOfDay:
		t := todayStart.AddDate(0, 0, 1)
		goals, err = s.goals.ListDueBetween(ctx, owner, now, t, false)
		from, to = &now, t
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWindow, window)
	}

	if err != nil {
		return nil, err
	}

	return s.report(window, from, to, goals), nil
}

// QueryHoursAhead is the forward-looking [now, now+Nh) window.
func (s *WindowService) QueryHoursAhead(ctx context.Context, owner domain.Owner, hours int) (*WindowReport, error) {
	if hours < 1 {
		return nil, fmt.Errorf("%w: hours ahead must be positive", ErrUnknownWindow)
	}

	now := s.clock.Now()
	to := now.Add(time.Duration(hours) * time.Hour)

	goals, err := s.goals.ListDueBetween(ctx, owner, now, to, false)
	if err != nil {
		return nil, err
	}

	return s.report(Window(fmt.Sprintf("%d_hours_ahead", hours)), &now, to, goals), nil
}

func (s *WindowService) report(window Window, from *time.Time, to time.Time, goals []*domain.Goal) *WindowReport {
	report := &WindowReport{
		Window:     window,
		From:       from,
		To:         to,
		Goals:      goals,
		GoalsCount: len(goals),
	}
	for _, g := range goals {
		report.TotalGoalValue += g.GoalValue
		report.TotalPenalty += g.Penalty
	}
	report.TotalGoalValue = domain.Round2(report.TotalGoalValue)
	report.TotalPenalty = domain.Round2(report.TotalPenalty)
	return report
}
