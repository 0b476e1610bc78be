package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/goalsmith/goalsmith/internal/core/domain"
	"github.com/goalsmith/goalsmith/internal/core/services"
)

const (
	goalReminderPrefix    = "goalreminder_"
	regularReminderPrefix = "regularreminder_"

	dailyRefreshKey   = "daily_refresh"
	dailySnapshotKey  = "daily_snapshot"
	overdueWarningKey = "overdue_warning"

	// minutes past the 04:00 boundary for the housekeeping jobs
	refreshOffset  = 1 * time.Minute
	snapshotOffset = 5 * time.Minute

	overdueWarningHour = 11
)

const reminderHorizon = 24 * time.Hour

type GoalSource interface {
	GetByID(ctx context.Context, id int64) (*domain.Goal, error)
	ListScheduledReminders(ctx context.Context, from, to time.Time) ([]*domain.Goal, error)
}

type ReminderSource interface {
	GetByID(ctx context.Context, id string) (*domain.Reminder, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*domain.Reminder, error)
}

type UserSource interface {
	GetByOwner(ctx context.Context, owner domain.Owner) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
}

// Planner feeds the scheduler: it registers one delivery job per
// upcoming reminder (goal-bound and standalone) and keeps the daily
// housekeeping jobs alive. Refresh runs at process start, so a crash
// between two boundary refreshes loses nothing, and the stable job
// keys make re-registration replace instead of duplicate.
type Planner struct {
	sched     *Scheduler
	goals     GoalSource
	reminders ReminderSource
	users     UserSource
	stats     *services.StatsService
	windows   *services.WindowService
	messenger services.Messenger
	clock     domain.Clock
}

func NewPlanner(
	sched *Scheduler,
	goals GoalSource,
	reminders ReminderSource,
	users UserSource,
	stats *services.StatsService,
	windows *services.WindowService,
	messenger services.Messenger,
	clock domain.Clock,
) *Planner {
	return &Planner{
		sched:     sched,
		goals:     goals,
		reminders: reminders,
		users:     users,
		stats:     stats,
		windows:   windows,
		messenger: messenger,
		clock:     clock,
	}
}

// Refresh is the cleanup-and-reschedule cycle: drop every registered
// delivery job, then register one per reminder firing in the next 24
// hours.
func (p *Planner) Refresh(ctx context.Context) error {
	dropped := p.sched.CancelPrefix(goalReminderPrefix)
	dropped += p.sched.CancelPrefix(regularReminderPrefix)

	now := p.clock.Now()
	horizon := now.Add(reminderHorizon)

	goals, err := p.goals.ListScheduledReminders(ctx, now, horizon)
	if err != nil {
		return fmt.Errorf("planner: listing goal reminders failed: %w", err)
	}

	registered := 0
	for _, g := range goals {
		if g.ReminderTime == nil {
			continue
		}
		goalID := g.ID
		key := fmt.Sprintf("%s%d", goalReminderPrefix, goalID)
		if p.sched.Schedule(key, *g.ReminderTime, func(ctx context.Context) {
			p.deliverGoalReminder(ctx, goalID)
		}) {
			registered++
		}
	}

	rems, err := p.reminders.ListBetween(ctx, now, horizon)
	if err != nil {
		return fmt.Errorf("planner: listing reminders failed: %w", err)
	}

	for _, r := range rems {
		reminderID := r.ID
		key := regularReminderPrefix + reminderID
		if p.sched.Schedule(key, r.Time, func(ctx context.Context) {
			p.deliverReminder(ctx, reminderID)
		}) {
			registered++
		}
	}

	log.Printf("Planner: refresh dropped %d jobs, registered %d", dropped, registered)
	return nil
}

// deliverGoalReminder re-checks the goal right before sending: a goal
// that left pending since registration makes the job a no-op.
func (p *Planner) deliverGoalReminder(ctx context.Context, goalID int64) {
	g, err := p.goals.GetByID(ctx, goalID)
	if err != nil {
		log.Printf("Planner: fetching goal %d for reminder failed: %v", goalID, err)
		return
	}
	if g.Status != domain.StatusPending || !g.ReminderScheduled {
		return
	}

	name := p.displayName(ctx, g.Owner)
	text := fmt.Sprintf("%s, reminder: %s", name, g.Description)
	if g.Deadline != nil {
		text = fmt.Sprintf("%s (due %s)", text, g.Deadline.Format("Mon 2 Jan 15:04"))
	}

	p.send(ctx, services.Message{Owner: g.Owner, Text: text})
}

func (p *Planner) deliverReminder(ctx context.Context, reminderID string) {
	r, err := p.reminders.GetByID(ctx, reminderID)
	if err != nil {
		if errors.Is(err, domain.ErrReminderNotFound) {
			return
		}
		log.Printf("Planner: fetching reminder %s failed: %v", reminderID, err)
		return
	}

	name := p.displayName(ctx, r.Owner)
	p.send(ctx, services.Message{
		Owner: r.Owner,
		Text:  fmt.Sprintf("%s, reminder: %s", name, r.Text),
	})
}

func (p *Planner) displayName(ctx context.Context, owner domain.Owner) string {
	user, err := p.users.GetByOwner(ctx, owner)
	if err != nil || user.Name == "" {
		return "Hey"
	}
	return user.Name
}

// send is at-most-once, best-effort: failures are logged, never
// retried.
func (p *Planner) send(ctx context.Context, msg services.Message) {
	if err := p.messenger.Send(ctx, msg); err != nil {
		log.Printf("Planner: delivery to %s failed: %v", msg.Owner, err)
	}
}

// StartDailyJobs registers the boundary refresh, the snapshot job and
// the late-morning overdue warning. Each job re-registers itself for
// the next day after running.
func (p *Planner) StartDailyJobs(ctx context.Context) {
	p.scheduleDailyRefresh()
	p.scheduleDailySnapshot()
	p.scheduleOverdueWarning()
}

func (p *Planner) scheduleDailyRefresh() {
	at := nextBoundary(p.clock.Now()).Add(refreshOffset)
	p.sched.Schedule(dailyRefreshKey, at, func(ctx context.Context) {
		if err := p.Refresh(ctx); err != nil {
			log.Printf("Planner: daily refresh failed: %v", err)
		}
		p.scheduleDailyRefresh()
	})
}

func (p *Planner) scheduleDailySnapshot() {
	at := nextBoundary(p.clock.Now()).Add(snapshotOffset)
	p.sched.Schedule(dailySnapshotKey, at, func(ctx context.Context) {
		written, err := p.stats.RunDailySnapshots(ctx)
		if err != nil {
			log.Printf("Planner: daily snapshot run failed: %v", err)
		} else {
			log.Printf("Planner: daily snapshot run wrote %d rows", written)
		}
		p.scheduleDailySnapshot()
	})
}

func (p *Planner) scheduleOverdueWarning() {
	at := nextAtHour(p.clock.Now(), overdueWarningHour)
	p.sched.Schedule(overdueWarningKey, at, func(ctx context.Context) {
		p.warnOverdue(ctx)
		p.scheduleOverdueWarning()
	})
}

func (p *Planner) warnOverdue(ctx context.Context) {
	users, err := p.users.List(ctx)
	if err != nil {
		log.Printf("Planner: listing users for overdue warning failed: %v", err)
		return
	}

	for _, user := range users {
		report, err := p.windows.Query(ctx, user.Owner, services.WindowOverdueToday)
		if err != nil {
			log.Printf("Planner: overdue query for %s failed: %v", user.Owner, err)
			continue
		}
		if report.GoalsCount == 0 {
			continue
		}

		text := fmt.Sprintf("%s, you have %d overdue goal(s) today: %.2f points at stake, %.2f penalty.",
			p.displayName(ctx, user.Owner), report.GoalsCount, report.TotalGoalValue, report.TotalPenalty)
		p.send(ctx, services.Message{Owner: user.Owner, Text: text})
	}
}

func nextBoundary(now time.Time) time.Time {
	boundary := services.DayStart(now)
	if !boundary.After(now) {
		boundary = boundary.AddDate(0, 0, 1)
	}
	return boundary
}

func nextAtHour(now time.Time, hour int) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}
