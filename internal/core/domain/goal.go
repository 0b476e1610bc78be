package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusLimbo            Status = "limbo"
	StatusPrepared         Status = "prepared"
	StatusPending          Status = "pending"
	StatusPaused           Status = "paused"
	StatusArchivedDone     Status = "archived_done"
	StatusArchivedFailed   Status = "archived_failed"
	StatusArchivedCanceled Status = "archived_canceled"
)

type Recurrence string

const (
	RecurrenceOneTime   Recurrence = "one_time"
	RecurrenceRecurring Recurrence = "recurring"
)

type Timeframe string

const (
	TimeframeToday     Timeframe = "today"
	TimeframeByDate    Timeframe = "by_date"
	TimeframeOpenEnded Timeframe = "open_ended"
)

type FinalIteration string

const (
	FinalIterationNA  FinalIteration = "not_applicable"
	FinalIterationYes FinalIteration = "yes"
	FinalIterationNo  FinalIteration = "no"
)

type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionDone     Action = "done"
	ActionFailed   Action = "failed"
	ActionPostpone Action = "postpone"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionCancel   Action = "cancel"
)

// Owner is the composite identity a goal belongs to. It is immutable
// after creation.
type Owner struct {
	UserID int64 `json:"user_id" db:"user_id"`
	ChatID int64 `json:"chat_id" db:"chat_id"`
}

func (o Owner) String() string {
	return fmt.Sprintf("%d/%d", o.UserID, o.ChatID)
}

// Goal is the central entity: a declared intention with a deadline, a
// computed point value and a lifecycle status. Archived goals are never
// deleted; the stats ledger is built from them.
type Goal struct {
	ID      int64   `json:"id" db:"id"`
	GroupID *string `json:"group_id,omitempty" db:"group_id"`
	Owner

	Status     Status     `json:"status" db:"status"`
	Recurrence Recurrence `json:"recurrence_type" db:"recurrence_type"`
	Timeframe  Timeframe  `json:"timeframe" db:"timeframe"`

	Deadline          *time.Time     `json:"deadline,omitempty" db:"deadline"`
	Interval          string         `json:"interval,omitempty" db:"interval"`
	ReminderScheduled bool           `json:"reminder_scheduled" db:"reminder_scheduled"`
	ReminderTime      *time.Time     `json:"reminder_time,omitempty" db:"reminder_time"`
	Iteration         int            `json:"iteration" db:"iteration"`
	FinalIteration    FinalIteration `json:"final_iteration" db:"final_iteration"`

	TimeInvestment float64 `json:"time_investment_value" db:"time_investment_value"`
	Difficulty     float64 `json:"difficulty_multiplier" db:"difficulty_multiplier"`
	Impact         float64 `json:"impact_multiplier" db:"impact_multiplier"`
	GoalValue      float64 `json:"goal_value" db:"goal_value"`
	Penalty        float64 `json:"penalty" db:"penalty"`

	Description    string     `json:"description" db:"description"`
	Category       []string   `json:"category" db:"-"`
	SetTime        time.Time  `json:"set_time" db:"set_time"`
	CompletionTime *time.Time `json:"completion_time,omitempty" db:"completion_time"`
}

func (s Status) Valid() bool {
	switch s {
	case StatusLimbo, StatusPrepared, StatusPending, StatusPaused,
		StatusArchivedDone, StatusArchivedFailed, StatusArchivedCanceled:
		return true
	}
	return false
}

func (s Status) Archived() bool {
	switch s {
	case StatusArchivedDone, StatusArchivedFailed, StatusArchivedCanceled:
		return true
	}
	return false
}

func (r Recurrence) Valid() bool {
	return r == RecurrenceOneTime || r == RecurrenceRecurring
}

func (t Timeframe) Valid() bool {
	return t == TimeframeToday || t == TimeframeByDate || t == TimeframeOpenEnded
}

// Validate checks the record-level invariants and collects every
// violation instead of stopping at the first one.
func (g *Goal) Validate() error {
	var violations []string

	if !g.Status.Valid() {
		violations = append(violations, fmt.Sprintf("status %q is not a known status", g.Status))
	}
	if !g.Recurrence.Valid() {
		violations = append(violations, fmt.Sprintf("recurrence_type %q is not a known recurrence type", g.Recurrence))
	}
	if !g.Timeframe.Valid() {
		violations = append(violations, fmt.Sprintf("timeframe %q is not a known timeframe", g.Timeframe))
	}

	switch g.Timeframe {
	case TimeframeOpenEnded:
		if g.Deadline != nil {
			violations = append(violations, "an open_ended goal cannot carry a deadline")
		}
	case TimeframeToday, TimeframeByDate:
		if g.Deadline == nil {
			violations = append(violations, fmt.Sprintf("a %s goal requires a deadline", g.Timeframe))
		}
	}

	if len(g.Category) == 0 {
		violations = append(violations, "category must be a non-empty set")
	}
	if g.Penalty < 0 {
		violations = append(violations, "penalty cannot be negative")
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// Apply executes one edge of the lifecycle table. Any (status, action)
// pair not in the table is a TransitionError; a record failing
// validation is rejected before the edge is even looked up, and nothing
// is partially applied either way.
func (g *Goal) Apply(action Action, now time.Time) error {
	if err := g.Validate(); err != nil {
		return err
	}

	switch {
	case g.Status == StatusLimbo && action == ActionAccept:
		g.Status = StatusPending
	case g.Status == StatusLimbo && action == ActionReject:
		g.Status = StatusArchivedCanceled
		g.stamp(now)
	case g.Status == StatusPending && action == ActionDone:
		g.Status = StatusArchivedDone
		g.stamp(now)
	case g.Status == StatusPending && action == ActionFailed:
		g.Status = StatusArchivedFailed
		g.stamp(now)
	case g.Status == StatusPending && action == ActionPostpone:
		if g.Deadline == nil {
			return &ValidationError{Violations: []string{"cannot postpone a goal without a deadline"}}
		}
		g.postpone(now)
	case g.Status == StatusPending && action == ActionPause:
		g.Status = StatusPaused
	case g.Status == StatusPaused && action == ActionResume:
		g.Status = StatusPending
	case g.Status == StatusPending && action == ActionCancel:
		g.Status = StatusArchivedCanceled
		g.stamp(now)
	default:
		return &TransitionError{Status: g.Status, Action: action}
	}

	return nil
}

func (g *Goal) stamp(now time.Time) {
	t := now
	g.CompletionTime = &t
}

// postpone shifts the deadline forward by one day, keeping its
// time-of-day: to today if that moment is still ahead of now, else to
// tomorrow.
func (g *Goal) postpone(now time.Time) {
	d := *g.Deadline
	next := time.Date(now.Year(), now.Month(), now.Day(),
		d.Hour(), d.Minute(), d.Second(), 0, d.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	g.Deadline = &next
}
