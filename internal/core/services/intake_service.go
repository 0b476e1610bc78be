package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

// Classifier is the black-box extraction step turning free text into a
// typed draft record. The core only ever validates its output; a
// malformed record fails through the same path as any invalid goal.
type Classifier interface {
	Classify(ctx context.Context, input ClassifyInput) (*DraftRecord, error)
}

type ClassifyInput struct {
	Owner domain.Owner `json:"owner"`
	Text  string       `json:"text"`
	Now   time.Time    `json:"now"`
	Prior *domain.Goal `json:"prior,omitempty"`
}

// DraftRecord is the classifier's raw output, one field per goal
// attribute. Deadlines carries one entry per instance for recurring
// goals.
type DraftRecord struct {
	Description       string      `json:"description"`
	Category          []string    `json:"category"`
	RecurrenceType    string      `json:"recurrence_type"`
	Timeframe         string      `json:"timeframe"`
	IntervalLabel     string      `json:"interval,omitempty"`
	Deadlines         []time.Time `json:"deadlines,omitempty"`
	ReminderScheduled bool        `json:"reminder_scheduled"`
	ReminderTime      *time.Time  `json:"reminder_time,omitempty"`
	TimeInvestment    float64     `json:"time_investment_value"`
	Difficulty        float64     `json:"difficulty_multiplier"`
	Impact            float64     `json:"impact_multiplier"`
	PenaltyTier       string      `json:"penalty_tier"`
}

// Messenger is the chat transport collaborator. Sends are best-effort:
// a failure is logged, never retried and never propagated upwards.
type Messenger interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	Owner   domain.Owner `json:"owner"`
	Text    string       `json:"text"`
	Buttons []Button     `json:"buttons,omitempty"`
}

type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// The intake pipeline runs through three typed stages, each consuming
// the previous one, so a half-assembled draft can never leak into a
// Goal.

type DraftDescription struct {
	Owner       domain.Owner
	Description string
	Category    []string
	Recurrence  domain.Recurrence
}

type DraftValuation struct {
	DraftDescription
	TimeInvestment float64
	Difficulty     float64
	Impact         float64
	GoalValue      float64
	Penalty        float64
	Tier           domain.PenaltyTier
}

type DraftSchedule struct {
	DraftValuation
	Timeframe         domain.Timeframe
	Deadlines         []time.Time
	Interval          string
	ReminderScheduled bool
	ReminderTime      *time.Time
}

func NewDraftDescription(owner domain.Owner, rec *DraftRecord) (DraftDescription, error) {
	var violations []string

	description := strings.TrimSpace(rec.Description)
	if description == "" {
		violations = append(violations, "description cannot be empty")
	}
	if len(rec.Category) == 0 {
		violations = append(violations, "category must be a non-empty set")
	}
	recurrence := domain.Recurrence(rec.RecurrenceType)
	if !recurrence.Valid() {
		violations = append(violations, fmt.Sprintf("recurrence_type %q is not a known recurrence type", rec.RecurrenceType))
	}

	if len(violations) > 0 {
		return DraftDescription{}, &domain.ValidationError{Violations: violations}
	}

	return DraftDescription{
		Owner:       owner,
		Description: description,
		Category:    rec.Category,
		Recurrence:  recurrence,
	}, nil
}

func (d DraftDescription) Price(timeInvestment, difficulty, impact float64, tier domain.PenaltyTier) (DraftValuation, error) {
	goalValue, err := domain.ComputeGoalValue(timeInvestment, difficulty, impact)
	if err != nil {
		return DraftValuation{}, err
	}

	penalty, err := domain.ComputePenalty(tier, goalValue)
	if err != nil {
		return DraftValuation{}, err
	}

	return DraftValuation{
		DraftDescription: d,
		TimeInvestment:   timeInvestment,
		Difficulty:       difficulty,
		Impact:           impact,
		GoalValue:        goalValue,
		Penalty:          penalty,
		Tier:             tier,
	}, nil
}

func (d DraftValuation) Schedule(timeframe domain.Timeframe, deadlines []time.Time, interval string, reminderScheduled bool, reminderTime *time.Time) (DraftSchedule, error) {
	var violations []string

	if !timeframe.Valid() {
		violations = append(violations, fmt.Sprintf("timeframe %q is not a known timeframe", timeframe))
	}
	switch timeframe {
	case domain.TimeframeOpenEnded:
		if len(deadlines) > 0 {
			violations = append(violations, "an open_ended goal cannot carry a deadline")
		}
	case domain.TimeframeToday, domain.TimeframeByDate:
		if len(deadlines) == 0 {
			violations = append(violations, fmt.Sprintf("a %s goal requires a deadline", timeframe))
		}
	}
	if d.Recurrence == domain.RecurrenceOneTime && len(deadlines) > 1 {
		violations = append(violations, "a one_time goal cannot carry multiple deadlines")
	}
	if reminderScheduled && reminderTime == nil {
		violations = append(violations, "a scheduled reminder requires a reminder_time")
	}

	if len(violations) > 0 {
		return DraftSchedule{}, &domain.ValidationError{Violations: violations}
	}

	return DraftSchedule{
		DraftValuation:    d,
		Timeframe:         timeframe,
		Deadlines:         deadlines,
		Interval:          interval,
		ReminderScheduled: reminderScheduled,
		ReminderTime:      reminderTime,
	}, nil
}

// Build materializes the fully populated draft into limbo goals, one
// per instance for recurring groups.
func (d DraftSchedule) Build(now time.Time) ([]*domain.Goal, error) {
	instances := 1
	if len(d.Deadlines) > 0 {
		instances = len(d.Deadlines)
	}

	var groupID *string
	if instances > 1 {
		id := uuid.New().String()
		groupID = &id
	}

	goals := make([]*domain.Goal, 0, instances)
	for i := 0; i < instances; i++ {
		goal := &domain.Goal{
			GroupID:           groupID,
			Owner:             d.Owner,
			Status:            domain.StatusLimbo,
			Recurrence:        d.Recurrence,
			Timeframe:         d.Timeframe,
			Interval:          d.Interval,
			ReminderScheduled: d.ReminderScheduled,
			ReminderTime:      d.ReminderTime,
			Iteration:         i + 1,
			FinalIteration:    domain.FinalIterationNA,
			TimeInvestment:    d.TimeInvestment,
			Difficulty:        d.Difficulty,
			Impact:            d.Impact,
			GoalValue:         d.GoalValue,
			Penalty:           d.Penalty,
			Description:       d.Description,
			Category:          d.Category,
			SetTime:           now,
		}
		if len(d.Deadlines) > 0 {
			deadline := d.Deadlines[i]
			goal.Deadline = &deadline
		}
		if instances > 1 {
			goal.FinalIteration = domain.FinalIterationNo
			if i == instances-1 {
				goal.FinalIteration = domain.FinalIterationYes
			}
		}

		if err := goal.Validate(); err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}

	return goals, nil
}

type IntakeService struct {
	classifier Classifier
	goals      domain.GoalRepository
	users      domain.UserRepository
	messenger  Messenger
	clock      domain.Clock
}

func NewIntakeService(classifier Classifier, goals domain.GoalRepository, users domain.UserRepository, messenger Messenger, clock domain.Clock) *IntakeService {
	return &IntakeService{
		classifier: classifier,
		goals:      goals,
		users:      users,
		messenger:  messenger,
		clock:      clock,
	}
}

type IntakeResult struct {
	Goals    []*domain.Goal   `json:"goals"`
	Proposal *domain.Proposal `json:"proposal,omitempty"`
	Prepared bool             `json:"prepared"`
}

// Intake runs the whole pipeline: classify the text, stage the draft,
// persist the limbo goals, then either flip them to prepared
// (open-ended) or surface a proposal awaiting accept/reject.
func (s *IntakeService) Intake(ctx context.Context, owner domain.Owner, displayName, text string) (*IntakeResult, error) {
	now := s.clock.Now()

	if err := s.users.Upsert(ctx, domain.NewUser(owner, displayName)); err != nil {
		return nil, fmt.Errorf("intake: user upsert failed: %w", err)
	}

	rec, err := s.classifier.Classify(ctx, ClassifyInput{Owner: owner, Text: text, Now: now})
	if err != nil {
		return nil, fmt.Errorf("intake: classification failed: %w", err)
	}

	described, err := NewDraftDescription(owner, rec)
	if err != nil {
		return nil, err
	}

	priced, err := described.Price(rec.TimeInvestment, rec.Difficulty, rec.Impact, domain.PenaltyTier(rec.PenaltyTier))
	if err != nil {
		return nil, err
	}

	scheduled, err := priced.Schedule(domain.Timeframe(rec.Timeframe), rec.Deadlines, rec.IntervalLabel, rec.ReminderScheduled, rec.ReminderTime)
	if err != nil {
		return nil, err
	}

	goals, err := scheduled.Build(now)
	if err != nil {
		return nil, err
	}

	for _, goal := range goals {
		if err := s.goals.Create(ctx, goal); err != nil {
			return nil, fmt.Errorf("intake: persisting goal failed: %w", err)
		}
	}

	if scheduled.Timeframe == domain.TimeframeOpenEnded {
		// no deadline, no scheduling: parked as prepared
		for _, goal := range goals {
			goal.Status = domain.StatusPrepared
			if err := s.goals.Update(ctx, goal); err != nil {
				return nil, fmt.Errorf("intake: preparing goal failed: %w", err)
			}
		}
		return &IntakeResult{Goals: goals, Prepared: true}, nil
	}

	proposal := domain.NewProposal(scheduled.GoalValue, scheduled.Penalty, len(goals))
	s.pushProposal(ctx, owner, goals, proposal)

	return &IntakeResult{Goals: goals, Proposal: &proposal}, nil
}

func (s *IntakeService) pushProposal(ctx context.Context, owner domain.Owner, goals []*domain.Goal, proposal domain.Proposal) {
	text := fmt.Sprintf("New goal: %s. Worth %.2f points, penalty %.2f.",
		goals[0].Description, proposal.PerInstanceValue, proposal.PerInstancePenalty)
	if proposal.Instances > 1 {
		text = fmt.Sprintf("%s %d occurrences, %.2f points total.", text, proposal.Instances, proposal.TotalValue)
	}

	msg := Message{
		Owner: owner,
		Text:  text,
		Buttons: []Button{
			{Label: "Accept", Action: fmt.Sprintf("accept:%d", goals[0].ID)},
			{Label: "Reject", Action: fmt.Sprintf("reject:%d", goals[0].ID)},
		},
	}

	if err := s.messenger.Send(ctx, msg); err != nil {
		log.Printf("intake: proposal delivery for %s failed: %v", owner, err)
	}
}
