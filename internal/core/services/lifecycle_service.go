package services

import (
	"context"
	"fmt"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

// LifecycleService drives every status transition and valuation
// adjustment. All mutations go through GoalRepository.Mutate, so
// concurrent actions on the same goal are serialized.
type LifecycleService struct {
	goals domain.GoalRepository
	users domain.UserRepository
	clock domain.Clock
}

func NewLifecycleService(goals domain.GoalRepository, users domain.UserRepository, clock domain.Clock) *LifecycleService {
	return &LifecycleService{
		goals: goals,
		users: users,
		clock: clock,
	}
}

// Act applies one user action to a goal and, when the transition
// changes what the user's counters should read, applies that delta.
// counterDelta below is the only place in the system allowed to touch
// the counters.
//
// Accepting or rejecting one instance of a recurring group decides the
// whole proposal, so the siblings still in limbo follow the same edge.
func (s *LifecycleService) Act(ctx context.Context, owner domain.Owner, id int64, action domain.Action) (*domain.Goal, error) {
	goal, err := s.actOne(ctx, owner, id, action)
	if err != nil {
		return nil, err
	}

	if goal.GroupID != nil && (action == domain.ActionAccept || action == domain.ActionReject) {
		siblings, err := s.goals.ListByGroup(ctx, *goal.GroupID)
		if err != nil {
			return nil, fmt.Errorf("group lookup failed: %w", err)
		}
		for _, sibling := range siblings {
			if sibling.ID == goal.ID || sibling.Status != domain.StatusLimbo {
				continue
			}
			if _, err := s.actOne(ctx, owner, sibling.ID, action); err != nil {
				return nil, fmt.Errorf("group transition of goal %d failed: %w", sibling.ID, err)
			}
		}
	}

	return goal, nil
}

func (s *LifecycleService) actOne(ctx context.Context, owner domain.Owner, id int64, action domain.Action) (*domain.Goal, error) {
	var before domain.Status

	goal, err := s.goals.Mutate(ctx, id, func(g *domain.Goal) error {
		if g.Owner != owner {
			return domain.ErrGoalNotFound
		}
		before = g.Status
		return g.Apply(action, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	if delta := counterDelta(before, goal); !delta.Zero() {
		if err := s.users.ApplyDelta(ctx, owner, delta); err != nil {
			return nil, fmt.Errorf("transition committed but counter update failed: %w", err)
		}
	}

	return goal, nil
}

func counterDelta(before domain.Status, g *domain.Goal) domain.CounterDelta {
	var d domain.CounterDelta

	if before != domain.StatusPending && g.Status == domain.StatusPending {
		d.Pending++
	}
	if before == domain.StatusPending && g.Status != domain.StatusPending {
		d.Pending--
	}

	switch g.Status {
	case domain.StatusArchivedDone:
		d.Finished++
		d.Score += g.GoalValue
	case domain.StatusArchivedFailed:
		d.Failed++
		d.Penalties += g.Penalty
	}

	return d
}

// Adjust is the bounded up/down tweak of goal_value or penalty. It runs
// inside the same serialized read-modify-write as status transitions.
func (s *LifecycleService) Adjust(ctx context.Context, owner domain.Owner, id int64, field domain.AdjustField, direction domain.AdjustDirection) (float64, error) {
	var adjusted float64

	_, err := s.goals.Mutate(ctx, id, func(g *domain.Goal) error {
		if g.Owner != owner {
			return domain.ErrGoalNotFound
		}

		var target *float64
		switch field {
		case domain.AdjustGoalValue:
			target = &g.GoalValue
		case domain.AdjustPenalty:
			target = &g.Penalty
		default:
			return fmt.Errorf("%w: %q", domain.ErrUnknownAdjustField, field)
		}

		next, err := domain.AdjustValue(*target, direction)
		if err != nil {
			return err
		}

		*target = next
		adjusted = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	return adjusted, nil
}

func (s *LifecycleService) Get(ctx context.Context, owner domain.Owner, id int64) (*domain.Goal, error) {
	goal, err := s.goals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if goal.Owner != owner {
		return nil, domain.ErrGoalNotFound
	}
	return goal, nil
}

func (s *LifecycleService) ListPending(ctx context.Context, owner domain.Owner) ([]*domain.Goal, error) {
	return s.goals.ListPendingByOwner(ctx, owner)
}
