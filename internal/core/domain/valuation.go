package domain

import (
	"errors"
	"fmt"
	"math"
)

// Calibrated factor ranges. Time investment is a log-scaled
// effort-duration scale, the multipliers shrink or stretch it.
const (
	TimeInvestmentMin = 1.0
	TimeInvestmentMax = 60.0
	DifficultyMin     = 0.1
	DifficultyMax     = 2.0
	ImpactMin         = 0.5
	ImpactMax         = 1.5
)

const (
	adjustUpFactor   = 1.4
	adjustDownFactor = 0.6
	adjustClampFloor = 1.0
)

type PenaltyTier string

const (
	PenaltyTierNo    PenaltyTier = "no"
	PenaltyTierSmall PenaltyTier = "small"
	PenaltyTierBig   PenaltyTier = "big"
)

type AdjustField string

const (
	AdjustGoalValue AdjustField = "goal_value"
	AdjustPenalty   AdjustField = "penalty"
)

type AdjustDirection string

const (
	AdjustUp   AdjustDirection = "up"
	AdjustDown AdjustDirection = "down"
)

var (
	ErrFactorOutOfRange    = errors.New("valuation factor out of range")
	ErrUnknownPenaltyTier  = errors.New("unknown penalty tier")
	ErrUnknownAdjustField  = errors.New("unknown adjust field")
	ErrUnknownAdjustTarget = errors.New("unknown adjust direction")
)

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeGoalValue turns the three calibrated factors into the points
// awarded on completion: t * d * i, rounded to 2 decimals.
func ComputeGoalValue(timeInvestment, difficulty, impact float64) (float64, error) {
	if timeInvestment < TimeInvestmentMin || timeInvestment > TimeInvestmentMax {
		return 0, fmt.Errorf("%w: time_investment_value %.2f not in [%.0f, %.0f]",
			ErrFactorOutOfRange, timeInvestment, TimeInvestmentMin, TimeInvestmentMax)
	}
	if difficulty < DifficultyMin || difficulty > DifficultyMax {
		return 0, fmt.Errorf("%w: difficulty_multiplier %.2f not in [%.1f, %.1f]",
			ErrFactorOutOfRange, difficulty, DifficultyMin, DifficultyMax)
	}
	if impact < ImpactMin || impact > ImpactMax {
		return 0, fmt.Errorf("%w: impact_multiplier %.2f not in [%.1f, %.1f]",
			ErrFactorOutOfRange, impact, ImpactMin, ImpactMax)
	}

	return Round2(timeInvestment * difficulty * impact), nil
}

// ComputePenalty maps the upstream urgency tier to the points at stake
// on failure: none, 1.5x or 6x the goal value.
func ComputePenalty(tier PenaltyTier, goalValue float64) (float64, error) {
	switch tier {
	case PenaltyTierNo:
		return 0, nil
	case PenaltyTierSmall:
		return Round2(1.5 * goalValue), nil
	case PenaltyTierBig:
		return Round2(6 * goalValue), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPenaltyTier, tier)
	}
}

// AdjustValue is the only mutation path for goal_value and penalty
// after initial computation: x1.4 up or x0.6 down, rounded to 2
// decimals, with anything that lands below 1 clamped to exactly 0.
// Repeated downs therefore converge to 0 and stay there.
func AdjustValue(current float64, direction AdjustDirection) (float64, error) {
	var next float64
	switch direction {
	case AdjustUp:
		next = current * adjustUpFactor
	case AdjustDown:
		next = current * adjustDownFactor
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAdjustTarget, direction)
	}

	next = Round2(next)
	if next < adjustClampFloor {
		return 0, nil
	}
	return next, nil
}

// Proposal is what gets surfaced to the user before acceptance. For
// recurring goals the value and penalty are per instance and the totals
// multiply them out over the whole group.
type Proposal struct {
	PerInstanceValue   float64 `json:"goal_value"`
	PerInstancePenalty float64 `json:"penalty"`
	Instances          int     `json:"instances"`
	TotalValue         float64 `json:"total_value"`
	TotalPenalty       float64 `json:"total_penalty"`
}

func NewProposal(goalValue, penalty float64, instances int) Proposal {
	if instances < 1 {
		instances = 1
	}
	return Proposal{
		PerInstanceValue:   goalValue,
		PerInstancePenalty: penalty,
		Instances:          instances,
		TotalValue:         Round2(goalValue * float64(instances)),
		TotalPenalty:       Round2(penalty * float64(instances)),
	}
}
