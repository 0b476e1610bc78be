package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGoalNotFound     = errors.New("goal not found")
	ErrReminderNotFound = errors.New("reminder not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrNotOnAllowList   = errors.New("identity is not on the allow list")
)

// ValidationError reports every invariant a goal record violates.
// A mutation that produces one leaves the record untouched.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "goal validation failed: " + strings.Join(e.Violations, "; ")
}

// TransitionError marks an action requested on a status that has no
// edge for it in the lifecycle table.
type TransitionError struct {
	Status Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("no transition %q from status %q", e.Action, e.Status)
}
