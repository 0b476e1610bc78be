package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReminderTextEmpty  = errors.New("reminder text cannot be empty")
	ErrReminderTimeInPast = errors.New("reminder time is in the past")
)

// Reminder is a user-requested one-off reminder with no backing goal.
// It gets the same scheduling treatment as goal reminders.
type Reminder struct {
	ID string `json:"id" db:"id"`
	Owner
	Text      string    `json:"reminder_text" db:"reminder_text"`
	Time      time.Time `json:"time" db:"time"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewReminder(owner Owner, text string, at, now time.Time) (*Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrReminderTextEmpty
	}
	if !at.After(now) {
		return nil, ErrReminderTimeInPast
	}

	return &Reminder{
		ID:        uuid.New().String(),
		Owner:     owner,
		Text:      text,
		Time:      at,
		CreatedAt: now.UTC(),
	}, nil
}

type ReminderRepository interface {
	Create(ctx context.Context, reminder *Reminder) error

	GetByID(ctx context.Context, id string) (*Reminder, error)

	ListByOwner(ctx context.Context, owner Owner) ([]*Reminder, error)

	// ListBetween returns reminders firing in [from, to), across all
	// owners; the planner schedules one delivery job per row.
	ListBetween(ctx context.Context, from, to time.Time) ([]*Reminder, error)

	Delete(ctx context.Context, id string, owner Owner) error
}
