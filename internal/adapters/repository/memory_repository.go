package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

// In-memory implementations backing unit tests and local runs without
// a database. Mutations clone records so callers never share memory
// with the store.

type InMemoryGoalRepository struct {
	mu     sync.RWMutex
	store  map[int64]*domain.Goal
	nextID int64
}

func NewInMemoryGoalRepository() *InMemoryGoalRepository {
	return &InMemoryGoalRepository{
		store: make(map[int64]*domain.Goal),
	}
}

func cloneGoal(g *domain.Goal) *domain.Goal {
	clone := *g
	if g.Category != nil {
		clone.Category = append([]string(nil), g.Category...)
	}
	return &clone
}

func (r *InMemoryGoalRepository) Create(ctx context.Context, goal *domain.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	goal.ID = r.nextID
	r.store[goal.ID] = cloneGoal(goal)
	return nil
}

func (r *InMemoryGoalRepository) GetByID(ctx context.Context, id int64) (*domain.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.store[id]
	if !ok {
		return nil, domain.ErrGoalNotFound
	}
	return cloneGoal(g), nil
}

func (r *InMemoryGoalRepository) Update(ctx context.Context, goal *domain.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[goal.ID]; !ok {
		return domain.ErrGoalNotFound
	}
	r.store[goal.ID] = cloneGoal(goal)
	return nil
}

func (r *InMemoryGoalRepository) Mutate(ctx context.Context, id int64, fn func(*domain.Goal) error) (*domain.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.store[id]
	if !ok {
		return nil, domain.ErrGoalNotFound
	}

	g := cloneGoal(stored)
	if err := fn(g); err != nil {
		return nil, err
	}

	r.store[id] = cloneGoal(g)
	return g, nil
}

func (r *InMemoryGoalRepository) list(filter func(*domain.Goal) bool) []*domain.Goal {
	var goals []*domain.Goal
	for _, g := range r.store {
		if filter(g) {
			goals = append(goals, cloneGoal(g))
		}
	}

	sort.Slice(goals, func(i, j int) bool {
		di, dj := goals[i].Deadline, goals[j].Deadline
		switch {
		case di == nil && dj == nil:
			return goals[i].ID < goals[j].ID
		case di == nil:
			return false
		case dj == nil:
			return true
		case di.Equal(*dj):
			return goals[i].ID < goals[j].ID
		default:
			return di.Before(*dj)
		}
	})
	return goals
}

func (r *InMemoryGoalRepository) ListByGroup(ctx context.Context, groupID string) ([]*domain.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var goals []*domain.Goal
	for _, g := range r.store {
		if g.GroupID != nil && *g.GroupID == groupID {
			goals = append(goals, cloneGoal(g))
		}
	}

	sort.Slice(goals, func(i, j int) bool {
		return goals[i].Iteration < goals[j].Iteration
	})
	return goals, nil
}

func (r *InMemoryGoalRepository) ListPendingByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(g *domain.Goal) bool {
		return g.Owner == owner && g.Status == domain.StatusPending
	}), nil
}

func (r *InMemoryGoalRepository) ListDueBetween(ctx context.Context, owner domain.Owner, from, to time.Time, includeEnd bool) ([]*domain.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(g *domain.Goal) bool {
		if g.Owner != owner || g.Status != domain.StatusPending || g.Deadline == nil {
			return false
		}
		d := *g.Deadline
		if d.Before(from) {
			return false
		}
		if includeEnd {
			return !d.After(to)
		}
		return d.Before(to)
	}), nil
}

func (r *InMemoryGoalRepository) ListOverdue(ctx context.Context, owner domain.Owner, until time.Time) ([]*domain.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(g *domain.Goal) bool {
		return g.Owner == owner && g.Status == domain.StatusPending &&
			g.Deadline != nil && !g.Deadline.After(until)
	}), nil
}

func (r *InMemoryGoalRepository) ListScheduledReminders(ctx context.Context, from, to time.Time) ([]*domain.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var goals []*domain.Goal
	for _, g := range r.store {
		if g.Status != domain.StatusPending || !g.ReminderScheduled || g.ReminderTime == nil {
			continue
		}
		t := *g.ReminderTime
		if !t.Before(from) && t.Before(to) {
			goals = append(goals, cloneGoal(g))
		}
	}

	sort.Slice(goals, func(i, j int) bool {
		return goals[i].ReminderTime.Before(*goals[j].ReminderTime)
	})
	return goals, nil
}

func (r *InMemoryGoalRepository) ListSetBetween(ctx context.Context, owner domain.Owner, from, to time.Time) ([]*domain.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(g *domain.Goal) bool {
		return g.Owner == owner && !g.SetTime.Before(from) && g.SetTime.Before(to)
	}), nil
}

func (r *InMemoryGoalRepository) ListArchivedBetween(ctx context.Context, owner domain.Owner, status domain.Status, from, to time.Time) ([]*domain.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(g *domain.Goal) bool {
		return g.Owner == owner && g.Status == status && g.CompletionTime != nil &&
			!g.CompletionTime.Before(from) && g.CompletionTime.Before(to)
	}), nil
}

type InMemoryUserRepository struct {
	mu    sync.RWMutex
	store map[domain.Owner]*domain.User
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		store: make(map[domain.Owner]*domain.User),
	}
}

func (r *InMemoryUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.store[user.Owner]
	if !ok {
		clone := *user
		r.store[user.Owner] = &clone
		return nil
	}

	if user.Name != "" {
		existing.Name = user.Name
	}
	existing.UpdatedAt = user.UpdatedAt
	return nil
}

func (r *InMemoryUserRepository) GetByOwner(ctx context.Context, owner domain.Owner) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.store[owner]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *InMemoryUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []*domain.User
	for _, u := range r.store {
		clone := *u
		users = append(users, &clone)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].UserID == users[j].UserID {
			return users[i].ChatID < users[j].ChatID
		}
		return users[i].UserID < users[j].UserID
	})
	return users, nil
}

func (r *InMemoryUserRepository) ApplyDelta(ctx context.Context, owner domain.Owner, delta domain.CounterDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.store[owner]
	if !ok {
		return domain.ErrUserNotFound
	}

	u.PendingGoals += delta.Pending
	u.FinishedGoals += delta.Finished
	u.FailedGoals += delta.Failed
	u.Score = domain.Round2(u.Score + delta.Score)
	u.AccruedPenalties = domain.Round2(u.AccruedPenalties + delta.Penalties)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

type InMemoryReminderRepository struct {
	mu    sync.RWMutex
	store map[string]*domain.Reminder
}

func NewInMemoryReminderRepository() *InMemoryReminderRepository {
	return &InMemoryReminderRepository{
		store: make(map[string]*domain.Reminder),
	}
}

func (r *InMemoryReminderRepository) Create(ctx context.Context, reminder *domain.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *reminder
	r.store[reminder.ID] = &clone
	return nil
}

func (r *InMemoryReminderRepository) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rem, ok := r.store[id]
	if !ok {
		return nil, domain.ErrReminderNotFound
	}
	clone := *rem
	return &clone, nil
}

func (r *InMemoryReminderRepository) ListByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var reminders []*domain.Reminder
	for _, rem := range r.store {
		if rem.Owner == owner {
			clone := *rem
			reminders = append(reminders, &clone)
		}
	}

	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].Time.Before(reminders[j].Time)
	})
	return reminders, nil
}

func (r *InMemoryReminderRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*domain.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var reminders []*domain.Reminder
	for _, rem := range r.store {
		if !rem.Time.Before(from) && rem.Time.Before(to) {
			clone := *rem
			reminders = append(reminders, &clone)
		}
	}

	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].Time.Before(reminders[j].Time)
	})
	return reminders, nil
}

func (r *InMemoryReminderRepository) Delete(ctx context.Context, id string, owner domain.Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.store[id]
	if !ok || rem.Owner != owner {
		return domain.ErrReminderNotFound
	}
	delete(r.store, id)
	return nil
}

type snapshotKey struct {
	owner domain.Owner
	day   string
}

type InMemorySnapshotRepository struct {
	mu     sync.RWMutex
	store  map[snapshotKey]*domain.StatsSnapshot
	nextID int64
}

func NewInMemorySnapshotRepository() *InMemorySnapshotRepository {
	return &InMemorySnapshotRepository{
		store: make(map[snapshotKey]*domain.StatsSnapshot),
	}
}

func (r *InMemorySnapshotRepository) Insert(ctx context.Context, snap *domain.StatsSnapshot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := snapshotKey{owner: snap.Owner, day: snap.Day.Format("2006-01-02")}
	if _, exists := r.store[key]; exists {
		return false, nil
	}

	r.nextID++
	snap.ID = r.nextID
	clone := *snap
	r.store[key] = &clone
	return true, nil
}

func (r *InMemorySnapshotRepository) ListRange(ctx context.Context, owner domain.Owner, from, to time.Time) ([]*domain.StatsSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var snaps []*domain.StatsSnapshot
	for _, snap := range r.store {
		if snap.Owner == owner && !snap.Day.Before(from) && !snap.Day.After(to) {
			clone := *snap
			snaps = append(snaps, &clone)
		}
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Day.Before(snaps[j].Day)
	})
	return snaps, nil
}
