package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

var _ domain.GoalRepository = (*CachedGoalRepository)(nil)

const pendingCacheTTL = 30 * time.Minute

// CachedGoalRepository keeps the per-owner pending list in redis and
// invalidates it on every write. The cache is an accelerator only:
// redis being broken degrades to the inner repository.
type CachedGoalRepository struct {
	next  domain.GoalRepository
	cache *redis.Client
}

func NewCachedGoalRepository(next domain.GoalRepository, cache *redis.Client) *CachedGoalRepository {
	return &CachedGoalRepository{
		next:  next,
		cache: cache,
	}
}

func (r *CachedGoalRepository) cacheKey(owner domain.Owner) string {
	return fmt.Sprintf("goals:pending:%d:%d", owner.UserID, owner.ChatID)
}

func (r *CachedGoalRepository) invalidate(ctx context.Context, owner domain.Owner) {
	if err := r.cache.Del(ctx, r.cacheKey(owner)).Err(); err != nil {
		log.Printf("[CACHE] Failed to invalidate for %s: %v", owner, err)
	}
}

func (r *CachedGoalRepository) ListPendingByOwner(ctx context.Context, owner domain.Owner) ([]*domain.Goal, error) {
	key := r.cacheKey(owner)

	val, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		var goals []*domain.Goal
		if err := json.Unmarshal([]byte(val), &goals); err == nil {
			return goals, nil
		}

		log.Printf("[CACHE] Corrupted data for %s, cleaning up key", owner)
		r.cache.Del(ctx, key)
	} else if err != redis.Nil {
		log.Printf("[CACHE] Redis read error: %v", err)
	}

	goals, err := r.next.ListPendingByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(goals); err == nil {
		if setErr := r.cache.Set(ctx, key, data, pendingCacheTTL).Err(); setErr != nil {
			log.Printf("[CACHE] Redis set error: %v", setErr)
		}
	}

	return goals, nil
}

func (r *CachedGoalRepository) Create(ctx context.Context, goal *domain.Goal) error {
	if err := r.next.Create(ctx, goal); err != nil {
		return err
	}
	r.invalidate(ctx, goal.Owner)
	return nil
}

func (r *CachedGoalRepository) Update(ctx context.Context, goal *domain.Goal) error {
	if err := r.next.Update(ctx, goal); err != nil {
		return err
	}
	r.invalidate(ctx, goal.Owner)
	return nil
}

func (r *CachedGoalRepository) Mutate(ctx context.Context, id int64, fn func(*domain.Goal) error) (*domain.Goal, error) {
	goal, err := r.next.Mutate(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, goal.Owner)
	return goal, nil
}

func (r *CachedGoalRepository) GetByID(ctx context.Context, id int64) (*domain.Goal, error) {
	return r.next.GetByID(ctx, id)
}

func (r *CachedGoalRepository) ListByGroup(ctx context.Context, groupID string) ([]*domain.Goal, error) {
	return r.next.ListByGroup(ctx, groupID)
}

func (r *CachedGoalRepository) ListDueBetween(ctx context.Context, owner domain.Owner, from, to time.Time, includeEnd bool) ([]*domain.Goal, error) {
	return r.next.ListDueBetween(ctx, owner, from, to, includeEnd)
}

func (r *CachedGoalRepository) ListOverdue(ctx context.Context, owner domain.Owner, until time.Time) ([]*domain.Goal, error) {
	return r.next.ListOverdue(ctx, owner, until)
}

func (r *CachedGoalRepository) ListScheduledReminders(ctx context.Context, from, to time.Time) ([]*domain.Goal, error) {
	return r.next.ListScheduledReminders(ctx, from, to)
}

func (r *CachedGoalRepository) ListSetBetween(ctx context.Context, owner domain.Owner, from, to time.Time) ([]*domain.Goal, error) {
	return r.next.ListSetBetween(ctx, owner, from, to)
}

func (r *CachedGoalRepository) ListArchivedBetween(ctx context.Context, owner domain.Owner, status domain.Status, from, to time.Time) ([]*domain.Goal, error) {
	return r.next.ListArchivedBetween(ctx, owner, status, from, to)
}
