package scheduler

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/goalsmith/goalsmith/internal/core/domain"
)

type task struct {
	key string
	fn  func(context.Context)
}

// Scheduler is a cooperative job queue: jobs are registered under
// stable keys (re-registering a key replaces the pending job), fire
// times already in the past are skipped, and fired jobs execute one at
// a time on a single worker. A job panicking or failing never takes
// the rest of the batch down with it.
type Scheduler struct {
	clock domain.Clock

	mu     sync.Mutex
	timers map[string]*time.Timer
	fired  chan task
}

func New(clock domain.Clock) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: make(map[string]*time.Timer),
		fired:  make(chan task, 256),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		log.Println("Scheduler started in background...")
		for {
			select {
			case t := <-s.fired:
				s.run(ctx, t)
			case <-ctx.Done():
				log.Println("Scheduler shutting down...")
				s.stopAll()
				return
			}
		}
	}()
}

// Schedule registers fn to run at the given instant. Returns false when
// the moment has already passed (no backfill) or the job was replaced
// rather than newly added is irrelevant to the caller: the key fires at
// most once either way.
func (s *Scheduler) Schedule(key string, at time.Time, fn func(context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[key]; ok {
		existing.Stop()
		delete(s.timers, key)
	}

	delay := at.Sub(s.clock.Now())
	if delay < 0 {
		log.Printf("Scheduler: skipping %s, fire time %s already passed", key, at.Format(time.RFC3339))
		return false
	}

	s.timers[key] = time.AfterFunc(delay, func() {
		s.enqueue(key, fn)
	})
	return true
}

func (s *Scheduler) enqueue(key string, fn func(context.Context)) {
	s.mu.Lock()
	delete(s.timers, key)
	s.mu.Unlock()

	select {
	case s.fired <- task{key: key, fn: fn}:
	default:
		log.Printf("Scheduler queue full! Dropping job %s", key)
	}
}

func (s *Scheduler) run(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Scheduler: job %s panicked: %v", t.key, r)
		}
	}()
	t.fn(ctx)
}

func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, key)
	return true
}

// CancelPrefix drops every pending job whose key starts with prefix.
// Safe to call with nothing registered.
func (s *Scheduler) CancelPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	canceled := 0
	for key, timer := range s.timers {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			timer.Stop()
			delete(s.timers, key)
			canceled++
		}
	}
	return canceled
}

// Keys returns the currently registered job keys, sorted.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.timers))
	for key := range s.timers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}
