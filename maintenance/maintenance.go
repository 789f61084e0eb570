package maintenance

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/treechat/treechat/stores"
)

// DefaultSchedule runs the sweep once an hour
const DefaultSchedule = "@hourly"

// DefaultTTL is how long an empty chat survives before the sweeper
// reclaims it
const DefaultTTL = 24 * time.Hour

// Sweeper periodically deletes chats that were created but never received
// a message. Messages themselves are append-only and never swept; only
// whole empty chats are reclaimed.
type Sweeper struct {
	Store  stores.MessageStore
	TTL    time.Duration
	Logger *log.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
	entryID   cron.EntryID
}

// NewSweeper creates a sweeper over the given store
func NewSweeper(store stores.MessageStore, ttl time.Duration) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Sweeper{
		Store:  store,
		TTL:    ttl,
		Logger: log.New(os.Stdout, "[SWEEPER] ", log.LstdFlags),
	}
}

// Start registers the sweep on a cron schedule and starts the scheduler
func (s *Sweeper) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return fmt.Errorf("sweeper already started")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New()
	entryID, err := c.AddFunc(schedule, s.Sweep)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.scheduler = c
	s.entryID = entryID
	c.Start()
	s.Logger.Printf("Started with schedule %q, ttl %v", schedule, s.TTL)
	return nil
}

// Stop halts the scheduler. A sweep already in flight finishes.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.Remove(s.entryID)
		s.scheduler.Stop()
		s.scheduler = nil
	}
}

// Sweep deletes empty chats older than the TTL. Failures are logged and
// the sweep moves on; the next run retries whatever is left.
func (s *Sweeper) Sweep() {
	cutoff := time.Now().Add(-s.TTL)

	ids, err := s.Store.ListEmptyChatsBefore(cutoff)
	if err != nil {
		s.Logger.Printf("Failed to list empty chats: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	deleted := 0
	for _, id := range ids {
		if err := s.Store.DeleteChat(id); err != nil {
			s.Logger.Printf("Failed to delete empty chat %s: %v", id, err)
			continue
		}
		deleted++
	}
	s.Logger.Printf("Deleted %d of %d empty chats older than %v", deleted, len(ids), s.TTL)
}
