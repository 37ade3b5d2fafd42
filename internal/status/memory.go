package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type memEntry struct {
	rec       Record
	expiresAt time.Time // zero: never
}

// MemoryStore keeps records in process. Expired entries are hidden on read
// and purged by the sweeper.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

// Put stores rec. A zero ttl keeps any expiry already scheduled for the id,
// so a late write never revives a finished record.
func (s *MemoryStore) Put(_ context.Context, rec Record, ttl time.Duration) error {
	e := memEntry{rec: rec}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	} else if prev, ok := s.entries[rec.RequestID]; ok {
		e.expiresAt = prev.expiresAt
	}
	s.entries[rec.RequestID] = e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, requestID string) (Record, error) {
	s.mu.RLock()
	e, ok := s.entries[requestID]
	s.mu.RUnlock()
	if !ok || s.expired(e) {
		return Record{}, ErrNotFound
	}
	return e.rec, nil
}

func (s *MemoryStore) expired(e memEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

// Purge deletes expired entries and returns how many were removed.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// RunSweeper purges expired entries every minute until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() {
		if n := s.Purge(); n > 0 {
			slog.Debug("Status sweeper purged entries", "count", n)
		}
	}); err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
