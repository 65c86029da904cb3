package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in a map. It is safe for concurrent use.
//
// With a TTL, a background goroutine drops snapshots older than the TTL;
// call Stop to end it. Snapshots do not survive a restart and are not
// shared between instances; use RedisStore or BadgerStore for that.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
	ttl       time.Duration
	now       func() time.Time

	ticker   *time.Ticker
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a store without expiry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot), now: time.Now}
}

// NewMemoryStoreWithTTL creates a store that removes snapshots older than
// ttl every cleanupInterval (one minute when <= 0).
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &MemoryStore{
		snapshots: make(map[string]Snapshot),
		ttl:       ttl,
		now:       time.Now,
		ticker:    time.NewTicker(cleanupInterval),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.runCleanup()
	return s
}

// Stop ends the cleanup goroutine and waits for it. It is safe to call
// more than once and on a store without TTL.
func (s *MemoryStore) Stop() {
	if s.ticker == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.ticker.Stop()
	})
}

func (s *MemoryStore) runCleanup() {
	defer close(s.done)
	for {
		select {
		case <-s.ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for site, snap := range s.snapshots {
		if now.Sub(snap.GeneratedAt) > s.ttl {
			delete(s.snapshots, site)
		}
	}
}

// Put replaces the snapshot of snapshot.Site.
func (s *MemoryStore) Put(ctx context.Context, snapshot Snapshot) error {
	if err := ValidateSite(snapshot.Site); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Site] = snapshot
	return nil
}

// GetLatest returns the snapshot of site. Expired snapshots are reported
// as absent even before the janitor removes them.
func (s *MemoryStore) GetLatest(ctx context.Context, site string) (Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, found := s.snapshots[site]
	if found && s.ttl > 0 && s.now().Sub(snap.GeneratedAt) > s.ttl {
		return Snapshot{}, false, nil
	}
	return snap, found, nil
}
