package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func stored(s *MemoryStore) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	want := snapshot(t, "plant-a", time.Now())

	if err := store.Put(context.Background(), want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, found, err := store.GetLatest(context.Background(), "plant-a")
	if err != nil || !found {
		t.Fatalf("GetLatest() = found %v, err %v", found, err)
	}
	assertSameSnapshot(t, got, want)
}

func TestMemoryStore_PutRejectsBadSite(t *testing.T) {
	store := NewMemoryStore()
	for _, site := range []string{"", "plant a"} {
		if err := store.Put(context.Background(), Snapshot{Site: site}); err == nil {
			t.Errorf("Put(site=%q) error = nil", site)
		}
	}
	if n := stored(store); n != 0 {
		t.Errorf("stored = %d, want 0", n)
	}
}

func TestMemoryStore_GetLatest_NotFound(t *testing.T) {
	store := NewMemoryStore()
	s, found, err := store.GetLatest(context.Background(), "nowhere")
	if err != nil || found || s.Site != "" {
		t.Errorf("GetLatest() = %+v, %v, %v; want zero, false, nil", s, found, err)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, Snapshot{Site: "plant-a"}); err == nil {
		t.Error("Put() with canceled context error = nil")
	}
	if _, _, err := store.GetLatest(ctx, "plant-a"); err == nil {
		t.Error("GetLatest() with canceled context error = nil")
	}
}

func TestMemoryStore_Replace(t *testing.T) {
	store := NewMemoryStore()
	first := Snapshot{Site: "plant-a", RunID: "first"}
	second := Snapshot{Site: "plant-a", RunID: "second"}

	for _, s := range []Snapshot{first, second} {
		if err := store.Put(context.Background(), s); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	got, _, _ := store.GetLatest(context.Background(), "plant-a")
	if n := stored(store); got.RunID != "second" || n != 1 {
		t.Errorf("RunID = %s, stored = %d; want second, 1", got.RunID, n)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	sites := []string{"plant-a", "plant-b", "plant-c", "plant-d"}

	var wg sync.WaitGroup
	for _, site := range sites {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 100 {
				s := Snapshot{Site: site, RunID: fmt.Sprintf("%s-%d", site, i), GeneratedAt: time.Now()}
				if err := store.Put(context.Background(), s); err != nil {
					t.Errorf("Put(%s) error = %v", site, err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				if _, _, err := store.GetLatest(context.Background(), site); err != nil {
					t.Errorf("GetLatest(%s) error = %v", site, err)
				}
			}
		}()
	}
	wg.Wait()

	if n := stored(store); n != len(sites) {
		t.Errorf("stored = %d, want %d", n, len(sites))
	}
	for _, site := range sites {
		got, found, _ := store.GetLatest(context.Background(), site)
		if !found || got.RunID != site+"-99" {
			t.Errorf("GetLatest(%s) = %s, found %v; want %s-99", site, got.RunID, found, site)
		}
	}
}

func TestMemoryStoreWithTTL_Expiration(t *testing.T) {
	ttl := 100 * time.Millisecond
	cleanupInterval := 50 * time.Millisecond
	store := NewMemoryStoreWithTTL(ttl, cleanupInterval)
	defer store.Stop()

	if err := store.Put(context.Background(), Snapshot{Site: "plant-a", GeneratedAt: time.Now()}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, found, _ := store.GetLatest(context.Background(), "plant-a"); !found {
		t.Fatal("snapshot should exist immediately after Put")
	}

	time.Sleep(ttl + cleanupInterval + 50*time.Millisecond)

	if _, found, _ := store.GetLatest(context.Background(), "plant-a"); found {
		t.Error("snapshot should be gone after TTL")
	}
	if n := stored(store); n != 0 {
		t.Errorf("stored = %d after cleanup, want 0", n)
	}
}

func TestMemoryStoreWithTTL_ExpiredBeforeCleanup(t *testing.T) {
	store := NewMemoryStoreWithTTL(time.Minute, time.Hour)
	defer store.Stop()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Put(context.Background(), Snapshot{Site: "plant-a", GeneratedAt: now.Add(-2 * time.Minute)}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, found, _ := store.GetLatest(context.Background(), "plant-a"); found {
		t.Error("expired snapshot reported as found")
	}
	if n := stored(store); n != 1 {
		t.Errorf("stored = %d, want 1 until the janitor runs", n)
	}
}

func TestMemoryStore_StopIsIdempotent(t *testing.T) {
	NewMemoryStore().Stop()

	store := NewMemoryStoreWithTTL(time.Minute, 0)
	store.Stop()
	store.Stop()
}
