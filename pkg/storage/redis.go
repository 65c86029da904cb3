package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps snapshots in Redis as JSON under
// "tempalign:snapshot:<site>" with a TTL, so several daemons and readers
// can share them.
type RedisStore struct {
	mu     sync.RWMutex
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to addr and pings it. ttl 0 means 30 minutes.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Put stores the snapshot of snapshot.Site, replacing the previous one.
func (r *RedisStore) Put(ctx context.Context, s Snapshot) error {
	if err := ValidateSite(s.Site); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	cli, err := r.conn()
	if err != nil {
		return err
	}
	if err := cli.Set(ctx, snapshotKey(s.Site), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot in redis: %w", err)
	}
	return nil
}

// GetLatest returns the snapshot of site; found is false when the key is
// absent or expired.
func (r *RedisStore) GetLatest(ctx context.Context, site string) (Snapshot, bool, error) {
	if err := ValidateSite(site); err != nil {
		return Snapshot{}, false, err
	}
	cli, err := r.conn()
	if err != nil {
		return Snapshot{}, false, err
	}

	data, err := cli.Get(ctx, snapshotKey(site)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	cli, err := r.conn()
	if err != nil {
		return err
	}
	return cli.Ping(ctx).Err()
}

// Close closes the client. It is idempotent.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

func (r *RedisStore) conn() (*redis.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return nil, errors.New("redis store is closed")
	}
	return r.client, nil
}
