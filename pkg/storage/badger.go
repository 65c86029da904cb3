package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// BadgerStore keeps snapshots in an embedded Badger database, for single
// node deployments that must survive restarts without Redis. Values are
// msgpack-encoded and zstd-compressed; expiry uses Badger entry TTLs.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewBadgerStore opens (or creates) the database at dir. An empty dir
// opens an in-memory database. ttl 0 keeps snapshots until replaced.
func NewBadgerStore(dir string, ttl time.Duration) (*BadgerStore, error) {
	if ttl < 0 {
		return nil, errors.New("badger ttl cannot be negative")
	}

	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &BadgerStore{db: db, ttl: ttl, enc: enc, dec: dec}, nil
}

// Put stores the snapshot of snapshot.Site, replacing the previous one.
func (b *BadgerStore) Put(ctx context.Context, s Snapshot) error {
	if err := ValidateSite(s.Site); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	val := b.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(snapshotKey(s.Site)), val)
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
}

// GetLatest returns the snapshot of site; found is false when absent or
// expired.
func (b *BadgerStore) GetLatest(ctx context.Context, site string) (Snapshot, bool, error) {
	if err := ValidateSite(site); err != nil {
		return Snapshot{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, false, err
	}

	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey(site)))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to read snapshot from badger: %w", err)
	}

	raw, err := b.dec.DecodeAll(val, nil)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	s, err := unmarshalSnapshot(raw)
	if err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}

// Close releases the codecs and closes the database.
func (b *BadgerStore) Close() error {
	b.enc.Close()
	b.dec.Close()
	return b.db.Close()
}

// The align types carry json tags only; msgpack reuses them so stored
// field names match the HTTP representation.
func marshalSnapshot(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(&s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func unmarshalSnapshot(raw []byte) (Snapshot, error) {
	var s Snapshot
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}
