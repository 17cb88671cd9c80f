package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const subscribersBktName = "subscribers"

// Bolt is a storage that uses BoltDB as a backend.
type Bolt struct {
	db *bolt.DB
}

type subscriber struct {
	ChatID int64     `json:"chat_id"`
	Since  time.Time `json:"since"`
}

// NewBolt creates new Bolt storage in the given file.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to make boltdb for %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(subscribersBktName)); err != nil {
			return fmt.Errorf("create top-level bucket %s: %w", subscribersBktName, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("make buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Load returns all subscribers from storage.
func (b *Bolt) Load(context.Context) ([]int64, error) {
	var ids []int64
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(subscribersBktName))
		if bkt == nil {
			return ErrNotFound
		}

		return bkt.ForEach(func(k, v []byte) error {
			var s subscriber
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("unmarshal subscriber %x: %w", k, err)
			}
			ids = append(ids, s.ChatID)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view storage: %w", err)
	}

	return ids, nil
}

// Save replaces the stored subscribers in a single transaction.
// Subscription time of ids already present is preserved.
func (b *Bolt) Save(_ context.Context, ids []int64) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		since := map[int64]time.Time{}

		if old := tx.Bucket([]byte(subscribersBktName)); old != nil {
			err := old.ForEach(func(_, v []byte) error {
				var s subscriber
				if err := json.Unmarshal(v, &s); err == nil {
					since[s.ChatID] = s.Since
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("read previous subscribers: %w", err)
			}
		}

		if err := tx.DeleteBucket([]byte(subscribersBktName)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("drop bucket: %w", err)
		}

		bkt, err := tx.CreateBucket([]byte(subscribersBktName))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}

		now := time.Now().UTC()
		for _, id := range ids {
			s := subscriber{ChatID: id, Since: now}
			if t, ok := since[id]; ok {
				s.Since = t
			}

			bts, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("marshal subscriber %d: %w", id, err)
			}

			if err = bkt.Put(idKey(id), bts); err != nil {
				return fmt.Errorf("put subscriber %d: %w", id, err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("update storage: %w", err)
	}

	return nil
}

// Close closes the storage.
func (b *Bolt) Close() error { return b.db.Close() }

func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
