package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hamed0406/dnsfailover/internal/domain"
)

var bucketEvents = []byte("events")

// Bolt persists the event log in a bbolt file. Keys are the big-endian
// sequence number, so iteration order is append order.
type Bolt struct {
	db *bolt.DB
}

func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open event db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) Append(ctx context.Context, e *domain.Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketEvents)
		seq, err := bk.NextSequence()
		if err != nil {
			return err
		}
		e.ID = int64(seq)
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return bk.Put(seqKey(seq), data)
	})
}

func (b *Bolt) Range(ctx context.Context, policyID string, start, end time.Time) ([]domain.Event, error) {
	var out []domain.Event
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			var e domain.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.PolicyID != policyID || e.At.Before(start) || !e.At.Before(end) {
				return nil
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

func (b *Bolt) LastBefore(ctx context.Context, policyID string, t time.Time) (*domain.Event, error) {
	var found *domain.Event
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e domain.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.PolicyID == policyID && e.At.Before(t) {
				found = &e
				return nil
			}
		}
		return nil
	})
	return found, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
