package store

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"collabtext/internal/crdt"
)

var snapshotBucket = []byte("snapshots")

// Bolt stores snapshots in a local bbolt file. Used when no database is
// configured but state should survive restarts.
type Bolt struct {
	db *bolt.DB
}

func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) SaveSnapshot(_ context.Context, docID string, chars []crdt.Char) error {
	buf, err := json.Marshal(chars)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put([]byte(docID), buf)
	})
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", docID, err)
	}
	return nil
}

func (b *Bolt) LoadSnapshot(_ context.Context, docID string) ([]crdt.Char, error) {
	var buf []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(snapshotBucket).Get([]byte(docID))
		if v != nil {
			buf = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %s: %w", docID, err)
	}
	if buf == nil {
		return nil, ErrNotFound
	}
	var chars []crdt.Char
	if err := json.Unmarshal(buf, &chars); err != nil {
		return nil, fmt.Errorf("decoding snapshot for %s: %w", docID, err)
	}
	return chars, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
