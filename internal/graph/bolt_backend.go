package graph

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// bucketNodes is the single bbolt bucket souls are stored under.
var bucketNodes = []byte("nodes")

// BoltBackend is the durable Collaborator selected when the `radisk`
// config option is set. It replaces the teacher's hand-rolled
// WAL-plus-snapshot pair (store/wal.go, store/snapshot.go) with a single
// embedded B+tree store: bbolt already gives every write fsync durability
// and atomic commit, so a bespoke WAL would only duplicate what the
// library provides.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens (or creates) a bbolt database at path.
func NewBoltBackend(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNodes)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Get(soul string) (*Node, bool, error) {
	var node *Node
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketNodes)
		raw := bucket.Get([]byte(soul))
		if raw == nil {
			return nil
		}
		node = &Node{}
		return json.Unmarshal(raw, node)
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", soul, err)
	}
	if node == nil {
		return nil, false, nil
	}
	return node, true, nil
}

func (b *BoltBackend) Put(soul string, node *Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", soul, err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Put([]byte(soul), data)
	})
}

func (b *BoltBackend) Keys() ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

func (b *BoltBackend) Close() error { return b.db.Close() }
