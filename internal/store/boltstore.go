package store

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/heysubinoy/dollarkv/pkg/kv"
)

const (
	boltFile    = "dollarkv.db"
	boltTimeout = time.Second
)

var boltBucket = []byte("kv")

// BoltStore is a disk-backed kv.Store kept in a single bolt bucket.
// Bolt serialises writers and gives each reader a consistent snapshot,
// so a Get never observes a partially applied Put.
type BoltStore struct {
	db *bolt.DB
}

// Compile-time check to ensure BoltStore implements kv.Store.
var _ kv.Store = (*BoltStore)(nil)

// OpenBoltStore opens (creating if needed) the bolt file inside dir.
func OpenBoltStore(dir string) (*BoltStore, error) {
	path := filepath.Join(dir, boltFile)
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: boltTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get reads key inside a read-only transaction.
func (s *BoltStore) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		// Seek rather than Get so that an empty value is distinguishable
		// from a missing key.
		k, v := tx.Bucket(boltBucket).Cursor().Seek([]byte(key))
		if k != nil && bytes.Equal(k, []byte(key)) {
			value, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("bolt get %q: %w", key, err)
	}
	return value, found, nil
}

// Put writes key inside a read-write transaction.
func (s *BoltStore) Put(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("bolt put %q: %w", key, err)
	}
	return nil
}

// Close closes the bolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) String() string {
	return fmt.Sprintf("BoltStore{path: %s}", s.db.Path())
}
