package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger"
	"go.uber.org/zap"

	"github.com/heysubinoy/dollarkv/pkg/kv"
)

// BadgerStore is a disk-backed kv.Store built on badger's LSM tree.
// Every Put and Get runs in its own badger transaction.
type BadgerStore struct {
	db  *badger.DB
	dir string
}

// Compile-time check to ensure BadgerStore implements kv.Store.
var _ kv.Store = (*BadgerStore)(nil)

// OpenBadgerStore opens (creating if needed) a badger database in dir.
// Badger's own logging is routed to log.
func OpenBadgerStore(dir string, log *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{log.Sugar()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger in %s: %w", dir, err)
	}
	return &BadgerStore{db: db, dir: dir}, nil
}

// Get reads key inside a read-only transaction.
func (s *BadgerStore) Get(key string) (string, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger get %q: %w", key, err)
	}
	return string(value), true, nil
}

// Put writes key inside a read-write transaction.
func (s *BadgerStore) Put(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger put %q: %w", key, err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) String() string {
	return fmt.Sprintf("BadgerStore{dir: %s}", s.dir)
}

// badgerLogger adapts a zap sugared logger to badger.Logger.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }
