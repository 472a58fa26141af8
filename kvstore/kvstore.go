package kvstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/dgraph-io/badger/options"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is a badger database shared by any number of typed stores.
type DB struct {
	db  *badger.DB
	log *zap.Logger

	stop chan struct{}
	once sync.Once
}

// Open opens (or creates) a badger database at path and starts the hourly
// value log GC. logger receives badger's own output.
func Open(path string, logger badger.Logger, log *zap.Logger) (*DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Truncate = true
	opts.ValueLogLoadingMode = options.FileIO
	opts.NumVersionsToKeep = 1
	opts.Logger = logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %v: %w", path, err)
	}

	d := &DB{
		db:   db,
		log:  log.Named("kvstore"),
		stop: make(chan struct{}),
	}
	go d.runGC(time.Hour)
	return d, nil
}

func (d *DB) Close() error {
	d.once.Do(func() { close(d.stop) })
	return d.db.Close()
}

func (d *DB) runGC(interval time.Duration) {
	gcTicker := time.NewTicker(interval)
	defer gcTicker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-gcTicker.C:
			for {
				err := d.db.RunValueLogGC(0.7)
				if err == badger.ErrNoRewrite || err == badger.ErrRejected {
					break
				}
				if err != nil {
					d.log.Error("failed to run gc", zap.Error(err))
					break
				}
			}
		}
	}
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(v)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	buffer := bytes.NewReader(data)
	return gob.NewDecoder(buffer).Decode(v)
}

// Badger stores gob encoded values of type T. A non-zero ttl makes every
// Set expire after that long.
type Badger[T any] struct {
	db  *DB
	ttl time.Duration
}

func NewBadger[T any](db *DB, ttl time.Duration) *Badger[T] {
	return &Badger[T]{db: db, ttl: ttl}
}

func (s *Badger[T]) Get(_ context.Context, key string) (*T, error) {
	var v T
	if err := s.db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return decodeGob(value, &v)
	}); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		s.db.log.Error("failed to read value", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return &v, nil
}

func (s *Badger[T]) Set(_ context.Context, key string, v *T) error {
	enc, err := encodeGob(v)
	if err != nil {
		return fmt.Errorf("failed to encode %v: %w", key, err)
	}
	return s.db.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), enc)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s *Badger[T]) Has(_ context.Context, key string) (bool, error) {
	err := s.db.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Badger[T]) Delete(_ context.Context, key string) error {
	return s.db.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *Badger[T]) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}
