// Package store persists users, teams, chats, messages, and notifications as
// JSON documents in a Pebble key-value database.
//
// Key layout:
//
//	user:<id>                          user document
//	username:<username>                user id index
//	useremail:<email>                  user id index
//	team:<id>                          team document
//	chat:<id>                          chat document
//	msg:<chat_id>:<ns>-<seq>           message document, key sorts by append time
//	notif:<recipient_id>:<id>          notification document
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("store: not found")

// Store owns the Pebble database handle. It is safe for concurrent use.
type Store struct {
	db  *pebble.DB
	log *zap.Logger
	seq uint64

	// regMu serializes user registration so the uniqueness check and the
	// index writes behave as one atomic operation.
	regMu sync.Mutex
}

// Open opens (or creates) the database at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	log.Info("store_opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	s.log.Info("store_closed")
	return nil
}

// get unmarshals the document at key into out, or returns ErrNotFound.
func (s *Store) get(key string, out any) error {
	value, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	return json.Unmarshal(value, out)
}

// set marshals doc and writes it at key with a synced WAL.
func (s *Store) set(key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Set([]byte(key), data, pebble.Sync)
}

func (s *Store) delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

func (s *Store) exists(key string) (bool, error) {
	_, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = closer.Close()
	return true, nil
}

// prefixIter returns an iterator bounded to keys starting with prefix.
// Keys are ASCII, so a single 0xff byte is a valid exclusive upper bound.
func (s *Store) prefixIter(prefix string) (*pebble.Iterator, error) {
	lower := []byte(prefix)
	upper := append(append([]byte(nil), lower...), 0xff)
	return s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
}
