// Package bond persists the single wearable bond address that survives
// resets (spec.md §4.2, C2). The real firmware keeps this in flash/NVS;
// here a single-bucket bbolt database stands in for that NVS namespace,
// since bbolt's single-writer-transaction model gives the same
// all-or-nothing durability guarantee a flash page write would.
package bond

import (
	"errors"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("bond")
var addressKey = []byte("wearable_address")

// ErrNoBond is returned by Get when no bond is stored.
var ErrNoBond = errors.New("bond: no address stored")

// Store is the single-slot bond key-value store.
type Store struct {
	mu sync.Mutex
	db *bolt.DB
}

// Open opens (creating if absent) the bond database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bond: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bond: init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Has reports whether a bond address is currently stored.
func (s *Store) Has() bool {
	_, err := s.Get()
	return err == nil
}

// Get returns the bonded wearable address.
func (s *Store) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var addr string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get(addressKey)
		if v == nil {
			return ErrNoBond
		}
		addr = string(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	return addr, nil
}

// Store durably persists addr as the single wearable bond. The write
// is atomic: bbolt's Update runs in one transaction, so either addr is
// fully committed or the previous value (or absence of one) survives.
func (s *Store) Store(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put(addressKey, []byte(addr))
	})
}

// Clear removes the stored bond. unpair, if non-nil, is invoked with
// the address that was cleared so the caller can drop any live link
// bearing that address; it runs after the bond record has been deleted.
func (s *Store) Clear(unpair func(addr string)) error {
	s.mu.Lock()
	prev, getErr := s.getLocked()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Delete(addressKey)
	})
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("bond: clear: %w", err)
	}
	if getErr == nil && unpair != nil {
		unpair(prev)
	}
	return nil
}

func (s *Store) getLocked() (string, error) {
	var addr string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get(addressKey)
		if v == nil {
			return ErrNoBond
		}
		addr = string(v)
		return nil
	})
	return addr, err
}

// Matches reports whether addr is allowed to become the Wearable link:
// either no bond exists yet (fresh pair, spec.md scenario 1), or addr
// equals the stored bond (spec.md scenario 2).
func (s *Store) Matches(addr string) bool {
	stored, err := s.Get()
	if err != nil {
		return true
	}
	return stored == addr
}
