// Package clientkv persists a key transparency client's verified
// records in a kv.DB: the distinguished tree head under a single
// well-known key, and one opaque state blob per account. The blobs
// are stored and returned verbatim; this package never interprets
// them.
package clientkv

import (
	"errors"

	"github.com/google/uuid"

	"github.com/keytrans-sys/keytrans-go/protocol"
	"github.com/keytrans-sys/keytrans-go/storage/kv"
)

// Store implements the client's persistent record store on top of a
// kv.DB. All methods are safe for concurrent use as long as the
// underlying kv.DB is.
type Store struct {
	db kv.DB
}

// New creates a Store reading and writing through db. The caller
// keeps ownership of db and is responsible for closing it.
func New(db kv.DB) *Store {
	return &Store{db: db}
}

// LastDistinguishedTreeHead returns the stored distinguished tree
// head, or found == false if this store has never seen one.
func (s *Store) LastDistinguishedTreeHead() ([]byte, bool, error) {
	return s.get(distinguishedKey())
}

// SetLastDistinguishedTreeHead replaces the stored distinguished tree
// head with head. A nil head clears the record, so that the next
// operation bootstraps a fresh one from the directory.
func (s *Store) SetLastDistinguishedTreeHead(head []byte) error {
	if head == nil {
		return s.delete(distinguishedKey())
	}
	return s.put(distinguishedKey(), head)
}

// AccountData returns the verified state stored for aci, or
// found == false if the account was never searched through this store.
func (s *Store) AccountData(aci protocol.ACI) ([]byte, bool, error) {
	return s.get(accountKey(aci))
}

// SetAccountData replaces the verified state stored for aci.
func (s *Store) SetAccountData(aci protocol.ACI, state []byte) error {
	return s.put(accountKey(aci), state)
}

// ACIs lists the accounts this store holds verified state for.
func (s *Store) ACIs() ([]protocol.ACI, error) {
	it := s.db.NewIterator(kv.BytesPrefix([]byte{AccountIdentifier}))
	defer it.Release()

	var acis []protocol.ACI
	for ok := it.First(); ok; ok = it.Next() {
		aci, err := uuid.FromBytes(it.Key()[1:])
		if err != nil {
			return nil, err
		}
		acis = append(acis, aci)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return acis, nil
}

func (s *Store) get(key []byte) ([]byte, bool, error) {
	value, err := s.db.Get(key)
	if errors.Is(err, s.db.ErrNotFound()) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// copy so callers can't alias the backend's buffers
	ret := make([]byte, len(value))
	copy(ret, value)
	return ret, true, nil
}

func (s *Store) put(key, value []byte) error {
	wb := s.db.NewBatch()
	wb.Put(key, value)
	return s.db.Write(wb)
}

func (s *Store) delete(key []byte) error {
	wb := s.db.NewBatch()
	wb.Delete(key)
	return s.db.Write(wb)
}

func distinguishedKey() []byte {
	return []byte{DistinguishedIdentifier}
}

func accountKey(aci protocol.ACI) []byte {
	key := make([]byte, 0, 1+len(aci))
	key = append(key, AccountIdentifier)
	key = append(key, aci[:]...)
	return key
}
