// Package badgerkv implements the kv interface using badger
package badgerkv

import (
	"bytes"
	"fmt"

	"github.com/dgraph-io/badger"

	"github.com/keytrans-sys/keytrans-go/storage/kv"
)

type badgerkv badger.DB

// OpenDB opens the badger database at path, creating it if needed,
// and keeps it open.
func OpenDB(path string) kv.DB {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		panic(err)
	}
	return Wrap(db)
}

// Wrap uses a badger.DB as a kv.DB the obvious way. Every write runs
// in its own committed transaction.
func Wrap(db *badger.DB) kv.DB {
	return (*badgerkv)(db)
}

func (db *badgerkv) Get(key []byte) ([]byte, error) {
	var value []byte
	err := (*badger.DB)(db).View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

func (db *badgerkv) Put(key, value []byte) error {
	return (*badger.DB)(db).Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (db *badgerkv) Delete(key []byte) error {
	return (*badger.DB)(db).Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

type batch struct {
	ops []batchOp
}

func (b *batch) Reset() { b.ops = b.ops[:0] }

func (b *batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: key, value: value})
}

func (b *batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: key, delete: true})
}

func (db *badgerkv) NewBatch() kv.Batch {
	return new(batch)
}

func (db *badgerkv) Write(b kv.Batch) error {
	wb, ok := b.(*batch)
	if !ok {
		return fmt.Errorf("badgerkv.Write: expected *badgerkv.batch, got %T", b)
	}
	return (*badger.DB)(db).Update(func(txn *badger.Txn) error {
		for _, op := range wb.ops {
			if op.delete {
				if err := txn.Delete(op.key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
}

// NewIterator materializes the entries in rg under a read transaction.
// Badger cannot step a live iterator outside its transaction, so the
// snapshot is taken eagerly; the stores built on this package hold few
// records per database.
func (db *badgerkv) NewIterator(rg *kv.Range) kv.Iterator {
	var start, limit []byte
	if rg != nil {
		start, limit = rg.Start, rg.Limit
	}
	it := new(iterator)
	it.err = (*badger.DB)(db).View(func(txn *badger.Txn) error {
		bit := txn.NewIterator(badger.DefaultIteratorOptions)
		defer bit.Close()
		for bit.Seek(start); bit.Valid(); bit.Next() {
			item := bit.Item()
			key := item.KeyCopy(nil)
			if limit != nil && bytes.Compare(key, limit) >= 0 {
				break
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			it.keys = append(it.keys, key)
			it.values = append(it.values, value)
		}
		return nil
	})
	return it
}

func (db *badgerkv) Close() error {
	return (*badger.DB)(db).Close()
}

func (db *badgerkv) ErrNotFound() error {
	return badger.ErrKeyNotFound
}

type iterator struct {
	keys   [][]byte
	values [][]byte
	pos    int
	err    error
}

var _ kv.Iterator = (*iterator)(nil)

func (it *iterator) Key() []byte {
	return it.keys[it.pos]
}

func (it *iterator) Value() []byte {
	return it.values[it.pos]
}

func (it *iterator) First() bool {
	it.pos = 0
	return len(it.keys) > 0
}

func (it *iterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *iterator) Last() bool {
	it.pos = len(it.keys) - 1
	return len(it.keys) > 0
}

func (it *iterator) Release() {}

func (it *iterator) Error() error {
	return it.err
}
