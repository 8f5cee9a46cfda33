// Package storage - BadgerDB-backed engine.
package storage

import (
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const nodeKeyPrefix = "node:"

// BadgerEngine persists nodes in a BadgerDB key-value store.
//
// Keys are "node:<id>"; values are msgpack-encoded Node records framed with
// a magic/version header (see serialization.go). Thread-safe: Badger
// transactions provide isolation.
type BadgerEngine struct {
	db *badger.DB
}

// NewBadgerEngine opens (or creates) a Badger store at dir.
func NewBadgerEngine(dir string) (*BadgerEngine, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerEngine{db: db}, nil
}

func nodeKey(id NodeID) []byte {
	return []byte(nodeKeyPrefix + string(id))
}

func (b *BadgerEngine) CreateNode(node *Node) (*Node, error) {
	stored := copyNode(node)
	touchTimestamps(stored, true)
	err := b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		data, err := encodeNode(stored)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}
	return copyNode(stored), nil
}

func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			node, err = decodeNode(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (b *BadgerEngine) UpdateNode(node *Node) error {
	stored := copyNode(node)
	touchTimestamps(stored, false)
	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		data, err := encodeNode(stored)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (b *BadgerEngine) DeleteNode(id NodeID) error {
	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(id)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (b *BadgerEngine) AllNodes(fn func(*Node) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(nodeKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var node *Node
			err := it.Item().Value(func(val []byte) error {
				var decodeErr error
				node, decodeErr = decodeNode(val)
				return decodeErr
			})
			if err != nil {
				return err
			}
			if err := fn(node); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerEngine) DeleteByPrefix(prefix string) (int, error) {
	var toDelete [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(nodeKeyPrefix + prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			toDelete = append(toDelete, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, key := range toDelete {
		err := b.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (b *BadgerEngine) Close() error {
	return b.db.Close()
}

// touchTimestamps fills CreatedAt/UpdatedAt the way MemoryEngine does, so
// stores behave the same across backends.
func touchTimestamps(n *Node, creating bool) {
	now := time.Now()
	if creating && n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
}
