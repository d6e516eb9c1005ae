package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/types"
)

// Validate that BadgerStore implements the Store interface
var _ Store = &BadgerStore{}

// BadgerStore implements the Store interface using BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	path   string
	logger log.Logger
}

// NewBadgerStore creates a new BadgerDB-backed store.
func NewBadgerStore(logger log.Logger) *BadgerStore {
	return &BadgerStore{
		logger: log.OrDefault(logger).WithComponent("store"),
	}
}

// Open opens the BadgerDB database.
func (s *BadgerStore) Open(path string) error {
	s.path = path

	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogAdapter{logger: s.logger}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open badger db: %w", err)
	}
	s.db = db

	s.logger.Info("Placer store opened", log.Str("backend", "badger"), log.Str("path", path))
	return nil
}

// Close closes the BadgerDB database.
func (s *BadgerStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("Closing placer store", log.Str("path", s.path))
	err := s.db.Close()
	s.db = nil
	return err
}

// Create creates a new resource.
func (s *BadgerStore) Create(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	return s.Transaction(ctx, func(tx Transaction) error {
		return tx.Create(resourceType, namespace, name, resource)
	})
}

// Get retrieves a resource.
func (s *BadgerStore) Get(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		return (&BadgerTransaction{txn: txn}).Get(resourceType, namespace, name, resource)
	})
}

// List retrieves all resources of a given type in a namespace.
func (s *BadgerStore) List(ctx context.Context, resourceType types.ResourceType, namespace string, resource interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		return (&BadgerTransaction{txn: txn}).List(resourceType, namespace, resource)
	})
}

// Update updates an existing resource.
func (s *BadgerStore) Update(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	return s.Transaction(ctx, func(tx Transaction) error {
		return tx.Update(resourceType, namespace, name, resource)
	})
}

// Delete deletes a resource.
func (s *BadgerStore) Delete(ctx context.Context, resourceType types.ResourceType, namespace, name string) error {
	return s.Transaction(ctx, func(tx Transaction) error {
		return tx.Delete(resourceType, namespace, name)
	})
}

// Transaction executes multiple operations in a single transaction.
func (s *BadgerStore) Transaction(ctx context.Context, fn func(tx Transaction) error) error {
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&BadgerTransaction{txn: txn}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction abandoned before commit: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// BadgerTransaction implements Transaction on a badger.Txn.
type BadgerTransaction struct {
	txn *badger.Txn
}

// Create creates a new resource within the transaction.
func (t *BadgerTransaction) Create(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	key := MakeKey(resourceType, namespace, name)

	_, err := t.txn.Get(key)
	if err == nil {
		return keyError(resourceType, namespace, name, ErrAlreadyExists)
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("failed to check existing resource: %w", err)
	}

	return t.set(key, resource)
}

// Get retrieves a resource within the transaction.
func (t *BadgerTransaction) Get(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	item, err := t.txn.Get(MakeKey(resourceType, namespace, name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return keyError(resourceType, namespace, name, ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("failed to get resource: %w", err)
	}

	return item.Value(func(val []byte) error {
		return decode(val, resource)
	})
}

// List retrieves all resources of a type in a namespace within the transaction.
func (t *BadgerTransaction) List(resourceType types.ResourceType, namespace string, resource interface{}) error {
	prefix := MakePrefix(resourceType, namespace)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var raws [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("failed to read resource: %w", err)
		}
		raws = append(raws, val)
	}

	return decodeList(raws, resource)
}

// Update updates an existing resource within the transaction.
func (t *BadgerTransaction) Update(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	key := MakeKey(resourceType, namespace, name)

	_, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return keyError(resourceType, namespace, name, ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("failed to check existing resource: %w", err)
	}

	return t.set(key, resource)
}

// Put creates or replaces a resource within the transaction.
func (t *BadgerTransaction) Put(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	return t.set(MakeKey(resourceType, namespace, name), resource)
}

// Delete deletes a resource within the transaction.
func (t *BadgerTransaction) Delete(resourceType types.ResourceType, namespace, name string) error {
	key := MakeKey(resourceType, namespace, name)

	_, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return keyError(resourceType, namespace, name, ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("failed to check existing resource: %w", err)
	}

	if err := t.txn.Delete(key); err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	return nil
}

func (t *BadgerTransaction) set(key []byte, resource interface{}) error {
	data, err := encode(resource)
	if err != nil {
		return err
	}
	if err := t.txn.Set(key, data); err != nil {
		return fmt.Errorf("failed to store resource: %w", err)
	}
	return nil
}

// badgerLogAdapter adapts our logger to BadgerDB's logger interface.
type badgerLogAdapter struct {
	logger log.Logger
}

// Errorf implements badger.Logger.
func (l *badgerLogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("BadgerDB: "+format, args...)
}

// Warningf implements badger.Logger.
func (l *badgerLogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("BadgerDB: "+format, args...)
}

// Infof implements badger.Logger.
func (l *badgerLogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Debugf("BadgerDB: "+format, args...)
}

// Debugf implements badger.Logger.
func (l *badgerLogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debugf("BadgerDB: "+format, args...)
}
