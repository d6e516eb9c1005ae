package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rzbill/placer/pkg/types"
)

// Validate that MemoryStore implements the Store interface
var _ Store = &MemoryStore{}

// MemoryStore keeps serialized resources in a map. Transactions run one at a
// time and buffer their writes until commit. Plain reads never wait for an
// open transaction, only for a commit in progress.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Open initializes the memory store.
func (m *MemoryStore) Open(string) error {
	return nil
}

// Close closes the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Create creates a new resource.
func (m *MemoryStore) Create(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	return m.Transaction(ctx, func(tx Transaction) error {
		return tx.Create(resourceType, namespace, name, resource)
	})
}

// Get retrieves a resource.
func (m *MemoryStore) Get(_ context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().Get(resourceType, namespace, name, resource)
}

// List retrieves all resources of a given type in a namespace.
func (m *MemoryStore) List(_ context.Context, resourceType types.ResourceType, namespace string, resource interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view().List(resourceType, namespace, resource)
}

// Update updates an existing resource.
func (m *MemoryStore) Update(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	return m.Transaction(ctx, func(tx Transaction) error {
		return tx.Update(resourceType, namespace, name, resource)
	})
}

// Delete deletes a resource.
func (m *MemoryStore) Delete(ctx context.Context, resourceType types.ResourceType, namespace, name string) error {
	return m.Transaction(ctx, func(tx Transaction) error {
		return tx.Delete(resourceType, namespace, name)
	})
}

// Transaction executes fn with buffered writes applied only on success.
func (m *MemoryStore) Transaction(ctx context.Context, fn func(tx Transaction) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	// only the transaction holding txMu mutates data, so it may read it unlocked
	tx := &memoryTransaction{base: m.data, pending: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction abandoned before commit: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, val := range tx.pending {
		if val == nil {
			delete(m.data, key)
		} else {
			m.data[key] = val
		}
	}
	return nil
}

func (m *MemoryStore) view() *memoryTransaction {
	return &memoryTransaction{base: m.data}
}

// memoryTransaction overlays pending writes on the committed map. A nil
// pending value is a tombstone.
type memoryTransaction struct {
	base    map[string][]byte
	pending map[string][]byte
}

func (t *memoryTransaction) lookup(key string) ([]byte, bool) {
	if val, ok := t.pending[key]; ok {
		return val, val != nil
	}
	val, ok := t.base[key]
	return val, ok
}

func (t *memoryTransaction) write(key string, val []byte) {
	if t.pending == nil {
		panic("store: write on a read-only memory view")
	}
	t.pending[key] = val
}

func (t *memoryTransaction) Create(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	key := string(MakeKey(resourceType, namespace, name))
	if _, ok := t.lookup(key); ok {
		return keyError(resourceType, namespace, name, ErrAlreadyExists)
	}
	return t.Put(resourceType, namespace, name, resource)
}

func (t *memoryTransaction) Get(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	val, ok := t.lookup(string(MakeKey(resourceType, namespace, name)))
	if !ok {
		return keyError(resourceType, namespace, name, ErrNotFound)
	}
	return decode(val, resource)
}

func (t *memoryTransaction) List(resourceType types.ResourceType, namespace string, resource interface{}) error {
	prefix := string(MakePrefix(resourceType, namespace))

	seen := make(map[string]bool)
	var keys []string
	for _, src := range []map[string][]byte{t.pending, t.base} {
		for key := range src {
			if strings.HasPrefix(key, prefix) && !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)

	var raws [][]byte
	for _, key := range keys {
		if val, ok := t.lookup(key); ok {
			raws = append(raws, val)
		}
	}
	return decodeList(raws, resource)
}

func (t *memoryTransaction) Update(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	if _, ok := t.lookup(string(MakeKey(resourceType, namespace, name))); !ok {
		return keyError(resourceType, namespace, name, ErrNotFound)
	}
	return t.Put(resourceType, namespace, name, resource)
}

func (t *memoryTransaction) Put(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	data, err := encode(resource)
	if err != nil {
		return err
	}
	t.write(string(MakeKey(resourceType, namespace, name)), data)
	return nil
}

func (t *memoryTransaction) Delete(resourceType types.ResourceType, namespace, name string) error {
	key := string(MakeKey(resourceType, namespace, name))
	if _, ok := t.lookup(key); !ok {
		return keyError(resourceType, namespace, name, ErrNotFound)
	}
	t.write(key, nil)
	return nil
}
