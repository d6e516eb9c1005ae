// Package store provides the key/value persistence layer for placer records.
package store

import (
	"context"
	"errors"

	"github.com/rzbill/placer/pkg/types"
)

var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a resource that exists.
	ErrAlreadyExists = errors.New("already exists")
)

// AllNamespaces lists resources of a type across every namespace.
const AllNamespaces = "*"

// Store defines the interface for state storage operations. Values are
// serialized as JSON.
type Store interface {
	// Open initializes and opens the store.
	Open(path string) error

	// Close closes the store and releases resources.
	Close() error

	// Create creates a new resource.
	Create(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error

	// Get retrieves a resource by type, namespace, and name.
	Get(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error

	// List decodes every resource of a type in a namespace into resource,
	// which must point to a slice. Results are ordered lexicographically by name.
	List(ctx context.Context, resourceType types.ResourceType, namespace string, resource interface{}) error

	// Update updates an existing resource.
	Update(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error

	// Delete deletes a resource.
	Delete(ctx context.Context, resourceType types.ResourceType, namespace, name string) error

	// Transaction executes fn atomically. Either every write made through tx
	// is committed or none is. The transaction is rolled back when fn fails
	// or ctx is done before commit.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error
}

// Transaction represents a store transaction. Reads observe the
// transaction's own writes.
type Transaction interface {
	Create(resourceType types.ResourceType, namespace, name string, resource interface{}) error
	Get(resourceType types.ResourceType, namespace, name string, resource interface{}) error
	List(resourceType types.ResourceType, namespace string, resource interface{}) error
	Update(resourceType types.ResourceType, namespace, name string, resource interface{}) error

	// Put creates or replaces a resource.
	Put(resourceType types.ResourceType, namespace, name string, resource interface{}) error

	Delete(resourceType types.ResourceType, namespace, name string) error
}

// IsNotFoundError checks if an error is a not found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExistsError checks if an error is an already exists error.
func IsAlreadyExistsError(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
