// Package repos provides typed repositories over the core store.
package repos

import (
	"context"
	"strconv"

	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

// BaseRepo provides common CRUD over the core store for a specific resource type.
// T is the typed payload struct (e.g., types.Node, types.ComponentInstance).
type BaseRepo[T any] struct {
	core         store.Store
	resourceType types.ResourceType
}

func NewBaseRepo[T any](core store.Store, rt types.ResourceType) *BaseRepo[T] {
	return &BaseRepo[T]{core: core, resourceType: rt}
}

func (r *BaseRepo[T]) Create(ctx context.Context, namespace, name string, obj *T) error {
	return r.core.Create(ctx, r.resourceType, namespace, name, obj)
}

func (r *BaseRepo[T]) Get(ctx context.Context, namespace, name string) (*T, error) {
	var out T
	if err := r.core.Get(ctx, r.resourceType, namespace, name, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *BaseRepo[T]) Update(ctx context.Context, namespace, name string, obj *T) error {
	return r.core.Update(ctx, r.resourceType, namespace, name, obj)
}

func (r *BaseRepo[T]) Delete(ctx context.Context, namespace, name string) error {
	return r.core.Delete(ctx, r.resourceType, namespace, name)
}

// List returns typed list within a namespace
func (r *BaseRepo[T]) List(ctx context.Context, namespace string) ([]*T, error) {
	var items []T
	if err := r.core.List(ctx, r.resourceType, namespace, &items); err != nil {
		return nil, err
	}
	return pointers(items), nil
}

// Tx binds the repository to an open transaction.
func (r *BaseRepo[T]) Tx(tx store.Transaction) *TxRepo[T] {
	return &TxRepo[T]{tx: tx, resourceType: r.resourceType}
}

func (r *BaseRepo[T]) Core() store.Store { return r.core }

// TxRepo is a BaseRepo bound to a transaction.
type TxRepo[T any] struct {
	tx           store.Transaction
	resourceType types.ResourceType
}

func (r *TxRepo[T]) Create(namespace, name string, obj *T) error {
	return r.tx.Create(r.resourceType, namespace, name, obj)
}

func (r *TxRepo[T]) Get(namespace, name string) (*T, error) {
	var out T
	if err := r.tx.Get(r.resourceType, namespace, name, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *TxRepo[T]) List(namespace string) ([]*T, error) {
	var items []T
	if err := r.tx.List(r.resourceType, namespace, &items); err != nil {
		return nil, err
	}
	return pointers(items), nil
}

func (r *TxRepo[T]) Put(namespace, name string, obj *T) error {
	return r.tx.Put(r.resourceType, namespace, name, obj)
}

func (r *TxRepo[T]) Update(namespace, name string, obj *T) error {
	return r.tx.Update(r.resourceType, namespace, name, obj)
}

func (r *TxRepo[T]) Delete(namespace, name string) error {
	return r.tx.Delete(r.resourceType, namespace, name)
}

func pointers[T any](items []T) []*T {
	out := make([]*T, 0, len(items))
	for i := range items {
		out = append(out, &items[i])
	}
	return out
}

// ClusterNamespace is the store namespace of records scoped to a cluster.
func ClusterNamespace(clusterID int64) string {
	return strconv.FormatInt(clusterID, 10)
}

func idName(id int64) string {
	return strconv.FormatInt(id, 10)
}
