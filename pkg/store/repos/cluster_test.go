package repos

import (
	"context"
	"testing"

	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

func TestClusterRepoCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewClusterRepo(store.NewMemoryStore())

	storage := &types.Cluster{Name: "storageA", Type: types.ClusterTypeStorage}
	if err := repo.Create(ctx, storage); err != nil {
		t.Fatalf("Failed to create cluster: %v", err)
	}
	if storage.ID != 1 {
		t.Fatalf("Expected first cluster id 1, got %d", storage.ID)
	}

	compute := &types.Cluster{Name: "computeA", Type: types.ClusterTypeCompute, RelativeClusterID: storage.ID}
	if err := repo.Create(ctx, compute); err != nil {
		t.Fatalf("Failed to create compute cluster: %v", err)
	}
	if compute.ID != 2 {
		t.Fatalf("Expected second cluster id 2, got %d", compute.ID)
	}

	got, err := repo.Resolve(ctx, "computea")
	if err != nil {
		t.Fatalf("Failed to resolve cluster by name: %v", err)
	}
	if got.ID != compute.ID || got.RelativeClusterID != storage.ID {
		t.Fatalf("Unexpected cluster: %+v", got)
	}

	got, err = repo.Resolve(ctx, "1")
	if err != nil {
		t.Fatalf("Failed to resolve cluster by id: %v", err)
	}
	if got.Name != "storageA" {
		t.Fatalf("Expected storageA, got %s", got.Name)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list clusters: %v", err)
	}
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 2 {
		t.Fatalf("Unexpected cluster list: %+v", list)
	}
}

func TestClusterRepoCreateRejects(t *testing.T) {
	ctx := context.Background()
	repo := NewClusterRepo(store.NewMemoryStore())

	computeA := &types.Cluster{Name: "computeA", Type: types.ClusterTypeCompute}
	if err := repo.Create(ctx, computeA); err != nil {
		t.Fatalf("Failed to create cluster: %v", err)
	}

	dup := &types.Cluster{Name: "COMPUTEA", Type: types.ClusterTypeStorage}
	if err := repo.Create(ctx, dup); !types.IsValidationError(err) {
		t.Fatalf("Expected validation error for duplicate name, got %v", err)
	}

	missing := &types.Cluster{Name: "computeB", Type: types.ClusterTypeCompute, RelativeClusterID: 42}
	if err := repo.Create(ctx, missing); !types.IsValidationError(err) {
		t.Fatalf("Expected validation error for missing relative, got %v", err)
	}

	notStorage := &types.Cluster{Name: "computeC", Type: types.ClusterTypeCompute, RelativeClusterID: computeA.ID}
	if err := repo.Create(ctx, notStorage); !types.IsValidationError(err) {
		t.Fatalf("Expected validation error for non-storage relative, got %v", err)
	}

	if _, err := repo.Get(ctx, 99); !store.IsNotFoundError(err) {
		t.Fatalf("Expected not found, got %v", err)
	}
}
