package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/types"
)

type testRecord struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Count int    `json:"count"`
}

// backends opens every Store implementation against a temp directory.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	stores := map[string]Store{}

	badgerStore := NewBadgerStore(log.NewTestLogger())
	if err := badgerStore.Open(t.TempDir()); err != nil {
		t.Fatalf("Failed to open BadgerDB store: %v", err)
	}
	stores["badger"] = badgerStore

	sqliteStore := NewSQLiteStore(log.NewTestLogger(), 2)
	if err := sqliteStore.Open(t.TempDir()); err != nil {
		t.Fatalf("Failed to open SQLite store: %v", err)
	}
	stores["sqlite"] = sqliteStore

	stores["memory"] = NewMemoryStore()

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreCRUD(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rt := types.ResourceTypeComponent

			rec := testRecord{Name: "broker", State: "SELECTED", Count: 1}
			if err := store.Create(ctx, rt, "1", "broker", rec); err != nil {
				t.Fatalf("Failed to create resource: %v", err)
			}

			err := store.Create(ctx, rt, "1", "broker", rec)
			if !IsAlreadyExistsError(err) {
				t.Fatalf("Expected already exists error, got %v", err)
			}

			var got testRecord
			if err := store.Get(ctx, rt, "1", "broker", &got); err != nil {
				t.Fatalf("Failed to get resource: %v", err)
			}
			if got != rec {
				t.Fatalf("Retrieved resource does not match original: %+v vs %+v", got, rec)
			}

			rec.State = "DEPLOYED"
			if err := store.Update(ctx, rt, "1", "broker", rec); err != nil {
				t.Fatalf("Failed to update resource: %v", err)
			}
			if err := store.Get(ctx, rt, "1", "broker", &got); err != nil || got.State != "DEPLOYED" {
				t.Fatalf("Update not visible: %+v, %v", got, err)
			}

			if err := store.Update(ctx, rt, "1", "missing", rec); !IsNotFoundError(err) {
				t.Fatalf("Expected not found on update, got %v", err)
			}

			if err := store.Delete(ctx, rt, "1", "broker"); err != nil {
				t.Fatalf("Failed to delete resource: %v", err)
			}
			if err := store.Get(ctx, rt, "1", "broker", &got); !IsNotFoundError(err) {
				t.Fatalf("Expected not found after delete, got %v", err)
			}
			if err := store.Delete(ctx, rt, "1", "broker"); !IsNotFoundError(err) {
				t.Fatalf("Expected not found on second delete, got %v", err)
			}
		})
	}
}

func TestStoreListIsolatesNamespaces(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rt := types.ResourceTypeNode

			for _, ns := range []string{"1", "10", "2"} {
				for i := 0; i < 3; i++ {
					rec := testRecord{Name: fmt.Sprintf("n%d", i), State: ns}
					if err := store.Create(ctx, rt, ns, rec.Name, rec); err != nil {
						t.Fatalf("Failed to create resource: %v", err)
					}
				}
			}

			var list []testRecord
			if err := store.List(ctx, rt, "1", &list); err != nil {
				t.Fatalf("Failed to list resources: %v", err)
			}
			if len(list) != 3 {
				t.Fatalf("Expected 3 resources in namespace 1, got %d", len(list))
			}
			for i, rec := range list {
				if rec.State != "1" || rec.Name != fmt.Sprintf("n%d", i) {
					t.Fatalf("Unexpected resource at %d: %+v", i, rec)
				}
			}

			var all []testRecord
			if err := store.List(ctx, rt, AllNamespaces, &all); err != nil {
				t.Fatalf("Failed to list all resources: %v", err)
			}
			if len(all) != 9 {
				t.Fatalf("Expected 9 resources, got %d", len(all))
			}

			var empty []testRecord
			if err := store.List(ctx, rt, "3", &empty); err != nil {
				t.Fatalf("Failed to list empty namespace: %v", err)
			}
			if len(empty) != 0 {
				t.Fatalf("Expected no resources, got %d", len(empty))
			}
		})
	}
}

func TestStoreTransactionCommitsAtomically(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rt := types.ResourceTypeComponent

			if err := store.Create(ctx, rt, "7", "stale", testRecord{Name: "stale", State: "UNSELECTED"}); err != nil {
				t.Fatalf("Failed to seed: %v", err)
			}

			err := store.Transaction(ctx, func(tx Transaction) error {
				if err := tx.Put(rt, "7", "a", testRecord{Name: "a", State: "SELECTED"}); err != nil {
					return err
				}
				if err := tx.Delete(rt, "7", "stale"); err != nil {
					return err
				}

				// reads observe the transaction's own writes
				var list []testRecord
				if err := tx.List(rt, "7", &list); err != nil {
					return err
				}
				if len(list) != 1 || list[0].Name != "a" {
					return fmt.Errorf("unexpected in-transaction view %+v", list)
				}
				var got testRecord
				if err := tx.Get(rt, "7", "stale", &got); !IsNotFoundError(err) {
					return fmt.Errorf("expected deleted row to be gone, got %v", err)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("Transaction failed: %v", err)
			}

			var list []testRecord
			if err := store.List(ctx, rt, "7", &list); err != nil {
				t.Fatalf("Failed to list: %v", err)
			}
			if len(list) != 1 || list[0].Name != "a" {
				t.Fatalf("Unexpected committed state %+v", list)
			}
		})
	}
}

func TestStoreTransactionRollsBack(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rt := types.ResourceTypeComponent
			boom := errors.New("constraint failed")

			if err := store.Create(ctx, rt, "8", "keep", testRecord{Name: "keep"}); err != nil {
				t.Fatalf("Failed to seed: %v", err)
			}

			err := store.Transaction(ctx, func(tx Transaction) error {
				if err := tx.Put(rt, "8", "new", testRecord{Name: "new"}); err != nil {
					return err
				}
				if err := tx.Delete(rt, "8", "keep"); err != nil {
					return err
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("Expected rollback error, got %v", err)
			}

			var list []testRecord
			if err := store.List(ctx, rt, "8", &list); err != nil {
				t.Fatalf("Failed to list: %v", err)
			}
			if len(list) != 1 || list[0].Name != "keep" {
				t.Fatalf("Rolled back transaction left changes: %+v", list)
			}
		})
	}
}

func TestStoreTransactionHonoursDeadline(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			rt := types.ResourceTypeComponent

			err := store.Transaction(ctx, func(tx Transaction) error {
				if err := tx.Put(rt, "9", "slow", testRecord{Name: "slow"}); err != nil {
					return err
				}
				<-ctx.Done()
				return nil
			})
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("Expected deadline error, got %v", err)
			}

			var got testRecord
			if err := store.Get(context.Background(), rt, "9", "slow", &got); !IsNotFoundError(err) {
				t.Fatalf("Expected no committed row after timeout, got %v", err)
			}
		})
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open(Options{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("Failed to open memory store: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("Expected *MemoryStore, got %T", s)
	}

	s, err = Open(Options{Backend: "SQLite", Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("Expected *SQLiteStore, got %T", s)
	}

	if _, err := Open(Options{Backend: "etcd"}); err == nil {
		t.Fatalf("Expected error for unknown backend")
	}
}

func TestParseKey(t *testing.T) {
	rt, ns, name, ok := ParseKey(MakeKey(types.ResourceTypeComponent, "3", "a/b"))
	if !ok || rt != "components" || ns != "3" || name != "a/b" {
		t.Fatalf("Unexpected parse result: %s %s %s %v", rt, ns, name, ok)
	}
	if _, _, _, ok := ParseKey([]byte("bad")); ok {
		t.Fatalf("Expected parse failure")
	}
}
