package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/types"
)

// Validate that SQLiteStore implements the Store interface
var _ Store = &SQLiteStore{}

// SQLiteFilename is the database file created inside the store directory.
const SQLiteFilename = "placer.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS resources (
	resource_type TEXT NOT NULL,
	namespace     TEXT NOT NULL,
	name          TEXT NOT NULL,
	data          TEXT NOT NULL,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (resource_type, namespace, name)
) WITHOUT ROWID;
`

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// SQLiteStore implements the Store interface on a pooled SQLite database.
// Mutations run in IMMEDIATE transactions so writers serialize on the
// database lock instead of failing at commit.
type SQLiteStore struct {
	pool     *sqlitex.Pool
	path     string
	poolSize int
	logger   log.Logger
}

// NewSQLiteStore creates a new SQLite-backed store. A poolSize of zero or
// less uses four connections.
func NewSQLiteStore(logger log.Logger, poolSize int) *SQLiteStore {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &SQLiteStore{
		poolSize: poolSize,
		logger:   log.OrDefault(logger).WithComponent("store"),
	}
}

// Open opens (creating if needed) the database inside directory path.
func (s *SQLiteStore) Open(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	s.path = filepath.Join(path, SQLiteFilename)

	pool, err := sqlitex.NewPool(s.path, sqlitex.PoolOptions{
		PoolSize:    s.poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return fmt.Errorf("failed to open sqlite db %s: %w", s.path, err)
	}
	s.pool = pool

	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return fmt.Errorf("failed to take sqlite connection: %w", err)
	}
	err = sqlitex.ExecuteScript(conn, sqliteSchema, nil)
	pool.Put(conn)
	if err != nil {
		pool.Close()
		return fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	s.logger.Info("Placer store opened",
		log.Str("backend", "sqlite"),
		log.Str("path", s.path),
		log.Int("pool_size", s.poolSize))
	return nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range sqlitePragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes every pooled connection.
func (s *SQLiteStore) Close() error {
	if s.pool == nil {
		return nil
	}
	s.logger.Info("Closing placer store", log.Str("path", s.path))
	err := s.pool.Close()
	s.pool = nil
	return err
}

// Create creates a new resource.
func (s *SQLiteStore) Create(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	return s.Transaction(ctx, func(tx Transaction) error {
		return tx.Create(resourceType, namespace, name, resource)
	})
}

// Get retrieves a resource.
func (s *SQLiteStore) Get(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	return s.withConn(ctx, func(tx *SQLiteTransaction) error {
		return tx.Get(resourceType, namespace, name, resource)
	})
}

// List retrieves all resources of a given type in a namespace.
func (s *SQLiteStore) List(ctx context.Context, resourceType types.ResourceType, namespace string, resource interface{}) error {
	return s.withConn(ctx, func(tx *SQLiteTransaction) error {
		return tx.List(resourceType, namespace, resource)
	})
}

// Update updates an existing resource.
func (s *SQLiteStore) Update(ctx context.Context, resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	return s.withConn(ctx, func(tx *SQLiteTransaction) error {
		return tx.Update(resourceType, namespace, name, resource)
	})
}

// Delete deletes a resource.
func (s *SQLiteStore) Delete(ctx context.Context, resourceType types.ResourceType, namespace, name string) error {
	return s.withConn(ctx, func(tx *SQLiteTransaction) error {
		return tx.Delete(resourceType, namespace, name)
	})
}

// Transaction executes fn inside an IMMEDIATE transaction.
func (s *SQLiteStore) Transaction(ctx context.Context, fn func(tx Transaction) error) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("failed to take sqlite connection: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if err = fn(&SQLiteTransaction{conn: conn}); err != nil {
		return err
	}

	if err = ctx.Err(); err != nil {
		return fmt.Errorf("transaction abandoned before commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) withConn(ctx context.Context, fn func(tx *SQLiteTransaction) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("failed to take sqlite connection: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(&SQLiteTransaction{conn: conn})
}

// SQLiteTransaction implements Transaction on a connection. Outside of
// SQLiteStore.Transaction each statement commits on its own.
type SQLiteTransaction struct {
	conn *sqlite.Conn
}

func (t *SQLiteTransaction) exists(resourceType types.ResourceType, namespace, name string) (bool, error) {
	found := false
	err := sqlitex.Execute(t.conn,
		`SELECT 1 FROM resources WHERE resource_type = ? AND namespace = ? AND name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(resourceType), namespace, name},
			ResultFunc: func(*sqlite.Stmt) error {
				found = true
				return nil
			},
		})
	if err != nil {
		return false, fmt.Errorf("failed to check existing resource: %w", err)
	}
	return found, nil
}

// Create creates a new resource within the transaction.
func (t *SQLiteTransaction) Create(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	found, err := t.exists(resourceType, namespace, name)
	if err != nil {
		return err
	}
	if found {
		return keyError(resourceType, namespace, name, ErrAlreadyExists)
	}
	return t.Put(resourceType, namespace, name, resource)
}

// Get retrieves a resource within the transaction.
func (t *SQLiteTransaction) Get(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	var data string
	found := false
	err := sqlitex.Execute(t.conn,
		`SELECT data FROM resources WHERE resource_type = ? AND namespace = ? AND name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(resourceType), namespace, name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				data = stmt.ColumnText(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("failed to get resource: %w", err)
	}
	if !found {
		return keyError(resourceType, namespace, name, ErrNotFound)
	}
	return decode([]byte(data), resource)
}

// List retrieves all resources of a type in a namespace within the transaction.
func (t *SQLiteTransaction) List(resourceType types.ResourceType, namespace string, resource interface{}) error {
	query := `SELECT data FROM resources WHERE resource_type = ? AND namespace = ? ORDER BY name`
	args := []any{string(resourceType), namespace}
	if namespace == AllNamespaces || namespace == "" {
		query = `SELECT data FROM resources WHERE resource_type = ? ORDER BY namespace, name`
		args = args[:1]
	}

	var raws [][]byte
	err := sqlitex.Execute(t.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			raws = append(raws, []byte(stmt.ColumnText(0)))
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to list resources: %w", err)
	}
	return decodeList(raws, resource)
}

// Update updates an existing resource within the transaction.
func (t *SQLiteTransaction) Update(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	data, err := encode(resource)
	if err != nil {
		return err
	}
	err = sqlitex.Execute(t.conn,
		`UPDATE resources SET data = ?, updated_at = ? WHERE resource_type = ? AND namespace = ? AND name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(data), time.Now().UnixNano(), string(resourceType), namespace, name},
		})
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	if t.conn.Changes() == 0 {
		return keyError(resourceType, namespace, name, ErrNotFound)
	}
	return nil
}

// Put creates or replaces a resource within the transaction.
func (t *SQLiteTransaction) Put(resourceType types.ResourceType, namespace, name string, resource interface{}) error {
	data, err := encode(resource)
	if err != nil {
		return err
	}
	err = sqlitex.Execute(t.conn,
		`INSERT INTO resources (resource_type, namespace, name, data, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (resource_type, namespace, name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{string(resourceType), namespace, name, string(data), time.Now().UnixNano()},
		})
	if err != nil {
		return fmt.Errorf("failed to store resource: %w", err)
	}
	return nil
}

// Delete deletes a resource within the transaction.
func (t *SQLiteTransaction) Delete(resourceType types.ResourceType, namespace, name string) error {
	err := sqlitex.Execute(t.conn,
		`DELETE FROM resources WHERE resource_type = ? AND namespace = ? AND name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(resourceType), namespace, name},
		})
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	if t.conn.Changes() == 0 {
		return keyError(resourceType, namespace, name, ErrNotFound)
	}
	return nil
}
