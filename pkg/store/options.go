package store

import (
	"fmt"
	"strings"

	"github.com/rzbill/placer/pkg/log"
)

// Backend names a Store implementation.
type Backend string

const (
	// BackendBadger stores resources in BadgerDB.
	BackendBadger Backend = "badger"

	// BackendSQLite stores resources in a SQLite database.
	BackendSQLite Backend = "sqlite"

	// BackendMemory keeps resources in process memory.
	BackendMemory Backend = "memory"
)

// Options configure the store built by Open.
type Options struct {
	Backend Backend

	// Path is the data directory of persistent backends
	Path string

	// SQLitePoolSize is the number of pooled SQLite connections
	SQLitePoolSize int

	Logger log.Logger
}

// Open builds and opens the store selected by opts.
func Open(opts Options) (Store, error) {
	var s Store
	switch Backend(strings.ToLower(string(opts.Backend))) {
	case BackendBadger, "":
		s = NewBadgerStore(opts.Logger)
	case BackendSQLite:
		s = NewSQLiteStore(opts.Logger, opts.SQLitePoolSize)
	case BackendMemory:
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}

	if err := s.Open(opts.Path); err != nil {
		return nil, err
	}
	return s, nil
}
