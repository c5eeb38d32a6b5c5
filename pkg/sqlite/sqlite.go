// Package sqlite wraps the mattn/go-sqlite3 driver with the read/write
// split the core uses for its config and virtual-state tables: a
// single writer connection and a pool of read-only connections, to
// avoid the classic SQLITE_BUSY contention of concurrent writers.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Op holds the options applied to Open/BuildConnectionString.
type Op struct {
	readOnly bool
	cache    string
}

// OpOption mutates an Op.
type OpOption func(*Op)

// WithReadOnly opens the database in read-only mode.
func WithReadOnly(b bool) OpOption {
	return func(op *Op) {
		op.readOnly = b
	}
}

// WithCache sets the SQLite cache mode (e.g. "shared"). Only meaningful
// for in-memory (":memory:") databases.
func WithCache(mode string) OpOption {
	return func(op *Op) {
		op.cache = mode
	}
}

func (op *Op) applyOpts(opts []OpOption) error {
	for _, apply := range opts {
		apply(op)
	}
	return nil
}

// BuildConnectionString renders the go-sqlite3 DSN for file, honoring
// WithReadOnly and WithCache.
func BuildConnectionString(file string, opts ...OpOption) (string, error) {
	op := &Op{}
	if err := op.applyOpts(opts); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "file:%s?", file)

	params := make([]string, 0, 5)
	if file == ":memory:" && op.cache != "" {
		params = append(params, "cache="+op.cache)
	}
	if op.readOnly {
		params = append(params, "mode=ro")
	} else {
		// Only a read-write connection should take the immediate
		// write lock; read-only connections never write.
		params = append(params, "_txlock=immediate")
	}
	params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL", "_busy_timeout=5000")

	b.WriteString(strings.Join(params, "&"))
	return b.String(), nil
}

// Open opens a SQLite database at file, honoring WithReadOnly and WithCache.
func Open(file string, opts ...OpOption) (*sql.DB, error) {
	dsn, err := BuildConnectionString(file, opts...)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite3 database: %w", err)
	}

	op := &Op{}
	_ = op.applyOpts(opts)

	if op.readOnly {
		// Many readers are safe; a pool of four connections avoids
		// opening more file descriptors than the table count warrants.
		db.SetMaxOpenConns(4)
	} else {
		// SQLite only supports a single writer at a time.
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// TableExists reports whether tableName exists in db.
func TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, tableName).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadDBSize returns the on-disk size of db in bytes, computed from the
// page count and page size pragmas.
func ReadDBSize(ctx context.Context, db *sql.DB) (int64, error) {
	var pageCount, pageSize int64
	if err := db.QueryRowContext(ctx, "PRAGMA page_count;").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("no page count: %w", err)
	}
	if err := db.QueryRowContext(ctx, "PRAGMA page_size;").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("no page size: %w", err)
	}
	return pageCount * pageSize, nil
}

// Compact runs VACUUM against an already-open write connection.
func Compact(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "VACUUM;")
	return err
}

// RunCompact opens file, compacts it, and closes it again. Useful from
// the CLI, outside of the long-running Manager process.
func RunCompact(ctx context.Context, file string) error {
	db, err := Open(file)
	if err != nil {
		return err
	}
	defer db.Close()

	return Compact(ctx, db)
}
