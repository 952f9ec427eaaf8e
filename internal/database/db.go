package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrUnknownDriver   = errors.New("unknown database driver")
	ErrUnsupportedFile = errors.New("unsupported database file")
)

// Options names the engine and the file to open.
type Options struct {
	Driver string
	Path   string
	// PingTimeout bounds the initial connectivity check; zero means 5s.
	PingTimeout time.Duration
}

// DB is an open handle on exactly one database file.
type DB struct {
	*sql.DB
	Dialect Dialect
	Path    string
}

// New wraps an already opened pool.
func New(db *sql.DB, dialect Dialect, path string) *DB {
	return &DB{DB: db, Dialect: dialect, Path: path}
}

// Open connects to the file named by opts read-only. The caller owns the
// returned handle and must Close it.
func Open(ctx context.Context, opts Options) (*DB, error) {
	dialect, ok := Lookup(opts.Driver)
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownDriver, opts.Driver, strings.Join(Drivers(), ", "))
	}

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("database file path is required")
	}
	if !dialect.AcceptsFile(path) {
		return nil, fmt.Errorf("%w %q: %s expects one of %s", ErrUnsupportedFile, path, dialect.Name, strings.Join(dialect.Extensions, ", "))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat database file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w %q: is a directory", ErrUnsupportedFile, path)
	}

	db, err := dialect.openHandle(path)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect.Name, err)
	}
	// Sessions issue one statement at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect.Name, err)
	}

	return New(db, dialect, path), nil
}
