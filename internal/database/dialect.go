package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marcboeker/go-duckdb/v2"
)

// Dialect describes one embedded engine that stores a database in a single
// local file.
type Dialect struct {
	// Name is the database/sql driver name and the value accepted by --driver.
	Name string
	// Extensions lists the file suffixes offered when picking a database file.
	Extensions []string
	// TablesQuery returns one column of user table names.
	TablesQuery string

	open func(path string) (*sql.DB, error)
}

var dialects = map[string]Dialect{
	"sqlite3": {
		Name:        "sqlite3",
		Extensions:  []string{".db", ".sqlite", ".sqlite3"},
		TablesQuery: `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`,
		open:        openSQLite,
	},
	"duckdb": {
		Name:        "duckdb",
		Extensions:  []string{".duckdb", ".ddb", ".db"},
		TablesQuery: `SELECT table_name FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND table_catalog = current_database() AND table_schema = current_schema()`,
		open:        openDuckDB,
	},
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, bool) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// Drivers returns the registered driver names in sorted order.
func Drivers() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AcceptsFile reports whether path carries one of the dialect's extensions.
func (d Dialect) AcceptsFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range d.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// QuoteIdent quotes a table or column name; both engines use standard
// double-quoted identifiers.
func (d Dialect) QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// openHandle returns an unpinged pool on path.
func (d Dialect) openHandle(path string) (*sql.DB, error) {
	if d.open == nil {
		return sql.Open(d.Name, path)
	}
	return d.open(path)
}

// sqliteFileEscaper escapes the characters that end or alter the path part
// of a SQLite URI filename.
var sqliteFileEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func sqliteDSN(path string) string {
	params := url.Values{}
	params.Set("mode", "ro")
	params.Set("_busy_timeout", "5000")
	return "file:" + sqliteFileEscaper.Replace(path) + "?" + params.Encode()
}

func openSQLite(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", sqliteDSN(path))
}

// DuckDB reads the file name straight out of its DSN without unescaping, so
// the file is attached by SQL literal to an in-memory instance instead.
const duckdbAlias = "scanned"

func duckdbAttach(path string) string {
	return fmt.Sprintf(`ATTACH IF NOT EXISTS '%s' AS %s (READ_ONLY)`, strings.ReplaceAll(path, `'`, `''`), duckdbAlias)
}

func openDuckDB(path string) (*sql.DB, error) {
	attach := duckdbAttach(path)
	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		if _, err := execer.ExecContext(context.Background(), attach, nil); err != nil {
			return fmt.Errorf("attach %q: %w", path, err)
		}
		if _, err := execer.ExecContext(context.Background(), `USE `+duckdbAlias, nil); err != nil {
			return fmt.Errorf("use attached database: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}
