package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "sqlite3"})
	if err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "access", Path: "x.mdb"})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("error = %v, want ErrUnknownDriver", err)
	}
}

func TestOpenRejectsWrongExtension(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "sqlite3", Path: "notes.txt"})
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("error = %v, want ErrUnsupportedFile", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := Open(context.Background(), Options{Driver: "sqlite3", Path: path})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("Open() must not create %s", path)
	}
}

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.sqlite")
	seed(t, "sqlite3", path, `CREATE TABLE orders (id INTEGER, item TEXT)`, `INSERT INTO orders VALUES (1, 'pen')`)

	db, err := Open(context.Background(), Options{Driver: "sqlite3", Path: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if db.Dialect.Name != "sqlite3" || db.Path != path {
		t.Fatalf("handle = %s %s", db.Dialect.Name, db.Path)
	}
	var count int
	if err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d", count)
	}
	if _, err := db.ExecContext(context.Background(), `INSERT INTO orders VALUES (2, 'ink')`); err == nil {
		t.Fatal("expected read-only handle to reject writes")
	}
}

func TestOpenDuckDBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.duckdb")
	seed(t, "duckdb", path, `CREATE TABLE orders (id INTEGER, item VARCHAR)`, `INSERT INTO orders VALUES (1, 'pen'), (2, 'ink')`)

	db, err := Open(context.Background(), Options{Driver: "DuckDB", Path: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	var count int
	if err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d", count)
	}
}

func TestOpenFileNamesWithURICharacters(t *testing.T) {
	for _, driver := range []string{"sqlite3", "duckdb"} {
		for _, name := range []string{"report #1.db", "pct%41.db", "what?.db", "it's.db"} {
			t.Run(driver+"/"+name, func(t *testing.T) {
				dir := t.TempDir()
				staging := filepath.Join(dir, "staging.db")
				seed(t, driver, staging, `CREATE TABLE ledger (id INTEGER)`, `INSERT INTO ledger VALUES (1)`)
				path := filepath.Join(dir, name)
				if err := os.Rename(staging, path); err != nil {
					t.Fatalf("Rename() error = %v", err)
				}

				db, err := Open(context.Background(), Options{Driver: driver, Path: path})
				if err != nil {
					t.Fatalf("Open() error = %v", err)
				}
				var table string
				if err := db.QueryRowContext(context.Background(), db.Dialect.TablesQuery).Scan(&table); err != nil {
					t.Fatalf("list tables error = %v", err)
				}
				if table != "ledger" {
					t.Fatalf("table = %q, want ledger", table)
				}
				if _, err := db.ExecContext(context.Background(), `INSERT INTO ledger VALUES (2)`); err == nil {
					t.Fatal("expected read-only handle to reject writes")
				}
				if err := db.Close(); err != nil {
					t.Fatalf("Close() error = %v", err)
				}

				entries, err := os.ReadDir(dir)
				if err != nil {
					t.Fatalf("ReadDir() error = %v", err)
				}
				if len(entries) != 1 || entries[0].Name() != name {
					names := make([]string, 0, len(entries))
					for _, entry := range entries {
						names = append(names, entry.Name())
					}
					t.Fatalf("directory entries = %q, want only %q", names, name)
				}
			})
		}
	}
}

func TestSQLiteDSNEscapesPath(t *testing.T) {
	got := sqliteDSN("/data/report #1?%41.db")
	want := "file:/data/report %231%3f%2541.db?_busy_timeout=5000&mode=ro"
	if got != want {
		t.Fatalf("sqliteDSN() = %q, want %q", got, want)
	}
}

func TestDuckDBAttachQuotesPath(t *testing.T) {
	got := duckdbAttach("/data/it's.duckdb")
	want := `ATTACH IF NOT EXISTS '/data/it''s.duckdb' AS scanned (READ_ONLY)`
	if got != want {
		t.Fatalf("duckdbAttach() = %q, want %q", got, want)
	}
}

func TestDialectAcceptsFile(t *testing.T) {
	d, ok := Lookup("sqlite3")
	if !ok {
		t.Fatal("sqlite3 dialect not registered")
	}
	for path, want := range map[string]bool{
		"a.db":        true,
		"A.SQLITE":    true,
		"b.sqlite3":   true,
		"c.duckdb":    false,
		"no-ext":      false,
		"dir/x.db.gz": false,
	} {
		if got := d.AcceptsFile(path); got != want {
			t.Fatalf("AcceptsFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestQuoteIdentEscapesQuotes(t *testing.T) {
	d, _ := Lookup("duckdb")
	if got := d.QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("QuoteIdent() = %s", got)
	}
}

func TestDrivers(t *testing.T) {
	got := Drivers()
	if len(got) != 2 || got[0] != "duckdb" || got[1] != "sqlite3" {
		t.Fatalf("Drivers() = %v", got)
	}
}

func seed(t *testing.T, driver, path string, statements ...string) {
	t.Helper()
	db, err := sql.Open(driver, path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q error = %v", stmt, err)
		}
	}
}
