// Package tablescan is the command-line front end: the root command runs an
// interactive session and the subcommands cover non-interactive lookups.
package tablescan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tablescan/tablescan/internal/catalog"
	"github.com/tablescan/tablescan/internal/config"
	"github.com/tablescan/tablescan/internal/console"
	"github.com/tablescan/tablescan/internal/database"
	"github.com/tablescan/tablescan/internal/export"
	"github.com/tablescan/tablescan/internal/observability"
	"github.com/tablescan/tablescan/internal/session"
	"github.com/tablescan/tablescan/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
)

type Options struct {
	Config config.Config
	Logger *slog.Logger
	// Archive receives saved dumps when set.
	Archive storage.Archive
	OpenDB      func(ctx context.Context, opts database.Options) (*database.DB, error)
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
}

// exitError carries a non-usage exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// Run executes the command line in args and returns the process exit status:
// 2 for usage errors, 1 for connection or save failures, 0 otherwise.
func Run(ctx context.Context, args []string, defaults Options) int {
	opts := withDefaults(defaults)

	root := newRootCmd(&opts)
	root.SetArgs(args)
	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "Error: %v\n", exit.err)
		}
		return exit.code
	}
	_, _ = fmt.Fprintf(opts.Stderr, "Error: %v\n\n", err)
	_, _ = fmt.Fprint(opts.Stderr, root.UsageString())
	return 2
}

func withDefaults(opts Options) Options {
	if opts.Stdin == nil {
		opts.Stdin = strings.NewReader("")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(opts.Config, opts.Stderr)
	}
	if opts.OpenDB == nil {
		opts.OpenDB = database.Open
	}
	return opts
}

type connectFlags struct {
	file   string
	driver string
}

type scanFlags struct {
	table       string
	out         string
	batchSize   int
	previewRows int
	yes         bool
	noPreview   bool
}

func newRootCmd(opts *Options) *cobra.Command {
	cfg := opts.Config
	var (
		conn connectFlags
		scan scanFlags
	)

	root := &cobra.Command{
		Use:   "tablescan",
		Short: "Browse a local database file and dump a table to text",
		Long: "tablescan opens a SQLite or DuckDB file, lists its tables, reads the chosen table in batches " +
			"and optionally saves the rows as a newline-delimited text file.\n\n" +
			"Press Ctrl+S or p while a table is being read to print the progress.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := database.Lookup(conn.driver); !ok {
				return fmt.Errorf("%w %q (available: %s)", database.ErrUnknownDriver, conn.driver, strings.Join(database.Drivers(), ", "))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if scan.batchSize < 1 {
				return fmt.Errorf("--batch-size must be >= 1, got %d", scan.batchSize)
			}
			if scan.previewRows < 0 {
				return fmt.Errorf("--preview-rows must be >= 0, got %d", scan.previewRows)
			}
			return runSession(cmd, opts, conn, scan)
		},
	}

	bindConnectFlags(root.PersistentFlags(), &conn, cfg)
	bindScanFlags(root.Flags(), &scan, cfg)

	root.AddCommand(newTablesCmd(opts, &conn))
	root.AddCommand(newVersionCmd())
	return root
}

func bindConnectFlags(fs *pflag.FlagSet, conn *connectFlags, cfg config.Config) {
	fs.StringVarP(&conn.file, "file", "f", "", "Database file to open (prompted when empty)")
	fs.StringVarP(&conn.driver, "driver", "d", firstNonEmpty(cfg.Database.Driver, "sqlite3"),
		"Database engine ("+strings.Join(database.Drivers(), ", ")+")")
}

func bindScanFlags(fs *pflag.FlagSet, scan *scanFlags, cfg config.Config) {
	fs.StringVarP(&scan.table, "table", "t", "", "Table to read, by name or list number (prompted when empty)")
	fs.StringVarP(&scan.out, "out", "o", "", "Text file to save the rows to (prompted when empty)")
	fs.IntVarP(&scan.batchSize, "batch-size", "b", intOr(cfg.Scan.BatchSize, 1000), "Rows fetched per batch")
	fs.IntVar(&scan.previewRows, "preview-rows", cfg.Console.PreviewRows, "Rows shown after the scan (0 shows all)")
	fs.BoolVarP(&scan.yes, "yes", "y", false, "Save the rows without asking")
	fs.BoolVar(&scan.noPreview, "no-preview", false, "Do not print the rows")
}

func runSession(cmd *cobra.Command, opts *Options, conn connectFlags, scan scanFlags) error {
	ctx := cmd.Context()
	cfg := opts.Config

	controller := &session.Controller{
		Config: session.Config{
			Driver:         conn.driver,
			File:           conn.file,
			Table:          scan.table,
			Output:         scan.out,
			AssumeYes:      scan.yes,
			NoPreview:      scan.noPreview,
			PreviewRows:    scan.previewRows,
			BatchSize:      scan.batchSize,
			PollInterval:   cfg.Scan.PollInterval,
			ConnectTimeout: cfg.Database.ConnectTimeout,
		},
		Console: console.New(cmd.InOrStdin(), cmd.OutOrStdout()),
		Logger:  opts.Logger,
		OpenDB:  opts.OpenDB,
	}
	if opts.Archive != nil {
		controller.Archiver = &export.Archiver{Target: opts.Archive, Logger: opts.Logger}
	}

	outcome := controller.Run(ctx)

	if err := observability.WriteTextfile(cfg.Observability.MetricsFile); err != nil {
		opts.Logger.WarnContext(ctx, "write metrics textfile failed", slog.Any("error", err))
	}
	if code := outcome.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func newTablesCmd(opts *Options, conn *connectFlags) *cobra.Command {
	var counts bool
	cmd := &cobra.Command{
		Use:   "tables [file]",
		Short: "List the tables of a database file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := conn.file
			if len(args) == 1 {
				path = args[0]
			}
			if strings.TrimSpace(path) == "" {
				return errors.New("a database file is required (--file or argument)")
			}

			ctx := cmd.Context()
			db, err := opts.OpenDB(ctx, database.Options{
				Driver:      conn.driver,
				Path:        path,
				PingTimeout: opts.Config.Database.ConnectTimeout,
			})
			if err != nil {
				return &exitError{code: 1, err: fmt.Errorf("connect: %w", err)}
			}
			defer func() { _ = db.Close() }()

			repo := catalog.NewRepository(db)
			tables, err := repo.ListTables(ctx)
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			out := cmd.OutOrStdout()
			if len(tables) == 0 {
				_, _ = fmt.Fprintln(out, "No tables found in the database.")
				return nil
			}
			for i, name := range tables {
				if !counts {
					_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, name)
					continue
				}
				rows, err := repo.CountRows(ctx, name)
				if err != nil {
					opts.Logger.WarnContext(ctx, "count rows failed", slog.String("table", name), slog.Any("error", err))
					_, _ = fmt.Fprintf(out, "%d. %s (rows unknown)\n", i+1, name)
					continue
				}
				_, _ = fmt.Fprintf(out, "%d. %s (%s rows)\n", i+1, name, humanize.Comma(rows))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&counts, "counts", false, "Also print the row count of every table")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tablescan version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tablescan version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func intOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
