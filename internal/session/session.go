// Package session drives one interactive run: pick a database file, pick a
// table, read it in batches on a worker goroutine, show the rows and offer to
// save them.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/tablescan/tablescan/internal/catalog"
	"github.com/tablescan/tablescan/internal/console"
	"github.com/tablescan/tablescan/internal/database"
	"github.com/tablescan/tablescan/internal/export"
	"github.com/tablescan/tablescan/internal/observability"
	"github.com/tablescan/tablescan/internal/progress"
	"github.com/tablescan/tablescan/internal/query"
)

var ErrNoSelection = errors.New("no selection made")

type Status string

const (
	StatusCompleted   Status = "completed"
	StatusAborted     Status = "aborted"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// Outcome is how a session ended. Err is set for aborted and failed sessions.
type Outcome struct {
	Status Status
	Table   string
	Rows    int
	Batches int
	Saved   string
	Err     error
}

// ExitCode maps the outcome to a process status: only connection and save
// failures are non-zero.
func (o Outcome) ExitCode() int {
	if o.Status == StatusFailed {
		return 1
	}
	return 0
}

type Config struct {
	Driver string
	// File, Table and Output pre-answer the matching prompts when set.
	File   string
	Table  string
	Output string
	// AssumeYes saves without asking.
	AssumeYes      bool
	NoPreview      bool
	PreviewRows    int
	BatchSize      int
	PollInterval   time.Duration
	ConnectTimeout time.Duration
}

type Controller struct {
	Config   Config
	Console  *console.Console
	Logger   *slog.Logger
	Progress *progress.Tracker
	// Archiver is optional; when set every saved dump is uploaded too.
	Archiver  *export.Archiver
	OpenDB    func(ctx context.Context, opts database.Options) (*database.DB, error)
	SessionID string
}

func (c *Controller) Run(ctx context.Context) (outcome Outcome) {
	c.ensureDefaults()
	ctx = observability.ContextWithSessionID(ctx, c.SessionID)
	logger := c.Logger.With(slog.String("session_id", c.SessionID))
	start := time.Now()
	defer func() {
		observability.ObserveSession(string(outcome.Status))
		attrs := []any{
			slog.String("status", string(outcome.Status)),
			slog.String("table", outcome.Table),
			slog.Int("rows", outcome.Rows),
			slog.String("duration", time.Since(start).String()),
		}
		if outcome.Err != nil {
			attrs = append(attrs, slog.Any("error", outcome.Err))
		}
		logger.InfoContext(ctx, "session finished", attrs...)
	}()

	path, err := c.answer(ctx, c.Config.File, "Database file path: ")
	if err != nil {
		return c.interrupted(err)
	}
	if path == "" {
		c.Console.Println("No database file selected. Exiting.")
		return Outcome{Status: StatusAborted, Err: fmt.Errorf("%w: database file", ErrNoSelection)}
	}

	db, err := c.OpenDB(ctx, database.Options{Driver: c.Config.Driver, Path: path, PingTimeout: c.Config.ConnectTimeout})
	if err != nil {
		if ctx.Err() != nil {
			return c.interrupted(ctx.Err())
		}
		c.Console.Printf("Error connecting to the database: %v\n", err)
		c.Console.Println("Failed to connect to the database.")
		return Outcome{Status: StatusFailed, Err: err}
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WarnContext(ctx, "close database failed", slog.Any("error", err))
		}
	}()
	logger.InfoContext(ctx, "database opened", slog.String("driver", db.Dialect.Name), slog.String("path", db.Path))

	tables, err := catalog.NewRepository(db).ListTables(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return c.interrupted(ctx.Err())
		}
		c.Console.Printf("Error retrieving table names: %v\n", err)
		logger.WarnContext(ctx, "list tables failed", slog.Any("error", err))
		tables = nil
	}
	if len(tables) == 0 {
		c.Console.Println("No tables found in the database.")
		return Outcome{Status: StatusAborted, Err: fmt.Errorf("%w: no tables", ErrNoSelection)}
	}

	c.Console.Println("Table names:")
	for i, name := range tables {
		c.Console.Printf("%d. %s\n", i+1, name)
	}

	table, err := c.chooseTable(ctx, tables)
	if err != nil {
		if ctx.Err() != nil {
			return c.interrupted(ctx.Err())
		}
		if errors.Is(err, ErrTableOutOfRange) {
			c.Console.Println("Invalid table number selected.")
		} else {
			c.Console.Println("Invalid input. Please enter a number.")
		}
		return Outcome{Status: StatusAborted, Err: fmt.Errorf("%w: %w", ErrNoSelection, err)}
	}

	result, batches, interrupted, scanErr := c.scan(ctx, logger, db, table)
	if interrupted {
		return Outcome{Status: StatusInterrupted, Table: table, Rows: result.Len(), Batches: batches, Err: context.Canceled}
	}
	if scanErr != nil {
		c.Console.Printf("Error querying table: %v\n", scanErr)
		logger.ErrorContext(ctx, "table scan stopped early", slog.String("table", table), slog.Int("rows", result.Len()), slog.Any("error", scanErr))
	}

	outcome = Outcome{Status: StatusCompleted, Table: table, Rows: result.Len(), Batches: batches}
	if result.Len() == 0 {
		c.Console.Printf("No rows returned from %s.\n", table)
		return outcome
	}

	c.Console.Println("Search results:")
	if !c.Config.NoPreview {
		c.Console.Printf("%s", renderPreview(result, c.Config.PreviewRows))
	}
	c.Console.Printf("%s rows read from %s in %s batches.\n", humanize.Comma(int64(result.Len())), table, humanize.Comma(int64(batches)))

	return c.save(ctx, logger, result, outcome)
}

func (c *Controller) ensureDefaults() {
	if c.Console == nil {
		c.Console = console.New(nil, nil)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Progress == nil {
		c.Progress = &progress.Tracker{}
	}
	if c.OpenDB == nil {
		c.OpenDB = database.Open
	}
	if c.SessionID == "" {
		c.SessionID = observability.NewSessionID()
	}
	if c.Config.Driver == "" {
		c.Config.Driver = "sqlite3"
	}
	if c.Config.BatchSize <= 0 {
		c.Config.BatchSize = query.DefaultBatchSize
	}
	if c.Config.PollInterval <= 0 {
		c.Config.PollInterval = time.Second
	}
}

// answer returns preset when it is non-empty and otherwise prompts. End of
// input counts as an empty answer.
func (c *Controller) answer(ctx context.Context, preset, label string) (string, error) {
	if value := strings.TrimSpace(preset); value != "" {
		return value, nil
	}
	line, err := c.Console.Prompt(ctx, label)
	if errors.Is(err, io.EOF) {
		c.Console.Println()
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Controller) chooseTable(ctx context.Context, tables []string) (string, error) {
	if preset := strings.TrimSpace(c.Config.Table); preset != "" {
		for _, name := range tables {
			if name == preset {
				return name, nil
			}
		}
		return SelectTable(preset, tables)
	}
	input, err := c.answer(ctx, "", "Enter the number of the table you want to query: ")
	if err != nil {
		return "", err
	}
	return SelectTable(input, tables)
}

// scan runs the chunked read on a worker and polls it until it finishes or
// the session is interrupted. The worker is always joined before returning.
func (c *Controller) scan(ctx context.Context, logger *slog.Logger, db *database.DB, table string) (query.Result, int, bool, error) {
	scanCtx, cancelScan := context.WithCancel(ctx)
	defer cancelScan()

	reader := &query.Reader{DB: db, BatchSize: c.Config.BatchSize, Progress: c.Progress, Logger: logger}

	var (
		group   errgroup.Group
		result  query.Result
		batches int
	)
	workerDone := make(chan struct{})
	group.Go(func() error {
		defer close(workerDone)
		var err error
		result, err = reader.Scan(scanCtx, table, func(batch query.Batch) {
			batches++
			logger.DebugContext(scanCtx, "batch fetched", slog.String("table", table), slog.Int("rows", len(batch)))
		})
		return err
	})

	hotkeyInterrupt := make(chan struct{}, 1)
	keysCtx, stopKeys := context.WithCancel(ctx)
	keysDone := make(chan struct{})
	go func() {
		defer close(keysDone)
		err := c.Console.WatchKeys(keysCtx, console.Keys{
			OnProgress: func() { c.Console.Println(c.Progress.Report()) },
			OnInterrupt: func() {
				select {
				case hotkeyInterrupt <- struct{}{}:
				default:
				}
			},
		})
		if err != nil {
			logger.WarnContext(ctx, "progress hotkeys unavailable", slog.Any("error", err))
		}
	}()

	ticker := time.NewTicker(c.Config.PollInterval)
	defer ticker.Stop()

	interrupted := false
poll:
	for {
		select {
		case <-workerDone:
			break poll
		case <-ctx.Done():
			interrupted = true
			break poll
		case <-hotkeyInterrupt:
			interrupted = true
			break poll
		case <-ticker.C:
			snapshot := c.Progress.Snapshot()
			logger.DebugContext(ctx, "scan in progress",
				slog.String("table", table),
				slog.Int64("rows", snapshot.Current),
				slog.Int64("total", snapshot.Total),
			)
		}
	}
	if ctx.Err() != nil {
		interrupted = true
	}
	if interrupted {
		c.Console.Println("Interrupt received. Exiting...")
		cancelScan()
	}

	err := group.Wait()
	stopKeys()
	<-keysDone
	return result, batches, interrupted, err
}

func (c *Controller) save(ctx context.Context, logger *slog.Logger, result query.Result, outcome Outcome) Outcome {
	if !c.Config.AssumeYes {
		reply, err := c.answer(ctx, "", "Do you want to save the results to a file? (yes/no): ")
		if err != nil {
			return c.interrupted(err)
		}
		switch strings.ToLower(reply) {
		case "yes", "y":
		default:
			return outcome
		}
	}

	path, err := c.answer(ctx, c.Config.Output, "Save results to: ")
	if err != nil {
		return c.interrupted(err)
	}
	if path == "" {
		c.Console.Println("No output file selected.")
		return outcome
	}
	resolved, err := export.ResolvePath(path)
	if err != nil {
		c.Console.Printf("Invalid output file: %v\n", err)
		outcome.Status = StatusAborted
		outcome.Err = fmt.Errorf("%w: %w", ErrNoSelection, err)
		return outcome
	}

	summary, err := export.WriteText(resolved, result.Rows)
	if err != nil {
		c.Console.Printf("Error saving results: %v\n", err)
		outcome.Status = StatusFailed
		outcome.Err = err
		return outcome
	}
	c.Console.Printf("Results saved to %s\n", summary.Path)
	logger.InfoContext(ctx, "results saved",
		slog.String("path", summary.Path),
		slog.Int("rows", summary.Rows),
		slog.String("size", humanize.Bytes(uint64(summary.Bytes))),
	)
	outcome.Saved = summary.Path

	if c.Archiver != nil {
		receipt, err := c.Archiver.Archive(ctx, summary, result.Table, c.SessionID)
		if err != nil {
			c.Console.Printf("Error archiving results: %v\n", err)
			logger.ErrorContext(ctx, "archive upload failed", slog.Any("error", err))
		} else {
			c.Console.Printf("Results archived to %s\n", receipt.URI)
		}
	}
	return outcome
}

// interrupted ends a session whose prompt was cut short. Anything other than
// a cancelled context is a broken input stream.
func (c *Controller) interrupted(err error) Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.Console.Println("Interrupt received. Exiting...")
		return Outcome{Status: StatusInterrupted, Err: err}
	}
	c.Console.Printf("Error reading input: %v\n", err)
	return Outcome{Status: StatusAborted, Err: fmt.Errorf("%w: %w", ErrNoSelection, err)}
}
