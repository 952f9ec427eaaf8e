package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/tablescan/tablescan/internal/catalog"
	"github.com/tablescan/tablescan/internal/database"
	"github.com/tablescan/tablescan/internal/observability"
	"github.com/tablescan/tablescan/internal/progress"
)

type Reader struct {
	DB        *database.DB
	BatchSize int
	// Progress receives the row count before the scan and every batch after it.
	Progress *progress.Tracker
	Logger   *slog.Logger
}

func NewReader(db *database.DB, batchSize int) *Reader {
	return &Reader{DB: db, BatchSize: batchSize}
}

// Open starts a full scan of table. The returned stream holds a cursor and
// must be closed.
func (r *Reader) Open(ctx context.Context, table string) (*Stream, error) {
	if r.DB == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("table name is required")
	}
	size := r.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	rows, err := r.DB.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s`, r.DB.Dialect.QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("query table %q: %w", table, err)
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("query columns: %w", err)
	}
	return &Stream{rows: rows, columns: columns, size: size}, nil
}

// Scan counts table, then drains it batch by batch into a Result. A failed
// count leaves the progress total at zero and the scan continues. When the
// context is cancelled or a fetch fails, the rows read so far are returned
// together with the error.
func (r *Reader) Scan(ctx context.Context, table string, onBatch func(Batch)) (Result, error) {
	start := time.Now()
	result := Result{Table: table}

	total, err := catalog.NewRepository(r.DB).CountRows(ctx, table)
	if err != nil {
		if r.Logger != nil {
			r.Logger.WarnContext(ctx, "row count unavailable", slog.String("table", table), slog.Any("error", err))
		}
		total = 0
	}
	if r.Progress != nil {
		r.Progress.Reset(total)
	}

	stream, err := r.Open(ctx, table)
	if err != nil {
		observability.ObserveScan("failed", time.Since(start))
		return result, err
	}
	defer func() { _ = stream.Close() }()

	result.Columns = stream.Columns()
	result.Rows = make([]Row, 0, min(total, 1<<16))
	for batch, err := range stream.Batches(ctx) {
		if err != nil {
			status := "failed"
			if ctx.Err() != nil {
				status = "cancelled"
			}
			observability.ObserveScan(status, time.Since(start))
			return result, err
		}
		result.Rows = append(result.Rows, batch...)
		if r.Progress != nil {
			r.Progress.Add(len(batch))
		}
		observability.ObserveBatch(len(batch))
		if onBatch != nil {
			onBatch(batch)
		}
	}

	observability.ObserveScan("completed", time.Since(start))
	if r.Logger != nil {
		r.Logger.InfoContext(ctx, "table scan completed",
			slog.String("table", table),
			slog.Int("rows", len(result.Rows)),
			slog.Int64("counted_rows", total),
			slog.String("duration", time.Since(start).String()),
		)
	}
	return result, nil
}

// Stream is a lazy, finite, non-restartable sequence of batches over one
// table cursor.
type Stream struct {
	rows    *sql.Rows
	columns []string
	size    int
	done    bool
}

func (s *Stream) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Next returns up to the batch size rows. It returns io.EOF once the table
// is exhausted and the context error when cancellation is observed at the
// batch boundary; neither is followed by further batches.
func (s *Stream) Next(ctx context.Context) (Batch, error) {
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		s.finish()
		return nil, err
	}

	batch := make(Batch, 0, s.size)
	for len(batch) < s.size {
		if !s.rows.Next() {
			if err := s.rows.Err(); err != nil {
				s.finish()
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, fmt.Errorf("fetch rows: %w", err)
			}
			s.finish()
			break
		}
		values := make([]any, len(s.columns))
		scanTargets := make([]any, len(s.columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := s.rows.Scan(scanTargets...); err != nil {
			s.finish()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		batch = append(batch, normalizeValues(values))
	}

	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Batches adapts Next to a range-over-func sequence. Iteration ends silently
// at io.EOF; any other error is yielded once as the last element.
func (s *Stream) Batches(ctx context.Context) iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		for {
			batch, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

func (s *Stream) Close() error {
	s.done = true
	return s.rows.Close()
}

func (s *Stream) finish() {
	s.done = true
	_ = s.rows.Close()
}

func normalizeValues(values []any) Row {
	normalized := make(Row, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
