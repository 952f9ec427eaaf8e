package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/tablescan/tablescan/internal/storage"
)

// Archiver copies a written dump to an object store.
type Archiver struct {
	Target storage.Archive
	Logger *slog.Logger
	Clock  func() time.Time
}

// Archive uploads the file described by summary under the export key of
// table and tags it with the table, session and row count.
func (a *Archiver) Archive(ctx context.Context, summary Summary, table, sessionID string) (storage.Receipt, error) {
	if a.Target == nil {
		return storage.Receipt{}, fmt.Errorf("archive target is required")
	}
	clock := a.Clock
	if clock == nil {
		clock = time.Now
	}

	key, err := storage.BuildExportKey(table, clock(), sessionID)
	if err != nil {
		return storage.Receipt{}, fmt.Errorf("build export key: %w", err)
	}

	file, err := os.Open(summary.Path)
	if err != nil {
		return storage.Receipt{}, fmt.Errorf("open dump: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return storage.Receipt{}, fmt.Errorf("stat dump: %w", err)
	}

	receipt, err := a.Target.Store(ctx, storage.Upload{
		Key:         key,
		Body:        file,
		Size:        info.Size(),
		ContentType: "text/plain; charset=utf-8",
		Metadata: map[string]string{
			"table":      table,
			"session-id": sessionID,
			"rows":       strconv.Itoa(summary.Rows),
		},
	})
	if err != nil {
		return storage.Receipt{}, fmt.Errorf("archive dump: %w", err)
	}

	if a.Logger != nil {
		a.Logger.InfoContext(ctx, "dump archived",
			slog.String("table", table),
			slog.String("uri", receipt.URI),
			slog.Int64("bytes", receipt.Size),
		)
	}
	return receipt, nil
}
