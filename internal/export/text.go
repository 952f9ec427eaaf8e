// Package export writes scan results as newline-delimited text dumps.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tablescan/tablescan/internal/observability"
	"github.com/tablescan/tablescan/internal/query"
)

const TextExtension = ".txt"

var ErrUnsupportedExtension = errors.New("unsupported output file extension")

type Summary struct {
	Path  string
	Rows  int
	Bytes int64
}

// ResolvePath applies the save-dialog rules to a user supplied destination:
// a missing extension becomes .txt and any other extension is rejected.
func ResolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("output path is required")
	}
	switch ext := filepath.Ext(path); {
	case ext == "":
		return path + TextExtension, nil
	case strings.EqualFold(ext, TextExtension):
		return path, nil
	default:
		return "", fmt.Errorf("%w %q: use %s", ErrUnsupportedExtension, ext, TextExtension)
	}
}

// WriteText replaces path with one line per row, each line being the row's
// String form followed by '\n'.
func WriteText(path string, rows []query.Row) (Summary, error) {
	file, err := os.Create(path)
	if err != nil {
		return Summary{}, fmt.Errorf("create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	w := bufio.NewWriter(file)
	var written int64
	for _, row := range rows {
		n, err := w.WriteString(row.String() + "\n")
		written += int64(n)
		if err != nil {
			return Summary{}, fmt.Errorf("write output file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return Summary{}, fmt.Errorf("flush output file: %w", err)
	}
	if err := file.Close(); err != nil {
		return Summary{}, fmt.Errorf("close output file: %w", err)
	}

	observability.ObserveRowsWritten(len(rows))
	return Summary{Path: path, Rows: len(rows), Bytes: written}, nil
}
