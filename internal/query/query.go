// Package query streams the rows of one table in bounded batches.
package query

import (
	"fmt"
	"strings"
	"time"
)

const DefaultBatchSize = 1000

// Row is one table row with driver values normalized for printing.
type Row []any

// String renders the row as its field values joined by commas. NULL becomes
// an empty field, timestamps use RFC 3339 with nanoseconds and every other
// value uses its default fmt form. No quoting or escaping is applied.
func (r Row) String() string {
	return strings.Join(r.Strings(), ",")
}

// Strings returns the formatted fields of the row.
func (r Row) Strings() []string {
	fields := make([]string, len(r))
	for i, value := range r {
		fields[i] = FormatValue(value)
	}
	return fields
}

func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		return typed.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

// Batch is the rows returned by one fetch; it never exceeds the reader's
// batch size.
type Batch []Row

// Result is the ordered concatenation of every batch read in a session.
type Result struct {
	Table   string
	Columns []string
	Rows    []Row
}

func (r Result) Len() int {
	return len(r.Rows)
}
