package session

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/tablescan/tablescan/internal/query"
)

// renderPreview draws at most limit rows of result as a table; limit 0 draws
// every row.
func renderPreview(result query.Result, limit int) string {
	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader(result.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	rows := result.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for _, row := range rows {
		table.Append(row.Strings())
	}
	table.Render()

	if hidden := result.Len() - len(rows); hidden > 0 {
		b.WriteString("... " + humanize.Comma(int64(hidden)) + " more rows not shown\n")
	}
	return b.String()
}
