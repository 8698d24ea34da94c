package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// Table is a tabular query result. Rows hold values in column order.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// ColumnIndex finds a column by case-insensitive name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Row returns row i as a column→value map.
func (t *Table) Row(i int) map[string]any {
	out := make(map[string]any, len(t.Columns))
	for j, c := range t.Columns {
		out[c] = t.Rows[i][j]
	}
	return out
}

// AppendColumn adds a column; values must have one entry per row.
func (t *Table) AppendColumn(name string, values []any) error {
	if len(values) != len(t.Rows) {
		return eris.Errorf("table: column %s has %d values for %d rows", name, len(values), len(t.Rows))
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for i, row := range t.Rows {
		if keep(i) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Markdown renders the table as a pipe table. Numeric columns are right
// aligned, everything else left aligned.
func (t *Table) Markdown() string {
	if t == nil || len(t.Columns) == 0 {
		return ""
	}

	cells := make([][]string, len(t.Rows))
	numeric := make([]bool, len(t.Columns))
	for j := range t.Columns {
		numeric[j] = len(t.Rows) > 0
	}
	for i, row := range t.Rows {
		cells[i] = make([]string, len(t.Columns))
		for j := range t.Columns {
			var v any
			if j < len(row) {
				v = row[j]
			}
			cells[i][j] = FormatValue(v)
			if v != nil && !isNumber(v) {
				numeric[j] = false
			}
		}
	}

	widths := make([]int, len(t.Columns))
	for j, c := range t.Columns {
		widths[j] = max(utf8.RuneCountInString(c), 3)
		for i := range cells {
			widths[j] = max(widths[j], utf8.RuneCountInString(cells[i][j]))
		}
	}

	var b strings.Builder
	writeRow := func(vals []string) {
		b.WriteString("|")
		for j, v := range vals {
			b.WriteString(" ")
			b.WriteString(pad(v, widths[j], numeric[j]))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(t.Columns)
	b.WriteString("|")
	for j := range t.Columns {
		dashes := strings.Repeat("-", widths[j]+1)
		if numeric[j] {
			b.WriteString(dashes + ":|")
		} else {
			b.WriteString(":" + dashes + "|")
		}
	}
	b.WriteString("\n")
	for _, row := range cells {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatValue renders a scanned database value for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func pad(s string, width int, right bool) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}
