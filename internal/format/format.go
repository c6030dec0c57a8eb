// Package format renders a query result for the tool reply.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nlquery/nlquery/internal/query"
)

type Format string

const (
	Table   Format = "table"
	SQLOnly Format = "sql"
	CSV     Format = "csv"
	JSON    Format = "json"
)

const columnWidth = 15

// Parse is case-insensitive and never fails: unknown values render as a
// table.
func Parse(raw string) Format {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "query_only", "sql_only", "sql":
		return SQLOnly
	case "csv":
		return CSV
	case "json":
		return JSON
	default:
		return Table
	}
}

// NeedsExecution reports whether the format renders rows. SQLOnly replies
// with the statement and never touches the database.
func (f Format) NeedsExecution() bool {
	return f != SQLOnly
}

func Render(f Format, sqlText string, result query.Result) (string, error) {
	switch f {
	case SQLOnly:
		return sqlText, nil
	case CSV:
		return renderCSV(result), nil
	case JSON:
		return renderJSON(result)
	default:
		return renderTable(result), nil
	}
}

func renderTable(result query.Result) string {
	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("-", len(result.Columns)*columnWidth))
	b.WriteByte('\n')
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			if value == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(value)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "(%d rows)\n", len(result.Rows))
	return b.String()
}

func renderCSV(result query.Result) string {
	var b strings.Builder
	writeCSVLine(&b, result.Columns)
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			if value != nil {
				cells[i] = fmt.Sprint(value)
			}
		}
		writeCSVLine(&b, cells)
	}
	return b.String()
}

func writeCSVLine(b *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeCSV(field))
	}
	b.WriteByte('\n')
}

// escapeCSV quotes a field only when it holds a comma, quote or line break.
func escapeCSV(field string) string {
	if !strings.ContainsAny(field, ",\"\r\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// renderJSON keeps keys in column order, which a map would not.
func renderJSON(result query.Result) (string, error) {
	keys := jsonKeys(result.Columns)
	var compact bytes.Buffer
	compact.WriteByte('[')
	for r, row := range result.Rows {
		if r > 0 {
			compact.WriteByte(',')
		}
		compact.WriteByte('{')
		for i, column := range keys {
			if i > 0 {
				compact.WriteByte(',')
			}
			key, err := json.Marshal(column)
			if err != nil {
				return "", fmt.Errorf("encode column %q: %w", column, err)
			}
			var cell any
			if i < len(row) {
				cell = row[i]
			}
			value, err := json.Marshal(cell)
			if err != nil {
				return "", fmt.Errorf("encode value of column %q: %w", column, err)
			}
			compact.Write(key)
			compact.WriteByte(':')
			compact.Write(value)
		}
		compact.WriteByte('}')
	}
	compact.WriteByte(']')

	var indented bytes.Buffer
	if err := json.Indent(&indented, compact.Bytes(), "", "  "); err != nil {
		return "", fmt.Errorf("indent json: %w", err)
	}
	return indented.String(), nil
}

// jsonKeys suffixes repeated column names (id, id_2, id_3) so every object
// key is unique, as in a join selecting a.id and b.id.
func jsonKeys(columns []string) []string {
	taken := make(map[string]bool, len(columns))
	for _, column := range columns {
		taken[column] = true
	}
	seen := make(map[string]bool, len(columns))
	keys := make([]string, len(columns))
	for i, column := range columns {
		key := column
		for n := 2; seen[key]; n++ {
			if candidate := fmt.Sprintf("%s_%d", column, n); !seen[candidate] && !taken[candidate] {
				key = candidate
			}
		}
		seen[key] = true
		keys[i] = key
	}
	return keys
}
