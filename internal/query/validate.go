package query

import (
	"strings"
)

// RejectedError carries the refused statement verbatim.
type RejectedError struct {
	SQL string
}

func (e *RejectedError) Error() string {
	return "Only SELECT queries allowed. Generated: " + e.SQL
}

// ValidateSelect accepts text whose first token, after leading whitespace, is
// SELECT in any case. It is a prefix check: chained statements and
// SELECT ... INTO are not detected.
func ValidateSelect(sqlText string) error {
	trimmed := strings.TrimLeft(sqlText, " \t\r\n\v\f")
	if len(trimmed) < len("select") || !strings.EqualFold(trimmed[:len("select")], "select") {
		return &RejectedError{SQL: sqlText}
	}
	return nil
}
