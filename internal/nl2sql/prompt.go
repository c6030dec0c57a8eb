package nl2sql

import (
	"fmt"
	"strings"

	"github.com/nlquery/nlquery/internal/config"
)

// Dialect names the SQL flavour the model is asked to write.
type Dialect struct {
	Expert   string
	Language string
}

func DialectFor(driver string) Dialect {
	switch driver {
	case config.DriverPostgres:
		return Dialect{Expert: "PostgreSQL", Language: "PostgreSQL"}
	case config.DriverDuckDB:
		return Dialect{Expert: "DuckDB", Language: "DuckDB SQL"}
	default:
		return Dialect{Expert: "SQL Server", Language: "T-SQL"}
	}
}

func SystemPrompt(d Dialect) string {
	if d.Expert == "" {
		d = DialectFor(config.DriverSQLServer)
	}
	return fmt.Sprintf(`You are a %[1]s expert. Given the database schema and user request, generate ONLY a valid %[2]s SELECT query.
Output ONLY the SQL query, no explanations or markdown.
The schema shows entity classes. IMPORTANT: Convert PascalCase property names to snake_case for actual column names (e.g., AuId -> au_id, AuLname -> au_lname, AuFname -> au_fname, TitleId -> title_id).
Table names are lowercase (e.g., Authors -> authors, Titles -> titles).
Use proper %[1]s syntax.`, d.Expert, d.Language)
}

func UserPrompt(req Request) string {
	return fmt.Sprintf("Database Schema:\n%s\n\nUser Request: %s\n\nGenerate the SQL query:",
		req.Schema,
		strings.TrimSpace(req.NaturalLanguage),
	)
}
