// Package schema builds the Schema Document handed to the model: the
// concatenated text of the entity model files that describe the database.
package schema

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("schema source not found")

// NotFoundError reports a missing model directory (or an empty catalog
// prefix). It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Location string
}

func (e *NotFoundError) Error() string {
	return "Models directory not found at " + e.Location
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type Provider interface {
	Load(ctx context.Context) (string, error)
}

// Entry is one model-definition artifact.
type Entry struct {
	Name    string
	Content string
}

// Filter selects model files by base name. Files whose name ends with
// ExcludeSuffix (case-insensitive) describe the database context rather than
// a table and are skipped.
type Filter struct {
	Pattern       string
	ExcludeSuffix string
}

func (f Filter) Match(name string) (bool, error) {
	pattern := f.Pattern
	if pattern == "" {
		pattern = "*"
	}
	ok, err := path.Match(pattern, name)
	if err != nil {
		return false, fmt.Errorf("invalid schema pattern %q: %w", pattern, err)
	}
	if !ok {
		return false, nil
	}
	if f.ExcludeSuffix != "" && strings.HasSuffix(strings.ToLower(name), strings.ToLower(f.ExcludeSuffix)) {
		return false, nil
	}
	return true, nil
}

// Render sorts entries by name (byte order) and writes each as a delimiter
// line, its raw content and a blank line.
func Render(entries []Entry) string {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for _, entry := range sorted {
		b.WriteString("// === ")
		b.WriteString(entry.Name)
		b.WriteString(" ===\n")
		b.WriteString(entry.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}
