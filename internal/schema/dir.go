package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type DirProvider struct {
	Dir    string
	Filter Filter
}

func NewDirProvider(dir string, filter Filter) *DirProvider {
	return &DirProvider{Dir: dir, Filter: filter}
}

func (p *DirProvider) Load(ctx context.Context) (string, error) {
	dir := p.Dir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return "", &NotFoundError{Location: dir}
		}
		return "", fmt.Errorf("stat schema dir %s: %w", dir, err)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read schema dir %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		ok, err := p.Filter.Match(dirEntry.Name())
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		filePath := filepath.Join(dir, dirEntry.Name())
		// Stat follows symlinks, so linked model files are read like any other.
		info, err := os.Stat(filePath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("stat schema file %s: %w", dirEntry.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read schema file %s: %w", dirEntry.Name(), err)
		}
		entries = append(entries, Entry{Name: dirEntry.Name(), Content: string(content)})
	}
	return Render(entries), nil
}
