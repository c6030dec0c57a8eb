package schema

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/nlquery/nlquery/internal/storage"
)

// ObjectStoreProvider reads model files from a versioned catalog prefix in
// an object store. An empty listing counts as a missing directory.
type ObjectStoreProvider struct {
	Catalog storage.Catalog
	Prefix  string
	Filter  Filter
}

func NewObjectStoreProvider(catalog storage.Catalog, prefix string, filter Filter) *ObjectStoreProvider {
	return &ObjectStoreProvider{Catalog: catalog, Prefix: prefix, Filter: filter}
}

func (p *ObjectStoreProvider) Load(ctx context.Context) (string, error) {
	if p.Catalog == nil {
		return "", fmt.Errorf("schema catalog is not configured")
	}
	objects, err := p.Catalog.List(ctx, p.Prefix)
	if err != nil {
		return "", fmt.Errorf("list schema catalog: %w", err)
	}
	if len(objects) == 0 {
		return "", &NotFoundError{Location: p.location()}
	}

	entries := make([]Entry, 0, len(objects))
	for _, object := range objects {
		name := path.Base(object.Key)
		ok, err := p.Filter.Match(name)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		content, err := p.read(ctx, object.Key)
		if err != nil {
			return "", err
		}
		entries = append(entries, Entry{Name: name, Content: content})
	}
	return Render(entries), nil
}

func (p *ObjectStoreProvider) read(ctx context.Context, key string) (string, error) {
	reader, err := p.Catalog.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("get schema object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read schema object %q: %w", key, err)
	}
	return string(body), nil
}

func (p *ObjectStoreProvider) location() string {
	if p.Prefix == "" {
		return "/"
	}
	return p.Prefix
}
