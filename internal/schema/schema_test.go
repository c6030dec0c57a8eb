package schema

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nlquery/nlquery/internal/storage"
)

var modelFilter = Filter{Pattern: "*.cs", ExcludeSuffix: "Context.cs"}

func TestDirProviderConcatenatesSortedModelFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Title.cs", "public class Title {}")
	writeFile(t, dir, "Author.cs", "public class Author {}")
	writeFile(t, dir, "PubsContext.cs", "public class PubsContext {}")
	writeFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "Nested.cs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := NewDirProvider(dir, modelFilter).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := "// === Author.cs ===\npublic class Author {}\n\n" +
		"// === Title.cs ===\npublic class Title {}\n\n"
	if got != want {
		t.Fatalf("Load() = %q, want %q", got, want)
	}
}

func TestDirProviderFollowsSymlinkedModelFiles(t *testing.T) {
	shared := t.TempDir()
	writeFile(t, shared, "Author.cs", "public class Author {}")
	dir := t.TempDir()
	if err := os.Symlink(filepath.Join(shared, "Author.cs"), filepath.Join(dir, "Author.cs")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(shared, "Missing.cs"), filepath.Join(dir, "Dangling.cs")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	got, err := NewDirProvider(dir, modelFilter).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "// === Author.cs ===\npublic class Author {}\n\n" {
		t.Fatalf("Load() = %q", got)
	}
}

func TestDirProviderExcludesContextCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Author.cs", "a")
	writeFile(t, dir, "pubscontext.cs", "ctx")

	got, err := NewDirProvider(dir, modelFilter).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if strings.Contains(got, "pubscontext") {
		t.Fatalf("context file leaked into schema: %q", got)
	}
}

func TestDirProviderIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.cs", "B")
	writeFile(t, dir, "a.cs", "A")
	writeFile(t, dir, "C.cs", "C")
	provider := NewDirProvider(dir, modelFilter)

	first, err := provider.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	second, err := provider.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if first != second {
		t.Fatalf("Load() not deterministic:\n%q\n%q", first, second)
	}
	// Ordinal order puts upper case first.
	if !strings.HasPrefix(first, "// === C.cs ===") {
		t.Fatalf("unexpected order: %q", first)
	}
}

func TestDirProviderMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Models")
	_, err := NewDirProvider(dir, modelFilter).Load(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Load() error = %T, want *NotFoundError", err)
	}
	if err.Error() != "Models directory not found at "+dir {
		t.Fatalf("error = %q", err.Error())
	}
}

func TestDirProviderEmptyDirectoryYieldsEmptySchema(t *testing.T) {
	got, err := NewDirProvider(t.TempDir(), modelFilter).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "" {
		t.Fatalf("Load() = %q, want empty", got)
	}
}

func TestFilterRejectsBadPattern(t *testing.T) {
	if _, err := (Filter{Pattern: "["}).Match("a.cs"); err == nil {
		t.Fatal("expected pattern error")
	}
}

func TestObjectStoreProviderMatchesDirProviderOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Title.cs", "T")
	writeFile(t, dir, "Author.cs", "A")
	fromDir, err := NewDirProvider(dir, modelFilter).Load(context.Background())
	if err != nil {
		t.Fatalf("DirProvider.Load() error = %v", err)
	}

	catalog := &memoryCatalog{objects: map[string]string{
		"schema/v3/Title.cs":       "T",
		"schema/v3/Author.cs":      "A",
		"schema/v3/PubsContext.cs": "ctx",
	}}
	fromStore, err := NewObjectStoreProvider(catalog, "schema/v3", modelFilter).Load(context.Background())
	if err != nil {
		t.Fatalf("ObjectStoreProvider.Load() error = %v", err)
	}
	if fromStore != fromDir {
		t.Fatalf("object store schema = %q, want %q", fromStore, fromDir)
	}
	if catalog.listedPrefix != "schema/v3" {
		t.Fatalf("listed prefix = %q", catalog.listedPrefix)
	}
}

func TestObjectStoreProviderEmptyPrefixIsNotFound(t *testing.T) {
	_, err := NewObjectStoreProvider(&memoryCatalog{}, "schema/v9", modelFilter).Load(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

type memoryCatalog struct {
	objects      map[string]string
	listedPrefix string
}

func (m *memoryCatalog) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.listedPrefix = prefix
	var out []storage.ObjectInfo
	for key, body := range m.objects {
		if strings.HasPrefix(key, prefix+"/") {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(body))})
		}
	}
	return out, nil
}

func (m *memoryCatalog) Get(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewBufferString(body)), nil
}
