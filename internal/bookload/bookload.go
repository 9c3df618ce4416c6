// Package bookload loads a book directly from its directory, for running
// the preprocessor outside of mdbook: book.toml supplies the configuration
// and the markdown files under the source dir become the chapter tree.
package bookload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dgallion1/mdkroki/internal/book"
	"github.com/dgallion1/mdkroki/internal/preprocess"
)

// Manifest is the subset of book.toml this tool reads.
type Manifest struct {
	Book struct {
		Title string `toml:"title"`
		Src   string `toml:"src"`
	} `toml:"book"`
	Preprocessor map[string]map[string]any `toml:"preprocessor"`
}

// LoadManifest reads book.toml from the book root. A missing file yields an
// empty manifest so plain directories of markdown work too.
func LoadManifest(root string) (*Manifest, error) {
	var m Manifest
	path := filepath.Join(root, "book.toml")
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &m, nil
		}
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return &m, nil
}

// SrcDir returns the configured source directory, defaulting to "src".
func (m *Manifest) SrcDir() string {
	if m.Book.Src == "" {
		return "src"
	}
	return m.Book.Src
}

// Context assembles a preprocessor context equivalent to what mdbook would
// deliver over stdin.
func (m *Manifest) Context(root string) *preprocess.Context {
	ctx := &preprocess.Context{Root: root, Renderer: "html"}
	ctx.Config.Book.Title = m.Book.Title
	ctx.Config.Book.Src = m.SrcDir()
	ctx.Config.Preprocessor = m.Preprocessor
	return ctx
}

// LoadBook builds a chapter tree from the markdown files under the source
// dir. Files sort lexicographically within each directory; subdirectories
// become draft chapters holding their files as sub-items.
func LoadBook(root, srcDir string) (*book.Book, error) {
	items, err := loadDir(filepath.Join(root, srcDir), "")
	if err != nil {
		return nil, err
	}
	return &book.Book{Sections: items}, nil
}

func loadDir(absDir, relDir string) ([]book.Item, error) {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("read chapter dir %s: %w", absDir, err)
	}

	var items []book.Item
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		rel := filepath.Join(relDir, name)
		if entry.IsDir() {
			sub, err := loadDir(filepath.Join(absDir, name), rel)
			if err != nil {
				return nil, err
			}
			if len(sub) == 0 {
				continue
			}
			items = append(items, book.Item{Chapter: &book.Chapter{
				Name:     name,
				SubItems: sub,
			}})
			continue
		}
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(absDir, name))
		if err != nil {
			return nil, fmt.Errorf("read chapter %s: %w", rel, err)
		}
		items = append(items, book.Item{Chapter: &book.Chapter{
			Name:       strings.TrimSuffix(name, ".md"),
			Content:    string(data),
			Path:       rel,
			SourcePath: rel,
		}})
	}
	return items, nil
}

// WriteBook writes every non-draft chapter's content under destDir, keeping
// the source-relative layout.
func WriteBook(b *book.Book, destDir string) error {
	return b.Walk(func(_ book.Address, ch *book.Chapter) error {
		if ch.Path == "" {
			return nil
		}
		out := filepath.Join(destDir, ch.Path)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(out, []byte(ch.Content), 0o644); err != nil {
			return fmt.Errorf("write chapter %s: %w", ch.Path, err)
		}
		return nil
	})
}
