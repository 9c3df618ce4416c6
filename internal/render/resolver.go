// Package render resolves extracted directives against the render service
// and splices the results back into the book.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/mdkroki/internal/book"
	"github.com/dgallion1/mdkroki/internal/config"
	"github.com/dgallion1/mdkroki/internal/kroki"
	"github.com/dgallion1/mdkroki/internal/paths"
	"github.com/dgallion1/mdkroki/internal/scanner"
)

var (
	// ErrSourceUnreadable wraps a failed read of a file-referenced diagram.
	ErrSourceUnreadable = errors.New("cannot read diagram source file")
	// ErrLostPlaceholder means a placeholder vanished from its chapter
	// between extraction and merge; the tree changed shape mid-run.
	ErrLostPlaceholder = errors.New("placeholder not found in owning chapter")
)

// Renderer is the external render call. *kroki.Client satisfies it.
type Renderer interface {
	Render(ctx context.Context, req kroki.RenderRequest) (string, error)
}

// Resolver runs the concurrent resolution phase. Each directive's file read
// and render call works only on locally-owned data and deposits its result
// into a private slot; the book itself is touched only by the single-threaded
// merge pass after every render has finished. On any failure the book is
// returned unmodified.
type Resolver struct {
	client  Renderer
	cfg     config.Config
	bookDir string
	srcDir  string
	log     *slog.Logger

	readFile func(string) ([]byte, error)
}

func NewResolver(client Renderer, cfg config.Config, bookDir, srcDir string, log *slog.Logger) *Resolver {
	return &Resolver{
		client:   client,
		cfg:      cfg,
		bookDir:  bookDir,
		srcDir:   srcDir,
		log:      log,
		readFile: os.ReadFile,
	}
}

type result struct {
	addr        book.Address
	placeholder string
	content     string
}

// ResolveAll renders every directive concurrently and merges the results
// into the book. Render order is unspecified; correctness relies only on
// placeholder uniqueness.
func (r *Resolver) ResolveAll(ctx context.Context, b *book.Book, directives []scanner.Directive) error {
	if len(directives) == 0 {
		return nil
	}

	// Chapter directories are needed for root="this" resolution. Looked up
	// before the concurrent phase; the tree is read-only from here until
	// the merge.
	dirs := make([]chapterDir, len(directives))
	for i, d := range directives {
		ch, err := b.ChapterAt(d.Address)
		if err != nil {
			return err
		}
		dirs[i] = chapterDirOf(ch)
	}

	results := make([]result, len(directives))

	g, gctx := r.group(ctx)
	g.SetLimit(r.cfg.MaxConcurrentRenders)

	for i, d := range directives {
		i, d := i, d
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			source, err := r.diagramSource(d, dirs[i])
			if err != nil {
				return fmt.Errorf("directive %d (%s) in chapter %s: %w", i, d.Type, d.Address, err)
			}
			content, err := r.client.Render(gctx, kroki.RenderRequest{
				DiagramSource: source,
				DiagramType:   d.Type,
				OutputFormat:  d.Format,
			})
			if err != nil {
				return fmt.Errorf("directive %d (%s) in chapter %s: %w", i, d.Type, d.Address, err)
			}
			r.log.Debug("rendered diagram", "chapter", d.Address.String(), "type", d.Type, "format", d.Format)

			// The slot index is unique per goroutine; no locking needed.
			results[i] = result{addr: d.Address, placeholder: d.Placeholder, content: content}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return r.merge(b, results)
}

// group picks the error propagation policy: fail-fast cancels the shared
// context on first error, drain mode lets every render finish first.
func (r *Resolver) group(ctx context.Context) (*errgroup.Group, context.Context) {
	if r.cfg.FailFast {
		return errgroup.WithContext(ctx)
	}
	return new(errgroup.Group), ctx
}

// diagramSource produces the text to send to the render service.
func (r *Resolver) diagramSource(d scanner.Directive, dir chapterDir) (string, error) {
	switch src := d.Source.(type) {
	case scanner.Inline:
		return src.Text, nil
	case scanner.FileRef:
		full, err := paths.Resolve(src.Root, src.Path, r.bookDir, r.srcDir, dir.path, dir.known)
		if err != nil {
			return "", err
		}
		data, err := r.readFile(full)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, full, err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("directive has no source")
}

// merge writes every rendered result back into its owning chapter. Runs
// single-threaded, and only when every resolution succeeded, so the caller
// never sees a half-substituted book.
func (r *Resolver) merge(b *book.Book, results []result) error {
	for _, res := range results {
		ch, err := b.ChapterAt(res.addr)
		if err != nil {
			return err
		}
		if !strings.Contains(ch.Content, res.placeholder) {
			return fmt.Errorf("chapter %s (%q): %s: %w", res.addr, ch.Name, res.placeholder, ErrLostPlaceholder)
		}
		ch.Content = strings.Replace(ch.Content, res.placeholder, res.content, 1)
	}
	return nil
}

type chapterDir struct {
	path  string
	known bool
}

// chapterDirOf derives the chapter's directory relative to the source dir.
// Draft chapters have no path and cannot anchor root="this" references.
func chapterDirOf(ch *book.Chapter) chapterDir {
	p := ch.SourcePath
	if p == "" {
		p = ch.Path
	}
	if p == "" {
		return chapterDir{}
	}
	dir := filepath.Dir(p)
	if dir == "." {
		dir = ""
	}
	return chapterDir{path: dir, known: true}
}
