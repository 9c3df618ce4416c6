// Package preprocess drives the two-phase run: a synchronous extraction walk
// over the book, then concurrent resolution of everything that was found.
package preprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/dgallion1/mdkroki/internal/book"
	"github.com/dgallion1/mdkroki/internal/config"
	"github.com/dgallion1/mdkroki/internal/kroki"
	"github.com/dgallion1/mdkroki/internal/render"
	"github.com/dgallion1/mdkroki/internal/scanner"
)

// Name is the preprocessor name mdbook knows us by.
const Name = "kroki"

type Preprocessor struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Preprocessor {
	return &Preprocessor{log: log}
}

// Supports reports whether the given mdbook renderer is handled.
func (p *Preprocessor) Supports(renderer string) bool {
	return renderer == "html"
}

// Run processes the whole book in place and returns it. Any scan error
// aborts before a single render call is issued; any resolution error leaves
// chapter contents holding placeholders but never a partial mix of rendered
// and unrendered diagrams.
func (p *Preprocessor) Run(ctx context.Context, pctx *Context, b *book.Book) (*book.Book, error) {
	cfg, err := config.Load(pctx.KrokiTable())
	if err != nil {
		return nil, fmt.Errorf("load %s config: %w", Name, err)
	}

	directives, err := Extract(b)
	if err != nil {
		return nil, err
	}
	p.log.Info("extraction complete", "directives", len(directives))
	if len(directives) == 0 {
		return b, nil
	}

	client := kroki.NewClient(cfg.Endpoint, cfg.HTTPTimeout)
	defer client.Close()

	resolver := render.NewResolver(client, cfg, pctx.Root, pctx.SrcDir(), p.log)
	if err := resolver.ResolveAll(ctx, b, directives); err != nil {
		return nil, err
	}
	p.log.Info("resolution complete", "endpoint", client.Endpoint())
	return b, nil
}

// Extract scans every chapter depth-first, rewriting directive spans to
// placeholders and stamping each directive with its owning address. Strictly
// single-threaded; each chapter's rewrite finishes before the walk moves on.
func Extract(b *book.Book) ([]scanner.Directive, error) {
	var directives []scanner.Directive
	err := b.Walk(func(addr book.Address, ch *book.Chapter) error {
		rewritten, found, err := scanner.Scan([]byte(ch.Content))
		if err != nil {
			return fmt.Errorf("chapter %q (%s): %w", ch.Name, addr, err)
		}
		if len(found) == 0 {
			return nil
		}
		ch.Content = string(rewritten)
		owner := addr.Clone()
		for i := range found {
			found[i].Address = owner
		}
		directives = append(directives, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return directives, nil
}

// RunProtocol speaks the mdbook preprocessor protocol: a [context, book]
// JSON pair on in, the processed book as JSON on out.
func (p *Preprocessor) RunProtocol(ctx context.Context, in io.Reader, out io.Writer) error {
	pctx, b, err := DecodeInput(in)
	if err != nil {
		return err
	}
	processed, err := p.Run(ctx, pctx, b)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(out).Encode(processed); err != nil {
		return fmt.Errorf("encode book: %w", err)
	}
	return nil
}

// DecodeInput parses the [context, book] pair.
func DecodeInput(r io.Reader) (*Context, *book.Book, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("decode preprocessor input: %w", err)
	}
	if len(raw) != 2 {
		return nil, nil, fmt.Errorf("expected [context, book] pair, got %d elements", len(raw))
	}
	var pctx Context
	if err := json.Unmarshal(raw[0], &pctx); err != nil {
		return nil, nil, fmt.Errorf("decode context: %w", err)
	}
	var b book.Book
	if err := json.Unmarshal(raw[1], &b); err != nil {
		return nil, nil, fmt.Errorf("decode book: %w", err)
	}
	return &pctx, &b, nil
}
