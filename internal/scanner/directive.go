package scanner

import (
	"fmt"

	"github.com/dgallion1/mdkroki/internal/book"
	"github.com/dgallion1/mdkroki/internal/paths"
)

// Directive is one extracted diagram instruction. Its placeholder occurs
// exactly once in the owning chapter's rewritten content and is swapped for
// the rendered diagram during the merge pass.
type Directive struct {
	Type        string // diagram type, lowercased
	Format      string // svg, png, jpeg or pdf
	Placeholder string
	Address     book.Address // owning chapter, stamped by the walker
	Source      Source
}

// Source is where the diagram text comes from: inline in the document, or a
// file reference resolved through a root policy.
type Source interface {
	source()
}

// Inline carries diagram source given literally in the document.
type Inline struct {
	Text string
}

// FileRef points at a file to read, resolved against Root.
type FileRef struct {
	Root paths.RootKind
	Path string
}

func (Inline) source()  {}
func (FileRef) source() {}

const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatPDF  = "pdf"
)

func validFormat(s string) bool {
	switch s {
	case FormatSVG, FormatPNG, FormatJPEG, FormatPDF:
		return true
	}
	return false
}

// placeholder returns the token spliced into the document for directive n.
// n is the zero-based discovery index within one document, so tokens are
// unique per document.
func placeholder(n int) string {
	return fmt.Sprintf("%%%%kroki-diagram-%d%%%%", n)
}
