package scanner

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/mdkroki/internal/paths"
)

// parseKrokiTag extracts a directive from an opening <kroki> tag, e.g.
//
//	<kroki type="plantuml" path="a.puml" root="source" format="png"/>
//
// The diagram source always comes from the path attribute; for the paired
// form, the element body is discarded. The boolean reports whether the tag
// closes itself, so no </kroki> is expected.
func parseKrokiTag(tag string, index int) (Directive, bool, error) {
	attrs, selfClosing, err := tagAttributes(tag)
	if err != nil {
		return Directive{}, false, err
	}

	diagramType, ok := attrs["type"]
	if !ok || diagramType == "" {
		return Directive{}, false, ErrMissingType
	}
	declared, ok := attrs["path"]
	if !ok || declared == "" {
		return Directive{}, false, ErrMissingPath
	}

	root, err := paths.ParseRootKind(attrs["root"])
	if err != nil {
		return Directive{}, false, err
	}
	switch {
	case root == paths.RootSystem && !filepath.IsAbs(declared):
		return Directive{}, false, fmt.Errorf("%w: %q", paths.ErrInvalidPathForRoot, declared)
	case root == paths.RootThis && filepath.IsAbs(declared):
		return Directive{}, false, fmt.Errorf("%w: %q", paths.ErrAbsolutePathNeedsRoot, declared)
	}

	format := attrs["format"]
	if format == "" {
		format = FormatSVG
	}
	format = strings.ToLower(format)
	if !validFormat(format) {
		return Directive{}, false, fmt.Errorf("%w: %q", ErrBadFormat, format)
	}

	return Directive{
		Type:        strings.ToLower(diagramType),
		Format:      format,
		Placeholder: placeholder(index),
		Source:      FileRef{Root: root, Path: declared},
	}, selfClosing, nil
}

// tagAttributes tokenizes a single opening tag and returns its attributes
// plus whether the tag is written self-closing.
func tagAttributes(tag string) (map[string]string, bool, error) {
	z := html.NewTokenizer(strings.NewReader(tag))
	tt := z.Next()
	switch tt {
	case html.StartTagToken, html.SelfClosingTagToken:
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrMalformedTag, tag)
	}
	tok := z.Token()
	if tok.Data != "kroki" {
		return nil, false, fmt.Errorf("%w: unexpected element <%s>", ErrMalformedTag, tok.Data)
	}
	attrs := make(map[string]string, len(tok.Attr))
	for _, a := range tok.Attr {
		attrs[a.Key] = a.Val
	}
	return attrs, tt == html.SelfClosingTagToken || spacedSolidus(tag), nil
}

// spacedSolidus recognizes a closing solidus separated from the bracket by
// whitespace ("<kroki ... / >"), which the HTML tokenizer reports as a plain
// start tag. The solidus must follow whitespace or a quote so an unquoted
// attribute value ending in "/" is not mistaken for it.
func spacedSolidus(tag string) bool {
	t := strings.TrimRight(strings.TrimSuffix(tag, ">"), " \t\r\n")
	if len(t) < 2 || t[len(t)-1] != '/' {
		return false
	}
	switch t[len(t)-2] {
	case ' ', '\t', '\r', '\n', '"', '\'':
		return true
	}
	return false
}

// imageDirective recognizes the image-link syntax ![alt](kroki-TYPE:PATH).
// An absolute path resolves from the system root, a relative one from the
// owning chapter's directory.
func imageDirective(dest string, index int) (Directive, bool, error) {
	rest, ok := strings.CutPrefix(strings.ToLower(dest), "kroki-")
	if !ok {
		return Directive{}, false, nil
	}
	diagramType, _, ok := strings.Cut(rest, ":")
	if !ok || diagramType == "" {
		return Directive{}, false, nil
	}
	// Take the path verbatim from the original destination, not the
	// lowercased copy.
	declared := dest[len("kroki-")+len(diagramType)+1:]
	if declared == "" {
		return Directive{}, false, fmt.Errorf("%w: empty path in %q", ErrMissingPath, dest)
	}

	root := paths.RootThis
	if filepath.IsAbs(declared) {
		root = paths.RootSystem
	}
	return Directive{
		Type:        diagramType,
		Format:      FormatSVG,
		Placeholder: placeholder(index),
		Source:      FileRef{Root: root, Path: declared},
	}, true, nil
}
