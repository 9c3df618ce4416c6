package scanner

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/mdkroki/internal/paths"
)

func TestScan_FencedBlock(t *testing.T) {
	input := "# Title\n\n```kroki-mermaid\ngraph TD; A-->B;\n```\n\nafter\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(directives))
	}

	d := directives[0]
	if d.Type != "mermaid" {
		t.Errorf("expected type %q, got %q", "mermaid", d.Type)
	}
	if d.Format != FormatSVG {
		t.Errorf("expected default format svg, got %q", d.Format)
	}
	inline, ok := d.Source.(Inline)
	if !ok {
		t.Fatalf("expected inline source, got %T", d.Source)
	}
	if inline.Text != "graph TD; A-->B;\n" {
		t.Errorf("unexpected inline source %q", inline.Text)
	}

	rewritten := string(out)
	if strings.Contains(rewritten, "```") {
		t.Errorf("fence markers should be gone, got %q", rewritten)
	}
	if strings.Count(rewritten, d.Placeholder) != 1 {
		t.Errorf("placeholder should occur exactly once in %q", rewritten)
	}
	if !strings.Contains(rewritten, "# Title") || !strings.Contains(rewritten, "after") {
		t.Errorf("surrounding content must survive, got %q", rewritten)
	}
}

func TestScan_FencedBlockCaseInsensitive(t *testing.T) {
	input := "```KROKI-Mermaid\nx\n```\n"
	_, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 || directives[0].Type != "mermaid" {
		t.Fatalf("expected one mermaid directive, got %+v", directives)
	}
}

func TestScan_NonDirectiveFencePassesThrough(t *testing.T) {
	input := "```go\nfmt.Println()\n```\n"
	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 0 {
		t.Fatalf("expected no directives, got %d", len(directives))
	}
	if string(out) != input {
		t.Errorf("content must be untouched, got %q", string(out))
	}
}

func TestScan_SelfClosingKrokiTag(t *testing.T) {
	input := "before\n\n<kroki type=\"PlantUML\" path=\"db.puml\" root=\"source\" format=\"png\"/>\n\nafter\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(directives))
	}

	d := directives[0]
	if d.Type != "plantuml" {
		t.Errorf("type should be lowercased, got %q", d.Type)
	}
	if d.Format != FormatPNG {
		t.Errorf("expected png format, got %q", d.Format)
	}
	ref, ok := d.Source.(FileRef)
	if !ok {
		t.Fatalf("expected file reference, got %T", d.Source)
	}
	if ref.Root != paths.RootSource || ref.Path != "db.puml" {
		t.Errorf("unexpected file ref %+v", ref)
	}
	if strings.Contains(string(out), "<kroki") {
		t.Errorf("tag should be replaced, got %q", string(out))
	}
	if strings.Count(string(out), d.Placeholder) != 1 {
		t.Errorf("placeholder should occur exactly once in %q", string(out))
	}
}

func TestScan_PairedKrokiTagDiscardsBody(t *testing.T) {
	input := "<kroki type=\"erd\" path=\"x.erd\">this body is ignored</kroki>\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(directives))
	}
	ref := directives[0].Source.(FileRef)
	if ref.Path != "x.erd" {
		t.Errorf("path attribute is authoritative, got %q", ref.Path)
	}
	rewritten := string(out)
	if strings.Contains(rewritten, "ignored") || strings.Contains(rewritten, "</kroki>") {
		t.Errorf("element body must be discarded, got %q", rewritten)
	}
	if strings.Count(rewritten, directives[0].Placeholder) != 1 {
		t.Errorf("placeholder should occur exactly once in %q", rewritten)
	}
}

func TestScan_PairedKrokiTagAcrossLines(t *testing.T) {
	input := "<kroki type=\"erd\" path=\"x.erd\">\n\nsome *markdown* body\n\n</kroki>\n\ntail\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(directives))
	}
	rewritten := string(out)
	if strings.Contains(rewritten, "markdown") {
		t.Errorf("element body must be discarded, got %q", rewritten)
	}
	if !strings.Contains(rewritten, "tail") {
		t.Errorf("content after the close tag must survive, got %q", rewritten)
	}
}

func TestScan_UnterminatedKrokiTag(t *testing.T) {
	input := "<kroki type=\"erd\" path=\"x.erd\">\n\nnever closed\n"
	_, _, err := Scan([]byte(input))
	if !errors.Is(err, ErrUnterminatedTag) {
		t.Fatalf("expected ErrUnterminatedTag, got %v", err)
	}
}

func TestScan_KrokiTagErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"missing type", `<kroki path="x.puml"/>`, ErrMissingType},
		{"missing path", `<kroki type="mermaid"/>`, ErrMissingPath},
		{"unknown root", `<kroki type="mermaid" path="x" root="volume"/>`, paths.ErrUnknownRootKind},
		{"relative path with system root", `<kroki type="mermaid" path="x.puml" root="system"/>`, paths.ErrInvalidPathForRoot},
		{"absolute path without root", `<kroki type="mermaid" path="/x.puml"/>`, paths.ErrAbsolutePathNeedsRoot},
		{"bad format", `<kroki type="mermaid" path="x.puml" format="gif"/>`, ErrBadFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Scan([]byte(tt.input + "\n"))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestScan_ImageDirective(t *testing.T) {
	input := "Intro text ![diagram](kroki-plantuml:./assets/a.puml) trailing.\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(directives))
	}

	d := directives[0]
	if d.Type != "plantuml" {
		t.Errorf("expected type plantuml, got %q", d.Type)
	}
	ref := d.Source.(FileRef)
	if ref.Root != paths.RootThis {
		t.Errorf("relative image path should resolve from the chapter, got %v", ref.Root)
	}
	if ref.Path != "./assets/a.puml" {
		t.Errorf("path must be taken verbatim, got %q", ref.Path)
	}

	rewritten := string(out)
	if strings.Contains(rewritten, "![") || strings.Contains(rewritten, "kroki-plantuml") {
		t.Errorf("image syntax should be replaced, got %q", rewritten)
	}
	if !strings.Contains(rewritten, "Intro text "+d.Placeholder+" trailing.") {
		t.Errorf("placeholder should sit inline, got %q", rewritten)
	}
}

func TestScan_ImageDirectiveAbsolutePath(t *testing.T) {
	input := "![d](kroki-svgbob:/abs/art.bob)\n"
	_, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(directives))
	}
	ref := directives[0].Source.(FileRef)
	if ref.Root != paths.RootSystem || ref.Path != "/abs/art.bob" {
		t.Errorf("absolute image path should use the system root, got %+v", ref)
	}
}

func TestScan_OrdinaryImagePassesThrough(t *testing.T) {
	input := "![logo](images/logo.png)\n"
	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 0 {
		t.Fatalf("expected no directives, got %d", len(directives))
	}
	if string(out) != input {
		t.Errorf("content must be untouched, got %q", string(out))
	}
}

func TestScan_PreBlockEscapesDirectives(t *testing.T) {
	input := "<pre>\n\n```kroki-mermaid\nhidden\n```\n\n<kroki type=\"x\" path=\"y\"/>\n\n</pre>\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 0 {
		t.Fatalf("directive syntax inside <pre> must not be extracted, got %d", len(directives))
	}
	if string(out) != input {
		t.Errorf("content must be untouched, got %q", string(out))
	}
}

func TestScan_NestedPreDepth(t *testing.T) {
	input := "<pre><pre><pre>deep</pre></pre>\n\n" +
		"```kroki-mermaid\nstill hidden\n```\n\n" +
		"</pre>\n\n" +
		"```kroki-mermaid\nvisible\n```\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("only the block outside <pre> should be extracted, got %d", len(directives))
	}
	inline := directives[0].Source.(Inline)
	if inline.Text != "visible\n" {
		t.Errorf("wrong block extracted: %q", inline.Text)
	}
	if !strings.Contains(string(out), "still hidden") {
		t.Errorf("escaped block must survive verbatim, got %q", string(out))
	}
}

func TestScan_InlinePreEscapes(t *testing.T) {
	input := "An example: <pre> use `<kroki type=\"a\" path=\"b\"/>` </pre> done.\n"
	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 0 {
		t.Fatalf("expected no directives, got %d", len(directives))
	}
	if !strings.Contains(string(out), "<kroki") {
		t.Errorf("escaped tag must survive, got %q", string(out))
	}
}

func TestScan_PlaceholderUniqueness(t *testing.T) {
	input := "```kroki-mermaid\none\n```\n\n" +
		"![d](kroki-plantuml:a.puml)\n\n" +
		"<kroki type=\"erd\" path=\"x.erd\"/>\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 3 {
		t.Fatalf("expected 3 directives, got %d", len(directives))
	}

	seen := make(map[string]bool)
	for i, d := range directives {
		if d.Placeholder == "" {
			t.Fatalf("directive %d has empty placeholder", i)
		}
		if seen[d.Placeholder] {
			t.Errorf("placeholder %q is not unique", d.Placeholder)
		}
		seen[d.Placeholder] = true
		if n := strings.Count(string(out), d.Placeholder); n != 1 {
			t.Errorf("placeholder %q occurs %d times, want 1", d.Placeholder, n)
		}
		want := fmt.Sprintf("%%%%kroki-diagram-%d%%%%", i)
		if d.Placeholder != want {
			t.Errorf("expected placeholder %q, got %q", want, d.Placeholder)
		}
	}
}

func TestScan_NoDirectivesIsIdentity(t *testing.T) {
	input := "# Doc\n\nParagraph with *emphasis* and [a link](https://example.com).\n\n" +
		"```go\ncode\n```\n\n" +
		"![image](pic.png)\n\n> quote\n"
	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 0 {
		t.Fatalf("expected no directives, got %d", len(directives))
	}
	if string(out) != input {
		t.Errorf("scan without directives must reproduce input exactly\nwant: %q\ngot:  %q", input, string(out))
	}
}

func TestScan_EmptyFencedDirective(t *testing.T) {
	input := "```kroki-mermaid\n```\n"
	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(directives))
	}
	inline := directives[0].Source.(Inline)
	if inline.Text != "" {
		t.Errorf("expected empty source, got %q", inline.Text)
	}
	if strings.Contains(string(out), "```") {
		t.Errorf("fence must be rewritten, got %q", string(out))
	}
}

func TestScan_SelfClosingTagSpacedSolidus(t *testing.T) {
	input := "<div>\n<kroki type=\"mermaid\" path=\"a.puml\" / >\n</div>\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(directives))
	}
	ref := directives[0].Source.(FileRef)
	if ref.Path != "a.puml" {
		t.Errorf("unexpected path %q", ref.Path)
	}

	rewritten := string(out)
	if strings.Contains(rewritten, "<kroki") {
		t.Errorf("spaced solidus still closes the tag, got %q", rewritten)
	}
	if !strings.Contains(rewritten, "<div>") || !strings.Contains(rewritten, "</div>") {
		t.Errorf("surrounding markup must survive, got %q", rewritten)
	}
	if strings.Count(rewritten, directives[0].Placeholder) != 1 {
		t.Errorf("placeholder should occur exactly once in %q", rewritten)
	}
}

func TestScan_EmptyAltImageAngleBracketDestination(t *testing.T) {
	input := "![](<kroki-svgbob:art.bob>)\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 1 {
		t.Fatalf("expected 1 directive, got %d", len(directives))
	}
	d := directives[0]
	if d.Type != "svgbob" {
		t.Errorf("expected type svgbob, got %q", d.Type)
	}
	ref := d.Source.(FileRef)
	if ref.Root != paths.RootThis || ref.Path != "art.bob" {
		t.Errorf("unexpected file ref %+v", ref)
	}

	rewritten := string(out)
	if strings.Contains(rewritten, "![") || strings.Contains(rewritten, "svgbob:") {
		t.Errorf("image syntax should be replaced, got %q", rewritten)
	}
	if rewritten != d.Placeholder+"\n" {
		t.Errorf("expected bare placeholder, got %q", rewritten)
	}
}

func TestScan_MixedDocument(t *testing.T) {
	input := "<pre>\n\n```kroki-mermaid\nescaped\n```\n\n</pre>\n\n" +
		"```kroki-GraphViz\ndigraph { a -> b }\n```\n\n" +
		"![d](kroki-plantuml:a.puml)\n\n" +
		"<kroki type=\"erd\" path=\"x.erd\" root=\"book\"/>\n"

	out, directives, err := Scan([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(directives) != 3 {
		t.Fatalf("expected 3 directives, got %d", len(directives))
	}
	if directives[0].Type != "graphviz" {
		t.Errorf("fence language should be lowercased, got %q", directives[0].Type)
	}
	inline := directives[0].Source.(Inline)
	if inline.Text != "digraph { a -> b }\n" {
		t.Errorf("unexpected inline source %q", inline.Text)
	}
	if directives[1].Type != "plantuml" || directives[2].Type != "erd" {
		t.Errorf("unexpected directive types %q, %q", directives[1].Type, directives[2].Type)
	}

	rewritten := string(out)
	if !strings.Contains(rewritten, "```kroki-mermaid\nescaped\n```") {
		t.Errorf("block inside <pre> must survive verbatim, got %q", rewritten)
	}
	for _, d := range directives {
		if n := strings.Count(rewritten, d.Placeholder); n != 1 {
			t.Errorf("placeholder %q occurs %d times, want 1", d.Placeholder, n)
		}
	}
}
