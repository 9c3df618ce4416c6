// Package scanner finds diagram directives embedded in a chapter's markdown
// and rewrites each one into a unique placeholder token, leaving every other
// byte untouched. Three syntaxes are recognized: fenced code blocks with a
// kroki- language, <kroki> tags, and image links with a kroki- URL scheme.
// Anything inside a <pre> span is passed through verbatim, which is the
// escape hatch for writing literal examples of the syntax.
package scanner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnterminatedTag = errors.New("kroki tag not closed before end of document")
	ErrMalformedTag    = errors.New("malformed kroki tag")
	ErrMissingType     = errors.New("kroki tag is missing the required \"type\" attribute")
	ErrMissingPath     = errors.New("kroki tag is missing the required \"path\" attribute")
	ErrBadFormat       = errors.New("unsupported output format")
)

// state is the scanner's single current mode. Transitions run strictly
// left-to-right over the event stream.
type state int

const (
	stOutside state = iota
	stKrokiTag      // between a non-self-closing <kroki> and its </kroki>
	stFence         // inside a kroki- fenced code block
	stImage         // inside a kroki- image link
)

type edit struct {
	start, end  int
	replacement string
}

type scanner struct {
	src        []byte
	state      state
	preDepth   int // <pre> nesting; directive recognition is off while > 0
	directives []Directive
	edits      []edit

	// pending per-state context
	editStart int    // span start for the directive being assembled
	fenceType string // diagram type of the open fenced block
	fenceBody string
}

// Scan rewrites one document. It returns the content with every directive
// span replaced by its placeholder, plus the directives in discovery order.
// Addresses are left empty; the tree walker stamps them.
func Scan(src []byte) ([]byte, []Directive, error) {
	s := &scanner{src: src}
	for _, ev := range tokenize(src) {
		if err := s.step(ev); err != nil {
			return nil, nil, err
		}
	}
	if s.state == stKrokiTag {
		return nil, nil, ErrUnterminatedTag
	}
	return s.splice(), s.directives, nil
}

func (s *scanner) step(ev event) error {
	switch ev.kind {
	case evHTML:
		return s.stepHTML(ev)

	case evFenceStart:
		if s.state != stOutside || s.preDepth > 0 {
			return nil
		}
		diagramType, ok := directiveLanguage(ev.info)
		if !ok {
			return nil
		}
		s.state = stFence
		s.fenceType = diagramType
		s.fenceBody = ""
		s.editStart = ev.start

	case evFenceText:
		if s.state == stFence {
			s.fenceBody = ev.body
		}

	case evFenceEnd:
		if s.state != stFence {
			return nil
		}
		token := placeholder(len(s.directives))
		s.directives = append(s.directives, Directive{
			Type:        s.fenceType,
			Format:      FormatSVG,
			Placeholder: token,
			Source:      Inline{Text: s.fenceBody},
		})
		s.edits = append(s.edits, edit{start: s.editStart, end: ev.end, replacement: token + "\n"})
		s.state = stOutside

	case evImageStart:
		if s.state != stOutside || s.preDepth > 0 {
			return nil
		}
		d, ok, err := imageDirective(ev.info, len(s.directives))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		s.directives = append(s.directives, d)
		s.state = stImage
		s.editStart = ev.start

	case evImageEnd:
		if s.state != stImage {
			return nil
		}
		token := s.directives[len(s.directives)-1].Placeholder
		s.edits = append(s.edits, edit{start: s.editStart, end: ev.end, replacement: token})
		s.state = stOutside
	}
	return nil
}

// stepHTML walks one raw HTML span token by token, so a single span holding
// several tags (a whole <pre>...</pre> block, or a self-contained
// <kroki>...</kroki> pair) is handled the same as tags arriving one event at
// a time.
func (s *scanner) stepHTML(ev event) error {
	raw := string(s.src[ev.start:ev.end])
	i := 0
	for i < len(raw) {
		if s.state == stKrokiTag {
			idx := strings.Index(raw[i:], "</kroki>")
			if idx < 0 {
				return nil // still open, content is discarded
			}
			closeEnd := i + idx + len("</kroki>")
			token := s.directives[len(s.directives)-1].Placeholder
			s.edits = append(s.edits, edit{start: s.editStart, end: ev.start + closeEnd, replacement: token})
			s.state = stOutside
			i = closeEnd
			continue
		}

		j, kind := nextHTMLToken(raw, i)
		if j < 0 {
			return nil
		}
		switch kind {
		case tokPreOpen:
			s.preDepth++
			i = j + len("<pre")
		case tokPreClose:
			if s.preDepth > 0 {
				s.preDepth--
			}
			i = j + len("</pre")
		case tokKrokiOpen:
			if s.preDepth > 0 {
				i = j + len("<kroki")
				continue
			}
			gt := strings.IndexByte(raw[j:], '>')
			if gt < 0 {
				return fmt.Errorf("%w: no closing '>'", ErrMalformedTag)
			}
			tag := raw[j : j+gt+1]
			d, selfClosing, err := parseKrokiTag(tag, len(s.directives))
			if err != nil {
				return err
			}
			s.directives = append(s.directives, d)
			if selfClosing {
				// Replace the tag itself.
				s.edits = append(s.edits, edit{start: ev.start + j, end: ev.start + j + gt + 1, replacement: d.Placeholder})
			} else {
				s.state = stKrokiTag
				s.editStart = ev.start + j
			}
			i = j + gt + 1
		}
	}
	return nil
}

// directiveLanguage reports whether a fence language names a diagram type.
func directiveLanguage(lang string) (string, bool) {
	const prefix = "kroki-"
	if len(lang) <= len(prefix) || !strings.EqualFold(lang[:len(prefix)], prefix) {
		return "", false
	}
	return strings.ToLower(lang[len(prefix):]), true
}

// splice applies the recorded edits to the source.
func (s *scanner) splice() []byte {
	if len(s.edits) == 0 {
		out := make([]byte, len(s.src))
		copy(out, s.src)
		return out
	}
	edits := make([]edit, len(s.edits))
	copy(edits, s.edits)
	sort.SliceStable(edits, func(a, b int) bool { return edits[a].start < edits[b].start })

	var out []byte
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			continue // overlapping edit, keep the earlier one
		}
		out = append(out, s.src[pos:e.start]...)
		out = append(out, e.replacement...)
		pos = e.end
	}
	out = append(out, s.src[pos:]...)
	return out
}

type htmlToken int

const (
	tokPreOpen htmlToken = iota
	tokPreClose
	tokKrokiOpen
)

// nextHTMLToken finds the next tag of interest at or after i. Tag names must
// be followed by a delimiter so "<pres" or "<krokix" do not match.
func nextHTMLToken(raw string, i int) (int, htmlToken) {
	for ; i < len(raw); i++ {
		if raw[i] != '<' {
			continue
		}
		rest := raw[i:]
		switch {
		case tagAt(rest, "<pre"):
			return i, tokPreOpen
		case tagAt(rest, "</pre"):
			return i, tokPreClose
		case tagAt(rest, "<kroki"):
			return i, tokKrokiOpen
		}
	}
	return -1, 0
}

func tagAt(rest, name string) bool {
	if !strings.HasPrefix(rest, name) {
		return false
	}
	if len(rest) == len(name) {
		return false
	}
	switch rest[len(name)] {
	case '>', ' ', '\t', '\n', '/':
		return true
	}
	return false
}
