package scanner

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// The scanner consumes the parsed document as a flat, ordered sequence of
// events. Only the constructs a directive can live in become events; every
// byte not covered by an edit passes through verbatim.
type eventKind int

const (
	evHTML       eventKind = iota // raw HTML span, block or inline
	evFenceStart                  // fenced code block opening, info carries the language
	evFenceText                   // fenced code block content
	evFenceEnd                    // fenced code block closing
	evImageStart                  // inline image, info carries the destination URL
	evImageEnd
)

type event struct {
	kind  eventKind
	info  string // language, destination
	body  string // content for evFenceText
	start int    // byte span in the document source
	end   int
}

// tokenize parses one document and flattens it into events in document
// order. HTML spans are sliced straight from the source so event-relative
// offsets map back to document offsets.
func tokenize(src []byte) []event {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var events []event
	cursor := 0

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.HTMLBlock:
			start, end := htmlBlockSpan(node, src)
			if end > start {
				events = append(events, event{kind: evHTML, start: start, end: end})
				cursor = end
			}
			return ast.WalkSkipChildren, nil

		case *ast.RawHTML:
			if node.Segments.Len() == 0 {
				return ast.WalkSkipChildren, nil
			}
			start := node.Segments.At(0).Start
			end := node.Segments.At(node.Segments.Len() - 1).Stop
			events = append(events, event{kind: evHTML, start: start, end: end})
			cursor = end
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			lang := ""
			if node.Info != nil {
				lang = string(node.Language(src))
			}
			start, end := fencedBlockSpan(node, src)
			events = append(events, event{kind: evFenceStart, info: lang, start: start, end: start})
			if lines := node.Lines(); lines.Len() > 0 {
				var buf bytes.Buffer
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
				events = append(events, event{kind: evFenceText, body: buf.String()})
			}
			events = append(events, event{kind: evFenceEnd, start: end, end: end})
			cursor = end
			return ast.WalkSkipChildren, nil

		case *ast.Image:
			start, end, ok := imageSpan(node, src, cursor)
			if !ok {
				return ast.WalkSkipChildren, nil
			}
			events = append(events,
				event{kind: evImageStart, info: string(node.Destination), start: start, end: start},
				event{kind: evImageEnd, start: end, end: end})
			cursor = end
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return events
}

// htmlBlockSpan covers the block's lines plus its closure line, if any.
func htmlBlockSpan(node *ast.HTMLBlock, src []byte) (int, int) {
	lines := node.Lines()
	start, end := 0, 0
	if lines.Len() > 0 {
		start = lines.At(0).Start
		end = lines.At(lines.Len() - 1).Stop
	}
	if node.HasClosure() {
		closure := node.ClosureLine
		if lines.Len() == 0 {
			start = closure.Start
		}
		end = closure.Stop
	}
	return start, end
}

// fencedBlockSpan covers the whole block from the start of the opening fence
// line through the end of the closing fence line (or end of input when the
// fence is unterminated).
func fencedBlockSpan(node *ast.FencedCodeBlock, src []byte) (int, int) {
	lines := node.Lines()

	var anchor int // a position on the opening fence line
	switch {
	case node.Info != nil:
		anchor = node.Info.Segment.Start
	case lines.Len() > 0:
		anchor = lineStart(src, lines.At(0).Start-1)
	}
	start := lineStart(src, anchor)

	var afterContent int
	if lines.Len() > 0 {
		afterContent = lines.At(lines.Len() - 1).Stop
	} else {
		// Empty block: skip past the opening fence line.
		afterContent = lineEnd(src, anchor)
	}
	// The closing fence, when present, is the next line.
	return start, lineEnd(src, afterContent)
}

// lineStart walks back to the first byte of the line containing pos.
func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// lineEnd returns the index just past the newline terminating the line that
// begins at or contains pos, or len(src) for the last line.
func lineEnd(src []byte, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(src)
}

// imageSpan locates the "![alt](dest)" span in the source. Inline nodes do
// not carry their own segment, so the span is recovered from the alt text
// segment when there is one, and otherwise by searching forward from the
// last consumed position.
func imageSpan(node *ast.Image, src []byte, from int) (int, int, bool) {
	if alt := firstTextSegment(node); alt != nil {
		start := alt.Start
		for start >= 2 && !(src[start-2] == '!' && src[start-1] == '[') {
			start--
		}
		if start < 2 {
			return 0, 0, false
		}
		start -= 2
		rparen := bytes.IndexByte(src[alt.Stop:], ')')
		if rparen < 0 {
			return 0, 0, false
		}
		return start, alt.Stop + rparen + 1, true
	}

	// Empty alt text: find the destination bytes from the cursor, then walk
	// back over the "![](" opener. The destination may be wrapped in angle
	// brackets, which goldmark strips from node.Destination.
	if len(node.Destination) == 0 {
		return 0, 0, false
	}
	p := from
	for {
		idx := bytes.Index(src[p:], node.Destination)
		if idx < 0 {
			return 0, 0, false
		}
		p += idx
		q := p
		for q > 0 && (src[q-1] == '<' || src[q-1] == ' ' || src[q-1] == '\t') {
			q--
		}
		if q >= 4 && bytes.Equal(src[q-4:q], []byte("![](")) {
			rparen := bytes.IndexByte(src[p+len(node.Destination):], ')')
			if rparen < 0 {
				return 0, 0, false
			}
			return q - 4, p + len(node.Destination) + rparen + 1, true
		}
		p += len(node.Destination)
	}
}

func firstTextSegment(n ast.Node) *text.Segment {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			seg := t.Segment
			if seg.Len() > 0 {
				return &seg
			}
			continue
		}
		if seg := firstTextSegment(c); seg != nil {
			return seg
		}
	}
	return nil
}
