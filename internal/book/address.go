package book

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Address locates one chapter in the book: a path of child indices from the
// root section list down to the chapter. Valid for one run, because section
// ordering never changes after extraction.
type Address []int

var (
	// ErrStaleAddress means an index no longer names an item; the tree
	// changed shape mid-run, which is an internal invariant violation.
	ErrStaleAddress = errors.New("address no longer resolves")
	// ErrNotAChapter means an address step landed on a separator or part
	// title instead of a chapter.
	ErrNotAChapter = errors.New("addressed item is not a chapter")
)

func (a Address) String() string {
	parts := make([]string, len(a))
	for i, idx := range a {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

// Clone returns an independent copy. Walk reuses its index buffer, so every
// address handed out of the walk must be cloned before it is stored.
func (a Address) Clone() Address {
	out := make(Address, len(a))
	copy(out, a)
	return out
}

// ChapterAt resolves an address to its chapter.
func (b *Book) ChapterAt(addr Address) (*Chapter, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("empty address: %w", ErrStaleAddress)
	}
	items := b.Sections
	var ch *Chapter
	for depth, idx := range addr {
		if idx < 0 || idx >= len(items) {
			return nil, fmt.Errorf("address %s: index %d out of range at depth %d: %w", addr, idx, depth, ErrStaleAddress)
		}
		ch = items[idx].Chapter
		if ch == nil {
			return nil, fmt.Errorf("address %s: depth %d: %w", addr, depth, ErrNotAChapter)
		}
		items = ch.SubItems
	}
	return ch, nil
}
