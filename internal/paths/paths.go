// Package paths maps a directive's declared root policy and path to the
// concrete file to read. Pure computation, no I/O.
package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// RootKind selects the base directory a file reference is resolved against.
type RootKind int

const (
	// RootThis resolves relative to the owning chapter's directory. Default
	// when no root is declared.
	RootThis RootKind = iota
	// RootSystem takes the path as an absolute filesystem path.
	RootSystem
	// RootBook resolves relative to the book root directory.
	RootBook
	// RootSource resolves relative to the book's source directory.
	RootSource
)

var (
	ErrInvalidPathForRoot    = errors.New("relative path cannot be used with root=\"system\"")
	ErrAbsolutePathNeedsRoot = errors.New("absolute path requires an explicit root of \"system\", \"book\", or \"source\"")
	ErrNoSourcePath          = errors.New("owning chapter has no source path")
	ErrUnknownRootKind       = errors.New("unrecognized root kind")
)

func (k RootKind) String() string {
	switch k {
	case RootSystem:
		return "system"
	case RootBook:
		return "book"
	case RootSource:
		return "source"
	case RootThis:
		return "this"
	}
	return fmt.Sprintf("RootKind(%d)", int(k))
}

// ParseRootKind maps a root attribute value to its kind. The empty string
// means the attribute was omitted and defaults to RootThis.
func ParseRootKind(s string) (RootKind, error) {
	switch s {
	case "system":
		return RootSystem, nil
	case "book":
		return RootBook, nil
	case "source", "src":
		return RootSource, nil
	case "this", ".", "":
		return RootThis, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRootKind, s)
}

// Resolve computes the file to read for a directive. chapterDir is the
// directory of the owning chapter relative to the source dir; it must be
// known for RootThis and is ignored otherwise. An unknown chapter dir is
// signalled by ok=false.
func Resolve(root RootKind, declared, bookDir, srcDir, chapterDir string, chapterDirKnown bool) (string, error) {
	abs := filepath.IsAbs(declared)
	switch root {
	case RootSystem:
		if !abs {
			return "", fmt.Errorf("%w: %q", ErrInvalidPathForRoot, declared)
		}
		return declared, nil
	case RootBook:
		return filepath.Join(bookDir, stripLeadingSep(declared)), nil
	case RootSource:
		return filepath.Join(bookDir, srcDir, stripLeadingSep(declared)), nil
	case RootThis:
		if abs {
			return "", fmt.Errorf("%w: %q", ErrAbsolutePathNeedsRoot, declared)
		}
		if !chapterDirKnown {
			return "", ErrNoSourcePath
		}
		return filepath.Join(bookDir, srcDir, chapterDir, declared), nil
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownRootKind, int(root))
}

// stripLeadingSep reinterprets an absolute path as relative, matching the
// book/source root rule: "/a/b.puml" under the book root is "<book>/a/b.puml".
func stripLeadingSep(p string) string {
	p = strings.TrimPrefix(p, filepath.VolumeName(p))
	for len(p) > 0 && (p[0] == '/' || p[0] == filepath.Separator) {
		p = p[1:]
	}
	return p
}
