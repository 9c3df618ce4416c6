package paths

import (
	"errors"
	"testing"
)

func TestResolve_RootKindTable(t *testing.T) {
	const (
		bookDir    = "/b"
		srcDir     = "src"
		chapterDir = "chapters"
	)

	tests := []struct {
		name     string
		root     RootKind
		declared string
		want     string
		wantErr  error
	}{
		{name: "system absolute", root: RootSystem, declared: "/x.puml", want: "/x.puml"},
		{name: "system relative fails", root: RootSystem, declared: "x.puml", wantErr: ErrInvalidPathForRoot},
		{name: "book absolute reinterpreted", root: RootBook, declared: "/a/b.puml", want: "/b/a/b.puml"},
		{name: "book relative", root: RootBook, declared: "a/b.puml", want: "/b/a/b.puml"},
		{name: "source relative", root: RootSource, declared: "c.puml", want: "/b/src/c.puml"},
		{name: "source absolute reinterpreted", root: RootSource, declared: "/c.puml", want: "/b/src/c.puml"},
		{name: "this relative", root: RootThis, declared: "d.puml", want: "/b/src/chapters/d.puml"},
		{name: "this absolute fails", root: RootThis, declared: "/d.puml", wantErr: ErrAbsolutePathNeedsRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.root, tt.declared, bookDir, srcDir, chapterDir, true)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolve_ThisWithoutSourcePath(t *testing.T) {
	_, err := Resolve(RootThis, "d.puml", "/b", "src", "", false)
	if !errors.Is(err, ErrNoSourcePath) {
		t.Fatalf("expected ErrNoSourcePath, got %v", err)
	}
}

func TestParseRootKind(t *testing.T) {
	tests := []struct {
		in   string
		want RootKind
	}{
		{"system", RootSystem},
		{"book", RootBook},
		{"source", RootSource},
		{"src", RootSource},
		{"this", RootThis},
		{".", RootThis},
		{"", RootThis},
	}
	for _, tt := range tests {
		got, err := ParseRootKind(tt.in)
		if err != nil {
			t.Fatalf("ParseRootKind(%q): unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseRootKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseRootKind("volume"); !errors.Is(err, ErrUnknownRootKind) {
		t.Errorf("expected ErrUnknownRootKind for %q, got %v", "volume", err)
	}
}
