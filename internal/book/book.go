// Package book models the mdbook book tree as it travels over the
// preprocessor protocol: an ordered forest of items, where chapters carry
// markdown content and nest sub-items recursively.
package book

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Book is the root of the tree. Sections keep their order for the whole run;
// addresses computed during extraction stay valid until the book is handed
// back to mdbook.
type Book struct {
	Sections []Item
}

// Item is one entry in a section list: a chapter, a separator, or a part
// title. Exactly one field is set.
type Item struct {
	Chapter   *Chapter
	PartTitle string
	Separator bool
}

// Chapter is a document node. Content is mutated in place, first by the
// scanner (directive spans become placeholders) and then by the merge pass
// (placeholders become rendered diagrams).
type Chapter struct {
	Name        string
	Content     string
	Number      []int
	SubItems    []Item
	Path        string // path relative to the source dir, "" if draft
	SourcePath  string
	ParentNames []string
}

// chapterJSON mirrors mdbook's serde field names.
type chapterJSON struct {
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Number      []int    `json:"number"`
	SubItems    []Item   `json:"sub_items"`
	Path        *string  `json:"path"`
	SourcePath  *string  `json:"source_path"`
	ParentNames []string `json:"parent_names"`
}

type bookJSON struct {
	Sections []Item          `json:"sections"`
	Rest     json.RawMessage `json:"__non_exhaustive,omitempty"`
}

// MarshalJSON emits the mdbook wire format for the item union:
// "Separator", {"PartTitle": "..."} or {"Chapter": {...}}.
func (it Item) MarshalJSON() ([]byte, error) {
	switch {
	case it.Chapter != nil:
		return json.Marshal(map[string]*Chapter{"Chapter": it.Chapter})
	case it.PartTitle != "":
		return json.Marshal(map[string]string{"PartTitle": it.PartTitle})
	case it.Separator:
		return json.Marshal("Separator")
	}
	return nil, fmt.Errorf("book item has no variant set")
}

func (it *Item) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s != "Separator" {
			return fmt.Errorf("unknown book item %q", s)
		}
		it.Separator = true
		return nil
	}

	var variants struct {
		Chapter   *Chapter `json:"Chapter"`
		PartTitle *string  `json:"PartTitle"`
	}
	if err := json.Unmarshal(trimmed, &variants); err != nil {
		return fmt.Errorf("decode book item: %w", err)
	}
	switch {
	case variants.Chapter != nil:
		it.Chapter = variants.Chapter
	case variants.PartTitle != nil:
		it.PartTitle = *variants.PartTitle
	default:
		return fmt.Errorf("book item has no recognized variant")
	}
	return nil
}

func (c Chapter) MarshalJSON() ([]byte, error) {
	cj := chapterJSON{
		Name:        c.Name,
		Content:     c.Content,
		Number:      c.Number,
		SubItems:    c.SubItems,
		ParentNames: c.ParentNames,
	}
	if cj.SubItems == nil {
		cj.SubItems = []Item{}
	}
	if cj.ParentNames == nil {
		cj.ParentNames = []string{}
	}
	if c.Path != "" {
		cj.Path = &c.Path
	}
	if c.SourcePath != "" {
		cj.SourcePath = &c.SourcePath
	}
	return json.Marshal(cj)
}

func (c *Chapter) UnmarshalJSON(data []byte) error {
	var cj chapterJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	c.Name = cj.Name
	c.Content = cj.Content
	c.Number = cj.Number
	c.SubItems = cj.SubItems
	c.ParentNames = cj.ParentNames
	if cj.Path != nil {
		c.Path = *cj.Path
	}
	if cj.SourcePath != nil {
		c.SourcePath = *cj.SourcePath
	}
	return nil
}

func (b Book) MarshalJSON() ([]byte, error) {
	sections := b.Sections
	if sections == nil {
		sections = []Item{}
	}
	return json.Marshal(bookJSON{Sections: sections, Rest: json.RawMessage("null")})
}

func (b *Book) UnmarshalJSON(data []byte) error {
	var bj bookJSON
	if err := json.Unmarshal(data, &bj); err != nil {
		return fmt.Errorf("decode book: %w", err)
	}
	b.Sections = bj.Sections
	return nil
}
