package preprocess

// Context is the first element of the JSON pair mdbook writes to the
// preprocessor's stdin.
type Context struct {
	Root          string        `json:"root"`
	Config        ContextConfig `json:"config"`
	Renderer      string        `json:"renderer"`
	MdbookVersion string        `json:"mdbook_version"`
}

type ContextConfig struct {
	Book         BookConfig                `json:"book"`
	Preprocessor map[string]map[string]any `json:"preprocessor"`
}

type BookConfig struct {
	Title string `json:"title"`
	Src   string `json:"src"`
}

// KrokiTable returns this preprocessor's own config table, or nil when the
// book declares none.
func (c *Context) KrokiTable() map[string]any {
	return c.Config.Preprocessor["kroki"]
}

// SrcDir returns the book's source directory relative to the root.
func (c *Context) SrcDir() string {
	if c.Config.Book.Src == "" {
		return "src"
	}
	return c.Config.Book.Src
}
