// Package kroki talks to a kroki rendering service.
package kroki

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the public kroki instance.
const DefaultEndpoint = "https://kroki.io/"

var (
	// ErrRenderService covers transport failures and non-success statuses
	// from the render endpoint.
	ErrRenderService = errors.New("render service request failed")
	// ErrUnexpectedResponse means the service answered but the body did not
	// contain the expected rendered content.
	ErrUnexpectedResponse = errors.New("unexpected render service response")
)

// Client posts diagram sources to a kroki endpoint and wraps the rendered
// artifact for embedding in markdown.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the normalized endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// RenderRequest is the body kroki expects on POST /.
type RenderRequest struct {
	DiagramSource string `json:"diagram_source"`
	DiagramType   string `json:"diagram_type"`
	OutputFormat  string `json:"output_format"`
}

// Render submits one diagram and returns the rendered result ready for
// splicing into a chapter: wrapped in <pre></pre> so the markdown renderer
// does not reinterpret it as markup.
func (c *Client) Render(ctx context.Context, req RenderRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal render request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: status %d: %s", ErrRenderService, resp.StatusCode, string(respBody))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read render response: %w", err)
	}

	if req.OutputFormat == "svg" {
		return wrapSVG(raw)
	}
	return wrapBinary(raw, req.OutputFormat), nil
}

// wrapSVG discards everything before the svg start marker (kroki may prefix
// an XML declaration or doctype) and wraps the document.
func wrapSVG(raw []byte) (string, error) {
	idx := bytes.Index(raw, []byte("<svg"))
	if idx < 0 {
		return "", fmt.Errorf("%w: no '<svg' in body: %s", ErrUnexpectedResponse, truncate(raw, 200))
	}
	return "<pre>" + string(raw[idx:]) + "</pre>", nil
}

// wrapBinary embeds a binary artifact as a data URI.
func wrapBinary(raw []byte, format string) string {
	encoded := base64.StdEncoding.EncodeToString(raw)
	switch format {
	case "pdf":
		return `<pre><embed type="application/pdf" src="data:application/pdf;base64,` + encoded + `"></pre>`
	default: // png, jpeg
		return `<pre><img src="data:image/` + format + `;base64,` + encoded + `"></pre>`
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
