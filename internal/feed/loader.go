// Package feed loads episode catalogs from local files or URLs. Documents
// may be RSS 2.0 or one of the JSON catalog shapes.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/csams/podcast-player/internal/models"
)

const maxDocumentSize = 32 << 20

// Load reads source, a path or http(s) URL, and parses it.
func Load(ctx context.Context, source string) (*models.Catalog, error) {
	data, err := read(ctx, source)
	if err != nil {
		return nil, err
	}
	return Parse(data, source)
}

// Parse sniffs the document type and decodes it.
func Parse(data []byte, source string) (*models.Catalog, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("failed to parse catalog %s: empty document", source)
	}
	switch trimmed[0] {
	case '<':
		return ParseRSS(trimmed, source)
	case '{', '[':
		return ParseJSON(trimmed, source)
	default:
		return nil, fmt.Errorf("failed to parse catalog %s: unrecognised format", source)
	}
}

// IsURL reports whether source is fetched over HTTP.
func IsURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func read(ctx context.Context, source string) ([]byte, error) {
	if !IsURL(source) {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch feed: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}
