// Package fetch is the HTTP GET collaborator used for remote feed sync. It is
// an interface so tests can substitute deterministic fixtures and so a
// server-side proxy can be swapped in without touching parsing or
// aggregation.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds one remote feed fetch. A timeout is treated like any
// other fetch failure: silent, non-fatal, cache untouched.
const DefaultTimeout = 5 * time.Second

// Getter fetches the full body behind a URL.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTTPGetter is the production Getter over net/http.
type HTTPGetter struct {
	client *http.Client
}

// NewHTTPGetter returns a Getter with the given per-request timeout;
// zero means DefaultTimeout.
func NewHTTPGetter(timeout time.Duration) *HTTPGetter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPGetter{
		client: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGetter) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// RedactURL hides path and query of a feed URL for logging; feed locators
// often embed private tokens.
func RedactURL(u string) string {
	const redacted = "/...(redacted)"

	i := strings.Index(u, "://")
	if i < 0 {
		return "feed://...(redacted)"
	}

	j := i + 3
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redacted
}
