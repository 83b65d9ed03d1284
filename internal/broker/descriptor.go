package broker

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAPIKeyHeader carries the provider API key when the descriptor does
// not name a header and the URL has no placeholder.
const DefaultAPIKeyHeader = "x-api-key"

// APIKeyPlaceholder is substituted with the descriptor's api_key wherever it
// appears in the endpoint URL. URL substitution takes precedence over header
// injection.
const APIKeyPlaceholder = "{api_key}"

var (
	// ErrInvalidDescriptor indicates a provider descriptor that cannot be
	// used: missing name, missing URL, or a URL that does not normalize to
	// an absolute http(s) endpoint.
	ErrInvalidDescriptor = errors.New("invalid provider descriptor")
)

// Provider describes one MCP tool provider. The JSON shape matches the
// mcp_servers.json entries and the MCP_SERVERS environment variable.
type Provider struct {
	Name         string            `json:"name"`
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers,omitempty"`
	APIKey       string            `json:"api_key,omitempty"`
	APIKeyHeader string            `json:"api_key_header,omitempty"`
}

// NormalizeEndpoint rewrites a configured URL into canonical streamable-HTTP
// form: trailing slashes dropped, a legacy "/sse" suffix stripped, and the
// "/mcp" suffix enforced. The result must parse as an absolute http(s) URL.
func NormalizeEndpoint(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidDescriptor)
	}

	s = strings.TrimRight(s, "/")
	s = strings.TrimSuffix(s, "/sse")
	if !strings.HasSuffix(s, "/mcp") {
		s += "/mcp"
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: parsing url %q: %v", ErrInvalidDescriptor, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: url %q is not an absolute http(s) endpoint", ErrInvalidDescriptor, raw)
	}
	return s, nil
}

// Validate checks the descriptor before any connection attempt.
func (p Provider) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDescriptor)
	}
	if _, err := NormalizeEndpoint(p.URL); err != nil {
		return fmt.Errorf("provider %q: %w", p.Name, err)
	}
	return nil
}

// endpoint resolves the normalized URL and request headers for this
// provider, applying credential injection. Normalization happens first so
// the placeholder survives suffix rewriting.
func (p Provider) endpoint() (string, http.Header, error) {
	endpoint, err := NormalizeEndpoint(p.URL)
	if err != nil {
		return "", nil, err
	}

	headers := make(http.Header, len(p.Headers)+1)
	for k, v := range p.Headers {
		headers.Set(k, v)
	}

	if p.APIKey != "" {
		if strings.Contains(endpoint, APIKeyPlaceholder) {
			endpoint = strings.ReplaceAll(endpoint, APIKeyPlaceholder, url.QueryEscape(p.APIKey))
		} else {
			name := p.APIKeyHeader
			if name == "" {
				name = DefaultAPIKeyHeader
			}
			headers.Set(name, p.APIKey)
		}
	}

	return endpoint, headers, nil
}

// Redacted returns a copy safe for logging and API responses: the api_key
// and any header values are masked.
func (p Provider) Redacted() Provider {
	out := p
	if out.APIKey != "" {
		out.APIKey = maskValue
	}
	if len(p.Headers) > 0 {
		out.Headers = make(map[string]string, len(p.Headers))
		for k := range p.Headers {
			out.Headers[k] = maskValue
		}
	}
	return out
}

const maskValue = "********"
