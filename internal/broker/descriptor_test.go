package broker

import (
	"errors"
	"testing"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare host gets mcp suffix",
			raw:  "http://localhost:9000",
			want: "http://localhost:9000/mcp",
		},
		{
			name: "trailing slash stripped",
			raw:  "http://localhost:9000/",
			want: "http://localhost:9000/mcp",
		},
		{
			name: "already canonical unchanged",
			raw:  "https://tools.example.com/mcp",
			want: "https://tools.example.com/mcp",
		},
		{
			name: "canonical with trailing slash",
			raw:  "https://tools.example.com/mcp/",
			want: "https://tools.example.com/mcp",
		},
		{
			name: "legacy sse suffix replaced",
			raw:  "https://tools.example.com/sse",
			want: "https://tools.example.com/mcp",
		},
		{
			name: "legacy sse with trailing slash",
			raw:  "https://tools.example.com/sse/",
			want: "https://tools.example.com/mcp",
		},
		{
			name: "nested path kept",
			raw:  "https://tools.example.com/v1/agent/",
			want: "https://tools.example.com/v1/agent/mcp",
		},
		{
			name: "placeholder survives",
			raw:  "https://tools.example.com/t/{api_key}/sse",
			want: "https://tools.example.com/t/{api_key}/mcp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeEndpoint(tt.raw)
			if err != nil {
				t.Fatalf("NormalizeEndpoint(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeEndpoint_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-url", "ftp://example.com", "/relative/path"} {
		t.Run(raw, func(t *testing.T) {
			_, err := NormalizeEndpoint(raw)
			if !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("NormalizeEndpoint(%q) error = %v, want ErrInvalidDescriptor", raw, err)
			}
		})
	}
}

func TestProvider_Validate(t *testing.T) {
	valid := Provider{Name: "search", URL: "https://search.example.com"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	for _, p := range []Provider{
		{Name: "", URL: "https://search.example.com"},
		{Name: "search", URL: ""},
		{Name: "search", URL: "://bad"},
	} {
		if err := p.Validate(); !errors.Is(err, ErrInvalidDescriptor) {
			t.Errorf("Validate(%+v) error = %v, want ErrInvalidDescriptor", p, err)
		}
	}
}

func TestProvider_Endpoint_HeaderInjection(t *testing.T) {
	p := Provider{
		Name:   "search",
		URL:    "https://search.example.com",
		APIKey: "secret-key",
	}

	endpoint, headers, err := p.endpoint()
	if err != nil {
		t.Fatalf("endpoint() unexpected error: %v", err)
	}
	if endpoint != "https://search.example.com/mcp" {
		t.Errorf("endpoint = %q, want %q", endpoint, "https://search.example.com/mcp")
	}
	if got := headers.Get(DefaultAPIKeyHeader); got != "secret-key" {
		t.Errorf("header %s = %q, want %q", DefaultAPIKeyHeader, got, "secret-key")
	}
}

func TestProvider_Endpoint_CustomHeader(t *testing.T) {
	p := Provider{
		Name:         "search",
		URL:          "https://search.example.com/mcp",
		APIKey:       "secret-key",
		APIKeyHeader: "Authorization",
	}

	_, headers, err := p.endpoint()
	if err != nil {
		t.Fatalf("endpoint() unexpected error: %v", err)
	}
	if got := headers.Get("Authorization"); got != "secret-key" {
		t.Errorf("Authorization header = %q, want %q", got, "secret-key")
	}
	if got := headers.Get(DefaultAPIKeyHeader); got != "" {
		t.Errorf("default header = %q, want empty when custom header named", got)
	}
}

func TestProvider_Endpoint_PlaceholderPrecedence(t *testing.T) {
	p := Provider{
		Name:         "search",
		URL:          "https://search.example.com/t/{api_key}/mcp",
		APIKey:       "secret-key",
		APIKeyHeader: "Authorization",
	}

	endpoint, headers, err := p.endpoint()
	if err != nil {
		t.Fatalf("endpoint() unexpected error: %v", err)
	}
	if endpoint != "https://search.example.com/t/secret-key/mcp" {
		t.Errorf("endpoint = %q, want placeholder substituted", endpoint)
	}
	// URL substitution wins; the key must not also travel in a header.
	if got := headers.Get("Authorization"); got != "" {
		t.Errorf("Authorization header = %q, want empty when placeholder present", got)
	}
}

func TestProvider_Endpoint_ExtraHeaders(t *testing.T) {
	p := Provider{
		Name:    "search",
		URL:     "https://search.example.com",
		Headers: map[string]string{"X-Tenant": "dosiblog"},
	}

	_, headers, err := p.endpoint()
	if err != nil {
		t.Fatalf("endpoint() unexpected error: %v", err)
	}
	if got := headers.Get("X-Tenant"); got != "dosiblog" {
		t.Errorf("X-Tenant header = %q, want %q", got, "dosiblog")
	}
}

func TestProvider_Redacted(t *testing.T) {
	p := Provider{
		Name:    "search",
		URL:     "https://search.example.com",
		APIKey:  "very-secret",
		Headers: map[string]string{"Authorization": "Bearer tok"},
	}

	r := p.Redacted()
	if r.APIKey == "very-secret" {
		t.Error("Redacted() kept the api key")
	}
	if r.Headers["Authorization"] == "Bearer tok" {
		t.Error("Redacted() kept a header value")
	}
	if p.APIKey != "very-secret" || p.Headers["Authorization"] != "Bearer tok" {
		t.Error("Redacted() mutated the original descriptor")
	}
}
