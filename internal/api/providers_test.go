package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dosiblog/gateway/internal/config"
	"github.com/dosiblog/gateway/internal/log"
)

func newProviderServer(t *testing.T) *Server {
	t.Helper()
	store := config.NewProviderStore(filepath.Join(t.TempDir(), "mcp_servers.json"), log.NewNop())
	return newTestServer(t, &stubService{}, ServerConfig{Providers: store})
}

func TestProviders_AddAndList(t *testing.T) {
	srv := newProviderServer(t)

	rec := postJSON(t, srv, "/api/mcp-servers",
		`{"name":"github","url":"https://mcp.example.com/github/sse","api_key":"ghp_secret_token"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "ghp_secret_token") {
		t.Error("add response leaks the api key")
	}

	var added struct {
		Server providerView `json:"server"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &added); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if added.Server.URL != "https://mcp.example.com/github/mcp" {
		t.Errorf("URL = %q, want normalized /mcp endpoint", added.Server.URL)
	}
	if !added.Server.HasAPIKey {
		t.Error("HasAPIKey = false, want true")
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mcp-servers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "ghp_secret_token") {
		t.Error("list response leaks the api key")
	}
	var list struct {
		Count   int            `json:"count"`
		Servers []providerView `json:"servers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if list.Count != 1 || list.Servers[0].Name != "github" {
		t.Errorf("list = %+v", list)
	}
}

func TestProviders_AddDuplicate(t *testing.T) {
	srv := newProviderServer(t)

	if rec := postJSON(t, srv, "/api/mcp-servers", `{"name":"github","url":"https://a.example.com/mcp"}`); rec.Code != http.StatusCreated {
		t.Fatalf("first add status = %d", rec.Code)
	}
	rec := postJSON(t, srv, "/api/mcp-servers", `{"name":"github","url":"https://b.example.com/mcp"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate status = %d, want 400", rec.Code)
	}
}

func TestProviders_AddInvalidURL(t *testing.T) {
	srv := newProviderServer(t)

	rec := postJSON(t, srv, "/api/mcp-servers", `{"name":"bad","url":"not a url"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProviders_Update(t *testing.T) {
	srv := newProviderServer(t)

	if rec := postJSON(t, srv, "/api/mcp-servers", `{"name":"github","url":"https://a.example.com/mcp"}`); rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/mcp-servers/github",
		strings.NewReader(`{"name":"github","url":"https://b.example.com/"}`))
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "https://b.example.com/mcp") {
		t.Errorf("body = %s, want normalized replacement URL", rec.Body)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/mcp-servers/absent",
		strings.NewReader(`{"name":"absent","url":"https://c.example.com/mcp"}`))
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("update absent status = %d, want 404", rec.Code)
	}
}

func TestProviders_Delete(t *testing.T) {
	srv := newProviderServer(t)

	if rec := postJSON(t, srv, "/api/mcp-servers", `{"name":"github","url":"https://a.example.com/mcp"}`); rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/mcp-servers/github", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/mcp-servers/github", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestProviders_DisabledWithoutStore(t *testing.T) {
	srv := newTestServer(t, &stubService{}, ServerConfig{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mcp-servers", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when provider admin is disabled", rec.Code)
	}
}
