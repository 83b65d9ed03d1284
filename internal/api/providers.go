package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dosiblog/gateway/internal/broker"
	"github.com/dosiblog/gateway/internal/config"
	"github.com/dosiblog/gateway/internal/log"
)

// providerHandler administers MCP provider descriptors. URLs are
// normalized on write; api keys never leave the server.
type providerHandler struct {
	store  *config.ProviderStore
	logger log.Logger
}

// providerView is a descriptor stripped of credentials for responses.
type providerView struct {
	Name         string            `json:"name"`
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers,omitempty"`
	APIKeyHeader string            `json:"api_key_header,omitempty"`
	HasAPIKey    bool              `json:"has_api_key"`
}

func viewOf(p broker.Provider) providerView {
	redacted := p.Redacted()
	return providerView{
		Name:         redacted.Name,
		URL:          redacted.URL,
		Headers:      redacted.Headers,
		APIKeyHeader: redacted.APIKeyHeader,
		HasAPIKey:    p.APIKey != "",
	}
}

func (h *providerHandler) list(w http.ResponseWriter, _ *http.Request) {
	providers := h.store.Providers()
	views := make([]providerView, 0, len(providers))
	for _, p := range providers {
		views = append(views, viewOf(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(views),
		"servers": views,
	}, h.logger)
}

func (h *providerHandler) add(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r)
	if !ok {
		return
	}

	added, err := h.store.Add(p)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("MCP server %q added", added.Name),
		"server":  viewOf(added),
	}, h.logger)
}

func (h *providerHandler) update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r)
	if !ok {
		return
	}

	updated, err := h.store.Update(r.PathValue("name"), p)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("MCP server %q updated", updated.Name),
		"server":  viewOf(updated),
	}, h.logger)
}

func (h *providerHandler) remove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	remaining, err := h.store.Delete(name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   fmt.Sprintf("MCP server %q deleted", name),
		"remaining": remaining,
	}, h.logger)
}

func (h *providerHandler) decode(w http.ResponseWriter, r *http.Request) (broker.Provider, bool) {
	var p broker.Provider
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return broker.Provider{}, false
	}
	return p, true
}

func (h *providerHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, config.ErrProviderExists):
		writeError(w, http.StatusBadRequest, "provider_exists", err.Error(), h.logger)
	case errors.Is(err, config.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error(), h.logger)
	case errors.Is(err, broker.ErrInvalidDescriptor):
		writeError(w, http.StatusBadRequest, "invalid_descriptor", err.Error(), h.logger)
	default:
		writeError(w, http.StatusInternalServerError, "provider_store_failed", err.Error(), h.logger)
	}
}
