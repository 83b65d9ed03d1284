package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dosiblog/gateway/internal/llm"
	"github.com/dosiblog/gateway/internal/log"
)

// llmConfigHandler reads and switches the runtime LLM provider. The api
// key never leaves the server.
type llmConfigHandler struct {
	switcher *llm.Switcher
	logger   log.Logger
}

// llmConfigRequest is the wire form for switching providers.
type llmConfigRequest struct {
	Type    string `json:"type"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"` // ollama only
}

// llmConfigView is a provider configuration stripped of credentials.
type llmConfigView struct {
	Type      string `json:"type"`
	Model     string `json:"model"`
	BaseURL   string `json:"base_url,omitempty"`
	HasAPIKey bool   `json:"has_api_key"`
}

func llmViewOf(cfg llm.Config) llmConfigView {
	return llmConfigView{
		Type:      cfg.Provider,
		Model:     cfg.Model,
		BaseURL:   cfg.OllamaHost,
		HasAPIKey: cfg.APIKey != "",
	}
}

func (h *llmConfigHandler) get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"config": llmViewOf(h.switcher.Config()),
	}, h.logger)
}

func (h *llmConfigHandler) set(w http.ResponseWriter, r *http.Request) {
	var req llmConfigRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	current := h.switcher.Config()
	next := llm.Config{
		Provider:    strings.ToLower(strings.TrimSpace(req.Type)),
		Model:       strings.TrimSpace(req.Model),
		APIKey:      req.APIKey,
		OllamaHost:  strings.TrimSpace(req.BaseURL),
		Temperature: current.Temperature,
		MaxTokens:   current.MaxTokens,
	}

	if err := h.switcher.Switch(r.Context(), next); err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			writeError(w, http.StatusBadRequest, "invalid_llm_config", err.Error(), h.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "llm_config_failed", err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "LLM configuration saved and validated successfully. Model: " + next.Model,
		"config":  llmViewOf(h.switcher.Config()),
	}, h.logger)
}
