package api

import (
	"net/http"

	"github.com/dosiblog/gateway/internal/config"
	"github.com/dosiblog/gateway/internal/log"
)

// healthHandler reports liveness plus a small status summary, matching
// what operators poll to see the configured provider count.
func healthHandler(svc ChatService, providers *config.ProviderStore, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		providerCount := 0
		if providers != nil {
			providerCount = len(providers.Providers())
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"sessions":    len(svc.Sessions()),
			"mcp_servers": providerCount,
		}, logger)
	}
}

// ready is the readiness probe for container orchestration.
func ready(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
	}
}
