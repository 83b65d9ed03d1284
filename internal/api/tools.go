package api

import (
	"net/http"

	"github.com/dosiblog/gateway/internal/log"
)

// toolsHandler reports the merged tool catalog. Listing opens a broker
// scope, so unavailable providers simply contribute nothing.
type toolsHandler struct {
	service ChatService
	logger  log.Logger
}

func (h *toolsHandler) list(w http.ResponseWriter, r *http.Request) {
	infos, err := h.service.Tools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "tools_failed", err.Error(), h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(infos),
		"tools": infos,
	}, h.logger)
}
