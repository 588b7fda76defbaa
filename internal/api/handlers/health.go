package handlers

import (
	"log/slog"
	"net/http"

	"github.com/chainkit/btcanchoring/internal/models"
)

// HealthHandler returns a handler for GET /api/v1/health.
func HealthHandler(network, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		writeJSON(w, http.StatusOK, models.APIResponse{Data: map[string]string{
			"status":  "ok",
			"version": version,
			"network": network,
		}})
	}
}
