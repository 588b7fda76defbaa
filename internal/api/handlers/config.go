package handlers

import (
	"log/slog"
	"net/http"

	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/models"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/storage"
)

// GetConfig handles GET /api/v1/config (spec §6 "current Config").
func GetConfig(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := store.Snapshot()
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		defer snap.Close()

		cfg, err := schema.New(snap).ActualConfig()
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		if cfg == nil {
			writeError(w, http.StatusNotFound, config.ErrorNotFound, "no committee configuration has been installed yet")
			return
		}

		view, err := models.NewConfigView(cfg)
		if err != nil {
			slog.Error("render config view", "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorInternal, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: view})
	}
}
