package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/models"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/storage"
)

// GetAnchoredBlockProof handles GET /api/v1/anchored-blocks/{height} (spec
// §6 "anchored-blocks proof").
func GetAnchoredBlockProof(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		height, err := strconv.ParseUint(chi.URLParam(r, "height"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorMalformedArguments, "height must be a non-negative integer")
			return
		}

		snap, err := store.Snapshot()
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		defer snap.Close()

		hash, found, err := schema.New(snap).AnchoredBlockAt(height)
		if err != nil {
			writeHandlerError(w, err)
			return
		}

		view := models.AnchoredBlocksProof{Height: height, Found: found}
		if found {
			view.BlockHash = hexEncode(hash[:])
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: view})
	}
}
