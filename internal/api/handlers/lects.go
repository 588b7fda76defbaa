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

// GetValidatorLECT handles GET /api/v1/lects/{validator} (SPEC_FULL.md §C
// "per-validator LECT tracking").
func GetValidatorLECT(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		validatorIndex, err := strconv.Atoi(chi.URLParam(r, "validator"))
		if err != nil || validatorIndex < 0 {
			writeError(w, http.StatusBadRequest, config.ErrorMalformedArguments, "validator must be a non-negative integer")
			return
		}

		snap, err := store.Snapshot()
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		defer snap.Close()

		msgHash, txID, found, err := schema.New(snap).ValidatorLECT(validatorIndex)
		if err != nil {
			writeHandlerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: models.LectView{
			ValidatorIndex: validatorIndex,
			MsgHash:        msgHash,
			TxID:           txID,
			Found:          found,
		}})
	}
}
