package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/models"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/storage"
)

// GetTransaction handles GET /api/v1/transactions/{index} (spec §6
// "anchoring transaction by index").
func GetTransaction(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil || idx < 0 {
			writeError(w, http.StatusBadRequest, config.ErrorMalformedArguments, "index must be a non-negative integer")
			return
		}

		snap, err := store.Snapshot()
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		defer snap.Close()
		sch := schema.New(snap)

		tx, err := sch.AnchoringTxAt(idx)
		if err != nil {
			writeError(w, http.StatusNotFound, config.ErrorNotFound, err.Error())
			return
		}

		txBytes, err := codec.EncodeTransaction(tx.MsgTx)
		if err != nil {
			writeHandlerError(w, err)
			return
		}

		view := models.TransactionView{
			Index: idx,
			TxID:  tx.ID().String(),
			TxHex: hexEncode(txBytes),
		}

		if payload, err := tx.Payload(); err == nil {
			view.BlockHeight = payload.BlockHeight
			view.BlockHash = hexEncode(payload.BlockHash[:])
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: view})
	}
}

// GetTransactionCount handles GET /api/v1/transactions/count (spec §6
// "total count").
func GetTransactionCount(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := store.Snapshot()
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		defer snap.Close()

		n, err := schema.New(snap).AnchoringTxsChainLen()
		if err != nil {
			writeHandlerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: map[string]int{"count": n}})
	}
}
