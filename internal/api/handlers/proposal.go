package handlers

import (
	"net/http"
	"strconv"

	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/models"
	"github.com/chainkit/btcanchoring/internal/proposal"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/storage"
)

func proposalStateName(s proposal.State) string {
	switch s {
	case proposal.StateNone:
		return "none"
	case proposal.StateNoInitialFunds:
		return "no_initial_funds"
	case proposal.StateInsufficientFunds:
		return "insufficient_funds"
	case proposal.StateAvailable:
		return "available"
	default:
		return "unknown"
	}
}

// GetProposal handles GET /api/v1/proposal?height=N (spec §6 "current
// AnchoringProposalState").
func GetProposal(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		height, err := strconv.ParseUint(r.URL.Query().Get("height"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorMalformedArguments, "height query parameter is required and must be a non-negative integer")
			return
		}

		snap, err := store.Snapshot()
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		defer snap.Close()

		prop, err := proposal.BuildFromSnapshot(schema.New(snap), height)
		if err != nil {
			writeHandlerError(w, err)
			return
		}

		view := models.ProposalView{
			State:           proposalStateName(prop.State),
			AnchoringHeight: prop.AnchoringHeight,
			Balance:         prop.Balance,
			TotalFee:        prop.TotalFee,
		}
		if prop.State == proposal.StateAvailable {
			txBytes, err := codec.EncodeTransaction(prop.Tx)
			if err != nil {
				writeHandlerError(w, err)
				return
			}
			id := btc.NewTransaction(prop.Tx).ID()
			view.TxID = id.String()
			view.TxHex = hexEncode(txBytes)
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: view})
	}
}
