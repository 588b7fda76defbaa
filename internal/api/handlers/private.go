package handlers

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/config"
	onchain "github.com/chainkit/btcanchoring/internal/handlers"
	"github.com/chainkit/btcanchoring/internal/models"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/storage"
)

// decodeSignedEnvelope reads and signature-verifies an EnvelopeRequest body,
// standing in for the host-chain runtime's own TransactionContext
// verification (spec §6 "TransactionContext with a verifiable caller") that
// a real deployment's RPC layer would have already performed.
func decodeSignedEnvelope(r *http.Request) (*codec.Envelope, error) {
	var req models.EnvelopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, config.ErrMalformedArguments
	}

	raw, err := hex.DecodeString(req.EnvelopeHex)
	if err != nil {
		return nil, config.ErrMalformedArguments
	}

	env, err := codec.DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	ok, err := env.VerifySignature()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, config.ErrInvalidSignature
	}

	return env, nil
}

// SignInput handles POST /api/v1/private/sign-input (spec §6
// "sign_input(SignInput) -> tx_hash"). height identifies the host-chain
// block height the submitted proposal was built against, supplied by the
// caller in lieu of a live host-chain TransactionContext.
func SignInput(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		height, err := strconv.ParseUint(r.URL.Query().Get("height"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorMalformedArguments, "height query parameter is required")
			return
		}

		env, err := decodeSignedEnvelope(r)
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		if env.Kind != codec.KindSignInput {
			writeError(w, http.StatusBadRequest, config.ErrorMalformedArguments, "envelope is not a sign_input message")
			return
		}

		fork, err := store.Fork()
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		writer := schema.NewWriter(fork)

		if err := onchain.SignInput(writer, height, env.Sender, *env.SignInput); err != nil {
			fork.Rollback()
			writeHandlerError(w, err)
			return
		}
		if err := fork.Commit(); err != nil {
			writeHandlerError(w, err)
			return
		}

		hash := env.ContentHash()
		writeJSON(w, http.StatusOK, models.SubmitResponse{TxHash: hex.EncodeToString(hash[:])})
	}
}

// AddFunds handles POST /api/v1/private/add-funds (spec §6
// "add_funds(Bitcoin tx) -> tx_hash").
func AddFunds(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env, err := decodeSignedEnvelope(r)
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		if env.Kind != codec.KindAddFunds {
			writeError(w, http.StatusBadRequest, config.ErrorMalformedArguments, "envelope is not an add_funds message")
			return
		}

		fork, err := store.Fork()
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		writer := schema.NewWriter(fork)

		if err := onchain.AddFunds(writer, env.Sender, *env.AddFunds); err != nil {
			fork.Rollback()
			writeHandlerError(w, err)
			return
		}
		if err := fork.Commit(); err != nil {
			writeHandlerError(w, err)
			return
		}

		hash := env.ContentHash()
		writeJSON(w, http.StatusOK, models.SubmitResponse{TxHash: hex.EncodeToString(hash[:])})
	}
}
