// Package handlers implements the public and private HTTP endpoints of
// spec §6 ("Public HTTP-style endpoints", "Private HTTP endpoints"),
// reading through a *storage.Store snapshot for public reads and through a
// *storage.Fork for the on-chain transaction executors of internal/handlers.
package handlers

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/models"
)

// hexEncode is a small alias kept local to this package so every handler
// file that renders binary fields for JSON shares one import site.
func hexEncode(b []byte) string { return hex.EncodeToString(b) }

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIError{
		Error: models.APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeHandlerError maps a handler/task-level sentinel error to a typed
// HTTP status and code (spec §7 "typed HTTP errors 400/401/404/409").
func writeHandlerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, config.ErrUnauthorizedCaller), errors.Is(err, config.ErrUnauthorizedSupervisor):
		writeError(w, http.StatusUnauthorized, config.ErrorUnauthorizedCaller, err.Error())
	case errors.Is(err, config.ErrMalformedArguments), errors.Is(err, config.ErrDecode):
		writeError(w, http.StatusBadRequest, config.ErrorMalformedArguments, err.Error())
	case errors.Is(err, config.ErrUnexpectedProposal):
		writeError(w, http.StatusConflict, config.ErrorUnexpectedProposal, err.Error())
	case errors.Is(err, config.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, config.ErrorInvalidSignature, err.Error())
	case errors.Is(err, config.ErrAlreadySigned):
		writeError(w, http.StatusConflict, config.ErrorAlreadySigned, err.Error())
	case errors.Is(err, config.ErrNoInitialFunds):
		writeError(w, http.StatusConflict, config.ErrorNoInitialFunds, err.Error())
	case errors.Is(err, config.ErrFundingAlreadySet):
		writeError(w, http.StatusConflict, config.ErrorFundingAlreadySet, err.Error())
	case errors.Is(err, config.ErrFundingAlreadySpent):
		writeError(w, http.StatusConflict, config.ErrorFundingAlreadySpent, err.Error())
	case errors.Is(err, config.ErrFundingOutputMissing):
		writeError(w, http.StatusBadRequest, config.ErrorFundingOutputMissing, err.Error())
	case errors.Is(err, config.ErrNoActiveProposal):
		writeError(w, http.StatusNotFound, config.ErrorNoActiveProposal, err.Error())
	case errors.Is(err, config.ErrNotInitialized):
		writeError(w, http.StatusConflict, config.ErrorNotInitialized, err.Error())
	case errors.Is(err, config.ErrTransitionPending):
		writeError(w, http.StatusConflict, config.ErrorTransitionPending, err.Error())
	case errors.Is(err, config.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, config.ErrorInvalidConfig, err.Error())
	default:
		slog.Error("unhandled handler error", "error", err)
		writeError(w, http.StatusInternalServerError, config.ErrorInternal, "internal error")
	}
}
