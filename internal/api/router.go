// Package api wires the public read endpoints and private transaction
// endpoints of spec §6 onto a chi router, over the same *storage.Store the
// on-chain handlers and off-chain tasks share.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/chainkit/btcanchoring/internal/api/handlers"
	"github.com/chainkit/btcanchoring/internal/api/middleware"
	"github.com/chainkit/btcanchoring/internal/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter builds the chi router serving both the public read endpoints
// and the private sign_input/add_funds endpoints (spec §6).
func NewRouter(store *storage.Store, network string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogging)

	slog.Info("router initialized", "middleware", []string{"requestLogging"})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(network, Version))

		r.Get("/config", handlers.GetConfig(store))
		r.Get("/proposal", handlers.GetProposal(store))
		r.Get("/transactions/count", handlers.GetTransactionCount(store))
		r.Get("/transactions/{index}", handlers.GetTransaction(store))
		r.Get("/anchored-blocks/{height}", handlers.GetAnchoredBlockProof(store))
		r.Get("/lects/{validator}", handlers.GetValidatorLECT(store))

		r.Route("/private", func(r chi.Router) {
			r.Post("/sign-input", handlers.SignInput(store))
			r.Post("/add-funds", handlers.AddFunds(store))
		})
	})

	return r
}
