/**
 * @description
 * This file sets up the HTTP router for the banking-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// BankingRoutes creates and returns a new router for the banking service.
func BankingRoutes(h *BankingHandlers, a *AssistantHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Assistant turns stream for a while; the timeout has to cover a slow
	// model pass plus tool execution.
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		// Money movement
		r.Post("/transfers", h.TransferHandler)
		r.Post("/payments", h.PaymentHandler)
		r.Post("/extensions", h.ExtensionHandler)

		// Account
		r.Get("/account/balance", h.BalanceHandler)
		r.Get("/account/transactions", h.ListTransactionsHandler)

		// Cards
		r.Get("/cards", h.ListCardsHandler)
		r.Post("/cards/applications", h.CardApplicationHandler)
		r.Get("/cards/{last4}/statement", h.CardStatementHandler)
		r.Get("/cards/{last4}/transactions", h.CardTransactionsHandler)

		// Loans
		r.Get("/loans", h.ListLoansHandler)
		r.Post("/loans/applications", h.LoanApplicationHandler)

		// Insights
		r.Get("/insights", h.InsightsHandler)
		r.Post("/insights/refresh", h.RefreshInsightsHandler)

		// Passkeys
		r.Get("/passkeys", h.ListPasskeysHandler)
		r.Post("/passkeys", h.RegisterPasskeyHandler)
		r.Delete("/passkeys/{credentialID}", h.RemovePasskeyHandler)

		// Assistant
		r.Post("/assistant/turns", a.TurnHandler)
		r.Post("/assistant/reset", a.ResetHandler)
	})

	return r
}
