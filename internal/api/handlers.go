/**
 * @description
 * This file contains the HTTP handlers for the banking-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumenbank/banking-service/internal/app"
	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/store"
)

const defaultListLimit = 50

// BankingHandlers holds the application services that handlers will use.
type BankingHandlers struct {
	service  *app.Service
	insights *app.InsightsService
}

// NewBankingHandlers creates a new instance of BankingHandlers.
func NewBankingHandlers(service *app.Service, insights *app.InsightsService) *BankingHandlers {
	return &BankingHandlers{service: service, insights: insights}
}

// TransferHandler handles requests to send money to another customer.
func (h *BankingHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.service.TransferMoney(r.Context(), userID, req.RecipientIdentifier, req.Amount)
	if err != nil {
		h.writeDomainError(w, userID, "transfer", err)
		return
	}
	h.writeJSON(w, http.StatusOK, receipt)
}

// BalanceHandler returns the customer's savings balance.
func (h *BankingHandlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	balance, err := h.service.GetAccountBalance(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, userID, "balance", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// ListTransactionsHandler returns the customer's recent account transactions.
func (h *BankingHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	transactions, err := h.service.ListAccountTransactions(r.Context(), userID, queryLimit(r))
	if err != nil {
		h.writeDomainError(w, userID, "list_transactions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// ListCardsHandler returns the customer's credit cards.
func (h *BankingHandlers) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	cards, err := h.service.ListCards(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, userID, "list_cards", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"cards": cards})
}

// CardStatementHandler returns one card's statement details.
func (h *BankingHandlers) CardStatementHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	card, err := h.service.GetCardStatement(r.Context(), userID, chi.URLParam(r, "last4"))
	if err != nil {
		h.writeDomainError(w, userID, "card_statement", err)
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}

// CardTransactionsHandler returns one card's recent transactions.
func (h *BankingHandlers) CardTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	transactions, err := h.service.ListCardTransactions(r.Context(), userID, chi.URLParam(r, "last4"), queryLimit(r))
	if err != nil {
		h.writeDomainError(w, userID, "card_transactions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// ListLoansHandler returns the customer's loans.
func (h *BankingHandlers) ListLoansHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	loans, err := h.service.ListLoans(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, userID, "list_loans", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"loans": loans})
}

// PaymentHandler pays down a card or loan from the savings balance.
func (h *BankingHandlers) PaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.service.MakeAccountPayment(r.Context(), userID, req)
	if err != nil {
		h.writeDomainError(w, userID, "payment", err)
		return
	}
	h.writeJSON(w, http.StatusOK, receipt)
}

// ExtensionHandler requests a payment due date extension on a card or loan.
func (h *BankingHandlers) ExtensionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req struct {
		AccountID   string             `json:"account_id"`
		AccountType domain.AccountType `json:"account_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.service.RequestPaymentExtension(r.Context(), userID, req.AccountID, req.AccountType)
	if err != nil {
		h.writeDomainError(w, userID, "extension", err)
		return
	}
	h.writeJSON(w, http.StatusOK, receipt)
}

// CardApplicationHandler applies for a new credit card.
func (h *BankingHandlers) CardApplicationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.CardApplication
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	card, err := h.service.ApplyForCard(r.Context(), userID, req)
	if err != nil {
		h.writeDomainError(w, userID, "card_application", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, card)
}

// LoanApplicationHandler applies for a new loan.
func (h *BankingHandlers) LoanApplicationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.LoanApplication
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	loan, err := h.service.ApplyForLoan(r.Context(), userID, req)
	if err != nil {
		h.writeDomainError(w, userID, "loan_application", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, loan)
}

// InsightsHandler returns (and lazily generates) the customer's spending insights.
func (h *BankingHandlers) InsightsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	data, err := h.insights.LoadOrGenerate(r.Context(), userID, queryLanguage(r))
	if err != nil {
		h.writeDomainError(w, userID, "insights", err)
		return
	}
	if data == nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"insights": nil})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"insights": data})
}

// RefreshInsightsHandler invalidates cached insights and regenerates them.
func (h *BankingHandlers) RefreshInsightsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	data, err := h.insights.Refresh(r.Context(), userID, queryLanguage(r))
	if err != nil {
		h.writeDomainError(w, userID, "insights_refresh", err)
		return
	}
	if data == nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"insights": nil})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"insights": data})
}

// ListPasskeysHandler returns the customer's registered passkeys.
func (h *BankingHandlers) ListPasskeysHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	passkeys, err := h.service.ListPasskeys(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, userID, "list_passkeys", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"passkeys": passkeys})
}

// RegisterPasskeyHandler stores a newly enrolled passkey credential.
func (h *BankingHandlers) RegisterPasskeyHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req struct {
		CredentialID string `json:"credential_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CredentialID == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.RegisterPasskey(r.Context(), userID, req.CredentialID); err != nil {
		h.writeDomainError(w, userID, "register_passkey", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

// RemovePasskeyHandler deletes one of the customer's passkeys.
func (h *BankingHandlers) RemovePasskeyHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	if err := h.service.RemovePasskey(r.Context(), userID, chi.URLParam(r, "credentialID")); err != nil {
		h.writeDomainError(w, userID, "remove_passkey", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeDomainError maps service errors onto HTTP statuses and messages.
func (h *BankingHandlers) writeDomainError(w http.ResponseWriter, userID uuid.UUID, endpoint string, err error) {
	switch {
	case errors.Is(err, app.ErrNotAuthenticated):
		h.writeError(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, app.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, "Amount must be a positive number of cents")
	case errors.Is(err, app.ErrRecipientNotFound), errors.Is(err, store.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "Recipient not found")
	case errors.Is(err, app.ErrAmbiguousRecipient):
		h.writeError(w, http.StatusConflict, "Recipient is ambiguous; use an account number, email, or username")
	case errors.Is(err, app.ErrSelfTransfer):
		h.writeError(w, http.StatusBadRequest, "Cannot transfer to your own account")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusUnprocessableEntity, "Insufficient funds")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrPasskeyNotFound):
		h.writeError(w, http.StatusNotFound, "Passkey not found")
	case errors.Is(err, app.ErrApplicationRejected):
		h.writeError(w, http.StatusUnprocessableEntity, "Application was not approved")
	case errors.Is(err, app.ErrExtensionDeclined):
		h.writeError(w, http.StatusUnprocessableEntity, "Extension request was not approved")
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"request failed\" user_id=%s err=%v", endpoint, userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func queryLanguage(r *http.Request) string {
	if lang := r.URL.Query().Get("language"); lang != "" {
		return lang
	}
	return "en"
}

// writeJSON is a helper for writing JSON responses.
func (h *BankingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *BankingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
