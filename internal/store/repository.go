/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access performed by the banking-service. The interface decouples the
 * business logic from PostgreSQL and lets tests substitute recording stubs.
 *
 * Every method that moves money (TransferFunds, PayCard, PayLoan,
 * CreateLoanAndCreditPrincipal) is atomic: it re-reads the authoritative
 * balance inside a database transaction instead of trusting any value the
 * caller may have cached.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lumenbank/banking-service/internal/domain"
)

// RecipientField names one of the user fields a transfer recipient
// identifier can match, in decreasing order of trust.
type RecipientField string

const (
	RecipientByAccountNumber RecipientField = "account_number"
	RecipientByEmail         RecipientField = "email"
	RecipientByPhone         RecipientField = "phone"
	RecipientByDisplayName   RecipientField = "display_name"
	RecipientByUsername      RecipientField = "username"
)

// RecipientLookupOrder is the fixed sequence of fields tried when resolving
// a transfer recipient. The first field with a match wins.
var RecipientLookupOrder = []RecipientField{
	RecipientByAccountNumber,
	RecipientByEmail,
	RecipientByPhone,
	RecipientByDisplayName,
	RecipientByUsername,
}

// Repository defines the set of methods for interacting with the ledger store.
type Repository interface {
	// User methods
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	// FindUsersByField returns every user whose given field equals value
	// (case-insensitive), capped at two rows so callers can detect ambiguity.
	FindUsersByField(ctx context.Context, field RecipientField, value string) ([]domain.User, error)

	// TransferFunds atomically moves amount from sender to recipient,
	// re-checking the sender's live balance inside the transaction.
	TransferFunds(ctx context.Context, senderID, recipientID uuid.UUID, amount int64) error

	// Transaction ledger methods. Ledger rows are append-only.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	ListTransactionsByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
	ListTransactionsSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.Transaction, error)
	CountDebitTransactions(ctx context.Context, userID uuid.UUID) (int, error)
	ListCardTransactions(ctx context.Context, userID uuid.UUID, cardNumber string, limit int) ([]domain.Transaction, error)

	// Card methods. Cards are addressed by owning user plus last-four digits.
	FindCardsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Card, error)
	FindCardByLastFour(ctx context.Context, userID uuid.UUID, lastFour string) (*domain.Card, error)
	CreateCard(ctx context.Context, card *domain.Card) error
	// PayCard atomically debits the user's cash balance and floors the
	// card's credit and statement balances at zero.
	PayCard(ctx context.Context, userID uuid.UUID, cardNumber string, amount int64) (*domain.Card, error)
	ExtendCardDueDate(ctx context.Context, userID uuid.UUID, cardNumber string, by time.Duration) (time.Time, error)
	// CutCardStatements snapshots statement balances across all cards and
	// advances due dates. Used by the monthly statement job.
	CutCardStatements(ctx context.Context, minimumFloor int64, minimumRate float64, dueIn time.Duration) (int64, error)

	// Loan methods
	FindLoansByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error)
	FindLoanByID(ctx context.Context, userID uuid.UUID, loanID uuid.UUID) (*domain.Loan, error)
	// CreateLoanAndCreditPrincipal persists the loan and credits the
	// principal to the user's cash balance in one transaction.
	CreateLoanAndCreditPrincipal(ctx context.Context, loan *domain.Loan) error
	// PayLoan atomically debits the user's cash balance, reduces the
	// remaining balance (floored at zero), and flips the status to paid_off
	// when the balance reaches zero. Returns the loan after the update.
	PayLoan(ctx context.Context, userID uuid.UUID, loanID uuid.UUID, amount int64) (*domain.Loan, error)
	ExtendLoanDueDate(ctx context.Context, userID uuid.UUID, loanID uuid.UUID, by time.Duration) (time.Time, error)

	// Passkey methods
	ListPasskeysByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Passkey, error)
	CreatePasskey(ctx context.Context, passkey *domain.Passkey) error
	DeletePasskey(ctx context.Context, userID uuid.UUID, credentialID string) (bool, error)

	// Insights cache methods. One "latest" row per user.
	GetCachedInsight(ctx context.Context, userID uuid.UUID) (*domain.CachedInsight, error)
	UpsertCachedInsight(ctx context.Context, insight *domain.CachedInsight) error
	DeleteCachedInsight(ctx context.Context, userID uuid.UUID) error
}
