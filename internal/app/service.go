/**
 * @description
 * This file contains the core of the account operations service. The
 * `Service` struct owns every state-changing financial operation (transfers,
 * card and loan payments, applications, payment extensions) and the read
 * paths behind the assistant's query tools. Balance-affecting writes always
 * go through the repository's atomic methods; ledger rows are appended
 * best-effort afterwards and must never be skipped on the success path.
 *
 * @dependencies
 * - context, fmt, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Event publishing for downstream consumers.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/store"
	"github.com/lumenbank/banking-service/pkg/rabbitmq"
)

// ExtensionPeriod is how far a payment extension shifts the due date,
// measured from the stored due date rather than from the request time.
const ExtensionPeriod = 14 * 24 * time.Hour

// Product identifies what an approval policy is deciding on.
type Product string

const (
	ProductCard      Product = "card"
	ProductLoan      Product = "loan"
	ProductExtension Product = "extension"
)

// ApprovalPolicy decides whether an application or extension is approved.
// The default implementation is a seeded random rejection standing in for an
// underwriting engine; tests inject deterministic policies.
type ApprovalPolicy func(product Product) bool

// Service provides the account operations business logic.
type Service struct {
	repo     store.Repository
	events   rabbitmq.Publisher
	approval ApprovalPolicy
	now      func() time.Time
}

// NewService creates a new account operations service instance.
func NewService(repo store.Repository, events rabbitmq.Publisher, approval ApprovalPolicy) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		approval: approval,
		now:      time.Now,
	}
}

// publish emits an event if a producer is configured. Event delivery is
// best-effort and never fails the financial operation.
func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, rabbitmq.BankEventsExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=service msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// formatAmount renders cents as a display string, e.g. 123456 -> "$1,234.56".
func formatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	dollars := cents / 100
	remainder := cents % 100

	// Insert thousands separators.
	digits := fmt.Sprintf("%d", dollars)
	var grouped []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, d)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, grouped, remainder)
}

func newTransactionID() uuid.UUID {
	return uuid.New()
}

// GetAccountBalance returns the user's current cash balance.
func (s *Service) GetAccountBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, ErrNotAuthenticated
	}
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to find user: %w", err)
	}
	return user.CashBalance, nil
}

// ListAccountTransactions returns the user's savings ledger, newest first.
func (s *Service) ListAccountTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return s.repo.ListTransactionsByUserID(ctx, userID, limit)
}

// GetCardStatement returns the card matching the last four digits, carrying
// its statement balance, minimum payment, and due date.
func (s *Service) GetCardStatement(ctx context.Context, userID uuid.UUID, lastFour string) (*domain.Card, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return s.repo.FindCardByLastFour(ctx, userID, lastFour)
}

// ListCardTransactions returns the ledger rows for one card, newest first.
func (s *Service) ListCardTransactions(ctx context.Context, userID uuid.UUID, lastFour string, limit int) ([]domain.Transaction, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	card, err := s.repo.FindCardByLastFour(ctx, userID, lastFour)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCardTransactions(ctx, userID, card.Number, limit)
}

// ListCards returns every card owned by the user.
func (s *Service) ListCards(ctx context.Context, userID uuid.UUID) ([]domain.Card, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return s.repo.FindCardsByUserID(ctx, userID)
}

// ListLoans returns every loan held by the user.
func (s *Service) ListLoans(ctx context.Context, userID uuid.UUID) ([]domain.Loan, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return s.repo.FindLoansByUserID(ctx, userID)
}

// ListPasskeys returns the user's registered strong-authentication credentials.
func (s *Service) ListPasskeys(ctx context.Context, userID uuid.UUID) ([]domain.Passkey, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return s.repo.ListPasskeysByUserID(ctx, userID)
}

// RegisterPasskey binds a credential identifier produced by the external
// registration ceremony to the user.
func (s *Service) RegisterPasskey(ctx context.Context, userID uuid.UUID, credentialID string) error {
	if userID == uuid.Nil {
		return ErrNotAuthenticated
	}
	return s.repo.CreatePasskey(ctx, &domain.Passkey{
		CredentialID: credentialID,
		UserID:       userID,
		CreatedAt:    s.now().UTC(),
	})
}

// RemovePasskey deletes one registered credential.
func (s *Service) RemovePasskey(ctx context.Context, userID uuid.UUID, credentialID string) error {
	if userID == uuid.Nil {
		return ErrNotAuthenticated
	}
	removed, err := s.repo.DeletePasskey(ctx, userID, credentialID)
	if err != nil {
		return err
	}
	if !removed {
		return store.ErrPasskeyNotFound
	}
	return nil
}
