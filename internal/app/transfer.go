/**
 * @description
 * Money transfer between two customers. The balance move is atomic in the
 * repository; the two ledger rows (sender debit, recipient credit) are
 * appended best-effort afterwards with a shared timestamp.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/store"
)

// TransferMoney moves amount from the sender to the customer matching
// recipientIdentifier.
//
// Recipient resolution tries account number, email, phone, display name, and
// username, in that order of trust; the first field with a match wins. A
// field matching more than one customer is an ambiguity error rather than a
// silent first-row pick.
func (s *Service) TransferMoney(ctx context.Context, senderID uuid.UUID, recipientIdentifier string, amount int64) (*domain.TransferReceipt, error) {
	if senderID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	sender, err := s.repo.FindUserByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find sender: %w", err)
	}

	// Optimistic check before the store transaction; the authoritative check
	// happens again inside it, since the balance may change concurrently.
	if sender.CashBalance < amount {
		return nil, store.ErrInsufficientFunds
	}

	recipient, err := s.resolveRecipient(ctx, recipientIdentifier)
	if err != nil {
		return nil, err
	}
	if recipient.ID == sender.ID {
		return nil, ErrSelfTransfer
	}

	if err := s.repo.TransferFunds(ctx, sender.ID, recipient.ID, amount); err != nil {
		return nil, err
	}

	// Ledger rows share one timestamp and are best-effort: a failure here is
	// logged but the committed balance move stands.
	timestamp := s.now().UTC()
	description := fmt.Sprintf("Transfer to %s", recipient.DisplayName)
	debit := &domain.Transaction{
		ID:           newTransactionID(),
		UserID:       sender.ID,
		Direction:    domain.DirectionDebit,
		Amount:       amount,
		Description:  description,
		Counterparty: recipient.DisplayName,
		Category:     "transfer",
		CreatedAt:    timestamp,
	}
	credit := &domain.Transaction{
		ID:           newTransactionID(),
		UserID:       recipient.ID,
		Direction:    domain.DirectionCredit,
		Amount:       amount,
		Description:  fmt.Sprintf("Transfer from %s", sender.DisplayName),
		Counterparty: sender.DisplayName,
		Category:     "transfer",
		CreatedAt:    timestamp,
	}
	if err := s.repo.CreateTransaction(ctx, debit); err != nil {
		log.Printf("level=error component=service msg=\"sender ledger row write failed after committed transfer\" user_id=%s err=%v", sender.ID, err)
	}
	if err := s.repo.CreateTransaction(ctx, credit); err != nil {
		log.Printf("level=error component=service msg=\"recipient ledger row write failed after committed transfer\" user_id=%s err=%v", recipient.ID, err)
	}

	s.publish(ctx, "transaction.created", debit)

	return &domain.TransferReceipt{
		Amount:        amount,
		RecipientName: recipient.DisplayName,
		Message:       fmt.Sprintf("You sent %s to %s.", formatAmount(amount), recipient.DisplayName),
		Timestamp:     timestamp,
	}, nil
}

// resolveRecipient matches the identifier against the recipient lookup
// fields in order. The first field with exactly one match wins; two matches
// on the same field is ambiguous.
func (s *Service) resolveRecipient(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrRecipientNotFound
	}

	for _, field := range store.RecipientLookupOrder {
		matches, err := s.repo.FindUsersByField(ctx, field, identifier)
		if err != nil {
			return nil, fmt.Errorf("recipient lookup by %s: %w", field, err)
		}
		switch len(matches) {
		case 0:
			continue
		case 1:
			return &matches[0], nil
		default:
			return nil, ErrAmbiguousRecipient
		}
	}
	return nil, ErrRecipientNotFound
}
