/**
 * @description
 * Card and loan payments plus payment due-date extensions. Payment amounts
 * are resolved from the payment type against a fresh read of the account;
 * the cash debit and balance reduction then run in one atomic repository
 * call that re-checks the live cash balance.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/lumenbank/banking-service/internal/domain"
)

// MakeAccountPayment pays down a card or loan from the user's cash balance.
// AccountID is the card's last four digits or the loan id. The payment type
// selects the amount: minimum due, statement balance (cards only), the full
// outstanding balance, or a caller-supplied custom amount. A custom amount
// above the remaining balance is clamped for loans but not for cards.
func (s *Service) MakeAccountPayment(ctx context.Context, userID uuid.UUID, req domain.PaymentRequest) (*domain.PaymentReceipt, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	switch req.AccountType {
	case domain.AccountTypeCard:
		return s.payCard(ctx, userID, req)
	case domain.AccountTypeLoan:
		return s.payLoan(ctx, userID, req)
	default:
		return nil, fmt.Errorf("unknown account type %q", req.AccountType)
	}
}

func (s *Service) payCard(ctx context.Context, userID uuid.UUID, req domain.PaymentRequest) (*domain.PaymentReceipt, error) {
	card, err := s.repo.FindCardByLastFour(ctx, userID, req.AccountID)
	if err != nil {
		return nil, err
	}

	var amount int64
	switch req.PaymentType {
	case domain.PaymentTypeMinimum:
		amount = card.MinimumPayment
	case domain.PaymentTypeStatement:
		amount = card.StatementBalance
	case domain.PaymentTypeFull:
		amount = card.CreditBalance
	case domain.PaymentTypeCustom:
		// Card overpayments are not clamped; the card balance floors at
		// zero inside the store transaction.
		amount = req.CustomAmount
	default:
		return nil, fmt.Errorf("unknown payment type %q", req.PaymentType)
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	updated, err := s.repo.PayCard(ctx, userID, card.Number, amount)
	if err != nil {
		return nil, err
	}

	s.recordPayment(ctx, userID, amount, fmt.Sprintf("Payment to card %s", updated.MaskedNumber()), &updated.Number)

	return &domain.PaymentReceipt{
		AccountID:   updated.LastFour(),
		AccountType: domain.AccountTypeCard,
		AmountPaid:  amount,
		Remaining:   updated.CreditBalance,
		PaidOff:     updated.CreditBalance == 0,
		Message:     fmt.Sprintf("Paid %s toward card %s.", formatAmount(amount), updated.MaskedNumber()),
	}, nil
}

func (s *Service) payLoan(ctx context.Context, userID uuid.UUID, req domain.PaymentRequest) (*domain.PaymentReceipt, error) {
	loanID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("loan id %q: %w", req.AccountID, err)
	}
	loan, err := s.repo.FindLoanByID(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}

	var amount int64
	switch req.PaymentType {
	case domain.PaymentTypeMinimum:
		amount = loan.MonthlyPayment
	case domain.PaymentTypeFull:
		amount = loan.RemainingBalance
	case domain.PaymentTypeCustom:
		amount = req.CustomAmount
	default:
		return nil, fmt.Errorf("unknown payment type %q for loan", req.PaymentType)
	}
	// Never collect more than the loan is owed.
	if amount > loan.RemainingBalance {
		amount = loan.RemainingBalance
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	updated, err := s.repo.PayLoan(ctx, userID, loanID, amount)
	if err != nil {
		return nil, err
	}

	s.recordPayment(ctx, userID, amount, fmt.Sprintf("Loan payment (%s)", loanID), nil)

	message := fmt.Sprintf("Paid %s toward your loan.", formatAmount(amount))
	if updated.Status == domain.LoanStatusPaidOff {
		message = fmt.Sprintf("Paid %s toward your loan. Congratulations, it is now paid off!", formatAmount(amount))
	}

	return &domain.PaymentReceipt{
		AccountID:   loanID.String(),
		AccountType: domain.AccountTypeLoan,
		AmountPaid:  amount,
		Remaining:   updated.RemainingBalance,
		PaidOff:     updated.Status == domain.LoanStatusPaidOff,
		Message:     message,
	}, nil
}

// recordPayment appends the debit ledger row for a committed payment.
// Best-effort: a failure is logged, the payment stands.
func (s *Service) recordPayment(ctx context.Context, userID uuid.UUID, amount int64, description string, cardNumber *string) {
	entry := &domain.Transaction{
		ID:           newTransactionID(),
		UserID:       userID,
		Direction:    domain.DirectionDebit,
		Amount:       amount,
		Description:  description,
		Counterparty: "Lumen Bank",
		Category:     "payment",
		CardNumber:   cardNumber,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateTransaction(ctx, entry); err != nil {
		log.Printf("level=error component=service msg=\"payment ledger row write failed after committed payment\" user_id=%s err=%v", userID, err)
		return
	}
	s.publish(ctx, "transaction.created", entry)
}

// RequestPaymentExtension shifts the account's payment due date forward by
// exactly fourteen days from its current value, not from the request time.
// Approval runs through the injectable policy standing in for a future
// underwriting check.
func (s *Service) RequestPaymentExtension(ctx context.Context, userID uuid.UUID, accountID string, accountType domain.AccountType) (*domain.ExtensionReceipt, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	// The account must exist before the decision runs; a missing account is
	// a lookup error, not a declined extension.
	switch accountType {
	case domain.AccountTypeCard:
		card, err := s.repo.FindCardByLastFour(ctx, userID, accountID)
		if err != nil {
			return nil, err
		}
		if !s.approval(ProductExtension) {
			return nil, ErrExtensionDeclined
		}
		due, err := s.repo.ExtendCardDueDate(ctx, userID, card.Number, ExtensionPeriod)
		if err != nil {
			return nil, err
		}
		return &domain.ExtensionReceipt{
			AccountID:   card.LastFour(),
			AccountType: accountType,
			NewDueDate:  due,
			Message:     fmt.Sprintf("Your card payment is now due on %s.", due.Format("January 2, 2006")),
		}, nil
	case domain.AccountTypeLoan:
		loanID, err := uuid.Parse(accountID)
		if err != nil {
			return nil, fmt.Errorf("loan id %q: %w", accountID, err)
		}
		if _, err := s.repo.FindLoanByID(ctx, userID, loanID); err != nil {
			return nil, err
		}
		if !s.approval(ProductExtension) {
			return nil, ErrExtensionDeclined
		}
		due, err := s.repo.ExtendLoanDueDate(ctx, userID, loanID, ExtensionPeriod)
		if err != nil {
			return nil, err
		}
		return &domain.ExtensionReceipt{
			AccountID:   loanID.String(),
			AccountType: accountType,
			NewDueDate:  due,
			Message:     fmt.Sprintf("Your loan payment is now due on %s.", due.Format("January 2, 2006")),
		}, nil
	default:
		return nil, fmt.Errorf("unknown account type %q", accountType)
	}
}
