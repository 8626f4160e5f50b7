/**
 * @description
 * Instant-decision credit product applications. Approval runs through the
 * injectable policy (a configurable random rejection in production, a
 * deterministic rule in tests). Approved cards are provisioned with a
 * network-prefixed number and a tiered credit limit; approved loans are
 * amortized with the standard annuity formula and their principal credited
 * to the borrower's cash balance atomically with the loan row.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/lumenbank/banking-service/internal/domain"
)

// loanAnnualRate is the flat annual interest rate offered on demo loans.
const loanAnnualRate = 0.089

const cardValidityYears = 4

// RandomApprovalPolicy returns an ApprovalPolicy that rejects each product
// with its configured probability, standing in for an underwriting engine.
func RandomApprovalPolicy(cardRejectionRate, loanRejectionRate, extensionRejectionRate float64) ApprovalPolicy {
	return func(product Product) bool {
		switch product {
		case ProductCard:
			return rand.Float64() >= cardRejectionRate
		case ProductLoan:
			return rand.Float64() >= loanRejectionRate
		case ProductExtension:
			return rand.Float64() >= extensionRejectionRate
		default:
			return false
		}
	}
}

// ApplyForCard runs an instant decision on a credit card application and,
// on approval, provisions and persists the new card with a zero balance.
func (s *Service) ApplyForCard(ctx context.Context, userID uuid.UUID, application domain.CardApplication) (*domain.Card, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if application.Network != domain.CardNetworkVisa && application.Network != domain.CardNetworkMastercard {
		return nil, fmt.Errorf("unknown card network %q", application.Network)
	}

	if !s.approval(ProductCard) {
		return nil, ErrApplicationRejected
	}

	limit, apr := creditTier(application.AnnualIncome)
	now := s.now().UTC()
	card := &domain.Card{
		Number:           generateCardNumber(application.Network),
		UserID:           userID,
		Network:          application.Network,
		Expiry:           now.AddDate(cardValidityYears, 0, 0).Format("01/06"),
		CVV:              fmt.Sprintf("%03d", rand.IntN(1000)),
		CreditLimit:      limit,
		CreditBalance:    0,
		APR:              apr,
		StatementBalance: 0,
		MinimumPayment:   0,
		PaymentDueDate:   now.AddDate(0, 1, 0),
		CreatedAt:        now,
	}

	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to persist approved card: %w", err)
	}

	s.publish(ctx, "application.approved", map[string]interface{}{
		"user_id": userID,
		"product": ProductCard,
		"card":    card.MaskedNumber(),
	})

	return card, nil
}

// ApplyForLoan runs an instant decision on a loan application and, on
// approval, persists the loan and credits the principal to the borrower's
// cash balance in one atomic store transaction.
func (s *Service) ApplyForLoan(ctx context.Context, userID uuid.UUID, application domain.LoanApplication) (*domain.Loan, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if application.Amount <= 0 || application.TermMonths <= 0 {
		return nil, ErrInvalidAmount
	}

	if !s.approval(ProductLoan) {
		return nil, ErrApplicationRejected
	}

	now := s.now().UTC()
	loan := &domain.Loan{
		ID:               uuid.New(),
		UserID:           userID,
		Amount:           application.Amount,
		InterestRate:     loanAnnualRate,
		TermMonths:       application.TermMonths,
		MonthlyPayment:   MonthlyPayment(application.Amount, loanAnnualRate, application.TermMonths),
		RemainingBalance: application.Amount,
		Status:           domain.LoanStatusActive,
		StartDate:        now,
		PaymentDueDate:   now.AddDate(0, 1, 0),
	}

	if err := s.repo.CreateLoanAndCreditPrincipal(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to persist approved loan: %w", err)
	}

	// The disbursement ledger row, best-effort like all ledger appends.
	credit := &domain.Transaction{
		ID:           newTransactionID(),
		UserID:       userID,
		Direction:    domain.DirectionCredit,
		Amount:       application.Amount,
		Description:  fmt.Sprintf("Loan disbursement (%s)", loan.ID),
		Counterparty: "Lumen Bank",
		Category:     "loan",
		CreatedAt:    now,
	}
	if err := s.repo.CreateTransaction(ctx, credit); err != nil {
		log.Printf("level=error component=service msg=\"disbursement ledger row write failed after committed loan\" user_id=%s err=%v", userID, err)
	}

	s.publish(ctx, "application.approved", map[string]interface{}{
		"user_id": userID,
		"product": ProductLoan,
		"loan_id": loan.ID,
		"amount":  loan.Amount,
	})

	return loan, nil
}

// MonthlyPayment computes the fixed amortized payment in cents using the
// standard annuity formula M = P*r*(1+r)^n / ((1+r)^n - 1), where r is the
// monthly rate and n the term in months. A zero rate degenerates to P/n.
func MonthlyPayment(principal int64, annualRate float64, termMonths int) int64 {
	if termMonths <= 0 {
		return 0
	}
	if annualRate == 0 {
		return principal / int64(termMonths)
	}
	r := annualRate / 12
	factor := math.Pow(1+r, float64(termMonths))
	payment := float64(principal) * r * factor / (factor - 1)
	return int64(math.Round(payment))
}

// creditTier maps annual income to a credit limit and APR.
func creditTier(annualIncome int64) (limit int64, apr float64) {
	switch {
	case annualIncome < 30_000_00:
		return 1_500_00, 0.249
	case annualIncome < 75_000_00:
		return 5_000_00, 0.229
	case annualIncome < 150_000_00:
		return 12_000_00, 0.199
	default:
		return 25_000_00, 0.179
	}
}

// generateCardNumber produces a 16-digit number with the network's
// numbering prefix (4 for Visa, 5 for Mastercard).
func generateCardNumber(network domain.CardNetwork) string {
	prefix := "4"
	if network == domain.CardNetworkMastercard {
		prefix = "5"
	}
	digits := make([]byte, 15)
	for i := range digits {
		digits[i] = byte('0' + rand.IntN(10))
	}
	return prefix + string(digits)
}
