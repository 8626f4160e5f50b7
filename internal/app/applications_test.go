package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/store"
)

type applicationRepoStub struct {
	store.Repository

	createdCard *domain.Card
	createdLoan *domain.Loan
	created     []*domain.Transaction
	createErr   error
}

func (s *applicationRepoStub) CreateCard(ctx context.Context, card *domain.Card) error {
	s.createdCard = card
	return s.createErr
}

func (s *applicationRepoStub) CreateLoanAndCreditPrincipal(ctx context.Context, loan *domain.Loan) error {
	s.createdLoan = loan
	return s.createErr
}

func (s *applicationRepoStub) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.created = append(s.created, tx)
	return nil
}

func TestApplyForCard_Approved(t *testing.T) {
	repo := &applicationRepoStub{}
	svc := NewService(repo, nil, approveAll)

	card, err := svc.ApplyForCard(context.Background(), uuid.New(), domain.CardApplication{
		Network:      domain.CardNetworkVisa,
		AnnualIncome: 85_000_00,
	})
	if err != nil {
		t.Fatalf("ApplyForCard returned error: %v", err)
	}
	if repo.createdCard == nil {
		t.Fatal("expected the approved card to be persisted")
	}
	if len(card.Number) != 16 || !strings.HasPrefix(card.Number, "4") {
		t.Fatalf("expected a 16-digit Visa number, got %q", card.Number)
	}
	if len(card.CVV) != 3 {
		t.Fatalf("expected a 3-digit CVV, got %q", card.CVV)
	}
	if card.CreditLimit != 12_000_00 || card.APR != 0.199 {
		t.Fatalf("unexpected tier for income: limit=%d apr=%f", card.CreditLimit, card.APR)
	}
	if card.CreditBalance != 0 || card.StatementBalance != 0 || card.MinimumPayment != 0 {
		t.Fatal("a new card must start with zero balances")
	}
}

func TestApplyForCard_MastercardPrefix(t *testing.T) {
	repo := &applicationRepoStub{}
	svc := NewService(repo, nil, approveAll)

	card, err := svc.ApplyForCard(context.Background(), uuid.New(), domain.CardApplication{
		Network:      domain.CardNetworkMastercard,
		AnnualIncome: 20_000_00,
	})
	if err != nil {
		t.Fatalf("ApplyForCard returned error: %v", err)
	}
	if !strings.HasPrefix(card.Number, "5") {
		t.Fatalf("expected a Mastercard number prefix, got %q", card.Number)
	}
	if card.CreditLimit != 1_500_00 || card.APR != 0.249 {
		t.Fatalf("unexpected entry tier: limit=%d apr=%f", card.CreditLimit, card.APR)
	}
}

func TestApplyForCard_Rejected(t *testing.T) {
	repo := &applicationRepoStub{}
	svc := NewService(repo, nil, func(Product) bool { return false })

	_, err := svc.ApplyForCard(context.Background(), uuid.New(), domain.CardApplication{
		Network:      domain.CardNetworkVisa,
		AnnualIncome: 85_000_00,
	})
	if !errors.Is(err, ErrApplicationRejected) {
		t.Fatalf("expected ErrApplicationRejected, got %v", err)
	}
	if repo.createdCard != nil {
		t.Fatal("a rejected application must not persist a card")
	}
}

func TestApplyForCard_UnknownNetwork(t *testing.T) {
	svc := NewService(&applicationRepoStub{}, nil, approveAll)

	if _, err := svc.ApplyForCard(context.Background(), uuid.New(), domain.CardApplication{
		Network: "amex",
	}); err == nil {
		t.Fatal("expected an error for an unsupported network")
	}
}

func TestApplyForLoan_Approved(t *testing.T) {
	repo := &applicationRepoStub{}
	svc := NewService(repo, nil, approveAll)
	userID := uuid.New()

	loan, err := svc.ApplyForLoan(context.Background(), userID, domain.LoanApplication{
		Amount:     10_000_00,
		TermMonths: 24,
		Purpose:    "home repairs",
	})
	if err != nil {
		t.Fatalf("ApplyForLoan returned error: %v", err)
	}
	if repo.createdLoan == nil {
		t.Fatal("expected the approved loan to be persisted")
	}
	if loan.RemainingBalance != loan.Amount {
		t.Fatalf("a new loan owes its full principal, got %d of %d", loan.RemainingBalance, loan.Amount)
	}
	if loan.Status != domain.LoanStatusActive {
		t.Fatalf("unexpected status %q", loan.Status)
	}
	if loan.MonthlyPayment != MonthlyPayment(10_000_00, loanAnnualRate, 24) {
		t.Fatalf("unexpected monthly payment %d", loan.MonthlyPayment)
	}

	// The disbursement lands on the ledger as a credit.
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 disbursement row, got %d", len(repo.created))
	}
	row := repo.created[0]
	if row.Direction != domain.DirectionCredit || row.Amount != 10_000_00 || row.UserID != userID {
		t.Fatalf("unexpected disbursement row: %+v", row)
	}
}

func TestApplyForLoan_Rejected(t *testing.T) {
	repo := &applicationRepoStub{}
	svc := NewService(repo, nil, func(Product) bool { return false })

	_, err := svc.ApplyForLoan(context.Background(), uuid.New(), domain.LoanApplication{
		Amount:     10_000_00,
		TermMonths: 24,
	})
	if !errors.Is(err, ErrApplicationRejected) {
		t.Fatalf("expected ErrApplicationRejected, got %v", err)
	}
	if repo.createdLoan != nil {
		t.Fatal("a rejected application must not persist a loan")
	}
}

func TestApplyForLoan_InvalidTerms(t *testing.T) {
	svc := NewService(&applicationRepoStub{}, nil, approveAll)

	cases := []domain.LoanApplication{
		{Amount: 0, TermMonths: 12},
		{Amount: -500, TermMonths: 12},
		{Amount: 10_000_00, TermMonths: 0},
	}
	for _, app := range cases {
		if _, err := svc.ApplyForLoan(context.Background(), uuid.New(), app); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("application %+v: expected ErrInvalidAmount, got %v", app, err)
		}
	}
}

func TestMonthlyPayment(t *testing.T) {
	// $10,000 at 8.9% over 24 months: the standard annuity formula gives
	// $456.39 per month.
	if got := MonthlyPayment(10_000_00, 0.089, 24); got != 456_39 {
		t.Fatalf("expected 45639, got %d", got)
	}
	// A zero rate degenerates to principal over term.
	if got := MonthlyPayment(12_000_00, 0, 12); got != 100_000 {
		t.Fatalf("expected 100000, got %d", got)
	}
	if got := MonthlyPayment(10_000_00, 0.089, 0); got != 0 {
		t.Fatalf("a zero-month term pays nothing, got %d", got)
	}
}
