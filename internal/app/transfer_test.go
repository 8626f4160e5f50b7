package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/store"
)

func approveAll(Product) bool { return true }

type transferRepoStub struct {
	store.Repository

	sender       *domain.User
	usersByField map[store.RecipientField][]domain.User

	queriedFields []store.RecipientField

	transferCalled    bool
	transferSender    uuid.UUID
	transferRecipient uuid.UUID
	transferAmount    int64
	transferErr       error

	created   []*domain.Transaction
	createErr error
}

func (s *transferRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if s.sender != nil && s.sender.ID == userID {
		return s.sender, nil
	}
	return nil, store.ErrUserNotFound
}

func (s *transferRepoStub) FindUsersByField(ctx context.Context, field store.RecipientField, value string) ([]domain.User, error) {
	s.queriedFields = append(s.queriedFields, field)
	return s.usersByField[field], nil
}

func (s *transferRepoStub) TransferFunds(ctx context.Context, senderID, recipientID uuid.UUID, amount int64) error {
	s.transferCalled = true
	s.transferSender = senderID
	s.transferRecipient = recipientID
	s.transferAmount = amount
	return s.transferErr
}

func (s *transferRepoStub) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, tx)
	return nil
}

func newTransferFixture() (*transferRepoStub, *Service, *domain.User, *domain.User) {
	sender := &domain.User{
		ID:          uuid.New(),
		Username:    "ada",
		DisplayName: "Ada Lovelace",
		CashBalance: 100_00,
	}
	recipient := domain.User{
		ID:          uuid.New(),
		Username:    "charles",
		DisplayName: "Charles Babbage",
	}
	repo := &transferRepoStub{
		sender: sender,
		usersByField: map[store.RecipientField][]domain.User{
			store.RecipientByUsername: {recipient},
		},
	}
	svc := NewService(repo, nil, approveAll)
	return repo, svc, sender, &recipient
}

func TestTransferMoney_Success(t *testing.T) {
	repo, svc, sender, recipient := newTransferFixture()

	receipt, err := svc.TransferMoney(context.Background(), sender.ID, "charles", 25_00)
	if err != nil {
		t.Fatalf("TransferMoney returned error: %v", err)
	}
	if !repo.transferCalled {
		t.Fatal("expected TransferFunds to be called")
	}
	if repo.transferSender != sender.ID || repo.transferRecipient != recipient.ID || repo.transferAmount != 25_00 {
		t.Fatalf("unexpected transfer args: sender=%s recipient=%s amount=%d",
			repo.transferSender, repo.transferRecipient, repo.transferAmount)
	}
	if receipt.RecipientName != "Charles Babbage" {
		t.Fatalf("unexpected recipient name %q", receipt.RecipientName)
	}
	if receipt.Message != "You sent $25.00 to Charles Babbage." {
		t.Fatalf("unexpected receipt message %q", receipt.Message)
	}
}

func TestTransferMoney_WritesPairedLedgerRows(t *testing.T) {
	repo, svc, sender, recipient := newTransferFixture()

	if _, err := svc.TransferMoney(context.Background(), sender.ID, "charles", 10_00); err != nil {
		t.Fatalf("TransferMoney returned error: %v", err)
	}
	if len(repo.created) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(repo.created))
	}
	debit, credit := repo.created[0], repo.created[1]
	if debit.Direction != domain.DirectionDebit || debit.UserID != sender.ID {
		t.Fatalf("unexpected debit row: %+v", debit)
	}
	if credit.Direction != domain.DirectionCredit || credit.UserID != recipient.ID {
		t.Fatalf("unexpected credit row: %+v", credit)
	}
	if !debit.CreatedAt.Equal(credit.CreatedAt) {
		t.Fatalf("ledger rows should share a timestamp: %s vs %s", debit.CreatedAt, credit.CreatedAt)
	}
	if debit.Amount != credit.Amount {
		t.Fatalf("ledger rows should share the amount: %d vs %d", debit.Amount, credit.Amount)
	}
}

func TestTransferMoney_LedgerFailureDoesNotFailTransfer(t *testing.T) {
	repo, svc, sender, _ := newTransferFixture()
	repo.createErr = errors.New("ledger down")

	receipt, err := svc.TransferMoney(context.Background(), sender.ID, "charles", 10_00)
	if err != nil {
		t.Fatalf("expected committed transfer to succeed despite ledger failure, got %v", err)
	}
	if receipt == nil {
		t.Fatal("expected a receipt")
	}
}

func TestTransferMoney_InsufficientFunds(t *testing.T) {
	repo, svc, sender, _ := newTransferFixture()
	sender.CashBalance = 5_00

	_, err := svc.TransferMoney(context.Background(), sender.ID, "charles", 25_00)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if repo.transferCalled {
		t.Fatal("TransferFunds should not run when the optimistic check fails")
	}
}

func TestTransferMoney_InvalidAmount(t *testing.T) {
	_, svc, sender, _ := newTransferFixture()

	for _, amount := range []int64{0, -100} {
		if _, err := svc.TransferMoney(context.Background(), sender.ID, "charles", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestTransferMoney_SelfTransfer(t *testing.T) {
	repo, svc, sender, _ := newTransferFixture()
	repo.usersByField = map[store.RecipientField][]domain.User{
		store.RecipientByUsername: {*sender},
	}

	_, err := svc.TransferMoney(context.Background(), sender.ID, "ada", 10_00)
	if !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	if repo.transferCalled {
		t.Fatal("TransferFunds should not run for a self transfer")
	}
}

func TestTransferMoney_RecipientNotFound(t *testing.T) {
	repo, svc, sender, _ := newTransferFixture()
	repo.usersByField = nil

	_, err := svc.TransferMoney(context.Background(), sender.ID, "nobody", 10_00)
	if !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound, got %v", err)
	}
}

func TestTransferMoney_AmbiguousRecipient(t *testing.T) {
	repo, svc, sender, _ := newTransferFixture()
	repo.usersByField = map[store.RecipientField][]domain.User{
		store.RecipientByDisplayName: {
			{ID: uuid.New(), DisplayName: "John Smith"},
			{ID: uuid.New(), DisplayName: "John Smith"},
		},
	}

	_, err := svc.TransferMoney(context.Background(), sender.ID, "John Smith", 10_00)
	if !errors.Is(err, ErrAmbiguousRecipient) {
		t.Fatalf("expected ErrAmbiguousRecipient, got %v", err)
	}
	if repo.transferCalled {
		t.Fatal("TransferFunds should not run for an ambiguous recipient")
	}
}

func TestTransferMoney_ResolutionStopsAtFirstMatchingField(t *testing.T) {
	repo, svc, sender, _ := newTransferFixture()
	phoneMatch := domain.User{ID: uuid.New(), DisplayName: "Phone Match"}
	usernameMatch := domain.User{ID: uuid.New(), DisplayName: "Username Match"}
	repo.usersByField = map[store.RecipientField][]domain.User{
		store.RecipientByPhone:    {phoneMatch},
		store.RecipientByUsername: {usernameMatch},
	}

	receipt, err := svc.TransferMoney(context.Background(), sender.ID, "555-0100", 10_00)
	if err != nil {
		t.Fatalf("TransferMoney returned error: %v", err)
	}
	if receipt.RecipientName != "Phone Match" {
		t.Fatalf("expected the phone match to win, got %q", receipt.RecipientName)
	}

	want := []store.RecipientField{
		store.RecipientByAccountNumber,
		store.RecipientByEmail,
		store.RecipientByPhone,
	}
	if len(repo.queriedFields) != len(want) {
		t.Fatalf("expected lookups %v, got %v", want, repo.queriedFields)
	}
	for i, field := range want {
		if repo.queriedFields[i] != field {
			t.Fatalf("lookup %d: expected %s, got %s", i, field, repo.queriedFields[i])
		}
	}
}

func TestTransferMoney_NotAuthenticated(t *testing.T) {
	_, svc, _, _ := newTransferFixture()

	_, err := svc.TransferMoney(context.Background(), uuid.Nil, "charles", 10_00)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}
