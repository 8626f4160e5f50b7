package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lumenbank/banking-service/internal/app"
	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/store"
)

const testJWTSecret = "test-secret"

type apiRepoStub struct {
	store.Repository

	user         *domain.User
	usersByField map[store.RecipientField][]domain.User

	transferCalled bool
	transferAmount int64
}

func (s *apiRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if s.user != nil && s.user.ID == userID {
		return s.user, nil
	}
	return nil, store.ErrUserNotFound
}

func (s *apiRepoStub) FindUsersByField(ctx context.Context, field store.RecipientField, value string) ([]domain.User, error) {
	return s.usersByField[field], nil
}

func (s *apiRepoStub) TransferFunds(ctx context.Context, senderID, recipientID uuid.UUID, amount int64) error {
	s.transferCalled = true
	s.transferAmount = amount
	return nil
}

func (s *apiRepoStub) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	return nil
}

func newAPIFixture() (*apiRepoStub, http.Handler, *domain.User) {
	user := &domain.User{
		ID:          uuid.New(),
		Username:    "ada",
		DisplayName: "Ada Lovelace",
		CashBalance: 100_00,
	}
	repo := &apiRepoStub{
		user: user,
		usersByField: map[store.RecipientField][]domain.User{
			store.RecipientByUsername: {{ID: uuid.New(), Username: "charles", DisplayName: "Charles Babbage"}},
		},
	}
	service := app.NewService(repo, nil, func(app.Product) bool { return true })
	insights := app.NewInsightsService(repo, nil, nil)
	handlers := NewBankingHandlers(service, insights)
	assistantHandlers := NewAssistantHandlers(nil, repo, "en")
	return repo, BankingRoutes(handlers, assistantHandlers, testJWTSecret), user
}

func bearerToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func authedRequest(t *testing.T, method, path, body string, userID uuid.UUID) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, userID))
	return req
}

func TestTransferHandler_Success(t *testing.T) {
	repo, router, user := newAPIFixture()

	req := authedRequest(t, http.MethodPost, "/transfers",
		`{"recipient_identifier": "charles", "amount": 2500}`, user.ID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if !repo.transferCalled || repo.transferAmount != 25_00 {
		t.Fatalf("expected a transfer of 2500 cents, called=%t amount=%d", repo.transferCalled, repo.transferAmount)
	}

	var receipt domain.TransferReceipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("failed to decode receipt: %v", err)
	}
	if receipt.RecipientName != "Charles Babbage" {
		t.Fatalf("unexpected recipient name %q", receipt.RecipientName)
	}
}

func TestTransferHandler_InsufficientFunds(t *testing.T) {
	repo, router, user := newAPIFixture()
	user.CashBalance = 5_00

	req := authedRequest(t, http.MethodPost, "/transfers",
		`{"recipient_identifier": "charles", "amount": 2500}`, user.ID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if repo.transferCalled {
		t.Fatal("TransferFunds should not be called when funds are insufficient")
	}
}

func TestTransferHandler_InvalidBody(t *testing.T) {
	_, router, user := newAPIFixture()

	req := authedRequest(t, http.MethodPost, "/transfers", `{not json`, user.ID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTransferHandler_RequiresAuth(t *testing.T) {
	_, router, _ := newAPIFixture()

	req := httptest.NewRequest(http.MethodPost, "/transfers",
		strings.NewReader(`{"recipient_identifier": "charles", "amount": 2500}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestBalanceHandler_Success(t *testing.T) {
	_, router, user := newAPIFixture()

	req := authedRequest(t, http.MethodGet, "/account/balance", "", user.ID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["balance"] != 100_00 {
		t.Fatalf("expected balance 10000, got %d", body["balance"])
	}
}
