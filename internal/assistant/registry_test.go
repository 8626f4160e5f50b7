package assistant

import (
	"strings"
	"testing"

	"github.com/lumenbank/banking-service/internal/domain"
)

func TestRegistry_SensitiveSet(t *testing.T) {
	r := NewRegistry()

	sensitive := []string{"transfer_money", "make_payment", "request_extension", "apply_for_card", "apply_for_loan"}
	for _, name := range sensitive {
		if !r.IsSensitive(name) {
			t.Errorf("%s should require re-authentication", name)
		}
	}
	readOnly := []string{"get_account_balance", "get_account_transactions", "get_card_statement",
		"get_card_transactions", "get_spending_analysis", "get_existing_insights"}
	for _, name := range readOnly {
		if r.IsSensitive(name) {
			t.Errorf("%s should not require re-authentication", name)
		}
	}
}

func TestRegistry_Definitions(t *testing.T) {
	r := NewRegistry()
	defs := r.Definitions()
	if len(defs) != 11 {
		t.Fatalf("expected 11 tools, got %d", len(defs))
	}
}

func TestValidate_MissingRequiredArgument(t *testing.T) {
	r := NewRegistry()

	err := r.Validate("transfer_money", map[string]interface{}{"recipient": "ada"})
	if err == nil || !strings.Contains(err.Error(), "amount") {
		t.Fatalf("expected a missing-amount error, got %v", err)
	}
}

func TestValidate_WrongType(t *testing.T) {
	r := NewRegistry()

	err := r.Validate("transfer_money", map[string]interface{}{
		"recipient": "ada",
		"amount":    "fifty dollars",
	})
	if err == nil {
		t.Fatal("expected a type error for a string amount")
	}
}

func TestValidate_EnumViolation(t *testing.T) {
	r := NewRegistry()

	err := r.Validate("apply_for_card", map[string]interface{}{
		"network":       "amex",
		"annual_income": float64(85_000_00),
	})
	if err == nil {
		t.Fatal("expected an enum error for an unsupported network")
	}
}

func TestValidate_UndeclaredArgument(t *testing.T) {
	r := NewRegistry()

	err := r.Validate("get_account_balance", map[string]interface{}{"account": "checking"})
	if err == nil {
		t.Fatal("expected an error for an undeclared argument")
	}
}

func TestValidate_UnknownTool(t *testing.T) {
	r := NewRegistry()

	if err := r.Validate("close_account", map[string]interface{}{}); err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
}

func TestValidate_AcceptsWellFormedCall(t *testing.T) {
	r := NewRegistry()

	err := r.Validate("make_payment", map[string]interface{}{
		"account_id":    "1234",
		"account_type":  "card",
		"payment_type":  "custom",
		"custom_amount": float64(60_00),
	})
	if err != nil {
		t.Fatalf("expected a valid call, got %v", err)
	}
}

func TestSystemPrompt_CarriesLanguageAndCustomer(t *testing.T) {
	r := NewRegistry()
	user := &domain.User{DisplayName: "Ada Lovelace", Username: "ada"}

	prompt := r.SystemPrompt(user, "es")
	if !strings.Contains(prompt, `"es"`) {
		t.Fatal("prompt must pin the session language")
	}
	if !strings.Contains(prompt, "Ada Lovelace") {
		t.Fatal("prompt should name the customer")
	}
}
