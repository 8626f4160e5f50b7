package domain

import (
	"time"

	"github.com/google/uuid"
)

// CardNetwork identifies the card's payment network.
type CardNetwork string

const (
	CardNetworkVisa       CardNetwork = "visa"
	CardNetworkMastercard CardNetwork = "mastercard"
)

// Card represents a credit card issued to a user. The full card number doubles
// as the unique identifier. Invariant: 0 <= CreditBalance <= CreditLimit, and
// StatementBalance is a snapshot taken at the last statement cut, never above
// the live credit balance at that moment.
type Card struct {
	Number           string      `json:"number"` // full PAN, unique id
	UserID           uuid.UUID   `json:"user_id"`
	Network          CardNetwork `json:"network"`
	Expiry           string      `json:"expiry"` // MM/YY
	CVV              string      `json:"-"`
	CreditLimit      int64       `json:"credit_limit"`      // in cents
	CreditBalance    int64       `json:"credit_balance"`    // amount currently owed
	APR              float64     `json:"apr"`               // annual percentage rate
	StatementBalance int64       `json:"statement_balance"` // owed as of last statement cut
	MinimumPayment   int64       `json:"minimum_payment"`
	PaymentDueDate   time.Time   `json:"payment_due_date"`
	CreatedAt        time.Time   `json:"created_at"`
}

// LastFour returns the display suffix of the card number.
func (c *Card) LastFour() string {
	if len(c.Number) < 4 {
		return c.Number
	}
	return c.Number[len(c.Number)-4:]
}

// MaskedNumber returns the card number with all but the last four digits hidden.
func (c *Card) MaskedNumber() string {
	return "•••• " + c.LastFour()
}

// CardApplication is the DTO for a new credit card application.
type CardApplication struct {
	Network      CardNetwork `json:"network"`
	AnnualIncome int64       `json:"annual_income"` // in cents
}
