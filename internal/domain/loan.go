package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoanStatus is the lifecycle state of a loan. The transition
// Active -> PaidOff happens exactly once and is one-way.
type LoanStatus string

const (
	LoanStatusActive  LoanStatus = "active"
	LoanStatusPaidOff LoanStatus = "paid_off"
)

// Loan represents an installment loan. Invariant:
// 0 <= RemainingBalance <= Amount.
type Loan struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Amount           int64      `json:"amount"`        // principal in cents
	InterestRate     float64    `json:"interest_rate"` // annual, e.g. 0.079
	TermMonths       int        `json:"term_months"`
	MonthlyPayment   int64      `json:"monthly_payment"` // fixed amortized payment
	RemainingBalance int64      `json:"remaining_balance"`
	Status           LoanStatus `json:"status"`
	StartDate        time.Time  `json:"start_date"`
	PaymentDueDate   time.Time  `json:"payment_due_date"`
}

// LoanApplication is the DTO for a new loan application.
type LoanApplication struct {
	Amount     int64  `json:"amount"` // requested principal in cents
	TermMonths int    `json:"term_months"`
	Purpose    string `json:"purpose"`
}
