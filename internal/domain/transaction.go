/**
 * @description
 * This file defines the immutable ledger record for the banking-service along
 * with the request DTOs for the money-movement operations. Ledger rows are
 * created only by the account operations service as a byproduct of a money
 * movement and are never mutated or deleted.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionDirection indicates which way money moved from the owning
// user's point of view.
type TransactionDirection string

const (
	DirectionCredit TransactionDirection = "credit"
	DirectionDebit  TransactionDirection = "debit"
)

// Transaction is one immutable ledger entry. A transfer produces two of
// these (a debit for the sender and a credit for the recipient) sharing a
// single timestamp.
type Transaction struct {
	ID           uuid.UUID            `json:"id"`
	UserID       uuid.UUID            `json:"user_id"`
	Direction    TransactionDirection `json:"direction"`
	Amount       int64                `json:"amount"` // in cents, always > 0
	Description  string               `json:"description"`
	Counterparty string               `json:"counterparty"`
	Category     string               `json:"category"`
	CardNumber   *string              `json:"card_number,omitempty"` // set for card transactions
	CreatedAt    time.Time            `json:"created_at"`
}

// TransferRequest is the DTO for a money transfer. The recipient identifier
// is matched against account number, email, phone, display name, and
// username, in that order of trust.
type TransferRequest struct {
	RecipientIdentifier string `json:"recipient_identifier"`
	Amount              int64  `json:"amount"` // in cents
}

// TransferReceipt is returned after a successful transfer.
type TransferReceipt struct {
	Amount        int64     `json:"amount"`
	RecipientName string    `json:"recipient_name"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// AccountType distinguishes payable account kinds.
type AccountType string

const (
	AccountTypeCard AccountType = "card"
	AccountTypeLoan AccountType = "loan"
)

// PaymentType selects how the payment amount is resolved.
type PaymentType string

const (
	PaymentTypeMinimum   PaymentType = "minimum"
	PaymentTypeStatement PaymentType = "statement" // cards only
	PaymentTypeFull      PaymentType = "full"
	PaymentTypeCustom    PaymentType = "custom"
)

// PaymentRequest is the DTO for paying down a card or loan from the user's
// cash balance. AccountID is the card's last four digits or the loan id.
type PaymentRequest struct {
	AccountID    string      `json:"account_id"`
	AccountType  AccountType `json:"account_type"`
	PaymentType  PaymentType `json:"payment_type"`
	CustomAmount int64       `json:"custom_amount,omitempty"` // in cents, for PaymentTypeCustom
}

// PaymentReceipt is returned after a successful account payment.
type PaymentReceipt struct {
	AccountID   string      `json:"account_id"`
	AccountType AccountType `json:"account_type"`
	AmountPaid  int64       `json:"amount_paid"`
	Remaining   int64       `json:"remaining"` // balance still owed after the payment
	PaidOff     bool        `json:"paid_off"`
	Message     string      `json:"message"`
}

// ExtensionReceipt is returned after an approved payment extension.
type ExtensionReceipt struct {
	AccountID   string      `json:"account_id"`
	AccountType AccountType `json:"account_type"`
	NewDueDate  time.Time   `json:"new_due_date"`
	Message     string      `json:"message"`
}
