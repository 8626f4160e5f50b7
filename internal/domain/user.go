/**
 * @description
 * This file defines the core customer models for the banking-service.
 * These structs map directly to the `users` and `passkeys` tables and are
 * shared by the business logic, database, and API layers.
 *
 * @notes
 * - Monetary amounts are stored as `int64` in the smallest currency unit
 *   (cents) to avoid floating-point inaccuracies with financial data.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a bank customer. The cash balance is the authoritative
// savings balance and is only ever mutated by the account operations service.
type User struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"` // unique, stored lowercase
	DisplayName   string    `json:"display_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	AccountNumber string    `json:"account_number"` // unique savings account number
	CashBalance   int64     `json:"cash_balance"`   // in cents, never negative
	KYCVerified   bool      `json:"kyc_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Passkey is a registered strong-authentication credential. Only the opaque
// credential identifier is stored; the cryptographic ceremony happens in the
// external authentication service.
type Passkey struct {
	CredentialID string    `json:"credential_id"` // base64url-encoded
	UserID       uuid.UUID `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}
